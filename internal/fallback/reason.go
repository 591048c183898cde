package fallback

import (
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"strings"
)

// maxReasonLen is counted in runes.
const maxReasonLen = 60

// Reason classifies err into the short reason shown next to an unavailable
// field.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupported):
		return "not supported on this platform"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, exec.ErrNotFound):
		return "tool not installed"
	case errors.Is(err, ErrNoData):
		return "no data"
	case errors.Is(err, fs.ErrNotExist):
		return "not available"
	case errors.Is(err, errPanic):
		return "collector failed"
	}

	msg := err.Error()
	// gopsutil reports missing platform support by message only.
	if strings.Contains(msg, "not implemented") {
		return "not supported on this platform"
	}
	if strings.Contains(strings.ToLower(msg), "permission denied") ||
		strings.Contains(strings.ToLower(msg), "access is denied") {
		return "permission denied"
	}
	msg = strings.Join(strings.Fields(msg), " ")
	if r := []rune(msg); len(r) > maxReasonLen {
		msg = string(r[:maxReasonLen-3]) + "..."
	}
	return msg
}
