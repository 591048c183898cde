//go:build !windows

package winsvc

import (
	"context"
	"errors"
	"io"
)

// ErrNotWindows is returned by every service operation off Windows.
var ErrNotWindows = errors.New("windows services are not supported on this platform")

// IsWindowsService always returns false on non-Windows platforms.
func IsWindowsService() bool { return false }

// EventLogWriter is not available on non-Windows platforms.
func EventLogWriter(string) (io.Writer, error) { return nil, ErrNotWindows }

// RunService is not supported on non-Windows platforms.
func RunService(string, func(ctx context.Context) error) error { return ErrNotWindows }

// Install is not supported on non-Windows platforms.
func Install(_, _, _ string, _ []string) error { return ErrNotWindows }

// Uninstall is not supported on non-Windows platforms.
func Uninstall(string) error { return ErrNotWindows }
