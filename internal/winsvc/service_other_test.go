//go:build !windows

package winsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceOperationsUnsupported(t *testing.T) {
	assert.False(t, IsWindowsService())

	_, err := EventLogWriter("SysInfo")
	assert.ErrorIs(t, err, ErrNotWindows)
	assert.ErrorIs(t, RunService("SysInfo", func(context.Context) error { return nil }), ErrNotWindows)
	assert.ErrorIs(t, Install("SysInfo", "System Information", "", nil), ErrNotWindows)
	assert.ErrorIs(t, Uninstall("SysInfo"), ErrNotWindows)
}
