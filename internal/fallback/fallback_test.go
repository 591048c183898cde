package fallback

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fail(name string, err error) Strategy[string] {
	return New(name, func(context.Context) (string, error) { return "", err })
}

func succeed(name, v string, calls *int32) Strategy[string] {
	return New(name, func(context.Context) (string, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		return v, nil
	})
}

func TestResolveFirstSuccessWins(t *testing.T) {
	var laterCalls int32
	res := Resolve(context.Background(), time.Second,
		fail("a", ErrUnsupported),
		fail("b", fs.ErrPermission),
		succeed("c", "X", nil),
		succeed("d", "Y", &laterCalls),
	)

	require.True(t, res.OK)
	assert.Equal(t, "X", res.Value)
	assert.Equal(t, "c", res.Used)
	assert.Len(t, res.Failures, 2)
	assert.Equal(t, int32(0), atomic.LoadInt32(&laterCalls), "strategies after the first success must not run")
}

func TestResolveAllFail(t *testing.T) {
	res := Resolve(context.Background(), time.Second,
		fail("a", ErrUnsupported),
		fail("b", fs.ErrPermission),
	)

	assert.False(t, res.OK)
	assert.Empty(t, res.Value)
	assert.Empty(t, res.Used)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "a", res.Failures[0].Strategy)
	assert.Equal(t, "not supported on this platform", res.Failures[0].Reason())
	assert.Equal(t, "permission denied", res.Failures[1].Reason())
	assert.Equal(t, "not supported on this platform; permission denied", res.Reason())
}

func TestResolveNoStrategies(t *testing.T) {
	res := Resolve[int](context.Background(), time.Second)

	assert.False(t, res.OK)
	assert.Equal(t, "not supported on this platform", res.Reason())
}

func TestResolveDeduplicatesReasons(t *testing.T) {
	res := Resolve(context.Background(), time.Second,
		fail("a", exec.ErrNotFound),
		fail("b", fmt.Errorf("run lsusb: %w", exec.ErrNotFound)),
	)
	assert.Equal(t, "tool not installed", res.Reason())
}

func TestResolveTimeoutFallsThrough(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	stalled := New("stalled", func(context.Context) (string, error) {
		// Ignores its context on purpose.
		select {
		case <-block:
		case <-time.After(5 * time.Second):
		}
		return "late", nil
	})

	start := time.Now()
	res := Resolve(context.Background(), 100*time.Millisecond, stalled, succeed("next", "on time", nil))
	elapsed := time.Since(start)

	require.True(t, res.OK)
	assert.Equal(t, "on time", res.Value)
	assert.Equal(t, "next", res.Used)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "timed out", res.Failures[0].Reason())
	assert.Less(t, elapsed, 2*time.Second, "total time should track the timeout, not the strategy duration")
}

func TestResolveRecoversPanics(t *testing.T) {
	boom := New("boom", func(context.Context) (string, error) { panic("kaboom") })

	res := Resolve(context.Background(), time.Second, boom, succeed("ok", "fine", nil))

	require.True(t, res.OK)
	assert.Equal(t, "fine", res.Value)
	assert.Equal(t, "collector failed", res.Failures[0].Reason())
}

func TestResolveNilRun(t *testing.T) {
	res := Resolve(context.Background(), time.Second, Strategy[string]{Name: "nil"})
	assert.False(t, res.OK)
	assert.Equal(t, "not supported on this platform", res.Reason())
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	res := Resolve(ctx, time.Second, succeed("a", "x", &calls))
	assert.False(t, res.OK)
	assert.Equal(t, "cancelled", res.Reason())
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestResolveWithoutTimeout(t *testing.T) {
	res := Resolve(context.Background(), 0, succeed("a", "x", nil))
	require.True(t, res.OK)
	assert.Equal(t, "x", res.Value)
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnsupported, "not supported on this platform"},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), "timed out"},
		{fs.ErrPermission, "permission denied"},
		{&fs.PathError{Op: "open", Path: "/sys/firmware/dmi/tables/DMI", Err: fs.ErrPermission}, "permission denied"},
		{&exec.Error{Name: "lsusb", Err: exec.ErrNotFound}, "tool not installed"},
		{ErrNoData, "no data"},
		{fs.ErrNotExist, "not available"},
		{errors.New("not implemented yet"), "not supported on this platform"},
		{errors.New("Access is denied."), "permission denied"},
		{errors.New("exit status 1"), "exit status 1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Reason(tt.err), "err=%v", tt.err)
	}
}

func TestReasonTruncatesLongMessages(t *testing.T) {
	long := errors.New("a very long error message that goes on and on describing every detail of the failure")
	got := Reason(long)
	assert.LessOrEqual(t, len(got), maxReasonLen)
	assert.Contains(t, got, "...")

	localized := Reason(errors.New(strings.Repeat("a", 56) + "ééééé"))
	assert.True(t, utf8.ValidString(localized), "%q", localized)
	assert.Equal(t, strings.Repeat("a", 56)+"é...", localized)
	assert.Equal(t, maxReasonLen, utf8.RuneCountInString(localized))
}
