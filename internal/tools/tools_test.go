package tools

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-tangra/go-tangra-sysinfo/internal/collector"
)

var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// stubCollector sets every field to "ok" unless told to stall or panic.
type stubCollector struct {
	delay  map[collector.Domain]time.Duration
	panics map[collector.Domain]bool
	calls  atomic.Int32
}

func (s *stubCollector) Collect(_ context.Context, d collector.Domain) *collector.Result {
	s.calls.Add(1)
	time.Sleep(s.delay[d])
	if s.panics[d] {
		panic("boom")
	}
	schema, _ := collector.SchemaFor(d)
	r := collector.NewResult(schema)
	for _, f := range schema.Fields {
		r.Set(f, collector.Scalar("ok"))
	}
	return r
}

func newRegistry(c Collector) *Registry {
	return New(c, WithClock(func() time.Time { return testNow }))
}

func TestCatalog(t *testing.T) {
	reg := newRegistry(&stubCollector{})
	tools := reg.Tools()
	require.Len(t, tools, 10)

	seen := map[string]bool{}
	for _, tool := range tools {
		assert.False(t, seen[tool.Name], "duplicate %s", tool.Name)
		seen[tool.Name] = true
		assert.NotEmpty(t, tool.Title)
		assert.NotEmpty(t, tool.Description)
		assert.NotEmpty(t, tool.Domains)
	}

	full, ok := reg.Lookup(FullReport)
	require.True(t, ok)
	assert.Equal(t, collector.Domains, full.Domains)
}

func TestRunUnknownTool(t *testing.T) {
	stub := &stubCollector{}
	out, err := newRegistry(stub).Run(context.Background(), "get_weather")

	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.Empty(t, out)
	assert.Zero(t, stub.calls.Load())
}

func TestRunSingleTool(t *testing.T) {
	out, err := newRegistry(&stubCollector{}).Run(context.Background(), "get_storage_analysis")
	require.NoError(t, err)

	assert.Equal(t, "# Storage Analysis\n"+
		"Generated: 2026-03-14 15:09:26\n\n"+
		"## Storage\n"+
		"- Volumes: ok\n"+
		"- Total Capacity: ok\n"+
		"- Total Free: ok\n", out)
}

func TestFullReportOrderAndIsolation(t *testing.T) {
	stub := &stubCollector{
		// Later domains finish first; the output order must not change.
		delay: map[collector.Domain]time.Duration{
			collector.Summary:  30 * time.Millisecond,
			collector.Hardware: 20 * time.Millisecond,
		},
		panics: map[collector.Domain]bool{collector.Storage: true},
	}
	out, err := newRegistry(stub).Run(context.Background(), FullReport)
	require.NoError(t, err)

	assert.Equal(t, int32(len(collector.Domains)), stub.calls.Load())
	assert.True(t, strings.HasPrefix(out, "# Complete System Report\n"))
	assert.True(t, strings.HasSuffix(out, "\n---\nComplete system analysis finished\n"))

	last := -1
	for _, d := range collector.Domains {
		schema, _ := collector.SchemaFor(d)
		idx := strings.Index(out, "## "+schema.Title+"\n")
		require.GreaterOrEqual(t, idx, 0, schema.Title)
		assert.Greater(t, idx, last, "%s out of order", schema.Title)
		last = idx
	}

	assert.Contains(t, out, "## Storage\n"+
		"- Volumes: unavailable (collector failed)\n"+
		"- Total Capacity: unavailable (collector failed)\n"+
		"- Total Free: unavailable (collector failed)\n")
	assert.Contains(t, out, "## Connected Devices\n- USB Devices: ok\n- Bluetooth Devices: ok\n")
}

func TestFullReportRunsDomainsConcurrently(t *testing.T) {
	delay := map[collector.Domain]time.Duration{}
	for _, d := range collector.Domains {
		delay[d] = 100 * time.Millisecond
	}
	start := time.Now()
	_, err := newRegistry(&stubCollector{delay: delay}).Run(context.Background(), FullReport)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 600*time.Millisecond)
}

func TestRunIsRepeatable(t *testing.T) {
	reg := newRegistry(&stubCollector{})
	a, err := reg.Run(context.Background(), "get_open_ports")
	require.NoError(t, err)
	b, err := reg.Run(context.Background(), "get_open_ports")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
