// Package tools maps the named diagnostic tools onto collector domains and
// renders their reports.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/go-tangra/go-tangra-sysinfo/internal/collector"
	"github.com/go-tangra/go-tangra-sysinfo/internal/logger"
	"github.com/go-tangra/go-tangra-sysinfo/internal/report"
)

// ErrUnknownTool is returned by Run for a name that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// FullReport is the composite tool covering every domain.
const FullReport = "get_full_system_report"

const fullReportFooter = "Complete system analysis finished"

// Tool describes one invocable operation.
type Tool struct {
	Name        string
	Title       string
	Description string
	Domains     []collector.Domain
}

var catalog = []Tool{
	{"get_system_summary", "System Summary",
		"Hostname, platform, processor, serial number, memory, and uptime.",
		[]collector.Domain{collector.Summary}},
	{"get_hardware_details", "Hardware Details",
		"System vendor and model, BIOS, CPU, memory, swap, GPUs, and battery.",
		[]collector.Domain{collector.Hardware}},
	{"get_display_info", "Display Information",
		"Display server, connected displays, resolution, and refresh rate.",
		[]collector.Domain{collector.Display}},
	{"get_network_status", "Network Status",
		"Interfaces, default gateway, DNS servers, external IP, and VPN status.",
		[]collector.Domain{collector.Network}},
	{"get_storage_analysis", "Storage Analysis",
		"Mounted volumes with capacity and free space.",
		[]collector.Domain{collector.Storage}},
	{"get_connected_devices", "Connected Devices",
		"USB and Bluetooth devices.",
		[]collector.Domain{collector.Devices}},
	{"get_user_environment", "User Environment",
		"Current user, shell, session start, time zone, and locale.",
		[]collector.Domain{collector.UserEnvironment}},
	{"get_running_processes", "Running Processes",
		"Top processes by CPU and memory, with total and active counts.",
		[]collector.Domain{collector.Processes}},
	{"get_open_ports", "Open Network Ports",
		"Listening ports with owning processes, established connections, and top remote hosts.",
		[]collector.Domain{collector.OpenPorts}},
	{FullReport, "Complete System Report",
		"Every section above in one report.",
		collector.Domains},
}

// Collector is the part of collector.Collector the registry needs.
type Collector interface {
	Collect(ctx context.Context, d collector.Domain) *collector.Result
}

// Registry runs tools against a collector.
type Registry struct {
	collector Collector
	now       func() time.Time
	byName    map[string]Tool
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New returns a registry with every tool registered.
func New(c Collector, opts ...Option) *Registry {
	r := &Registry{
		collector: c,
		now:       time.Now,
		byName:    make(map[string]Tool, len(catalog)),
	}
	for _, t := range catalog {
		r.byName[t.Name] = t
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Tools lists the registered tools in catalog order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Run collects a fresh snapshot for the named tool and renders it. The only
// error is ErrUnknownTool; collection problems show up inside the report.
func (r *Registry) Run(ctx context.Context, name string) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	reqID := uuid.NewString()
	start := time.Now()
	log := logger.Tools.With().Str("request_id", reqID).Str("tool", name).Logger()
	log.Info().Msg("tool invoked")

	rep := report.Report{
		Title:     t.Title,
		Generated: r.now(),
		Sections:  r.collect(ctx, t.Domains),
	}
	if name == FullReport {
		rep.Footer = fullReportFooter
	}
	out := rep.Render()

	log.Info().
		Dur("duration", time.Since(start)).
		Int("sections", len(rep.Sections)).
		Msg("tool finished")
	return out, nil
}

// collect gathers the domains in parallel and returns their sections in the
// order given.
func (r *Registry) collect(ctx context.Context, domains []collector.Domain) []report.Section {
	sections := make([]report.Section, len(domains))
	if len(domains) == 1 {
		sections[0] = r.section(ctx, domains[0])
		return sections
	}

	var wg conc.WaitGroup
	for i, d := range domains {
		wg.Go(func() {
			sections[i] = r.section(ctx, d)
		})
	}
	wg.Wait()
	return sections
}

// section collects one domain. A panicking adapter yields a section in
// which every field is unavailable.
func (r *Registry) section(ctx context.Context, d collector.Domain) (s report.Section) {
	schema, _ := collector.SchemaFor(d)
	defer func() {
		if p := recover(); p != nil {
			logger.Tools.Error().
				Str("domain", string(d)).
				Interface("panic", p).
				Msg("domain collector panicked")
			s = collector.UnavailableResult(schema, "collector failed").Section()
		}
	}()
	return r.collector.Collect(ctx, d).Section()
}
