// Package collector gathers one-shot diagnostic snapshots of the local host.
//
// Each domain adapter resolves its field-groups through the fallback
// resolver using the strategy table in strategies.go, so a missing tool, a
// permission error, or an unsupported platform only ever degrades a field.
package collector

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/user"
	"time"

	"github.com/spf13/afero"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/logger"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"

	"github.com/siderolabs/go-smbios/smbios"
)

const (
	// DefaultTimeout bounds a single source strategy.
	DefaultTimeout = 5 * time.Second
	// DefaultCPUSample is the interval CPU usage is sampled over.
	DefaultCPUSample = time.Second
)

// DefaultExternalIPEndpoints are queried in order for the public address.
var DefaultExternalIPEndpoints = []string{
	"https://checkip.amazonaws.com",
	"https://icanhazip.com",
}

// Options configures a Collector. Zero fields fall back to the real host.
type Options struct {
	Platform  platform.Info
	Timeout   time.Duration
	CPUSample time.Duration
	Limits    Limits

	ExternalIPEnabled   bool
	ExternalIPEndpoints []string

	Host          Host
	Runner        Runner
	FS            afero.Fs
	HTTPClient    *http.Client
	NetInterfaces func() ([]net.Interface, error)
	WMI           func(ctx context.Context, query string, dst any) error
	SMBIOS        func() (*smbios.SMBIOS, error)
	Env           func(key string) string
	Hostname      func() (string, error)
	User          func() (*user.User, error)
	Now           func() time.Time
	PID           int32
}

// Collector runs domain adapters against a fixed platform.
type Collector struct {
	opts Options
}

// New returns a Collector, filling unset options with real sources.
func New(opts Options) *Collector {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CPUSample <= 0 {
		opts.CPUSample = DefaultCPUSample
	}
	opts.Limits = opts.Limits.withDefaults()
	if opts.ExternalIPEndpoints == nil {
		opts.ExternalIPEndpoints = DefaultExternalIPEndpoints
	}
	if opts.Host == nil {
		opts.Host = gopsutilHost{}
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.NetInterfaces == nil {
		opts.NetInterfaces = net.Interfaces
	}
	if opts.WMI == nil {
		opts.WMI = queryWMI
	}
	if opts.SMBIOS == nil {
		opts.SMBIOS = smbios.New
	}
	if opts.Env == nil {
		opts.Env = os.Getenv
	}
	if opts.Hostname == nil {
		opts.Hostname = os.Hostname
	}
	if opts.User == nil {
		opts.User = user.Current
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PID == 0 {
		opts.PID = int32(os.Getpid())
	}
	return &Collector{opts: opts}
}

// Platform returns the platform the collector was built for.
func (c *Collector) Platform() platform.Info { return c.opts.Platform }

// Collect gathers a fresh snapshot of domain d. It always returns a result;
// failures show up as degraded fields.
func (c *Collector) Collect(ctx context.Context, d Domain) *Result {
	s, ok := SchemaFor(d)
	if !ok {
		return NewResult(Schema{Domain: d, Title: string(d)})
	}

	r := NewResult(s)
	switch d {
	case Summary:
		c.collectSummary(ctx, r)
	case Hardware:
		c.collectHardware(ctx, r)
	case Display:
		c.collectDisplay(ctx, r)
	case Network:
		c.collectNetwork(ctx, r)
	case Storage:
		c.collectStorage(ctx, r)
	case Devices:
		c.collectDevices(ctx, r)
	case UserEnvironment:
		c.collectUserEnvironment(ctx, r)
	case Processes:
		c.collectProcesses(ctx, r)
	case OpenPorts:
		c.collectOpenPorts(ctx, r)
	}

	if degraded := r.DegradedFields(); len(degraded) > 0 {
		logger.Collector.Debug().
			Str("domain", string(d)).
			Strs("degraded", degraded).
			Msg("collected with degraded fields")
	}
	return r
}

// resolveField resolves one field-group that maps to a single field.
func resolveField[T any](ctx context.Context, c *Collector, r *Result, field string, render func(T) Value, strategies []fallback.Strategy[T]) (T, bool) {
	return resolveGroup(ctx, c, r, []string{field}, func(v T) { r.Set(field, render(v)) }, strategies)
}

// resolveGroup resolves a field-group feeding several fields. On success
// apply sets the fields; on failure every field is degraded with the same
// reason.
func resolveGroup[T any](ctx context.Context, c *Collector, r *Result, fields []string, apply func(T), strategies []fallback.Strategy[T]) (T, bool) {
	res := fallback.Resolve(ctx, c.opts.Timeout, strategies...)
	if !res.OK {
		reason := res.Reason()
		for _, f := range fields {
			r.Degrade(f, reason)
		}
		for _, fl := range res.Failures {
			logger.Collector.Debug().
				Str("domain", string(r.Schema.Domain)).
				Strs("fields", fields).
				Str("strategy", fl.Strategy).
				Err(fl.Err).
				Msg("strategy failed")
		}
		return res.Value, false
	}
	apply(res.Value)
	return res.Value, true
}
