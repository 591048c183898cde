package collector

import (
	"context"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
)

func (c *Collector) collectSummary(ctx context.Context, r *Result) {
	resolveField(ctx, c, r, FieldHostname, Scalar, c.hostnameStrategies())
	c.setPlatform(r)
	resolveField(ctx, c, r, FieldSerialNumber, Scalar, c.serialStrategies())
	c.resolveCPUAndMemory(ctx, r)
}

// setPlatform fills the fields known from the platform probe.
func (c *Collector) setPlatform(r *Result) {
	p := c.opts.Platform
	r.Set(FieldPlatform, Scalar(p.String()))
	if p.Arch == "" {
		r.Degrade(FieldArchitecture, fallback.Reason(fallback.ErrNoData))
		return
	}
	r.Set(FieldArchitecture, Scalar(p.Arch))
}
