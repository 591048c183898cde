package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
)

// byPlatform is one row of the strategy table: the ordered strategies for a
// field-group on each platform family. A family without an entry resolves to
// "not supported on this platform".
type byPlatform[T any] map[platform.Family][]fallback.Strategy[T]

// everywhere builds a row that uses the same strategies on every family,
// Unknown included.
func everywhere[T any](strategies ...fallback.Strategy[T]) byPlatform[T] {
	return byPlatform[T]{
		platform.MacOS:   strategies,
		platform.Linux:   strategies,
		platform.Windows: strategies,
		platform.Unknown: strategies,
	}
}

func (t byPlatform[T]) on(f platform.Family) []fallback.Strategy[T] {
	return t[f]
}

func (c *Collector) family() platform.Family { return c.opts.Platform.Family }

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fallback.ErrNoData
	}
	return s, nil
}

func nonEmptyList(items []string) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil, fallback.ErrNoData
	}
	return out, nil
}

// placeholders are firmware strings vendors leave in unset DMI fields.
var placeholders = map[string]bool{
	"":                       true,
	"0":                      true,
	"none":                   true,
	"n/a":                    true,
	"default string":         true,
	"not specified":          true,
	"not applicable":         true,
	"not available":          true,
	"to be filled by o.e.m.": true,
	"system serial number":   true,
	"system manufacturer":    true,
	"system product name":    true,
	"0123456789":             true,
}

func isPlaceholder(s string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(s))]
}

func validSerial(s string) (string, error) {
	if isPlaceholder(s) {
		return "", fallback.ErrNoData
	}
	return strings.TrimSpace(s), nil
}

type systemIdentity struct {
	Vendor string
	Model  string
}

func (s systemIdentity) valid() (systemIdentity, error) {
	if isPlaceholder(s.Vendor) {
		s.Vendor = ""
	}
	if isPlaceholder(s.Model) {
		s.Model = ""
	}
	s.Vendor, s.Model = strings.TrimSpace(s.Vendor), strings.TrimSpace(s.Model)
	if s.Vendor == "" && s.Model == "" {
		return systemIdentity{}, fallback.ErrNoData
	}
	return s, nil
}

type biosInfo struct {
	Vendor  string
	Version string
	Date    string
}

func (b biosInfo) valid() (biosInfo, error) {
	b.Vendor = strings.TrimSpace(b.Vendor)
	b.Version = strings.TrimSpace(b.Version)
	b.Date = strings.TrimSpace(b.Date)
	if b.Vendor == "" && b.Version == "" {
		return biosInfo{}, fallback.ErrNoData
	}
	return b, nil
}

func (b biosInfo) String() string {
	s := strings.TrimSpace(b.Vendor + " " + b.Version)
	if b.Date != "" {
		s += " (" + b.Date + ")"
	}
	return s
}

// readFile reads a small text source through the collector's filesystem.
func (c *Collector) readFile(path string) (string, error) {
	b, err := afero.ReadFile(c.opts.FS, path)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", fmt.Errorf("%s: %w", path, fallback.ErrNoData)
	}
	return s, nil
}

// fromFile builds a strategy around a single file and a parser for it.
func fromFile[T any](c *Collector, path string, parse func(string) (T, error)) fallback.Strategy[T] {
	return fallback.New(path, func(context.Context) (T, error) {
		s, err := c.readFile(path)
		if err != nil {
			var zero T
			return zero, err
		}
		return parse(s)
	})
}

func (c *Collector) hostnameStrategies() []fallback.Strategy[string] {
	return everywhere(
		fallback.New("gopsutil host", func(ctx context.Context) (string, error) {
			info, err := c.opts.Host.Info(ctx)
			if err != nil {
				return "", err
			}
			return nonEmpty(info.Hostname)
		}),
		fallback.New("os hostname", func(context.Context) (string, error) {
			name, err := c.opts.Hostname()
			if err != nil {
				return "", err
			}
			return nonEmpty(name)
		}),
	).on(c.family())
}

func (c *Collector) gopsutilProcessor() fallback.Strategy[string] {
	return fallback.New("gopsutil cpu", func(ctx context.Context) (string, error) {
		infos, err := c.opts.Host.CPUInfo(ctx)
		if err != nil {
			return "", err
		}
		if len(infos) == 0 {
			return "", fallback.ErrNoData
		}
		return nonEmpty(infos[0].ModelName)
	})
}

func (c *Collector) processorStrategies() []fallback.Strategy[string] {
	gops := c.gopsutilProcessor()
	return byPlatform[string]{
		platform.MacOS: {
			gops,
			command(c, nonEmpty, "sysctl", "-n", "machdep.cpu.brand_string"),
		},
		platform.Linux: {
			gops,
			fromFile(c, "/proc/cpuinfo", parseCPUInfoModel),
		},
		platform.Windows: {gops, c.wmiProcessor()},
		platform.Unknown: {gops},
	}.on(c.family())
}

// parseCPUInfoModel reads the model from /proc/cpuinfo. ARM kernels report
// "Hardware" or "Processor" instead of "model name".
func parseCPUInfoModel(s string) (string, error) {
	for _, key := range []string{"model name", "Hardware", "Processor", "cpu model"} {
		if v := field(s, key); v != "" {
			return v, nil
		}
	}
	return "", fallback.ErrNoData
}

func parseHardwareSerial(out string) (string, error) {
	return validSerial(field(out, "Serial Number (system)"))
}

func (c *Collector) serialStrategies() []fallback.Strategy[string] {
	return byPlatform[string]{
		platform.MacOS: {
			command(c, parseHardwareSerial, "system_profiler", "SPHardwareDataType"),
		},
		platform.Linux: {
			c.smbiosSerial(),
			fromFile(c, "/sys/class/dmi/id/product_serial", validSerial),
		},
		platform.Windows: {c.smbiosSerial(), c.wmiSerial()},
	}.on(c.family())
}

type cpuCores struct {
	Physical int
	Logical  int
}

func (n cpuCores) String() string {
	if n.Physical == 0 {
		return fmt.Sprintf("%d logical", n.Logical)
	}
	return fmt.Sprintf("%d physical, %d logical", n.Physical, n.Logical)
}

func (c *Collector) cpuCoreStrategies() []fallback.Strategy[cpuCores] {
	return everywhere(fallback.New("gopsutil cpu", func(ctx context.Context) (cpuCores, error) {
		logical, err := c.opts.Host.CPUCounts(ctx, true)
		if err != nil {
			return cpuCores{}, err
		}
		if logical == 0 {
			return cpuCores{}, fallback.ErrNoData
		}
		// Physical counts are missing inside some VMs.
		physical, _ := c.opts.Host.CPUCounts(ctx, false)
		return cpuCores{Physical: physical, Logical: logical}, nil
	})).on(c.family())
}

func (c *Collector) cpuUsageStrategies() []fallback.Strategy[float64] {
	return everywhere(fallback.New("gopsutil cpu", func(ctx context.Context) (float64, error) {
		pcts, err := c.opts.Host.CPUPercent(ctx, c.opts.CPUSample)
		if err != nil {
			return 0, err
		}
		if len(pcts) == 0 {
			return 0, fallback.ErrNoData
		}
		return pcts[0], nil
	})).on(c.family())
}

type memoryStat struct {
	Total       uint64
	Available   uint64
	UsedPercent float64
}

func newMemoryStat(total, available uint64) memoryStat {
	m := memoryStat{Total: total, Available: available}
	if total > 0 && available <= total {
		m.UsedPercent = float64(total-available) / float64(total) * 100
	}
	return m
}

func (c *Collector) memoryStrategies() []fallback.Strategy[memoryStat] {
	gops := fallback.New("gopsutil mem", func(ctx context.Context) (memoryStat, error) {
		vm, err := c.opts.Host.VirtualMemory(ctx)
		if err != nil {
			return memoryStat{}, err
		}
		if vm.Total == 0 {
			return memoryStat{}, fallback.ErrNoData
		}
		return memoryStat{Total: vm.Total, Available: vm.Available, UsedPercent: vm.UsedPercent}, nil
	})
	t := everywhere(gops)
	t[platform.Linux] = []fallback.Strategy[memoryStat]{
		gops,
		fromFile(c, "/proc/meminfo", func(s string) (memoryStat, error) {
			kb := parseMeminfo(s)
			if kb["MemTotal"] == 0 {
				return memoryStat{}, fallback.ErrNoData
			}
			avail, ok := kb["MemAvailable"]
			if !ok {
				avail = kb["MemFree"] + kb["Buffers"] + kb["Cached"]
			}
			return newMemoryStat(kb["MemTotal"]*1024, avail*1024), nil
		}),
	}
	return t.on(c.family())
}

func (c *Collector) setMemory(r *Result, m memoryStat) {
	r.Set(FieldTotalRAM, Scalar(gigabytes(m.Total)))
	r.Set(FieldAvailableRAM, Scalar(fmt.Sprintf("%s (%s used)", gigabytes(m.Available), percent(m.UsedPercent))))
}

// parseMeminfo returns the kB values of /proc/meminfo keyed by name.
func parseMeminfo(s string) map[string]uint64 {
	out := make(map[string]uint64)
	for _, line := range strings.Split(s, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields := strings.Fields(v)
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		out[strings.TrimSpace(k)] = n
	}
	return out
}

func (c *Collector) bootTimeStrategies() []fallback.Strategy[time.Time] {
	gops := fallback.New("gopsutil host", func(ctx context.Context) (time.Time, error) {
		info, err := c.opts.Host.Info(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if info.BootTime == 0 {
			return time.Time{}, fallback.ErrNoData
		}
		return time.Unix(int64(info.BootTime), 0), nil
	})
	t := everywhere(gops)
	t[platform.Linux] = []fallback.Strategy[time.Time]{
		gops,
		fromFile(c, "/proc/uptime", func(s string) (time.Time, error) {
			fields := strings.Fields(s)
			if len(fields) == 0 {
				return time.Time{}, fallback.ErrNoData
			}
			secs, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("parse /proc/uptime: %w", err)
			}
			return c.opts.Now().Add(-time.Duration(secs * float64(time.Second))).Truncate(time.Second), nil
		}),
	}
	return t.on(c.family())
}

func (c *Collector) setBootTime(r *Result, boot time.Time) {
	r.Set(FieldBootTime, Scalar(timestamp(boot)))
	r.Set(FieldUptime, Scalar(uptime(c.opts.Now().Sub(boot))))
}

// resolveCPUAndMemory fills the fields shared by the summary and hardware
// sections.
func (c *Collector) resolveCPUAndMemory(ctx context.Context, r *Result) {
	resolveField(ctx, c, r, FieldProcessor, Scalar, c.processorStrategies())
	resolveField(ctx, c, r, FieldCPUCores, func(n cpuCores) Value { return Scalar(n.String()) }, c.cpuCoreStrategies())
	resolveField(ctx, c, r, FieldCPUUsage, func(p float64) Value { return Scalar(percent(p)) }, c.cpuUsageStrategies())
	resolveGroup(ctx, c, r, []string{FieldTotalRAM, FieldAvailableRAM},
		func(m memoryStat) { c.setMemory(r, m) }, c.memoryStrategies())
	resolveGroup(ctx, c, r, []string{FieldBootTime, FieldUptime},
		func(t time.Time) { c.setBootTime(r, t) }, c.bootTimeStrategies())
}
