package collector

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"os/user"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/siderolabs/go-smbios/smbios"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
	"github.com/go-tangra/go-tangra-sysinfo/internal/report"
)

var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// fakeHost answers from its fields; an unset field fails with ErrUnsupported.
type fakeHost struct {
	info       *host.InfoStat
	users      []host.UserStat
	cpuInfo    []cpu.InfoStat
	physical   int
	logical    int
	percent    []float64
	load       *load.AvgStat
	vm         *mem.VirtualMemoryStat
	swap       *mem.SwapMemoryStat
	partitions []disk.PartitionStat
	usage      map[string]*disk.UsageStat
	ifaces     []psnet.InterfaceStat
	conns      []psnet.ConnectionStat
	procs      []ProcessSample
	sampledFor time.Duration
	names      map[int32]string
	created    time.Time
}

func (h *fakeHost) Info(context.Context) (*host.InfoStat, error) {
	if h.info == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.info, nil
}

func (h *fakeHost) Users(context.Context) ([]host.UserStat, error) {
	if h.users == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.users, nil
}

func (h *fakeHost) CPUInfo(context.Context) ([]cpu.InfoStat, error) {
	if h.cpuInfo == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.cpuInfo, nil
}

func (h *fakeHost) CPUCounts(_ context.Context, logical bool) (int, error) {
	if h.logical == 0 {
		return 0, fallback.ErrUnsupported
	}
	if logical {
		return h.logical, nil
	}
	return h.physical, nil
}

func (h *fakeHost) CPUPercent(context.Context, time.Duration) ([]float64, error) {
	if h.percent == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.percent, nil
}

func (h *fakeHost) LoadAvg(context.Context) (*load.AvgStat, error) {
	if h.load == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.load, nil
}

func (h *fakeHost) VirtualMemory(context.Context) (*mem.VirtualMemoryStat, error) {
	if h.vm == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.vm, nil
}

func (h *fakeHost) SwapMemory(context.Context) (*mem.SwapMemoryStat, error) {
	if h.swap == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.swap, nil
}

func (h *fakeHost) Partitions(context.Context) ([]disk.PartitionStat, error) {
	if h.partitions == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.partitions, nil
}

func (h *fakeHost) DiskUsage(_ context.Context, path string) (*disk.UsageStat, error) {
	u, ok := h.usage[path]
	if !ok {
		return nil, fallback.ErrUnsupported
	}
	return u, nil
}

func (h *fakeHost) Interfaces(context.Context) ([]psnet.InterfaceStat, error) {
	if h.ifaces == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.ifaces, nil
}

func (h *fakeHost) Connections(context.Context, string) ([]psnet.ConnectionStat, error) {
	if h.conns == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.conns, nil
}

func (h *fakeHost) ConnectionsPid(context.Context, string, int32) ([]psnet.ConnectionStat, error) {
	return nil, fallback.ErrUnsupported
}

func (h *fakeHost) Processes(_ context.Context, interval time.Duration) ([]ProcessSample, error) {
	h.sampledFor = interval
	if h.procs == nil {
		return nil, fallback.ErrUnsupported
	}
	return h.procs, nil
}

func (h *fakeHost) ProcessName(_ context.Context, pid int32) (string, error) {
	name, ok := h.names[pid]
	if !ok {
		return "", fallback.ErrUnsupported
	}
	return name, nil
}

func (h *fakeHost) ProcessCreateTime(context.Context, int32) (time.Time, error) {
	if h.created.IsZero() {
		return time.Time{}, fallback.ErrUnsupported
	}
	return h.created, nil
}

// fakeRunner maps "name arg..." to canned output. Unknown commands behave
// like a missing binary.
type fakeRunner map[string]string

func (f fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	out, ok := f[key]
	if !ok {
		return "", fmt.Errorf("run %s: %w", name, exec.ErrNotFound)
	}
	return out, nil
}

type fixture struct {
	host   *fakeHost
	runner fakeRunner
	fs     afero.Fs
	env    map[string]string
	opts   Options
}

func newFixture(family platform.Family) *fixture {
	f := &fixture{
		host:   &fakeHost{},
		runner: fakeRunner{},
		fs:     afero.NewMemMapFs(),
		env:    map[string]string{},
	}
	f.opts = Options{
		Platform:  platform.Info{Family: family, Version: "1.0", Arch: "x86_64"},
		Timeout:   time.Second,
		CPUSample: time.Millisecond,
		Host:      f.host,
		Runner:    f.runner,
		FS:        f.fs,
		NetInterfaces: func() ([]net.Interface, error) {
			return nil, fallback.ErrUnsupported
		},
		WMI: func(context.Context, string, any) error {
			return fallback.ErrUnsupported
		},
		SMBIOS: func() (*smbios.SMBIOS, error) {
			return nil, fallback.ErrUnsupported
		},
		Env:      func(k string) string { return f.env[k] },
		Hostname: func() (string, error) { return "", fallback.ErrUnsupported },
		User:     func() (*user.User, error) { return nil, fallback.ErrUnsupported },
		Now:      func() time.Time { return testNow },
		PID:      4242,
	}
	return f
}

func (f *fixture) collector() *Collector {
	return New(f.opts)
}

func (f *fixture) writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs, path, []byte(content), 0o644))
}

// line returns the rendered line for key in a section.
func line(t *testing.T, s report.Section, key string) report.Line {
	t.Helper()
	for _, l := range s.Lines {
		if l.Key == key {
			return l
		}
	}
	require.Failf(t, "missing line", "section %q has no %q", s.Title, key)
	return report.Line{}
}
