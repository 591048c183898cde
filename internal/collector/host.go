package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Host is the set of OS facilities read through gopsutil.
type Host interface {
	Info(ctx context.Context) (*host.InfoStat, error)
	Users(ctx context.Context) ([]host.UserStat, error)
	CPUInfo(ctx context.Context) ([]cpu.InfoStat, error)
	CPUCounts(ctx context.Context, logical bool) (int, error)
	CPUPercent(ctx context.Context, interval time.Duration) ([]float64, error)
	LoadAvg(ctx context.Context) (*load.AvgStat, error)
	VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error)
	Partitions(ctx context.Context) ([]disk.PartitionStat, error)
	DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error)
	Interfaces(ctx context.Context) ([]net.InterfaceStat, error)
	Connections(ctx context.Context, kind string) ([]net.ConnectionStat, error)
	ConnectionsPid(ctx context.Context, kind string, pid int32) ([]net.ConnectionStat, error)
	Processes(ctx context.Context, interval time.Duration) ([]ProcessSample, error)
	ProcessName(ctx context.Context, pid int32) (string, error)
	ProcessCreateTime(ctx context.Context, pid int32) (time.Time, error)
}

// ProcessSample is one row of the process table.
type ProcessSample struct {
	PID    int32
	Name   string
	CPU    float64
	Memory float64
	Path   string
}

type gopsutilHost struct{}

func (gopsutilHost) Info(ctx context.Context) (*host.InfoStat, error) {
	return host.InfoWithContext(ctx)
}

func (gopsutilHost) Users(ctx context.Context) ([]host.UserStat, error) {
	return host.UsersWithContext(ctx)
}

func (gopsutilHost) CPUInfo(ctx context.Context) ([]cpu.InfoStat, error) {
	return cpu.InfoWithContext(ctx)
}

func (gopsutilHost) CPUCounts(ctx context.Context, logical bool) (int, error) {
	return cpu.CountsWithContext(ctx, logical)
}

func (gopsutilHost) CPUPercent(ctx context.Context, interval time.Duration) ([]float64, error) {
	return cpu.PercentWithContext(ctx, interval, false)
}

func (gopsutilHost) LoadAvg(ctx context.Context) (*load.AvgStat, error) {
	return load.AvgWithContext(ctx)
}

func (gopsutilHost) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (gopsutilHost) SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error) {
	return mem.SwapMemoryWithContext(ctx)
}

func (gopsutilHost) Partitions(ctx context.Context) ([]disk.PartitionStat, error) {
	return disk.PartitionsWithContext(ctx, false)
}

func (gopsutilHost) DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}

func (gopsutilHost) Interfaces(ctx context.Context) ([]net.InterfaceStat, error) {
	return net.InterfacesWithContext(ctx)
}

func (gopsutilHost) Connections(ctx context.Context, kind string) ([]net.ConnectionStat, error) {
	return net.ConnectionsWithContext(ctx, kind)
}

func (gopsutilHost) ConnectionsPid(ctx context.Context, kind string, pid int32) ([]net.ConnectionStat, error) {
	return net.ConnectionsPidWithContext(ctx, kind, pid)
}

// Processes walks the process table twice, interval apart, and reports CPU
// as the share of one core used between the walks. Processes that vanish or
// deny access mid-walk are skipped.
func (gopsutilHost) Processes(ctx context.Context, interval time.Duration) ([]ProcessSample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	before := make(map[int32]float64, len(procs))
	for _, p := range procs {
		if t, err := p.TimesWithContext(ctx); err == nil {
			before[p.Pid] = t.User + t.System
		}
	}
	start := time.Now()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(interval):
	}
	elapsed := time.Since(start)

	samples := make([]ProcessSample, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		s := ProcessSample{PID: p.Pid, Name: name}
		if t, err := p.TimesWithContext(ctx); err == nil {
			if prev, ok := before[p.Pid]; ok {
				s.CPU = cpuSharePercent(prev, t.User+t.System, elapsed)
			}
		}
		if m, err := p.MemoryPercentWithContext(ctx); err == nil {
			s.Memory = float64(m)
		}
		if exe, err := p.ExeWithContext(ctx); err == nil {
			s.Path = exe
		}
		if s.Path == "" {
			if args, err := p.CmdlineSliceWithContext(ctx); err == nil && len(args) > 0 {
				s.Path = args[0]
			}
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// cpuSharePercent converts CPU seconds consumed over elapsed wall time into
// a percentage of one core. A counter that went backwards (PID reuse) is 0.
func cpuSharePercent(before, after float64, elapsed time.Duration) float64 {
	if elapsed <= 0 || after <= before {
		return 0
	}
	return (after - before) / elapsed.Seconds() * 100
}

func (gopsutilHost) ProcessName(ctx context.Context, pid int32) (string, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", err
	}
	return p.NameWithContext(ctx)
}

func (gopsutilHost) ProcessCreateTime(ctx context.Context, pid int32) (time.Time, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return time.Time{}, err
	}
	ms, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
