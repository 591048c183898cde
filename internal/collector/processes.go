package collector

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
)

const (
	maxProcessName = 20
	maxProcessPath = 40
)

func (c *Collector) collectProcesses(ctx context.Context, r *Result) {
	resolveGroup(ctx, c, r, []string{FieldTopProcesses, FieldTotalProcesses, FieldActiveProcesses}, func(procs []ProcessSample) {
		top := rankProcesses(procs, c.opts.Limits.Processes)
		items := make([]string, len(top))
		for i, p := range top {
			items[i] = processLine(p)
		}
		active := 0
		for _, p := range procs {
			if p.CPU > 0 {
				active++
			}
		}
		r.Set(FieldTopProcesses, ItemList(items))
		r.Set(FieldTotalProcesses, Scalar(strconv.Itoa(len(procs))))
		r.Set(FieldActiveProcesses, Scalar(strconv.Itoa(active)))
	}, c.processStrategies())
}

// rankProcesses orders by CPU descending, then memory descending, then PID
// ascending, and keeps the first limit entries. The input is not modified.
func rankProcesses(procs []ProcessSample, limit int) []ProcessSample {
	ranked := make([]ProcessSample, len(procs))
	copy(ranked, procs)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.CPU != b.CPU {
			return a.CPU > b.CPU
		}
		if a.Memory != b.Memory {
			return a.Memory > b.Memory
		}
		return a.PID < b.PID
	})
	return capped(ranked, limit)
}

func processLine(p ProcessSample) string {
	exe := p.Path
	if exe == "" {
		exe = "N/A"
	}
	return fmt.Sprintf("PID %d %s: CPU %s, Memory %s, %s",
		p.PID, truncateHead(p.Name, maxProcessName), percent(p.CPU), percent(p.Memory), truncateTail(exe, maxProcessPath))
}

func (c *Collector) processStrategies() []fallback.Strategy[[]ProcessSample] {
	gops := fallback.New("gopsutil process", func(ctx context.Context) ([]ProcessSample, error) {
		procs, err := c.opts.Host.Processes(ctx, c.opts.CPUSample)
		if err != nil {
			return nil, err
		}
		if len(procs) == 0 {
			return nil, fallback.ErrNoData
		}
		return procs, nil
	})
	ps := command(c, parsePS, "ps", "-axo", "pid=,pcpu=,pmem=,comm=")
	return byPlatform[[]ProcessSample]{
		platform.MacOS:   {gops, ps},
		platform.Linux:   {gops, ps},
		platform.Windows: {gops},
		platform.Unknown: {gops},
	}.on(c.family())
}

// parsePS reads `ps -axo pid=,pcpu=,pmem=,comm=`. The command column may
// contain spaces.
func parsePS(out string) ([]ProcessSample, error) {
	var procs []ProcessSample
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		pid, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			continue
		}
		cpu, _ := strconv.ParseFloat(fields[1], 64)
		mem, _ := strconv.ParseFloat(fields[2], 64)
		comm := strings.Join(fields[3:], " ")
		p := ProcessSample{PID: int32(pid), Name: path.Base(comm), CPU: cpu, Memory: mem}
		if strings.HasPrefix(comm, "/") {
			p.Path = comm
		}
		procs = append(procs, p)
	}
	if len(procs) == 0 {
		return nil, fallback.ErrNoData
	}
	return procs, nil
}
