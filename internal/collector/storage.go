package collector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
)

type volume struct {
	Device     string
	Mountpoint string
	Fstype     string
	Total      uint64
	Free       uint64
}

func (v volume) String() string {
	src := v.Device
	if v.Fstype != "" {
		src += ", " + v.Fstype
	}
	freePct := 0.0
	if v.Total > 0 {
		freePct = float64(v.Free) / float64(v.Total) * 100
	}
	return fmt.Sprintf("%s (%s): %s total, %s free (%s free)",
		v.Mountpoint, src, gigabytes(v.Total), gigabytes(v.Free), percent(freePct))
}

// pseudoFS are virtual filesystems that never hold user data.
var pseudoFS = map[string]bool{
	"tmpfs": true, "devtmpfs": true, "devfs": true, "ramfs": true,
	"proc": true, "sysfs": true, "cgroup": true, "cgroup2": true,
	"squashfs": true, "autofs": true, "nsfs": true, "tracefs": true,
	"debugfs": true, "securityfs": true, "pstore": true, "bpf": true,
	"configfs": true, "fusectl": true, "mqueue": true, "hugetlbfs": true,
	"binfmt_misc": true, "efivarfs": true, "devpts": true, "map": true,
}

func (c *Collector) collectStorage(ctx context.Context, r *Result) {
	resolveGroup(ctx, c, r, []string{FieldVolumes, FieldTotalCapacity, FieldTotalFree}, func(vols []volume) {
		sort.Slice(vols, func(i, j int) bool { return vols[i].Mountpoint < vols[j].Mountpoint })
		total, free := volumeTotals(vols)

		shown := capped(vols, c.opts.Limits.Volumes)
		items := make([]string, len(shown))
		for i, v := range shown {
			items[i] = v.String()
		}
		r.Set(FieldVolumes, ItemList(items))
		r.Set(FieldTotalCapacity, Scalar(gigabytes(total)))
		r.Set(FieldTotalFree, Scalar(gigabytes(free)))
	}, c.volumeStrategies())
}

// volumeTotals sums capacity once per device so bind mounts are not counted
// twice.
func volumeTotals(vols []volume) (total, free uint64) {
	seen := make(map[string]bool, len(vols))
	for _, v := range vols {
		if seen[v.Device] {
			continue
		}
		seen[v.Device] = true
		total += v.Total
		free += v.Free
	}
	return total, free
}

func (c *Collector) volumeStrategies() []fallback.Strategy[[]volume] {
	gops := fallback.New("gopsutil disk", func(ctx context.Context) ([]volume, error) {
		parts, err := c.opts.Host.Partitions(ctx)
		if err != nil {
			return nil, err
		}
		var vols []volume
		for _, p := range parts {
			if pseudoFS[p.Fstype] {
				continue
			}
			usage, err := c.opts.Host.DiskUsage(ctx, p.Mountpoint)
			if err != nil || usage.Total == 0 {
				continue
			}
			vols = append(vols, volume{
				Device:     p.Device,
				Mountpoint: p.Mountpoint,
				Fstype:     p.Fstype,
				Total:      usage.Total,
				Free:       usage.Free,
			})
		}
		if len(vols) == 0 {
			return nil, fallback.ErrNoData
		}
		return vols, nil
	})
	df := command(c, parseDF, "df", "-kP")
	return byPlatform[[]volume]{
		platform.MacOS:   {gops, df},
		platform.Linux:   {gops, df},
		platform.Windows: {gops},
		platform.Unknown: {gops},
	}.on(c.family())
}

// parseDF reads POSIX `df -kP` output. Mount points may contain spaces.
func parseDF(out string) ([]volume, error) {
	var vols []volume
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if i == 0 || len(fields) < 6 {
			continue
		}
		if pseudoFS[fields[0]] {
			continue
		}
		total, err1 := strconv.ParseUint(fields[1], 10, 64)
		avail, err2 := strconv.ParseUint(fields[3], 10, 64)
		if err1 != nil || err2 != nil || total == 0 {
			continue
		}
		vols = append(vols, volume{
			Device:     fields[0],
			Mountpoint: strings.Join(fields[5:], " "),
			Total:      total * 1024,
			Free:       avail * 1024,
		})
	}
	if len(vols) == 0 {
		return nil, fallback.ErrNoData
	}
	return vols, nil
}
