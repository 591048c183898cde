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

func (c *Collector) collectHardware(ctx context.Context, r *Result) {
	resolveGroup(ctx, c, r, []string{FieldSystemVendor, FieldSystemModel}, func(id systemIdentity) {
		setOrNoData(r, FieldSystemVendor, id.Vendor)
		setOrNoData(r, FieldSystemModel, id.Model)
	}, c.identityStrategies())
	resolveField(ctx, c, r, FieldBIOS, func(b biosInfo) Value { return Scalar(b.String()) }, c.biosStrategies())

	c.resolveCPUAndMemory(ctx, r)
	resolveField(ctx, c, r, FieldCPUFrequency, func(mhz float64) Value { return Scalar(megahertz(mhz)) }, c.cpuFrequencyStrategies())
	resolveField(ctx, c, r, FieldLoadAverage, Scalar, c.loadAverageStrategies())
	resolveField(ctx, c, r, FieldSwap, Scalar, c.swapStrategies())

	resolveField(ctx, c, r, FieldGPU, func(gpus []string) Value {
		sort.Strings(gpus)
		return ItemList(capped(gpus, c.opts.Limits.GPUs))
	}, c.gpuStrategies())
	resolveField(ctx, c, r, FieldBattery, func(v Value) Value { return v }, c.batteryStrategies())
}

func setOrNoData(r *Result, f, v string) {
	if v == "" {
		r.Degrade(f, fallback.Reason(fallback.ErrNoData))
		return
	}
	r.Set(f, Scalar(v))
}

func parseHardwareIdentity(out string) (systemIdentity, error) {
	model := field(out, "Model Name")
	if id := field(out, "Model Identifier"); id != "" {
		model = strings.TrimSpace(model + " (" + id + ")")
	}
	return systemIdentity{Vendor: "Apple Inc.", Model: model}.valid()
}

func (c *Collector) dmiIdentity() fallback.Strategy[systemIdentity] {
	const dir = "/sys/class/dmi/id"
	return fallback.New(dir, func(context.Context) (systemIdentity, error) {
		vendor, err := c.readFile(path.Join(dir, "sys_vendor"))
		if err != nil {
			return systemIdentity{}, err
		}
		return systemIdentity{Vendor: vendor, Model: c.readSysfs(dir, "product_name")}.valid()
	})
}

func (c *Collector) identityStrategies() []fallback.Strategy[systemIdentity] {
	return byPlatform[systemIdentity]{
		platform.MacOS: {
			command(c, parseHardwareIdentity, "system_profiler", "SPHardwareDataType"),
		},
		platform.Linux:   {c.smbiosIdentity(), c.dmiIdentity()},
		platform.Windows: {c.smbiosIdentity(), c.wmiSystemIdentity()},
	}.on(c.family())
}

func (c *Collector) dmiBIOS() fallback.Strategy[biosInfo] {
	const dir = "/sys/class/dmi/id"
	return fallback.New(dir, func(context.Context) (biosInfo, error) {
		vendor, err := c.readFile(path.Join(dir, "bios_vendor"))
		if err != nil {
			return biosInfo{}, err
		}
		return biosInfo{
			Vendor:  vendor,
			Version: c.readSysfs(dir, "bios_version"),
			Date:    c.readSysfs(dir, "bios_date"),
		}.valid()
	})
}

func (c *Collector) biosStrategies() []fallback.Strategy[biosInfo] {
	return byPlatform[biosInfo]{
		platform.Linux:   {c.smbiosBIOS(), c.dmiBIOS()},
		platform.Windows: {c.smbiosBIOS(), c.wmiBIOS()},
	}.on(c.family())
}

func (c *Collector) cpuFrequencyStrategies() []fallback.Strategy[float64] {
	gops := fallback.New("gopsutil cpu", func(ctx context.Context) (float64, error) {
		infos, err := c.opts.Host.CPUInfo(ctx)
		if err != nil {
			return 0, err
		}
		if len(infos) == 0 || infos[0].Mhz <= 0 {
			return 0, fallback.ErrNoData
		}
		return infos[0].Mhz, nil
	})
	t := everywhere(gops)
	t[platform.Linux] = []fallback.Strategy[float64]{
		gops,
		fromFile(c, "/sys/devices/system/cpu/cpu0/cpufreq/cpuinfo_max_freq", func(s string) (float64, error) {
			khz, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("parse cpuinfo_max_freq: %w", err)
			}
			if khz <= 0 {
				return 0, fallback.ErrNoData
			}
			return khz / 1000, nil
		}),
	}
	return t.on(c.family())
}

func (c *Collector) loadAverageStrategies() []fallback.Strategy[string] {
	t := everywhere(fallback.New("gopsutil load", func(ctx context.Context) (string, error) {
		avg, err := c.opts.Host.LoadAvg(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%.2f, %.2f, %.2f", avg.Load1, avg.Load5, avg.Load15), nil
	}))
	delete(t, platform.Windows)
	return t.on(c.family())
}

func swapText(total, used uint64) string {
	if total == 0 {
		return "not configured"
	}
	return fmt.Sprintf("%s (%s used)", gigabytes(total), percent(float64(used)/float64(total)*100))
}

func (c *Collector) swapStrategies() []fallback.Strategy[string] {
	gops := fallback.New("gopsutil mem", func(ctx context.Context) (string, error) {
		sw, err := c.opts.Host.SwapMemory(ctx)
		if err != nil {
			return "", err
		}
		return swapText(sw.Total, sw.Used), nil
	})
	t := everywhere(gops)
	t[platform.Linux] = []fallback.Strategy[string]{
		gops,
		fromFile(c, "/proc/meminfo", func(s string) (string, error) {
			kb := parseMeminfo(s)
			total, ok := kb["SwapTotal"]
			if !ok {
				return "", fallback.ErrNoData
			}
			free := min(kb["SwapFree"], total)
			return swapText(total*1024, (total-free)*1024), nil
		}),
	}
	return t.on(c.family())
}

func (c *Collector) gpuStrategies() []fallback.Strategy[[]string] {
	return byPlatform[[]string]{
		platform.MacOS: {
			command(c, parseDisplaysGPUs, "system_profiler", "SPDisplaysDataType"),
		},
		platform.Linux: {
			command(c, parseLspciGPUs, "lspci", "-mm"),
			c.drmGPUs(),
		},
		platform.Windows: {c.wmiGPUs()},
	}.on(c.family())
}

// parseDisplaysGPUs reads GPUs from system_profiler SPDisplaysDataType. Each
// adapter starts with a "Chipset Model" line; Intel Macs add a VRAM line.
func parseDisplaysGPUs(out string) ([]string, error) {
	var gpus []string
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		switch {
		case k == "Chipset Model" && v != "":
			gpus = append(gpus, v)
		case strings.HasPrefix(k, "VRAM") && v != "" && len(gpus) > 0:
			gpus[len(gpus)-1] += " (VRAM: " + v + ")"
		}
	}
	return nonEmptyList(gpus)
}

// parseLspciGPUs reads display controllers from lspci -mm, whose fields are
// quoted: slot "class" "vendor" "device" ...
func parseLspciGPUs(out string) ([]string, error) {
	var gpus []string
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, `"`)
		if len(parts) < 6 {
			continue
		}
		class := parts[1]
		if !strings.Contains(class, "VGA") && !strings.Contains(class, "3D") && !strings.Contains(class, "Display") {
			continue
		}
		gpus = append(gpus, strings.TrimSpace(parts[3]+" "+parts[5]))
	}
	return nonEmptyList(gpus)
}

func (c *Collector) drmGPUs() fallback.Strategy[[]string] {
	return fallback.New("/sys/class/drm", func(context.Context) ([]string, error) {
		cards, err := c.glob("/sys/class/drm/card*")
		if err != nil {
			return nil, err
		}
		var gpus []string
		for _, card := range cards {
			if !isCardDevice(path.Base(card)) {
				continue
			}
			dev := path.Join(card, "device")
			uevent := parseUevent(c.readSysfs(dev, "uevent"))
			if len(uevent) == 0 {
				continue
			}
			vendorID, deviceID, _ := strings.Cut(uevent["PCI_ID"], ":")
			name := strings.TrimSpace(pciVendorName(vendorID) + " GPU")
			if deviceID != "" {
				name += " 0x" + strings.ToLower(deviceID)
			}
			if drv := uevent["DRIVER"]; drv != "" {
				name += " (" + drv + ")"
			}
			gpus = append(gpus, name)
		}
		return nonEmptyList(gpus)
	})
}
