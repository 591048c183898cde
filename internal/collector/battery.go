package collector

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
)

const batteryNotPresent = "not present"

func (c *Collector) batteryStrategies() []fallback.Strategy[Value] {
	return byPlatform[Value]{
		platform.MacOS:   {c.pmsetBattery()},
		platform.Linux:   {c.sysfsBattery()},
		platform.Windows: {c.wmiBattery()},
	}.on(c.family())
}

var pmsetBatteryLine = regexp.MustCompile(`(\d+)%;\s*([^;]+);\s*(.*)$`)

// parsePmset reads `pmset -g batt`:
//
//	Now drawing from 'AC Power'
//	 -InternalBattery-0 (id=4653155)	87%; charging; 1:05 remaining present: true
func parsePmset(out string) ([]string, bool) {
	plugged := strings.Contains(out, "'AC Power'")
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "InternalBattery") {
			continue
		}
		m := pmsetBatteryLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		charge, _ := strconv.ParseFloat(m[1], 64)
		items := []string{"Charge Level: " + percent(charge)}

		state := strings.TrimSpace(m[2])
		switch {
		case state == "charged" || state == "finishing charge":
			items = append(items, "Status: Fully charged (plugged in)")
		case plugged:
			items = append(items, "Status: Charging (plugged in)")
		default:
			items = append(items, "Status: On battery")
		}

		remaining, _, _ := strings.Cut(strings.TrimSpace(m[3]), " ")
		if h, mm, ok := strings.Cut(remaining, ":"); ok && remaining != "0:00" && strings.Contains(m[3], "remaining") {
			label := "Time Remaining"
			if plugged {
				label = "Time to Full"
			}
			items = append(items, fmt.Sprintf("%s: %sh %sm", label, h, mm))
		}
		return items, true
	}
	return nil, false
}

// powerDetails picks the battery health lines out of
// system_profiler SPPowerDataType.
func powerDetails(out string) []string {
	var items []string
	for _, k := range []string{"Cycle Count", "Condition", "Maximum Capacity"} {
		if v := field(out, k); v != "" {
			items = append(items, k+": "+v)
		}
	}
	if w := field(out, "Wattage (W)"); w != "" {
		items = append(items, "Charging Wattage: "+w+"W")
	}
	return items
}

func (c *Collector) pmsetBattery() fallback.Strategy[Value] {
	return fallback.New("pmset -g batt", func(ctx context.Context) (Value, error) {
		out, err := c.opts.Runner.Run(ctx, "pmset", "-g", "batt")
		if err != nil {
			return Value{}, err
		}
		items, ok := parsePmset(out)
		if !ok {
			return Scalar(batteryNotPresent), nil
		}
		if details, err := c.opts.Runner.Run(ctx, "system_profiler", "SPPowerDataType"); err == nil {
			items = append(items, powerDetails(details)...)
		}
		return ItemList(items), nil
	})
}

func (c *Collector) sysfsBattery() fallback.Strategy[Value] {
	const dir = "/sys/class/power_supply"
	return fallback.New(dir, func(context.Context) (Value, error) {
		exists, err := afero.DirExists(c.opts.FS, dir)
		if err != nil {
			return Value{}, err
		}
		if !exists {
			return Value{}, fmt.Errorf("%s: %w", dir, fs.ErrNotExist)
		}
		batteries, err := c.glob(path.Join(dir, "BAT*"))
		if err != nil {
			return Value{}, err
		}
		if len(batteries) == 0 {
			return Scalar(batteryNotPresent), nil
		}
		return ItemList(c.sysfsBatteryDetails(batteries[0])), nil
	})
}

func (c *Collector) sysfsBatteryDetails(bat string) []string {
	var items []string
	if capacity := c.readSysfs(bat, "capacity"); capacity != "" {
		if v, err := strconv.ParseFloat(capacity, 64); err == nil {
			items = append(items, "Charge Level: "+percent(v))
		}
	}
	switch c.readSysfs(bat, "status") {
	case "Charging":
		items = append(items, "Status: Charging (plugged in)")
	case "Full", "Not charging":
		items = append(items, "Status: Fully charged (plugged in)")
	case "Discharging":
		items = append(items, "Status: On battery")
	}
	if uw, err := strconv.ParseFloat(c.readSysfs(bat, "power_now"), 64); err == nil && uw > 0 {
		items = append(items, fmt.Sprintf("Power Draw: %.1fW", uw/1e6))
	}
	for _, prefix := range []string{"charge", "energy"} {
		full, err1 := strconv.ParseFloat(c.readSysfs(bat, prefix+"_full"), 64)
		design, err2 := strconv.ParseFloat(c.readSysfs(bat, prefix+"_full_design"), 64)
		if err1 == nil && err2 == nil && design > 0 {
			items = append(items, "Battery Health: "+percent(full/design*100))
			break
		}
	}
	if cycles := c.readSysfs(bat, "cycle_count"); cycles != "" && cycles != "0" {
		items = append(items, "Cycle Count: "+cycles)
	}
	return items
}
