package collector

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
)

func (c *Collector) collectDevices(ctx context.Context, r *Result) {
	render := func(names []string) Value {
		names = dedup(names)
		sort.Strings(names)
		return ItemList(capped(names, c.opts.Limits.Devices))
	}
	resolveField(ctx, c, r, FieldUSBDevices, render, c.usbStrategies())
	resolveField(ctx, c, r, FieldBluetoothDevices, render, c.bluetoothStrategies())
}

func (c *Collector) usbStrategies() []fallback.Strategy[[]string] {
	return byPlatform[[]string]{
		platform.MacOS: {
			command(c, parseSPUSB, "system_profiler", "SPUSBDataType"),
		},
		platform.Linux: {
			command(c, parseLsusb, "lsusb"),
			c.sysfsUSB(),
		},
		platform.Windows: {c.wmiPnPDevices("DeviceID LIKE 'USB%'")},
	}.on(c.family())
}

func (c *Collector) bluetoothStrategies() []fallback.Strategy[[]string] {
	return byPlatform[[]string]{
		platform.MacOS: {
			command(c, parseSPBluetooth, "system_profiler", "SPBluetoothDataType"),
		},
		platform.Linux: {
			command(c, parseBluetoothctl, "bluetoothctl", "devices"),
		},
		platform.Windows: {c.wmiPnPDevices("PNPClass = 'Bluetooth'")},
	}.on(c.family())
}

type header struct {
	Name   string
	Indent int
}

// headers returns the "Name:" lines (no value) of system_profiler output
// with their indentation.
func headers(out string) []header {
	var hs []header
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasSuffix(trimmed, ":") || strings.Count(trimmed, ":") != 1 {
			continue
		}
		hs = append(hs, header{Name: strings.TrimSuffix(trimmed, ":"), Indent: indentOf(line)})
	}
	return hs
}

// parseSPUSB lists devices from system_profiler SPUSBDataType, leaving out
// buses and hubs.
func parseSPUSB(out string) ([]string, error) {
	devices := []string{}
	for _, h := range headers(out) {
		lower := strings.ToLower(h.Name)
		if h.Name == "USB" || strings.HasSuffix(lower, " bus") || strings.Contains(lower, "hub") {
			continue
		}
		devices = append(devices, h.Name)
	}
	return devices, nil
}

var lsusbLine = regexp.MustCompile(`ID ([0-9a-fA-F]{4}:[0-9a-fA-F]{4})\s*(.*)$`)

// parseLsusb reads "Bus 001 Device 002: ID 046d:c52b Logitech, Inc. Unifying
// Receiver" lines. Root hubs are left out.
func parseLsusb(out string) ([]string, error) {
	devices := []string{}
	for _, line := range strings.Split(out, "\n") {
		m := lsusbLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(m[2])
		if strings.Contains(strings.ToLower(desc), "root hub") {
			continue
		}
		if desc == "" {
			desc = "USB device " + m[1]
		}
		devices = append(devices, desc)
	}
	return devices, nil
}

func (c *Collector) sysfsUSB() fallback.Strategy[[]string] {
	const dir = "/sys/bus/usb/devices"
	return fallback.New(dir, func(context.Context) ([]string, error) {
		exists, err := afero.DirExists(c.opts.FS, dir)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%s: %w", dir, fs.ErrNotExist)
		}
		products, err := c.glob(path.Join(dir, "*", "product"))
		if err != nil {
			return nil, err
		}
		devices := []string{}
		for _, p := range products {
			dev := path.Dir(p)
			// usbN entries are the root hubs.
			if strings.HasPrefix(path.Base(dev), "usb") {
				continue
			}
			name := c.readSysfs(dev, "product")
			if name == "" {
				continue
			}
			if mfr := c.readSysfs(dev, "manufacturer"); mfr != "" && !strings.HasPrefix(name, mfr) {
				name = mfr + " " + name
			}
			devices = append(devices, name)
		}
		return devices, nil
	})
}

// parseSPBluetooth reads system_profiler SPBluetoothDataType. Devices are
// headers one level below a "Connected:" or "Not Connected:" header.
func parseSPBluetooth(out string) ([]string, error) {
	devices := []string{}
	state, stateIndent, deviceIndent := "", -1, -1
	for _, h := range headers(out) {
		switch h.Name {
		case "Connected":
			state, stateIndent, deviceIndent = "Connected", h.Indent, -1
			continue
		case "Not Connected":
			state, stateIndent, deviceIndent = "Paired, not connected", h.Indent, -1
			continue
		}
		if state == "" {
			continue
		}
		if h.Indent <= stateIndent {
			state = ""
			continue
		}
		if deviceIndent < 0 {
			deviceIndent = h.Indent
		}
		if h.Indent == deviceIndent {
			devices = append(devices, h.Name+" ("+state+")")
		}
	}
	return devices, nil
}

// parseBluetoothctl reads "Device AA:BB:CC:DD:EE:FF Name" lines.
func parseBluetoothctl(out string) ([]string, error) {
	devices := []string{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
		if len(fields) == 3 && fields[0] == "Device" {
			devices = append(devices, strings.TrimSpace(fields[2]))
		}
	}
	return devices, nil
}
