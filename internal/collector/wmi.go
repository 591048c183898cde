package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
)

type win32Processor struct {
	Name string
}

type win32ComputerSystem struct {
	Manufacturer string
	Model        string
}

type win32BIOS struct {
	Manufacturer      string
	SMBIOSBIOSVersion string
	ReleaseDate       string
	SerialNumber      string
}

type win32VideoController struct {
	Name                        string
	AdapterRAM                  uint32
	CurrentHorizontalResolution uint32
	CurrentVerticalResolution   uint32
	CurrentRefreshRate          uint32
}

type win32Battery struct {
	Name                     string
	EstimatedChargeRemaining uint16
	EstimatedRunTime         uint32
	BatteryStatus            uint16
}

type win32PnPEntity struct {
	Name     string
	DeviceID string
}

type win32OperatingSystem struct {
	MUILanguages []string
	CodeSet      string
}

type win32NetworkAdapterConfiguration struct {
	DefaultIPGateway     []string
	DNSServerSearchOrder []string
}

// wmiRows runs query and fails with ErrNoData on an empty result.
func wmiRows[T any](ctx context.Context, c *Collector, query string) ([]T, error) {
	var rows []T
	if err := c.opts.WMI(ctx, query, &rows); err != nil {
		return nil, fmt.Errorf("wmi %q: %w", query, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("wmi %q: %w", query, fallback.ErrNoData)
	}
	return rows, nil
}

func (c *Collector) wmiProcessor() fallback.Strategy[string] {
	return fallback.New("wmi Win32_Processor", func(ctx context.Context) (string, error) {
		rows, err := wmiRows[win32Processor](ctx, c, "SELECT Name FROM Win32_Processor")
		if err != nil {
			return "", err
		}
		return nonEmpty(strings.TrimSpace(rows[0].Name))
	})
}

func (c *Collector) wmiSystemIdentity() fallback.Strategy[systemIdentity] {
	return fallback.New("wmi Win32_ComputerSystem", func(ctx context.Context) (systemIdentity, error) {
		rows, err := wmiRows[win32ComputerSystem](ctx, c, "SELECT Manufacturer, Model FROM Win32_ComputerSystem")
		if err != nil {
			return systemIdentity{}, err
		}
		return systemIdentity{Vendor: rows[0].Manufacturer, Model: rows[0].Model}.valid()
	})
}

func (c *Collector) wmiBIOS() fallback.Strategy[biosInfo] {
	return fallback.New("wmi Win32_BIOS", func(ctx context.Context) (biosInfo, error) {
		rows, err := wmiRows[win32BIOS](ctx, c, "SELECT Manufacturer, SMBIOSBIOSVersion, ReleaseDate FROM Win32_BIOS")
		if err != nil {
			return biosInfo{}, err
		}
		date := rows[0].ReleaseDate
		// CIM datetime: yyyymmddHHMMSS.mmmmmmsUUU
		if len(date) >= 8 {
			date = date[0:4] + "-" + date[4:6] + "-" + date[6:8]
		}
		return biosInfo{Vendor: rows[0].Manufacturer, Version: rows[0].SMBIOSBIOSVersion, Date: date}.valid()
	})
}

func (c *Collector) wmiSerial() fallback.Strategy[string] {
	return fallback.New("wmi Win32_BIOS", func(ctx context.Context) (string, error) {
		rows, err := wmiRows[win32BIOS](ctx, c, "SELECT SerialNumber FROM Win32_BIOS")
		if err != nil {
			return "", err
		}
		return validSerial(rows[0].SerialNumber)
	})
}

func (c *Collector) wmiVideoControllers(ctx context.Context) ([]win32VideoController, error) {
	return wmiRows[win32VideoController](ctx, c,
		"SELECT Name, AdapterRAM, CurrentHorizontalResolution, CurrentVerticalResolution, CurrentRefreshRate FROM Win32_VideoController")
}

func (c *Collector) wmiGPUs() fallback.Strategy[[]string] {
	return fallback.New("wmi Win32_VideoController", func(ctx context.Context) ([]string, error) {
		rows, err := c.wmiVideoControllers(ctx)
		if err != nil {
			return nil, err
		}
		var gpus []string
		for _, v := range rows {
			name := strings.TrimSpace(v.Name)
			if name == "" {
				continue
			}
			if v.AdapterRAM > 0 {
				name = fmt.Sprintf("%s (VRAM: %s)", name, gigabytes(uint64(v.AdapterRAM)))
			}
			gpus = append(gpus, name)
		}
		return nonEmptyList(gpus)
	})
}

func (c *Collector) wmiDisplays() fallback.Strategy[[]displayMode] {
	return fallback.New("wmi Win32_VideoController", func(ctx context.Context) ([]displayMode, error) {
		rows, err := c.wmiVideoControllers(ctx)
		if err != nil {
			return nil, err
		}
		var modes []displayMode
		for i, v := range rows {
			if v.CurrentHorizontalResolution == 0 || v.CurrentVerticalResolution == 0 {
				continue
			}
			modes = append(modes, displayMode{
				Name:    strings.TrimSpace(v.Name),
				Width:   int(v.CurrentHorizontalResolution),
				Height:  int(v.CurrentVerticalResolution),
				Refresh: float64(v.CurrentRefreshRate),
				Primary: i == 0,
			})
		}
		if len(modes) == 0 {
			return nil, fallback.ErrNoData
		}
		return modes, nil
	})
}

func (c *Collector) wmiRefreshRate() fallback.Strategy[float64] {
	return fallback.New("wmi Win32_VideoController", func(ctx context.Context) (float64, error) {
		rows, err := c.wmiVideoControllers(ctx)
		if err != nil {
			return 0, err
		}
		for _, v := range rows {
			if v.CurrentRefreshRate > 0 {
				return float64(v.CurrentRefreshRate), nil
			}
		}
		return 0, fallback.ErrNoData
	})
}

// Win32_Battery.EstimatedRunTime reports this when running on AC power.
const wmiRunTimeUnknown = 71582788

func (c *Collector) wmiBattery() fallback.Strategy[Value] {
	return fallback.New("wmi Win32_Battery", func(ctx context.Context) (Value, error) {
		var rows []win32Battery
		if err := c.opts.WMI(ctx, "SELECT Name, EstimatedChargeRemaining, EstimatedRunTime, BatteryStatus FROM Win32_Battery", &rows); err != nil {
			return Value{}, fmt.Errorf("wmi Win32_Battery: %w", err)
		}
		if len(rows) == 0 {
			return Scalar(batteryNotPresent), nil
		}
		b := rows[0]
		items := []string{"Charge Level: " + percent(float64(b.EstimatedChargeRemaining))}
		// BatteryStatus 2 means the system has access to AC power.
		if b.BatteryStatus == 2 {
			items = append(items, "Status: Charging (plugged in)")
		} else {
			items = append(items, "Status: On battery")
			if b.EstimatedRunTime > 0 && b.EstimatedRunTime != wmiRunTimeUnknown {
				items = append(items, fmt.Sprintf("Time Remaining: %dh %dm", b.EstimatedRunTime/60, b.EstimatedRunTime%60))
			}
		}
		return ItemList(items), nil
	})
}

func (c *Collector) wmiPnPDevices(where string) fallback.Strategy[[]string] {
	query := "SELECT Name, DeviceID FROM Win32_PnPEntity WHERE " + where
	return fallback.New("wmi Win32_PnPEntity", func(ctx context.Context) ([]string, error) {
		var rows []win32PnPEntity
		if err := c.opts.WMI(ctx, query, &rows); err != nil {
			return nil, fmt.Errorf("wmi %q: %w", query, err)
		}
		var names []string
		for _, d := range rows {
			if name := strings.TrimSpace(d.Name); name != "" {
				names = append(names, name)
			}
		}
		return names, nil
	})
}

func (c *Collector) wmiLocale() fallback.Strategy[localeInfo] {
	return fallback.New("wmi Win32_OperatingSystem", func(ctx context.Context) (localeInfo, error) {
		rows, err := wmiRows[win32OperatingSystem](ctx, c, "SELECT MUILanguages, CodeSet FROM Win32_OperatingSystem")
		if err != nil {
			return localeInfo{}, err
		}
		var l localeInfo
		if len(rows[0].MUILanguages) > 0 {
			l.Language = rows[0].MUILanguages[0]
		}
		if rows[0].CodeSet != "" {
			l.Encoding = "cp" + rows[0].CodeSet
		}
		if l.Language == "" {
			return localeInfo{}, fallback.ErrNoData
		}
		return l, nil
	})
}

func (c *Collector) wmiAdapterConfigs(ctx context.Context) ([]win32NetworkAdapterConfiguration, error) {
	return wmiRows[win32NetworkAdapterConfiguration](ctx, c,
		"SELECT DefaultIPGateway, DNSServerSearchOrder FROM Win32_NetworkAdapterConfiguration WHERE IPEnabled = TRUE")
}

func (c *Collector) wmiGateway() fallback.Strategy[string] {
	return fallback.New("wmi Win32_NetworkAdapterConfiguration", func(ctx context.Context) (string, error) {
		rows, err := c.wmiAdapterConfigs(ctx)
		if err != nil {
			return "", err
		}
		for _, a := range rows {
			for _, gw := range a.DefaultIPGateway {
				if gw != "" {
					return gw, nil
				}
			}
		}
		return "", fallback.ErrNoData
	})
}

func (c *Collector) wmiDNSServers() fallback.Strategy[[]string] {
	return fallback.New("wmi Win32_NetworkAdapterConfiguration", func(ctx context.Context) ([]string, error) {
		rows, err := c.wmiAdapterConfigs(ctx)
		if err != nil {
			return nil, err
		}
		var servers []string
		for _, a := range rows {
			servers = append(servers, a.DNSServerSearchOrder...)
		}
		return nonEmptyList(servers)
	})
}
