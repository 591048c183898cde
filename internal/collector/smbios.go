package collector

import (
	"context"
	"fmt"

	"github.com/siderolabs/go-smbios/smbios"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
)

// smbiosTable decodes the firmware SMBIOS table. Reading it usually needs
// root on Linux.
func (c *Collector) smbiosTable() (*smbios.SMBIOS, error) {
	s, err := c.opts.SMBIOS()
	if err != nil {
		return nil, fmt.Errorf("read smbios: %w", err)
	}
	if s == nil {
		return nil, fallback.ErrNoData
	}
	return s, nil
}

func (c *Collector) smbiosSerial() fallback.Strategy[string] {
	return fallback.New("smbios", func(context.Context) (string, error) {
		s, err := c.smbiosTable()
		if err != nil {
			return "", err
		}
		return validSerial(s.SystemInformation.SerialNumber)
	})
}

func (c *Collector) smbiosIdentity() fallback.Strategy[systemIdentity] {
	return fallback.New("smbios", func(context.Context) (systemIdentity, error) {
		s, err := c.smbiosTable()
		if err != nil {
			return systemIdentity{}, err
		}
		return systemIdentity{
			Vendor: s.SystemInformation.Manufacturer,
			Model:  s.SystemInformation.ProductName,
		}.valid()
	})
}

func (c *Collector) smbiosBIOS() fallback.Strategy[biosInfo] {
	return fallback.New("smbios", func(context.Context) (biosInfo, error) {
		s, err := c.smbiosTable()
		if err != nil {
			return biosInfo{}, err
		}
		return biosInfo{
			Vendor:  s.BIOSInformation.Vendor,
			Version: s.BIOSInformation.Version,
			Date:    s.BIOSInformation.ReleaseDate,
		}.valid()
	})
}
