// Package platform identifies the operating system family, version, and
// architecture of the running host.
package platform

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// Family is an operating system family.
type Family int

const (
	Unknown Family = iota
	MacOS
	Linux
	Windows
)

func (f Family) String() string {
	switch f {
	case MacOS:
		return "macOS"
	case Linux:
		return "Linux"
	case Windows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// Info describes the running platform. It is read-only once detected.
type Info struct {
	Family  Family
	Version string
	Arch    string
}

func (i Info) String() string {
	return strings.TrimSpace(i.Family.String() + " " + i.Version)
}

// probeTimeout bounds the gopsutil lookups done during detection.
const probeTimeout = 2 * time.Second

var (
	once     sync.Once
	detected Info
)

// Detect returns the platform of the running process. It never fails; anything
// it cannot determine is reported as "unknown". The result is computed once.
func Detect() Info {
	once.Do(func() {
		detected = detect(runtime.GOOS, runtime.GOARCH)
	})
	return detected
}

// FamilyOf maps a GOOS value to a Family.
func FamilyOf(goos string) Family {
	switch goos {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	case "windows":
		return Windows
	default:
		return Unknown
	}
}

func detect(goos, goarch string) Info {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	info := Info{Family: FamilyOf(goos), Version: "unknown", Arch: goarch}

	if _, _, version, err := host.PlatformInformationWithContext(ctx); err == nil && version != "" {
		info.Version = version
	} else if v := kernelRelease(); v != "" {
		info.Version = v
	}

	if arch, err := host.KernelArch(); err == nil && arch != "" {
		info.Arch = arch
	}
	return info
}
