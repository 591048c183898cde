//go:build windows

package platform

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// kernelRelease returns the NT version reported by RtlGetVersion.
func kernelRelease() string {
	v := windows.RtlGetVersion()
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber)
}
