//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !windows

package platform

func kernelRelease() string { return "" }
