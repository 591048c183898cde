package collector

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// isCardDevice reports whether name is a DRM card (card0) rather than a
// connector (card0-DP-1) or a render node.
func isCardDevice(name string) bool {
	suffix, ok := strings.CutPrefix(name, "card")
	if !ok || suffix == "" {
		return false
	}
	for _, ch := range suffix {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

func pciVendorName(id string) string {
	switch strings.ToLower(id) {
	case "1002":
		return "AMD"
	case "10de":
		return "NVIDIA"
	case "8086":
		return "Intel"
	case "1af4":
		return "Red Hat"
	case "15ad":
		return "VMware"
	case "80ee":
		return "VirtualBox"
	case "":
		return ""
	default:
		return "0x" + strings.ToLower(id)
	}
}

// parseUevent splits KEY=value lines of a sysfs uevent file.
func parseUevent(s string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(s, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok {
			out[k] = v
		}
	}
	return out
}

// glob matches pattern on the collector filesystem and returns the matches
// sorted. A missing parent directory yields no matches.
func (c *Collector) glob(pattern string) ([]string, error) {
	matches, err := afero.Glob(c.opts.FS, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// readSysfs returns a trimmed sysfs attribute, or "" when it is unreadable.
func (c *Collector) readSysfs(dir, name string) string {
	s, err := c.readFile(path.Join(dir, name))
	if err != nil {
		return ""
	}
	return s
}
