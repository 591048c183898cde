package collector

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
	"github.com/go-tangra/go-tangra-sysinfo/internal/platform"
)

type displayMode struct {
	Name    string
	Width   int
	Height  int
	Refresh float64
	Primary bool
}

func (d displayMode) resolution() string {
	return fmt.Sprintf("%d x %d", d.Width, d.Height)
}

func (d displayMode) String() string {
	s := d.Name + ": " + d.resolution()
	if d.Refresh > 0 {
		s += " @ " + hertz(d.Refresh)
	}
	if d.Primary {
		s += " (primary)"
	}
	return s
}

func hertz(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64) + " Hz"
}

func (c *Collector) collectDisplay(ctx context.Context, r *Result) {
	resolveField(ctx, c, r, FieldDisplayServer, Scalar, c.displayServerStrategies())

	resolveGroup(ctx, c, r, []string{FieldDisplays, FieldPrimaryResolution}, func(modes []displayMode) {
		sort.SliceStable(modes, func(i, j int) bool { return modes[i].Name < modes[j].Name })
		primary := modes[0]
		for _, m := range modes {
			if m.Primary {
				primary = m
				break
			}
		}
		modes = capped(modes, c.opts.Limits.Displays)
		items := make([]string, len(modes))
		for i, m := range modes {
			items[i] = m.String()
		}
		r.Set(FieldDisplays, ItemList(items))
		r.Set(FieldPrimaryResolution, Scalar(primary.resolution()))
	}, c.displayStrategies())

	resolveField(ctx, c, r, FieldRefreshRate, func(hz float64) Value { return Scalar(hertz(hz)) }, c.refreshRateStrategies())
}

func (c *Collector) displayServerStrategies() []fallback.Strategy[string] {
	constant := func(name string) fallback.Strategy[string] {
		return fallback.New("constant", func(context.Context) (string, error) { return name, nil })
	}
	return byPlatform[string]{
		platform.MacOS: {constant("Quartz")},
		platform.Linux: {fallback.New("session environment", func(context.Context) (string, error) {
			return sessionType(c.opts.Env)
		})},
		platform.Windows: {constant("Desktop Window Manager")},
	}.on(c.family())
}

// sessionType names the Linux display server from the session environment.
func sessionType(env func(string) string) (string, error) {
	switch strings.ToLower(env("XDG_SESSION_TYPE")) {
	case "wayland":
		return "Wayland", nil
	case "x11":
		return "X11", nil
	case "tty":
		return "None (text console)", nil
	}
	if env("WAYLAND_DISPLAY") != "" {
		return "Wayland", nil
	}
	if env("DISPLAY") != "" {
		return "X11", nil
	}
	return "", fallback.ErrNoData
}

func (c *Collector) displayStrategies() []fallback.Strategy[[]displayMode] {
	return byPlatform[[]displayMode]{
		platform.MacOS: {
			command(c, parseDisplaysModes, "system_profiler", "SPDisplaysDataType"),
		},
		platform.Linux: {
			command(c, parseXrandr, "xrandr", "--current"),
			c.drmDisplays(),
		},
		platform.Windows: {c.wmiDisplays()},
	}.on(c.family())
}

func (c *Collector) refreshRateStrategies() []fallback.Strategy[float64] {
	return byPlatform[float64]{
		platform.MacOS: {
			command(c, func(out string) (float64, error) {
				modes, err := parseDisplaysModes(out)
				if err != nil {
					return 0, err
				}
				return primaryRefresh(modes)
			}, "system_profiler", "SPDisplaysDataType"),
		},
		platform.Linux: {
			command(c, func(out string) (float64, error) {
				modes, err := parseXrandr(out)
				if err != nil {
					return 0, err
				}
				return primaryRefresh(modes)
			}, "xrandr", "--current"),
		},
		platform.Windows: {c.wmiRefreshRate()},
	}.on(c.family())
}

// primaryRefresh returns the refresh rate of the primary display, or of the
// first display that reports one.
func primaryRefresh(modes []displayMode) (float64, error) {
	for _, m := range modes {
		if m.Primary && m.Refresh > 0 {
			return m.Refresh, nil
		}
	}
	for _, m := range modes {
		if m.Refresh > 0 {
			return m.Refresh, nil
		}
	}
	return 0, fallback.ErrNoData
}

var (
	resolutionPattern = regexp.MustCompile(`(\d+)\s*x\s*(\d+)`)
	refreshPattern    = regexp.MustCompile(`@\s*([\d.]+)\s*Hz`)
)

func parseResolution(s string) (int, int, bool) {
	m := resolutionPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return w, h, w > 0 && h > 0
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// parseDisplaysModes reads the "Displays:" blocks of system_profiler
// SPDisplaysDataType. Each display is a header line nested one level under
// "Displays:" with its properties indented below it.
func parseDisplaysModes(out string) ([]displayMode, error) {
	var (
		modes       []displayMode
		cur         *displayMode
		inDisplays  bool
		parent      int
		headerLevel = -1
	)
	flush := func() {
		if cur != nil && cur.Width > 0 {
			modes = append(modes, *cur)
		}
		cur = nil
	}
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		indent := indentOf(line)
		if trimmed == "Displays:" {
			flush()
			inDisplays, parent, headerLevel = true, indent, -1
			continue
		}
		if !inDisplays {
			continue
		}
		if indent <= parent {
			flush()
			inDisplays = false
			continue
		}
		k, v, _ := strings.Cut(trimmed, ":")
		v = strings.TrimSpace(v)
		if headerLevel < 0 {
			headerLevel = indent
		}
		if indent == headerLevel && v == "" {
			flush()
			cur = &displayMode{Name: k}
			continue
		}
		if cur == nil {
			continue
		}
		switch k {
		case "Resolution":
			if w, h, ok := parseResolution(v); ok {
				cur.Width, cur.Height = w, h
			}
			if m := refreshPattern.FindStringSubmatch(v); m != nil {
				cur.Refresh, _ = strconv.ParseFloat(m[1], 64)
			}
		case "UI Looks like":
			if m := refreshPattern.FindStringSubmatch(v); m != nil {
				cur.Refresh, _ = strconv.ParseFloat(m[1], 64)
			}
		case "Main Display":
			cur.Primary = v == "Yes"
		}
	}
	flush()
	if len(modes) == 0 {
		return nil, fallback.ErrNoData
	}
	return modes, nil
}

var xrandrGeometry = regexp.MustCompile(`(\d+)x(\d+)\+\d+\+\d+`)

// parseXrandr reads connected outputs with an active mode from
// `xrandr --current`. The current mode line carries a "*".
func parseXrandr(out string) ([]displayMode, error) {
	var (
		modes []displayMode
		cur   *displayMode
	)
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		if indentOf(line) == 0 {
			cur = nil
			fields := strings.Fields(line)
			if len(fields) < 2 || fields[1] != "connected" {
				continue
			}
			m := xrandrGeometry.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			w, _ := strconv.Atoi(m[1])
			h, _ := strconv.Atoi(m[2])
			modes = append(modes, displayMode{
				Name:    fields[0],
				Width:   w,
				Height:  h,
				Primary: strings.Contains(line, " primary "),
			})
			cur = &modes[len(modes)-1]
			continue
		}
		if cur == nil || cur.Refresh > 0 {
			continue
		}
		for _, tok := range strings.Fields(line)[1:] {
			if strings.Contains(tok, "*") {
				cur.Refresh, _ = strconv.ParseFloat(strings.Trim(tok, "*+"), 64)
				break
			}
		}
	}
	if len(modes) == 0 {
		return nil, fallback.ErrNoData
	}
	return modes, nil
}

// drmDisplays reads connector state from /sys/class/drm/card*-*/. The first
// listed mode is the preferred one.
func (c *Collector) drmDisplays() fallback.Strategy[[]displayMode] {
	return fallback.New("/sys/class/drm", func(context.Context) ([]displayMode, error) {
		statuses, err := c.glob("/sys/class/drm/card*-*/status")
		if err != nil {
			return nil, err
		}
		var modes []displayMode
		for _, status := range statuses {
			dir := path.Dir(status)
			if c.readSysfs(dir, "status") != "connected" {
				continue
			}
			first, _, _ := strings.Cut(c.readSysfs(dir, "modes"), "\n")
			w, h, ok := parseResolution(first)
			if !ok {
				continue
			}
			_, name, _ := strings.Cut(path.Base(dir), "-")
			modes = append(modes, displayMode{Name: name, Width: w, Height: h})
		}
		if len(modes) == 0 {
			return nil, fallback.ErrNoData
		}
		modes[0].Primary = true
		return modes, nil
	})
}
