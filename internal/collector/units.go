package collector

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-tangra/go-tangra-sysinfo/internal/report"
)

const gib = 1 << 30

// gigabytes renders a byte count in GiB with one decimal place.
func gigabytes(b uint64) string {
	return fmt.Sprintf("%.1f GB", float64(b)/gib)
}

func percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

func megahertz(f float64) string {
	return fmt.Sprintf("%.0f MHz", f)
}

func timestamp(t time.Time) string {
	return t.Format(report.TimeLayout)
}

// uptime renders a duration as whole days and hours.
func uptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int(d%(24*time.Hour)) / int(time.Hour)
	return fmt.Sprintf("%d %s, %d %s", days, plural(days, "day"), hours, plural(hours, "hour"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// utcOffset renders a zone offset in seconds as UTC+hh:mm.
func utcOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}

// truncateHead keeps the first n characters.
func truncateHead(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// truncateTail keeps the last characters of long paths, prefixed with "...".
func truncateTail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "..." + string(r[len(r)-(n-3):])
}

// field returns the trimmed value of the first "key: value" line whose key
// matches exactly. Indentation and padding before the colon are ignored.
func field(out, key string) string {
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if ok && strings.TrimSpace(k) == key {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
