// Package report renders collected sections as flat, readable text.
package report

import (
	"strings"
	"time"
)

// TimeLayout is the timestamp format used across reports.
const TimeLayout = "2006-01-02 15:04:05"

// Line is a single key within a Section. A line either carries a value
// (scalar or list) or is unavailable with a reason.
type Line struct {
	Key         string
	Value       string
	Items       []string
	List        bool
	Unavailable bool
	Reason      string
}

// Text returns a scalar line.
func Text(key, value string) Line { return Line{Key: key, Value: value} }

// List returns a line whose value is an ordered list of items.
func List(key string, items []string) Line { return Line{Key: key, Items: items, List: true} }

// Unavailable returns a line for a value that could not be obtained.
func Unavailable(key, reason string) Line {
	return Line{Key: key, Unavailable: true, Reason: reason}
}

// Section is one titled region of a report.
type Section struct {
	Title string
	Lines []Line
}

// Report is an ordered set of sections with a title and generation time.
type Report struct {
	Title     string
	Generated time.Time
	Sections  []Section
	Footer    string
}

// Render returns the full text of the report.
func (r Report) Render() string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(r.Title)
	b.WriteString("\nGenerated: ")
	b.WriteString(r.Generated.Format(TimeLayout))
	b.WriteString("\n\n")
	b.WriteString(Format(r.Sections))
	if r.Footer != "" {
		b.WriteString("\n---\n")
		b.WriteString(r.Footer)
		b.WriteString("\n")
	}
	return b.String()
}

// Format renders sections in order. Identical input always yields identical
// output.
func Format(sections []Section) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		writeSection(&b, s)
	}
	return b.String()
}

func writeSection(b *strings.Builder, s Section) {
	b.WriteString("## ")
	b.WriteString(s.Title)
	b.WriteString("\n")
	for _, l := range s.Lines {
		writeLine(b, l)
	}
}

func writeLine(b *strings.Builder, l Line) {
	b.WriteString("- ")
	b.WriteString(l.Key)
	b.WriteString(":")

	switch {
	case l.Unavailable:
		reason := l.Reason
		if reason == "" {
			reason = "unknown reason"
		}
		b.WriteString(" unavailable (")
		b.WriteString(oneLine(reason))
		b.WriteString(")\n")
	case l.List && len(l.Items) == 0:
		b.WriteString(" none\n")
	case l.List:
		b.WriteString("\n")
		for _, item := range l.Items {
			b.WriteString("  - ")
			b.WriteString(oneLine(item))
			b.WriteString("\n")
		}
	default:
		v := oneLine(l.Value)
		if v == "" {
			v = "none"
		}
		b.WriteString(" ")
		b.WriteString(v)
		b.WriteString("\n")
	}
}

// oneLine keeps every value on its own line so the one-line-per-key shape
// holds regardless of what a source returned.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
