package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleSections() []Section {
	return []Section{
		{
			Title: "Hardware",
			Lines: []Line{
				Text("Processor", "Apple M2"),
				Unavailable("GPU", "not supported on this platform"),
				List("Battery", []string{"Charge: 80.0%", "Status: On battery"}),
			},
		},
		{
			Title: "Connected Devices",
			Lines: []Line{
				List("USB Devices", nil),
				Text("Empty", ""),
			},
		},
	}
}

func TestFormat(t *testing.T) {
	want := "## Hardware\n" +
		"- Processor: Apple M2\n" +
		"- GPU: unavailable (not supported on this platform)\n" +
		"- Battery:\n" +
		"  - Charge: 80.0%\n" +
		"  - Status: On battery\n" +
		"\n" +
		"## Connected Devices\n" +
		"- USB Devices: none\n" +
		"- Empty: none\n"

	assert.Equal(t, want, Format(sampleSections()))
}

func TestFormatDeterministic(t *testing.T) {
	a := Format(sampleSections())
	b := Format(sampleSections())
	assert.Equal(t, a, b)
}

func TestFormatOneLinePerKey(t *testing.T) {
	sections := []Section{{
		Title: "X",
		Lines: []Line{
			Text("Multi", "first\nsecond\n"),
			Unavailable("Broken", "line one\nline two"),
			Unavailable("NoReason", ""),
		},
	}}
	out := Format(sections)

	assert.Equal(t, 1, strings.Count(out, "- Multi:"))
	assert.Contains(t, out, "- Multi: first second\n")
	assert.Contains(t, out, "- Broken: unavailable (line one line two)\n")
	assert.Contains(t, out, "- NoReason: unavailable (unknown reason)\n")
}

func TestFormatEmpty(t *testing.T) {
	assert.Equal(t, "", Format(nil))
}

func TestRender(t *testing.T) {
	r := Report{
		Title:     "Hardware Details",
		Generated: time.Date(2026, 10, 18, 9, 30, 0, 0, time.Local),
		Sections:  sampleSections()[:1],
		Footer:    "Complete system analysis finished",
	}
	out := r.Render()

	assert.True(t, strings.HasPrefix(out, "# Hardware Details\nGenerated: 2026-10-18 09:30:00\n\n## Hardware\n"))
	assert.True(t, strings.HasSuffix(out, "\n---\nComplete system analysis finished\n"))
	assert.Equal(t, out, r.Render())
}
