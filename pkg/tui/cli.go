// Package tui renders the CLI output: banners, topology summaries, run
// reports. Simple streaming output, no full-screen TUI.
package tui

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF6600")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

// PrintBanner prints the startup header.
func PrintBanner(version string) {
	fmt.Println()
	fmt.Println(titleStyle.Render("  EVENTFLOW") + mutedStyle.Render(" v"+version))
	fmt.Println(mutedStyle.Render("  Observability event pipeline"))
	fmt.Println()
}

// TopologySummary describes a loaded topology for display.
type TopologySummary struct {
	Path       string
	Sources    map[string]string // name -> type
	Transforms map[string][]string
	Sinks      map[string][]string
}

// PrintTopology prints the component graph of a loaded topology.
func PrintTopology(s TopologySummary) {
	fmt.Println(accentStyle.Render("▸ TOPOLOGY ") + mutedStyle.Render(s.Path))
	fmt.Println()

	fmt.Println(mutedStyle.Render("  sources"))
	for _, name := range sortedKeys(s.Sources) {
		fmt.Printf("    %s %s\n", titleStyle.Render(name), mutedStyle.Render("("+s.Sources[name]+")"))
	}

	if len(s.Transforms) > 0 {
		fmt.Println(mutedStyle.Render("  transforms"))
		for _, name := range sortedKeys(s.Transforms) {
			fmt.Printf("    %s %s\n", titleStyle.Render(name), mutedStyle.Render(joinInputs(s.Transforms[name])))
		}
	}

	fmt.Println(mutedStyle.Render("  sinks"))
	for _, name := range sortedKeys(s.Sinks) {
		fmt.Printf("    %s %s\n", titleStyle.Render(name), mutedStyle.Render(joinInputs(s.Sinks[name])))
	}
	fmt.Println()
}

// PrintValid reports a topology that passed validation.
func PrintValid(path string) {
	fmt.Printf("%s %s\n", successStyle.Render("✓"), path)
}

// PrintComponentList prints the registered component types of one kind.
func PrintComponentList(kind string, names []string) {
	fmt.Println(accentStyle.Render("▸ " + kind))
	for _, name := range names {
		fmt.Printf("  %s\n", titleStyle.Render(name))
	}
	fmt.Println()
}

// RunReport summarizes a finished run.
type RunReport struct {
	Duration time.Duration
	Err      error
}

// PrintRunReport prints the outcome of a topology run.
func PrintRunReport(r RunReport) {
	fmt.Println()
	if r.Err != nil {
		fmt.Printf("%s %v\n", accentStyle.Render("✗"), r.Err)
		return
	}
	fmt.Printf("%s %s %s\n",
		successStyle.Render("✓ DONE"),
		mutedStyle.Render("in"),
		titleStyle.Render(formatDuration(r.Duration)))
}

// PrintBenchReport prints throughput results.
func PrintBenchReport(events int64, elapsed time.Duration) {
	throughput := float64(events) / elapsed.Seconds()
	fmt.Println()
	fmt.Println(successStyle.Render("  ✓ BENCH COMPLETE"))
	fmt.Println()
	fmt.Printf("  %s %s\n", mutedStyle.Render("Events:"), titleStyle.Render(formatNumber(events)))
	fmt.Printf("  %s %s %s\n",
		mutedStyle.Render("Time:"),
		titleStyle.Render(formatDuration(elapsed)),
		mutedStyle.Render(fmt.Sprintf("(%s events/sec)", formatNumber(int64(throughput)))))
	fmt.Println()
}

// ShowProgress creates a progress bar for long-running work.
func ShowProgress(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// ClearLine clears the current line.
func ClearLine() {
	fmt.Print("\r\033[K")
}

func joinInputs(inputs []string) string {
	if len(inputs) == 0 {
		return ""
	}
	out := "← " + inputs[0]
	for _, in := range inputs[1:] {
		out += ", " + in
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}
