// Package ui holds the small set of terminal output helpers used by
// the CLI: colored status lines and the end-of-run summary.
package ui

import (
	"fmt"
	"sort"

	"jamabandi/pkg/progress"
)

// Banner printed at startup
const Banner = `
  ══════════════════════════════════════════════
    JAMABANDI NAKAL DOWNLOADER
    Haryana land-record batch retrieval
  ══════════════════════════════════════════════
`

// Color functions for terminal output
var (
	Cyan   = colorize("\033[36m%s\033[0m")
	Yellow = colorize("\033[33m%s\033[0m")
	Red    = colorize("\033[31m%s\033[0m")
	Green  = colorize("\033[32m%s\033[0m")
	Dim    = colorize("\033[2m%s\033[0m")
)

var (
	noColor   bool
	quietMode bool
)

// SetNoColor disables ANSI color codes in all output
func SetNoColor(disabled bool) {
	noColor = disabled
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(quiet bool) {
	quietMode = quiet
}

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if noColor {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintBanner prints the startup banner
func PrintBanner() {
	if quietMode {
		return
	}
	fmt.Print(Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Red(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if quietMode {
		return
	}
	fmt.Println(Green(msg))
}

// PrintInfo prints a labeled value in cyan/yellow
func PrintInfo(label string, value string) {
	if quietMode {
		return
	}
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if quietMode {
		return
	}
	if len(args) > 0 {
		fmt.Println(Yellow(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Yellow(msg))
	}
}

// maxListedFailures bounds the failure list in the run summary
const maxListedFailures = 10

// PrintRunSummary prints the end-of-run summary with a truncated list
// of failed khewat numbers
func PrintRunSummary(summary progress.Summary, failed map[int]string) {
	fmt.Println()
	fmt.Println(Cyan("══════════════════════════════════════════════"))
	fmt.Println(Cyan("  RUN COMPLETE"))
	fmt.Println(Cyan("══════════════════════════════════════════════"))
	PrintInfo("Completed", fmt.Sprintf("%d", summary.Completed))
	PrintInfo("Failed", fmt.Sprintf("%d", summary.Failed))
	PrintInfo("Pending", fmt.Sprintf("%d", summary.Pending))

	if len(failed) == 0 {
		return
	}

	khewats := make([]int, 0, len(failed))
	for khewat := range failed {
		khewats = append(khewats, khewat)
	}
	sort.Ints(khewats)

	fmt.Println()
	PrintWarning("Failed khewat numbers:")
	for i, khewat := range khewats {
		if i == maxListedFailures {
			fmt.Println(Dim(fmt.Sprintf("  ... and %d more", len(khewats)-maxListedFailures)))
			break
		}
		fmt.Printf("  - Khewat %d: %s\n", khewat, failed[khewat])
	}
}
