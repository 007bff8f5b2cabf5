// Package ui holds the ANSI styling used by the CLI.
package ui

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

func style(code, s string) string {
	return code + s + ColorReset
}

// Heading styles a command title
func Heading(s string) string { return style(ColorBold+ColorCyan, s) }

// Section styles a help section title
func Section(s string) string { return style(ColorBold+ColorWhite, s) }

// Command styles a command name or usage line
func Command(s string) string { return style(ColorCyan, s) }

// Placeholder styles an argument placeholder
func Placeholder(s string) string { return style(ColorYellow, s) }

// Dim styles secondary text
func Dim(s string) string { return style(ColorDim, s) }

func Bold(s string) string { return style(ColorBold, s) }

func Success(s string) string { return style(ColorGreen, s) }

// Warn styles a non-fatal problem, such as failed items in a summary
func Warn(s string) string { return style(ColorYellow, s) }

func Error(s string) string { return style(ColorRed, s) }
