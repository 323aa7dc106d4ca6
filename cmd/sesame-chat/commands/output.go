package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff9f"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f56"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffbd2e"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

// printSuccess prints a success message with checkmark
func printSuccess(format string, args ...any) {
	fmt.Println(successStyle.Render("✓") + " " + fmt.Sprintf(format, args...))
}

// printError prints an error message to stderr
func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("Error:")+" "+fmt.Sprintf(format, args...))
}

// printInfo prints an info message
func printInfo(format string, args ...any) {
	fmt.Println(dimStyle.Render("ℹ") + " " + fmt.Sprintf(format, args...))
}

// printWarning prints a warning message
func printWarning(format string, args ...any) {
	fmt.Println(warnStyle.Render("⚠") + " " + fmt.Sprintf(format, args...))
}

// printVerbose prints verbose output to stderr if enabled
func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintln(os.Stderr, dimStyle.Render("[verbose] "+fmt.Sprintf(format, args...)))
	}
}
