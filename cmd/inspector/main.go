// Command inspector runs the capture-and-analysis scanner.
//
// Usage:
//
//	inspector serve --autostart       # scan and serve the HTTP control surface
//	inspector once                    # one capture → classify → analyze pass
//	inspector watch                   # follow a running scanner's status
//	inspector scans --limit 10        # list recent scans of a running scanner
//	inspector start | stop            # control a running scanner
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	// Version information (set at build time)
	version = "dev"

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "inspector",
		Short: "Automatic defect scanner",
		Long: titleStyle.Render("go-inspect") + `

Periodically captures a frame, classifies the object with a local model,
asks a vision model whether it carries a significant defect, and records
the verdict.

` + dimStyle.Render("Configuration: inspect.yaml, INSPECT_* variables, GEMINI_API_KEY / OPENAI_API_KEY."),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default ./inspect.yaml)")

	root.AddCommand(
		newServeCmd(),
		newOnceCmd(),
		newWatchCmd(),
		newScansCmd(),
		newControlCmd("start", "Start scanning on a running scanner"),
		newControlCmd("stop", "Stop scanning on a running scanner"),
	)
	return root
}
