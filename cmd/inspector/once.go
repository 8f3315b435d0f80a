package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-inspect/pkg/analyze"
	"github.com/teslashibe/go-inspect/pkg/scanlog"
	"github.com/teslashibe/go-inspect/pkg/scheduler"
)

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Capture, classify and analyze a single frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			p, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			entry, err := scheduler.RunOnce(cmd.Context(), p.source, p.classifier, p.analyzer,
				schedulerOptions(cfg.Scheduler, logger)...)
			if err != nil {
				return err
			}
			fmt.Println(renderEntry(entry))
			return nil
		},
	}
}

// renderEntry formats a scan as one styled line.
func renderEntry(e scanlog.Entry) string {
	verdict := e.Verdict
	switch e.Outcome {
	case analyze.OutcomeDefectPresent:
		verdict = errorStyle.Render(verdict)
	case analyze.OutcomeNoDefect:
		verdict = successStyle.Render(verdict)
	default:
		verdict = warnStyle.Render(verdict)
	}
	return fmt.Sprintf("%s  %s  %-16s %s",
		dimStyle.Render(fmt.Sprintf("#%d", e.ID)),
		dimStyle.Render(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
		e.Classification,
		verdict)
}
