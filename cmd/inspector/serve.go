package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-inspect/pkg/scanlog"
	"github.com/teslashibe/go-inspect/pkg/scheduler"
	"github.com/teslashibe/go-inspect/pkg/web"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scanner and its HTTP control surface",
		RunE:  runServe,
	}
	cmd.Flags().Bool("autostart", false, "start scanning immediately")
	cmd.Flags().String("addr", "", "listen address (overrides web.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("autostart") {
		cfg.Scheduler.Autostart, _ = cmd.Flags().GetBool("autostart")
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Web.Addr = addr
	}

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	opts := append(schedulerOptions(cfg.Scheduler, logger),
		scheduler.WithScanLog(scanlog.New(cfg.Scheduler.LogCapacity)))
	sched := scheduler.New(p.source, p.classifier, p.analyzer, opts...)

	g, ctx := errgroup.WithContext(cmd.Context())

	if cfg.Web.Enabled {
		server := web.NewServer(cfg.Web.Addr, sched, logger)
		g.Go(func() error {
			return server.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return sched.Close()
	})

	if cfg.Scheduler.Autostart {
		sched.Start()
	} else {
		logger.Info("scanner idle, POST /api/start to begin", "addr", cfg.Web.Addr)
	}

	return g.Wait()
}
