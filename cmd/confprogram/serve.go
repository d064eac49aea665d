package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "confprogram/internal/log"
	"confprogram/internal/warmer"
	"confprogram/internal/web"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve programs over HTTP",
	Long: `Start the HTTP server.

Routes:
  /program/, /program/xml/, /program/ics/   published program of the Host site
  /staff/program/...                        pending variant, never cached
  /api/sites                                hosted sites and their links
  /health, /metrics                         health check and Prometheus metrics

The render cache is warmed on the configured refresh schedule and the YAML
data file, when used, is reloaded as soon as it changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}

	ctx, stop := signal.NotifyContext(rootContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLog.Info("confprogram starting", "version", version)

	a, err := openApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.file != nil {
		go func() {
			if err := a.file.Watch(ctx); err != nil {
				appLog.Error("data file watch stopped", err, "path", cfg.Store.DataPath)
			}
		}()
	}

	w := warmer.New(a.store, a.renderer)
	if a.memory != nil {
		w.WithPurger(a.memory)
	}
	if err := w.Start(ctx, cfg.RefreshCron); err != nil {
		return err
	}
	defer w.Stop()
	if cfg.RefreshCron != warmer.Disabled {
		go func() { _ = w.RunOnce(ctx) }()
	}

	err = web.NewServer(cfg, a.renderer, a.store).Run(ctx)
	appLog.Info("confprogram exiting")
	return err
}
