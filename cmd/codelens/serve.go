package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codelens-ai/codelens/pkg/audit"
	cachepkg "github.com/codelens-ai/codelens/pkg/cache/sqlite"
	"github.com/codelens-ai/codelens/pkg/config"
	"github.com/codelens-ai/codelens/pkg/orchestrator"
	"github.com/codelens-ai/codelens/pkg/quota"
	"github.com/codelens-ai/codelens/pkg/server"
	"github.com/codelens-ai/codelens/pkg/tracker"
	"github.com/codelens-ai/codelens/pkg/upstream"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the codelens AI API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init tracker: %w", err)
			}
			defer func() { _ = tr.Close() }()

			opts := orchestrator.Options{
				Upstream: upstream.New(cfg.Upstream),
				Tracker:  tr,
			}

			if cfg.Cache.Enabled {
				cache, err := cachepkg.New(cfg.DBPath, cfg.Cache.TTL, cfg.Cache.Capacity)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				defer func() { _ = cache.Close() }()
				opts.Cache = cache
			}

			if cfg.Quota.Enabled {
				opts.Quota = quota.New(cfg.Quota.Policies, tr)
			}

			if cfg.Audit.Enabled {
				auditor, err := audit.New(cfg.Audit)
				if err != nil {
					return fmt.Errorf("init audit log: %w", err)
				}
				defer func() { _ = auditor.Close() }()
				opts.Audit = auditor
			}

			if cfg.Upstream.APIKey == "" {
				log.Printf("no upstream API key configured, running in fallback-only mode")
			}

			srv := server.New(cfg, orchestrator.New(opts), tr)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("starting codelens with config: %s", configPath)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "codelens.yaml", "path to config file")
	return cmd
}
