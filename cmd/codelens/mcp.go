package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codelens-ai/codelens/pkg/audit"
	cachepkg "github.com/codelens-ai/codelens/pkg/cache/sqlite"
	"github.com/codelens-ai/codelens/pkg/config"
	"github.com/codelens-ai/codelens/pkg/mcp"
	"github.com/codelens-ai/codelens/pkg/orchestrator"
	"github.com/codelens-ai/codelens/pkg/quota"
	"github.com/codelens-ai/codelens/pkg/tracker"
	"github.com/codelens-ai/codelens/pkg/upstream"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start codelens as an MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
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

			var statter mcp.CacheStatter
			if cfg.Cache.Enabled {
				cache, err := cachepkg.New(cfg.DBPath, cfg.Cache.TTL, cfg.Cache.Capacity)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				defer func() { _ = cache.Close() }()
				opts.Cache = cache
				statter = cache
			}

			var enforcer *quota.Enforcer
			if cfg.Quota.Enabled {
				enforcer = quota.New(cfg.Quota.Policies, tr)
				opts.Quota = enforcer
			}

			var auditor *audit.Logger
			if cfg.Audit.Enabled {
				auditor, err = audit.New(cfg.Audit)
				if err != nil {
					return fmt.Errorf("init audit log: %w", err)
				}
				defer func() { _ = auditor.Close() }()
				opts.Audit = auditor
			}

			srv := mcp.New(orchestrator.New(opts), tr, enforcer, statter, auditor, version)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to codelens config file")
	return cmd
}
