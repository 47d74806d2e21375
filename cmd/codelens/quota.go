package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codelens-ai/codelens/pkg/config"
	"github.com/codelens-ai/codelens/pkg/quota"
	"github.com/codelens-ai/codelens/pkg/tracker"
)

func newQuotaCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Manage token quotas and policies",
	}

	var clientKey string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show quota usage vs limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.Quota.Enabled {
				fmt.Println("Quota enforcement is disabled.")
				return nil
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			enforcer := quota.New(cfg.Quota.Policies, tr)

			key := clientKey
			if key == "" {
				key = "*"
			}

			statuses, err := enforcer.Status(context.Background(), key)
			if err != nil {
				return err
			}

			if len(statuses) == 0 {
				fmt.Println("No quota policies found for this key.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CLIENT KEY\tKIND\tPERIOD\tMAX TOKENS\tUSED\tREMAINING")
			for _, s := range statuses {
				kind := string(s.Policy.Kind)
				if kind == "" {
					kind = "all"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
					s.Policy.ClientKey, kind, s.Policy.Period, s.Policy.MaxTokens, s.Used, s.Remaining)
			}
			return w.Flush()
		},
	}
	statusCmd.Flags().StringVar(&clientKey, "client-key", "", "filter by client key")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "codelens.yaml", "path to config file")
	cmd.AddCommand(statusCmd)
	return cmd
}
