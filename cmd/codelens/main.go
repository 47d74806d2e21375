package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "codelens",
		Short:   "Codelens — AI request orchestration for the browser code editor",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newScanCmd(),
		newStatsCmd(),
		newCacheCmd(),
		newQuotaCmd(),
		newAuditCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
