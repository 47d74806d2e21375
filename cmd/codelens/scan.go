package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codelens-ai/codelens/pkg/fallback"
	"github.com/codelens-ai/codelens/pkg/models"
)

// extLanguages maps file extensions to language names for the offline scanner.
var extLanguages = map[string]string{
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".py":    "python",
	".go":    "go",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".cs":    "csharp",
	".scala": "scala",
	".sql":   "sql",
	".sh":    "shell",
}

func newScanCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "scan [file]",
		Short: "Run the offline rule-based security scan on a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			code, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}

			lang := language
			if lang == "" {
				lang = extLanguages[strings.ToLower(filepath.Ext(path))]
			}

			resp := fallback.Generate(models.AIRequest{
				Kind:     models.KindSecurityScan,
				Code:     string(code),
				Language: lang,
			})

			fmt.Printf("%s — security score %d/100\n\n", path, resp.SecurityScore)
			if len(resp.Issues) == 0 {
				fmt.Println("No issues found.")
				return nil
			}
			for _, issue := range resp.Issues {
				fmt.Printf("[%s] %s (line %d, %s)\n", issue.Severity, issue.Type, issue.Line, issue.CWE)
				fmt.Printf("    %s\n", issue.Description)
				fmt.Printf("    fix: %s\n", issue.Suggestion)
			}
			if len(resp.Recommendations) > 0 {
				fmt.Println("\nRecommendations:")
				for _, rec := range resp.Recommendations {
					fmt.Printf("  - %s\n", rec)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "override language detection")
	return cmd
}
