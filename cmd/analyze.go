package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ca-srg/arxivbot/internal/arxiv"
	appcfg "github.com/ca-srg/arxivbot/internal/config"
	"github.com/ca-srg/arxivbot/internal/relay"
)

var (
	analyzeJSON bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Run the Dify workflow for the first arXiv URL in the given text",
	Long: `
Extract the first arXiv abstract URL from the given text, run the Dify workflow
for it and print the reply the Slack relay would post. Only DIFY_* settings are needed.

Examples:
  arxivbot analyze "https://arxiv.org/abs/1706.03762"
  arxivbot analyze --json "see https://arxiv.org/abs/2301.00001"
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the raw workflow response as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	arxivURL, ok := arxiv.ExtractURL(text)
	if !ok {
		return fmt.Errorf("no arXiv abstract URL (https://arxiv.org/abs/<id>) found in input")
	}

	cfg, err := appcfg.LoadDify()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	client, err := newDifyClient(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := client.RunWorkflow(ctx, arxivURL)
	if err != nil {
		return fmt.Errorf("workflow run failed: %w", err)
	}

	if analyzeJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	summary, found := result.Text()
	if !found {
		summary = relay.FallbackText
	}
	fmt.Println(relay.FormatResult(arxivURL, summary))
	return nil
}
