package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "arxivbot",
	Short: "arxivbot - relay arXiv links from Slack to a Dify workflow",
	Long: `arxivbot watches one Slack channel for arXiv abstract URLs, sends the first
URL of each message to a Dify workflow and posts the workflow output back to
the conversation.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadEnvFile(envFile)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// loadEnvFile loads variables from a .env file without overriding the real environment.
func loadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil {
		log.Printf("Warning: could not load %s: %v", path, err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file with settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log skipped messages")
	rootCmd.AddCommand(slackCmd)
	rootCmd.AddCommand(analyzeCmd)
}
