package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	appcfg "github.com/ca-srg/arxivbot/internal/config"
	"github.com/ca-srg/arxivbot/internal/dify"
	"github.com/ca-srg/arxivbot/internal/observability"
	"github.com/ca-srg/arxivbot/internal/relay"
	"github.com/ca-srg/arxivbot/internal/slackbot"
)

var slackCmd = &cobra.Command{
	Use:   "slack-bot",
	Short: "Start the Slack relay (Socket Mode)",
	RunE:  runSlackBot,
}

func runSlackBot(cmd *cobra.Command, args []string) error {
	cfg, err := appcfg.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := log.New(os.Stdout, "slack-bot ", log.LstdFlags)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdown, err := observability.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Printf("observability shutdown error: %v", err)
		}
	}()

	analyzer, err := newDifyClient(cfg)
	if err != nil {
		return err
	}
	handler, err := relay.NewHandler(cfg, analyzer, log.New(os.Stdout, "relay ", log.LstdFlags))
	if err != nil {
		return err
	}
	handler.SetVerbose(verbose)
	handler.SetRateLimiter(relay.NewRateLimiter(cfg.RateChannelPerMinute, cfg.RateGlobalPerMinute))

	// Socket Mode needs the app-level token on the client itself
	client := slack.New(cfg.SlackBotToken, slack.OptionAppLevelToken(cfg.SlackAppToken))
	bot, err := slackbot.NewSocketBot(ctx, client, handler, logger)
	if err != nil {
		return err
	}

	logger.Printf("Starting Slack relay (Socket Mode) channel=%s endpoint=%s timeout=%s", cfg.TargetChannelID, cfg.DifyAPIURL, cfg.DifyTimeout)
	return bot.Start(ctx)
}

func newDifyClient(cfg *appcfg.Config) (*dify.Client, error) {
	client, err := dify.NewClient(dify.Options{
		Endpoint: cfg.DifyAPIURL,
		APIKey:   cfg.DifyAPIKey,
		User:     cfg.DifyUser,
		InputKey: cfg.DifyInputKey,
		Timeout:  cfg.DifyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dify client: %w", err)
	}
	return client, nil
}
