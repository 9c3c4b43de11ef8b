package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crewdeck/crewdeck/internal/chat"
	"github.com/crewdeck/crewdeck/internal/chat/discord"
	"github.com/crewdeck/crewdeck/internal/chat/slack"
	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/gateway"
	"github.com/crewdeck/crewdeck/internal/notify"
	"github.com/crewdeck/crewdeck/internal/onboarding"
	"github.com/crewdeck/crewdeck/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Crewdeck API server",
		Long:  "Runs the board backend with approval streams, lead notifications, and the scheduled digest.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "crewdeck.yaml", "path to Crewdeck config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}

	chatNotifiers, err := buildChatNotifiers(cfg)
	if err != nil {
		return err
	}
	for _, n := range chatNotifiers {
		fmt.Fprintf(out, "Mirroring resolutions to %s\n", n.Platform())
	}

	client := gateway.NewClient()
	notifier := &notify.Notifier{DB: gormDB, Sender: client, Chat: chatNotifiers}
	onboardingMgr := &onboarding.Manager{DB: gormDB, Gateway: client}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if cfg.Digest.Cron != "" {
		go notifier.RunDigestLoop(ctx, cfg.Digest.Cron)
		fmt.Fprintf(out, "Pending-approvals digest scheduled: %s\n", cfg.Digest.Cron)
	}

	return server.Start(ctx, server.StartOpts{
		DB:         gormDB,
		Port:       port,
		AdminToken: cfg.AdminToken,
		Notifier:   notifier,
		Onboarding: onboardingMgr,
		Out:        out,
	})
}

// buildChatNotifiers creates the chat mirrors the config enables.
func buildChatNotifiers(cfg *config.Config) ([]chat.Notifier, error) {
	var notifiers []chat.Notifier
	if cfg.Notifications.Slack.BotToken != "" {
		n, err := slack.New(slack.Opts{
			BotToken: cfg.Notifications.Slack.BotToken,
			Channel:  cfg.Notifications.Slack.Channel,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	if cfg.Notifications.Discord.BotToken != "" {
		n, err := discord.New(discord.Opts{
			BotToken:  cfg.Notifications.Discord.BotToken,
			ChannelID: cfg.Notifications.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	return notifiers, nil
}
