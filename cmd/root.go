// Package cmd implements the agentdeck operator CLI.
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/app"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/log"
)

var (
	flagUser  string
	flagDebug bool
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentdeck",
		Short: "Manage AI agents, their training data and usage quotas",
		Long: `AgentDeck is the operator tool for an AI agent platform: it creates
agents, ingests training documents into the retrieval corpus, runs chat
turns against them and inspects token quotas.

Commands talk directly to the configured PostgreSQL database. Run
"agentdeck migrate" once to create the schema.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagUser, "user", "", "user id to act as")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(
		newAgentsCmd(),
		newIngestCmd(),
		newAskCmd(),
		newSessionsCmd(),
		newUsageCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command. Called from main.
func Execute() error {
	return NewRootCmd().Execute()
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// withApp loads configuration, assembles the runtime and runs fn under
// a signal-aware context. Every command that touches the database goes
// through here.
func withApp(fn func(ctx context.Context, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := newLogger()
		slog.SetDefault(logger)

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(context.Background()); closeErr != nil {
				logger.Warn("runtime close error", "error", closeErr)
			}
		}()

		return fn(ctx, a, args)
	}
}

// requireUser returns the acting user id for commands that need one.
func requireUser() (string, error) {
	if flagUser == "" {
		return "", errors.New("--user is required for this command")
	}
	return flagUser, nil
}
