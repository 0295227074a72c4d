package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/config"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and configuration information",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Printf("AgentDeck %s\n", AppVersion)
			fmt.Printf("Build Time: %s\n", BuildTime)
			fmt.Printf("Git Commit: %s\n", GitCommit)
			fmt.Println()

			cfg, err := config.Load()
			if err != nil {
				fmt.Printf("Configuration: %v\n", err)
				return nil
			}

			fmt.Println("Configuration:")
			fmt.Printf("  Chat model: %s\n", cfg.ChatModel)
			fmt.Printf("  Embedder: %s\n", cfg.EmbedderModel)
			fmt.Printf("  Chunking: %d chars, %d overlap\n", cfg.ChunkSize, cfg.ChunkOverlap)
			fmt.Printf("  Retrieval: threshold %.2f, top %d\n", cfg.MatchThreshold, cfg.MatchCount)
			fmt.Printf("  Database: %s:%d/%s\n", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)

			if key := os.Getenv("OPENAI_API_KEY"); key != "" {
				fmt.Println("  OPENAI_API_KEY: configured")
			} else {
				fmt.Println("  OPENAI_API_KEY: not set")
			}
			return nil
		},
	}
}
