package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/app"
	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/usage"
)

func newAskCmd() *cobra.Command {
	var (
		sessionID string
		visitorID string
	)

	cmd := &cobra.Command{
		Use:   "ask <agent-id> <message>",
		Short: "Run one chat turn against an agent",
		Long: `Ask sends a message to an agent and prints the reply. Replies are
grounded in the agent's training corpus when relevant chunks exist.

Pass --session to continue an earlier conversation; without it a new
session is created and its id printed for reuse. Authenticated turns
(--user) are charged against the monthly token quota; guest turns
(--visitor) are free but only work with public agents.`,
		Args: cobra.MinimumNArgs(2),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			agentID, err := parseAgentID(args[0])
			if err != nil {
				return err
			}

			req := chat.TurnRequest{
				AgentID:   agentID,
				UserID:    flagUser,
				VisitorID: visitorID,
				Message:   strings.Join(args[1:], " "),
			}
			if sessionID != "" {
				id, err := uuid.Parse(sessionID)
				if err != nil {
					return fmt.Errorf("invalid session id: %s", sessionID)
				}
				req.SessionID = &id
			}

			result, err := a.Engine.HandleTurn(ctx, req)
			if err != nil {
				var quotaErr *usage.QuotaError
				if errors.As(err, &quotaErr) {
					return fmt.Errorf("%w\nUpgrade your plan or wait for the next billing period", err)
				}
				return err
			}

			fmt.Println(result.Reply)
			fmt.Println()
			if req.SessionID == nil {
				fmt.Printf("Session: %s (pass --session %s to continue)\n",
					result.SessionID, result.SessionID)
			}
			if result.TokensCharged > 0 {
				fmt.Printf("Tokens: %d charged, %d remaining\n",
					result.TokensCharged, result.RemainingTokens)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().StringVar(&visitorID, "visitor", "", "act as an anonymous visitor")
	return cmd
}
