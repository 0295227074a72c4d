package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/app"
	"github.com/agentdeck/agentdeck/internal/session"
)

func newSessionsCmd() *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage chat sessions",
	}

	sessionsCmd.AddCommand(newSessionsListCmd())
	sessionsCmd.AddCommand(newSessionsShowCmd())
	sessionsCmd.AddCommand(newSessionsDeleteCmd())

	return sessionsCmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your sessions, most recently active first",
		RunE: withApp(func(ctx context.Context, a *app.App, _ []string) error {
			user, err := requireUser()
			if err != nil {
				return err
			}

			sessions, err := a.Sessions.List(ctx, user)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tAGENT\tMESSAGES\tLAST ACTIVE")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					s.ID, s.Title, s.AgentID, s.MessageCount, formatTime(s.UpdatedAt))
			}
			return w.Flush()
		}),
	}
}

func newSessionsShowCmd() *cobra.Command {
	var visitorID string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's messages",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id: %s", args[0])
			}

			sess, err := a.Sessions.GetOwned(ctx, id, flagUser, visitorID)
			if err != nil {
				return err
			}
			messages, err := a.Sessions.Messages(ctx, id, 0)
			if err != nil {
				return err
			}

			fmt.Printf("Title: %s\n", sess.Title)
			fmt.Printf("Created: %s\n", formatTime(sess.CreatedAt))
			fmt.Printf("Messages: %d\n\n", len(messages))
			for _, m := range messages {
				role := "You"
				if m.Role == session.RoleAssistant {
					role = "Agent"
				}
				fmt.Printf("%s> %s\n\n", role, m.Content)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&visitorID, "visitor", "", "act as an anonymous visitor")
	return cmd
}

func newSessionsDeleteCmd() *cobra.Command {
	var visitorID string

	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id: %s", args[0])
			}
			if err := a.Sessions.Delete(ctx, id, flagUser, visitorID); err != nil {
				return err
			}
			fmt.Printf("Deleted session %s\n", id)
			return nil
		}),
	}

	cmd.Flags().StringVar(&visitorID, "visitor", "", "act as an anonymous visitor")
	return cmd
}

// formatTime renders a timestamp relative to now for recent activity,
// absolute otherwise.
func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
