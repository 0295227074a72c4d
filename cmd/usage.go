package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/app"
	"github.com/agentdeck/agentdeck/internal/tokens"
)

func newUsageCmd() *cobra.Command {
	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Show the current billing period",
		RunE: withApp(func(ctx context.Context, a *app.App, _ []string) error {
			user, err := requireUser()
			if err != nil {
				return err
			}

			p, err := a.Usage.CurrentPeriod(ctx, user)
			if err != nil {
				return err
			}

			fmt.Printf("Plan: %s\n", p.PlanType)
			fmt.Printf("Period: %s to %s\n",
				p.PeriodStart.Format("2006-01-02"), p.PeriodEnd.Format("2006-01-02"))
			fmt.Printf("Tokens: %d / %d used (%.1f%%), %d remaining\n",
				p.TokensUsed, p.TokensLimit,
				tokens.PercentUsed(p.TokensUsed, p.TokensLimit), p.Remaining())
			fmt.Printf("Avatars: %d / %d generated\n", p.AvatarsGenerated, p.AvatarsLimit)
			fmt.Printf("Messages: %d, Agents: %d\n", p.MessageCount, p.AgentCount)
			return nil
		}),
	}

	usageCmd.AddCommand(newUsageHistoryCmd())
	usageCmd.AddCommand(newUsagePlanCmd())

	return usageCmd
}

func newUsageHistoryCmd() *cobra.Command {
	var limit int32

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent token charges",
		RunE: withApp(func(ctx context.Context, a *app.App, _ []string) error {
			user, err := requireUser()
			if err != nil {
				return err
			}

			records, err := a.Usage.History(ctx, user, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No usage recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tOPERATION\tMODEL\tTOKENS")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					r.CreatedAt.Format("2006-01-02 15:04"),
					r.OperationType, r.ModelUsed, r.TokensUsed)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().Int32Var(&limit, "limit", 50, "maximum rows to show")
	return cmd
}

func newUsagePlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <free|pro>",
		Short: "Switch the billing plan",
		Long: `Plan closes the current billing window and opens a fresh one on the
new plan. Token and avatar counters restart; message and agent counts
carry over.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			user, err := requireUser()
			if err != nil {
				return err
			}

			plan := args[0]
			if plan != tokens.PlanFree && plan != tokens.PlanPro {
				return fmt.Errorf("unknown plan: %s", plan)
			}

			p, err := a.Usage.ApplyPlan(ctx, user, plan)
			if err != nil {
				return err
			}
			fmt.Printf("Switched to %s: %d tokens, %d avatars per month\n",
				p.PlanType, p.TokensLimit, p.AvatarsLimit)
			return nil
		}),
	}
}
