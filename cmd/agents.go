package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/app"
)

func newAgentsCmd() *cobra.Command {
	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "Create and inspect AI agents",
	}

	agentsCmd.AddCommand(newAgentsCreateCmd())
	agentsCmd.AddCommand(newAgentsListCmd())
	agentsCmd.AddCommand(newAgentsAvatarCmd())

	return agentsCmd
}

func newAgentsCreateCmd() *cobra.Command {
	var (
		name         string
		description  string
		universe     string
		expertise    string
		model        string
		temperature  int32
		systemPrompt string
		public       bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new agent",
		RunE: withApp(func(ctx context.Context, a *app.App, _ []string) error {
			user, err := requireUser()
			if err != nil {
				return err
			}

			newAgent := &agent.Agent{
				Name:           name,
				Description:    description,
				Universe:       universe,
				TopicExpertise: expertise,
				ModelProvider:  "openai",
				ModelVersion:   model,
				SystemPrompt:   systemPrompt,
				Visibility:     "private",
				CreatorID:      user,
			}
			if public {
				newAgent.Visibility = "public"
			}
			if temperature >= 0 {
				newAgent.Temperature = &temperature
			}

			created, err := a.Agents.Create(ctx, newAgent)
			if err != nil {
				return err
			}
			if err := a.Usage.BumpAgentCount(ctx, user); err != nil {
				return err
			}

			fmt.Printf("Created agent %d (%s)\n", created.ID, created.Name)
			return nil
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "agent name")
	cmd.Flags().StringVar(&description, "description", "", "short description")
	cmd.Flags().StringVar(&universe, "universe", "", "fictional universe, if any")
	cmd.Flags().StringVar(&expertise, "expertise", "", "topic the agent is expert in")
	cmd.Flags().StringVar(&model, "model", "", "completion model (default gpt-4o-mini)")
	cmd.Flags().Int32Var(&temperature, "temperature", -1, "creativity on a 0-100 scale")
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "extra system prompt")
	cmd.Flags().BoolVar(&public, "public", false, "allow guests to chat with the agent")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newAgentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your agents",
		RunE: withApp(func(ctx context.Context, a *app.App, _ []string) error {
			user, err := requireUser()
			if err != nil {
				return err
			}

			agents, err := a.Agents.ListByCreator(ctx, user)
			if err != nil {
				return err
			}
			if len(agents) == 0 {
				fmt.Println("No agents yet. Create one with: agentdeck agents create --name ...")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEXPERTISE\tMODEL\tVISIBILITY")
			for _, ag := range agents {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					ag.ID, ag.Name, ag.TopicExpertise, ag.Model(), ag.Visibility)
			}
			return w.Flush()
		}),
	}
}

func newAgentsAvatarCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "avatar <agent-id>",
		Short: "Generate an avatar image for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			user, err := requireUser()
			if err != nil {
				return err
			}
			agentID, err := parseAgentID(args[0])
			if err != nil {
				return err
			}

			if prompt == "" {
				ag, err := a.Agents.Get(ctx, agentID)
				if err != nil {
					return err
				}
				prompt = fmt.Sprintf("A portrait avatar of %s, an expert in %s.",
					ag.Name, ag.TopicExpertise)
			}

			url, err := a.Avatars.Generate(ctx, user, agentID, prompt)
			if err != nil {
				return err
			}
			fmt.Printf("Avatar stored at %s\n", url)
			return nil
		}),
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "image prompt (default derived from the agent)")
	return cmd
}

func parseAgentID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid agent id: %s", s)
	}
	return id, nil
}
