package cli

import (
	"github.com/spf13/cobra"
)

// NewAgentCmd создаёт группу команд для управления реестром агентов.
func NewAgentCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage the agent registry",
	}

	cmd.AddCommand(
		newAgentListCmd(clientFn, outputFn),
		newAgentRegisterCmd(clientFn, outputFn),
		newAgentRemoveCmd(clientFn, outputFn),
	)

	return cmd
}

func newAgentListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			agents, err := client.ListAgents()
			if err != nil {
				return err
			}

			headers := []string{"AGENT_ID", "BASE_URL"}
			rows := make([][]string, len(agents))
			for i, a := range agents {
				rows[i] = []string{a.AgentID, a.BaseURL}
			}

			out.Print(headers, rows, agents)
			return nil
		},
	}
}

func newAgentRegisterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "register AGENT_ID",
		Short: "Register an agent endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			agent, err := client.RegisterAgent(RegisterAgentRequest{
				AgentID: args[0],
				BaseURL: baseURL,
			})
			if err != nil {
				return err
			}

			out.Successf("Agent registered: %s → %s", agent.AgentID, agent.BaseURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "Agent base URL (required)")
	cmd.MarkFlagRequired("url")

	return cmd
}

func newAgentRemoveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "remove AGENT_ID",
		Short: "Remove an agent from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.RemoveAgent(args[0]); err != nil {
				return err
			}

			out.Successf("Agent removed: %s", args[0])
			return nil
		},
	}
}
