package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewSessionCmd создаёт группу команд для управления сессиями.
func NewSessionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions",
	}

	cmd.AddCommand(
		newSessionListCmd(clientFn, outputFn),
		newSessionCreateCmd(clientFn, outputFn),
		newSessionShowCmd(clientFn, outputFn),
		newSessionSendCmd(clientFn, outputFn),
		newSessionEndCmd(clientFn, outputFn),
		newSessionPauseCmd(clientFn, outputFn),
		newSessionResumeCmd(clientFn, outputFn),
		newSessionPlansCmd(clientFn, outputFn),
	)

	return cmd
}

func sessionRow(s SessionResponse) []string {
	return []string{
		s.ID, s.Name, s.Status,
		strconv.Itoa(len(s.AgentIDs)), strconv.Itoa(len(s.Messages)),
		s.LastActivityAt,
	}
}

var sessionHeaders = []string{"ID", "NAME", "STATUS", "AGENTS", "MESSAGES", "LAST_ACTIVITY"}

func newSessionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sessions, err := client.ListSessions()
			if err != nil {
				return err
			}

			rows := make([][]string, len(sessions))
			for i, s := range sessions {
				rows[i] = sessionRow(s)
			}

			out.Print(sessionHeaders, rows, sessions)
			return nil
		},
	}
}

func newSessionCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var agents []string
	var workDir string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			s, err := client.CreateSession(CreateSessionRequest{
				Name:     name,
				AgentIDs: agents,
				WorkDir:  workDir,
			})
			if err != nil {
				return err
			}

			out.Successf("Session created: %s", s.ID)
			out.Print(sessionHeaders, [][]string{sessionRow(*s)}, s)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Session name (required)")
	cmd.Flags().StringSliceVar(&agents, "agent", nil, "Agent ID (repeatable)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Working directory")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newSessionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show session details with messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			s, err := client.GetSession(args[0])
			if err != nil {
				return err
			}

			headers := []string{"SEQ", "ROLE", "AGENT", "CONTENT"}
			rows := make([][]string, len(s.Messages))
			for i, m := range s.Messages {
				rows[i] = []string{strconv.Itoa(m.Seq), m.Role, m.AgentID, m.Content}
			}

			out.Successf("Session %s (%s) — %s", s.Name, s.ID, s.Status)
			out.Print(headers, rows, s)
			return nil
		},
	}
}

func newSessionSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var agentID string
	var role string

	cmd := &cobra.Command{
		Use:   "send ID CONTENT",
		Short: "Add a message to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			msg, err := client.AddMessage(args[0], AddMessageRequest{
				AgentID: agentID,
				Role:    role,
				Content: args[1],
			})
			if err != nil {
				return err
			}

			out.Successf("Message #%d added", msg.Seq)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "Sender agent ID")
	cmd.Flags().StringVar(&role, "role", "user", "Sender role (user, agent, system)")

	return cmd
}

func newSessionEndCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "end ID",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.EndSession(args[0], status); err != nil {
				return err
			}

			out.Successf("Session ended: %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "COMPLETED", "Terminal status (COMPLETED, FAILED)")

	return cmd
}

func newSessionPauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pause ID",
		Short: "Pause a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.PauseSession(args[0]); err != nil {
				return err
			}

			out.Successf("Session paused: %s", args[0])
			return nil
		},
	}
}

func newSessionResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Resume a paused session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.ResumeSession(args[0]); err != nil {
				return err
			}

			out.Successf("Session resumed: %s", args[0])
			return nil
		},
	}
}

func newSessionPlansCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "plans ID",
		Short: "List plans of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			plans, err := client.ListSessionPlans(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(plans))
			for i, p := range plans {
				rows[i] = planRow(p)
			}

			out.Print(planHeaders, rows, plans)
			return nil
		},
	}
}
