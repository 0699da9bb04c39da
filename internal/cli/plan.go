package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var planHeaders = []string{"ID", "GOAL", "STRATEGY", "STEPS", "CREATED"}

func planRow(p PlanResponse) []string {
	return []string{p.ID, p.Goal, p.Strategy, strconv.Itoa(len(p.Steps)), p.CreatedAt}
}

// NewPlanCmd создаёт группу команд для управления планами.
func NewPlanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage plans",
	}

	cmd.AddCommand(
		newPlanCreateCmd(clientFn, outputFn),
		newPlanShowCmd(clientFn, outputFn),
		newPlanExecuteCmd(clientFn, outputFn),
	)

	return cmd
}

func newPlanCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var planFile string
	var sessionID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a plan from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(planFile)
			if err != nil {
				return fmt.Errorf("failed to read plan file: %w", err)
			}

			var req CreatePlanRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("plan file is not valid JSON: %w", err)
			}
			if sessionID != "" {
				req.SessionID = sessionID
			}

			plan, err := client.CreatePlan(req)
			if err != nil {
				return err
			}

			out.Successf("Plan created: %s", plan.ID)
			out.Print(planHeaders, [][]string{planRow(*plan)}, plan)
			return nil
		},
	}

	cmd.Flags().StringVar(&planFile, "file", "", "Path to plan JSON file (required)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session to attach the plan to")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newPlanShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show plan steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			plan, err := client.GetPlan(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STEP", "ORDER", "AGENT", "TASK", "DEPENDS_ON", "STATUS"}
			rows := make([][]string, len(plan.Steps))
			for i, s := range plan.Steps {
				rows[i] = []string{
					s.ID, strconv.Itoa(s.Order), s.AgentID, s.Task,
					fmt.Sprintf("%v", s.DependsOn), s.Status,
				}
			}

			out.Successf("Plan %s — %s (%s)", plan.ID, plan.Goal, plan.Strategy)
			out.Print(headers, rows, plan)
			return nil
		},
	}
}

func newPlanExecuteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var wait bool
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "execute ID",
		Short: "Execute a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			started, err := client.ExecutePlan(args[0])
			if err != nil {
				return err
			}

			out.Successf("Execution started: %s", started.ExecutionID)

			if !wait {
				out.Print(
					[]string{"EXECUTION_ID", "PLAN_ID"},
					[][]string{{started.ExecutionID, started.PlanID}},
					started,
				)
				return nil
			}

			// Ждём завершения, опрашивая статус
			for {
				exec, err := client.GetExecution(started.ExecutionID)
				if err != nil {
					return err
				}

				if isTerminalExecution(exec.Status) {
					printExecution(out, exec)
					if exec.Status != "SUCCEEDED" {
						return fmt.Errorf("execution finished with status %s", exec.Status)
					}
					return nil
				}

				out.Successf("  %d/%d steps done", exec.Progress.Completed, exec.Progress.Total)
				time.Sleep(pollInterval)
			}
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the execution to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "Status poll interval with --wait")

	return cmd
}

// NewExecutionCmd создаёт группу команд для управления выполнениями.
func NewExecutionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution",
		Short: "Manage executions",
	}

	cmd.AddCommand(
		newExecutionShowCmd(clientFn, outputFn),
		newExecutionCancelCmd(clientFn, outputFn),
		newExecutionPruneCmd(clientFn, outputFn),
	)

	return cmd
}

func newExecutionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution status and step results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			printExecution(out, exec)
			return nil
		},
	}
}

func newExecutionCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelExecution(args[0]); err != nil {
				return err
			}

			out.Successf("Cancellation requested: %s", args[0])
			return nil
		},
	}
}

func newExecutionPruneCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "prune ID",
		Short: "Remove a finished execution record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.PruneExecution(args[0]); err != nil {
				return err
			}

			out.Successf("Execution pruned: %s", args[0])
			return nil
		},
	}
}

func isTerminalExecution(status string) bool {
	switch status {
	case "SUCCEEDED", "FAILED", "CANCELLED":
		return true
	default:
		return false
	}
}

func printExecution(out *Output, exec *ExecutionResponse) {
	out.Successf("Execution %s — %s (%d/%d)",
		exec.ExecutionID, exec.Status, exec.Progress.Completed, exec.Progress.Total)

	headers := []string{"STEP", "STATUS", "DURATION", "ERROR"}
	rows := make([][]string, 0, len(exec.StepResults))
	for _, r := range exec.StepResults {
		rows = append(rows, []string{
			r.StepID, r.Status,
			time.Duration(r.Duration).Round(time.Millisecond).String(),
			r.Error,
		})
	}

	out.Print(headers, rows, exec)
}
