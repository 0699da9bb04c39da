// Maestro CLI — инструмент командной строки для управления
// сессиями, планами, выполнениями, расписаниями и агентами
// через HTTP API.
//
// Использование:
//
//	maestro [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	session    Управление сессиями
//	plan       Управление планами
//	execution  Управление выполнениями
//	schedule   Управление расписаниями
//	agent      Управление реестром агентов
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Maestro/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "maestro",
		Short:         "Maestro CLI — multi-agent plan orchestration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewSessionCmd(clientFn, outputFn),
		cli.NewPlanCmd(clientFn, outputFn),
		cli.NewExecutionCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
		cli.NewAgentCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
