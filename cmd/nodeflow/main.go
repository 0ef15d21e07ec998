// Nodeflow CLI — инструмент командной строки для запуска flows
// и просмотра статусов узлов через HTTP API.
//
// Использование:
//
//	nodeflow [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	run         Запуск flow через API
//	status      Статусы узлов flow
//	node-types  Каталог типов узлов
//	graph       Порядок и локальное выполнение графа из файла
//	connection  Проверка совместимости портов
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/nodeflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "nodeflow",
		Short:         "Nodeflow CLI — node-based flow runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("NODEFLOW_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewStatusCmd(clientFn, outputFn),
		cli.NewNodeTypesCmd(clientFn, outputFn),
		cli.NewGraphCmd(outputFn),
		cli.NewConnectionCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
