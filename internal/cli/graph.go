package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/config"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
	"github.com/shaiso/nodeflow/internal/status"
	"github.com/shaiso/nodeflow/internal/telemetry"
)

// ErrRunFailed — локальный запуск завершился ошибкой узла.
var ErrRunFailed = errors.New("run failed")

// NewGraphCmd создаёт группу локальных команд над файлом графа.
// Они не обращаются к API.
func NewGraphCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect and execute flow graph files locally",
	}

	cmd.AddCommand(
		newGraphOrderCmd(outputFn),
		newGraphExecCmd(outputFn),
	)

	return cmd
}

func newGraphOrderCmd(outputFn func() *Output) *cobra.Command {
	var trigger string

	cmd := &cobra.Command{
		Use:   "order FILE",
		Short: "Show the execution order of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			types := catalog.Default()

			graph, err := loadGraph(args[0], types)
			if err != nil {
				return err
			}

			triggerID, order, err := engine.ResolveRunOrder(graph, trigger, types)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"#", "NODE_ID", "TYPE"},
				orderRows(graph, order),
				map[string]any{"flow_id": graph.FlowID, "trigger_node_id": triggerID, "order": order},
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&trigger, "trigger", "", "Trigger node ID (auto-detected if not specified)")

	return cmd
}

func newGraphExecCmd(outputFn func() *Output) *cobra.Command {
	var trigger string
	var inputs []string

	cmd := &cobra.Command{
		Use:   "exec FILE",
		Short: "Execute a graph in-process",
		Long: "Execute a graph in-process with the built-in node handlers.\n" +
			"Compute and timeouts are configured through the same environment as the server.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			format := cfg.LogFormat
			if format == "" {
				format = "text"
			}
			logger := telemetry.NewLogger(telemetry.LoggerOptions{
				Writer: os.Stderr,
				Level:  cfg.LogLevel,
				Format: format,
			})

			triggerInputs, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			types := catalog.Default()
			graph, err := loadGraph(args[0], types)
			if err != nil {
				return err
			}
			_, order, err := engine.ResolveRunOrder(graph, trigger, types)
			if err != nil {
				return err
			}

			store := status.NewStore()
			orch := cfg.NewOrchestrator(config.Deps{Catalog: types, Store: store, Logger: logger})

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			results, runErr := orch.Run(ctx, graph, trigger, triggerInputs)

			snapshot := store.Snapshot(order...)
			rows := make([][]string, len(order))
			for i, id := range order {
				rec := snapshot[id]
				msg := rec.Message
				if rec.Error != "" {
					msg = rec.Error
				}
				rows[i] = []string{strconv.Itoa(i + 1), id, string(rec.Status), msg}
			}

			out.Print(
				[]string{"#", "NODE_ID", "STATUS", "MESSAGE"},
				rows,
				map[string]any{"flow_id": graph.FlowID, "statuses": snapshot, "results": results},
			)

			if runErr != nil {
				return fmt.Errorf("%w: %w", ErrRunFailed, runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&trigger, "trigger", "", "Trigger node ID (auto-detected if not specified)")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Trigger input values as KEY=VALUE (repeatable)")

	return cmd
}

// loadGraph читает файл графа и проверяет его структуру.
func loadGraph(path string, types engine.TypeResolver) (*domain.Graph, error) {
	graph, err := engine.LoadGraphFile(path)
	if err != nil {
		return nil, err
	}
	if err := engine.Validate(graph, types); err != nil {
		return nil, err
	}
	return graph, nil
}

func orderRows(graph *domain.Graph, order []string) [][]string {
	rows := make([][]string, len(order))
	for i, id := range order {
		typeID := ""
		if n, ok := graph.Node(id); ok {
			typeID = n.TypeID
		}
		rows[i] = []string{strconv.Itoa(i + 1), id, typeID}
	}
	return rows
}
