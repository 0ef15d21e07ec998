package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/nodeflow/internal/engine"
)

// NewRunCmd создаёт группу команд для запуска flows.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run flows",
	}

	cmd.AddCommand(
		newRunStartCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var trigger string
	var inputs []string
	var graphFile string

	cmd := &cobra.Command{
		Use:   "start FLOW_ID",
		Short: "Run a flow and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			triggerInputs, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			req := CreateRunRequest{
				TriggerNodeID: trigger,
				TriggerInputs: triggerInputs,
			}
			if graphFile != "" {
				graph, err := engine.LoadGraphFile(graphFile)
				if err != nil {
					return err
				}
				req.Graph = graph
			}

			run, err := client.CreateRun(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run finished: %s", run.Status))
			out.Print(
				[]string{"NODE_ID", "SUCCESS", "OUTPUTS", "ERROR"},
				resultRows(run.Results),
				run,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&trigger, "trigger", "", "Trigger node ID (auto-detected if not specified)")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Trigger input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&graphFile, "graph", "", "Send graph from a JSON/YAML file instead of the stored one")

	return cmd
}

// parseInputs разбирает значения KEY=VALUE.
func parseInputs(kvs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		inputs[parts[0]] = parts[1]
	}
	return inputs, nil
}

func resultRows(results map[string]NodeResult) [][]string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]string, len(ids))
	for i, id := range ids {
		r := results[id]
		rows[i] = []string{id, strconv.FormatBool(r.Success), outputKeys(r.Outputs), r.Error}
	}
	return rows
}

func outputKeys(outputs map[string]any) string {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
