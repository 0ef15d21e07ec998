package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewNodeTypesCmd создаёт группу команд для каталога типов узлов.
func NewNodeTypesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "node-types",
		Aliases: []string{"types"},
		Short:   "Browse node types",
	}

	cmd.AddCommand(
		newNodeTypesListCmd(clientFn, outputFn),
		newNodeTypesShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newNodeTypesListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List node types",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			types, err := client.ListNodeTypes(category)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "CATEGORY", "VERSION"}
			rows := make([][]string, len(types))
			for i, t := range types {
				rows[i] = []string{t.ID, t.Name, t.Category, t.Version}
			}

			out.Print(headers, rows, types)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by category (trigger, processor, action)")

	return cmd
}

func newNodeTypesShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show node type ports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			t, err := client.GetNodeType(args[0])
			if err != nil {
				return err
			}

			var rows [][]string
			for _, p := range t.Ports.Inputs {
				rows = append(rows, []string{"input", p.Name, strings.Join(p.DataType, "|")})
			}
			for _, p := range t.Ports.Outputs {
				rows = append(rows, []string{"output", p.Name, strings.Join(p.DataType, "|")})
			}

			out.Print([]string{"DIRECTION", "PORT", "DATA_TYPE"}, rows, t)
			return nil
		},
	}
}
