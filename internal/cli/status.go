package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewStatusCmd создаёт группу команд для просмотра статусов узлов.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show node execution status",
	}

	cmd.AddCommand(
		newStatusFlowCmd(clientFn, outputFn),
		newStatusNodeCmd(clientFn, outputFn),
	)

	return cmd
}

func newStatusFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "flow FLOW_ID",
		Short: "Show status of every node in a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.FlowStatus(args[0])
			if err != nil {
				return err
			}

			if resp.Running && resp.Run != nil {
				out.Success(fmt.Sprintf("Running: %d/%d nodes completed, current %s",
					resp.Run.CompletedNodes, resp.Run.TotalNodes, resp.Run.CurrentNode))
			}

			ids := make([]string, 0, len(resp.Nodes))
			for id := range resp.Nodes {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			rows := make([][]string, len(ids))
			for i, id := range ids {
				s := resp.Nodes[id]
				rows[i] = []string{id, s.Status, statusText(s)}
			}

			out.Print([]string{"NODE_ID", "STATUS", "MESSAGE"}, rows, resp)
			return nil
		},
	}
}

func newStatusNodeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "node NODE_ID",
		Short: "Show status of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			s, err := client.NodeStatus(args[0])
			if err != nil {
				return err
			}

			out.Details([][2]string{
				{"NODE_ID", args[0]},
				{"STATUS", s.Status},
				{"MESSAGE", s.Message},
				{"ERROR", s.Error},
				{"STARTED", s.StartedAt},
				{"COMPLETED", s.CompletedAt},
			}, s)
			return nil
		},
	}
}

// statusText — ошибка узла, если есть, иначе сообщение.
func statusText(s NodeStatus) string {
	if s.Error != "" {
		return s.Error
	}
	return s.Message
}
