package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/engine"
)

// ErrInvalidConnection — порты нельзя соединить.
var ErrInvalidConnection = errors.New("invalid connection")

// NewConnectionCmd создаёт группу команд для проверки соединений портов.
func NewConnectionCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connection",
		Short: "Check port connections against the node type catalog",
	}

	cmd.AddCommand(newConnectionValidateCmd(outputFn))

	return cmd
}

func newConnectionValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate SOURCE_TYPE[:PORT] TARGET_TYPE[:PORT]",
		Short: "Check that a source output can feed a target input",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			srcType, srcPort := splitTypePort(args[0])
			dstType, dstPort := splitTypePort(args[1])

			v := engine.NewConnectionValidator(catalog.Default())
			res := v.Validate(srcType, srcPort, dstType, dstPort)

			out.Print(
				[]string{"VALID", "ERROR", "SUGGESTIONS"},
				[][]string{{boolText(res.IsValid), res.ErrorMessage, strings.Join(res.Suggestions, ",")}},
				res,
			)

			if !res.IsValid {
				return ErrInvalidConnection
			}
			return nil
		},
	}
}

func splitTypePort(s string) (typeID, port string) {
	typeID, port, _ = strings.Cut(s, ":")
	return typeID, port
}

func boolText(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
