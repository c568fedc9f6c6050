package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi"
	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

func newCallCmd() *cobra.Command {
	var (
		f           sessionFlags
		noWait      bool
		payloadFile string
	)
	cmd := &cobra.Command{
		Use:   "call <command> [json]",
		Short: "Run an API command",
		Long: `Run an API command with an optional JSON payload. When the command starts
an asynchronous task the CLI waits for it and prints the task report, unless
--no-wait is given.

Examples:
  mgmtcli call show-session
  mgmtcli call add-host '{"name":"web-1","ip-address":"10.0.0.5"}'
  mgmtcli call publish --no-wait
  mgmtcli call set-host -f host.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(args[1:], payloadFile)
			if err != nil {
				return err
			}
			return withSession(cmd, f, func(ctx context.Context, c *mgmtapi.Client, s *mgmtapi.Session) error {
				resp, err := c.Call(ctx, s, args[0], payload, !noWait)
				if err != nil {
					return err
				}
				return printResponse(cmd, resp)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return as soon as the command is accepted")
	cmd.Flags().StringVarP(&payloadFile, "file", "f", "", `Read the payload from a file ("-" for stdin)`)
	return cmd
}

// readPayload takes the payload from the optional positional argument or from
// file. Giving both is an error.
func readPayload(args []string, file string) (types.Document, error) {
	var raw []byte
	switch {
	case len(args) > 0 && file != "":
		return types.Document{}, fmt.Errorf("payload given both as an argument and with --file")
	case len(args) > 0:
		raw = []byte(args[0])
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return types.Document{}, fmt.Errorf("unable to read payload: %w", err)
		}
		raw = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return types.Document{}, fmt.Errorf("unable to read payload: %w", err)
		}
		raw = b
	}
	doc, err := types.ParseDocument(raw)
	if err != nil {
		return types.Document{}, mgmtapi.ErrInvalidPayload.MsgErr("payload must be a JSON object", err)
	}
	return doc, nil
}
