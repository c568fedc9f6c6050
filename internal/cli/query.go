package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi"
)

func newQueryCmd() *cobra.Command {
	var (
		f    sessionFlags
		opts mgmtapi.QueryOptions
	)
	cmd := &cobra.Command{
		Use:   "query <command> [json]",
		Short: "Fetch every page of a show command",
		Long: `Run a paginated show command until all items are fetched and print them
as one result.

Examples:
  mgmtcli query show-hosts
  mgmtcli query show-access-rulebase '{"name":"Network"}' --key rulebase
  mgmtcli query show-objects --details-level full`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(args[1:], "")
			if err != nil {
				return err
			}
			opts.Payload = payload
			return withSession(cmd, f, func(ctx context.Context, c *mgmtapi.Client, s *mgmtapi.Session) error {
				resp, err := c.Query(ctx, s, args[0], opts)
				if err != nil {
					return err
				}
				return printResponse(cmd, resp)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&opts.AggregationKey, "key", "objects", "Array collected across pages")
	cmd.Flags().StringVar(&opts.DetailsLevel, "details-level", "standard", "Details level: uid, standard or full")
	return cmd
}
