package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/trust"
)

func newFingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Manage trusted server fingerprints",
		Long: `Inspect and manage the SHA-1 certificate fingerprints of trusted servers.
The server defaults to the configured one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newFingerprintShowCmd())
	cmd.AddCommand(newFingerprintTrustCmd())
	cmd.AddCommand(newFingerprintForgetCmd())
	cmd.AddCommand(newFingerprintListCmd())
	return cmd
}

// withTrustStore runs fn with a client, its trust store and the target server and port.
func withTrustStore(cmd *cobra.Command, args []string, fn func(ctx context.Context, c *mgmtapi.Client, store *trust.Store, server string, port int) error) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	c, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	store, err := c.TrustStore()
	if err != nil {
		return err
	}
	server := cfg.Server
	if len(args) > 0 {
		server = MorphServer(args[0])
	}
	port, err := c.ResolvePort(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, c, store, server, port)
}

func newFingerprintShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [server]",
		Short: "Show the live and stored fingerprints of a server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTrustStore(cmd, args, func(ctx context.Context, c *mgmtapi.Client, store *trust.Store, server string, port int) error {
				live, err := trust.FetchServerFingerprint(ctx, server, port, c.FetchOptions())
				if err != nil {
					return err
				}
				stored, ok, err := store.Get(ctx, server, port)
				if err != nil {
					return err
				}
				match := ok && strings.EqualFold(stored, live)

				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"server":  trust.Key(server, port),
						"live":    live,
						"stored":  stored,
						"trusted": match,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Server: %s\n", trust.Key(server, port))
				fmt.Fprintf(out, "Live fingerprint:   %s\n", trust.FormatFingerprint(live))
				switch {
				case !ok:
					fmt.Fprintln(out, "Stored fingerprint: none")
				case match:
					fmt.Fprintf(out, "Stored fingerprint: %s\n", trust.FormatFingerprint(stored))
					okLabel.Fprintln(out, "✓ Trusted")
				default:
					fmt.Fprintf(out, "Stored fingerprint: %s\n", trust.FormatFingerprint(stored))
					warnLabel.Fprintln(out, "! Fingerprint changed")
				}
				return nil
			})
		},
	}
}

func newFingerprintTrustCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "trust [server]",
		Short: "Verify a server fingerprint and store it once approved",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTrustStore(cmd, args, func(ctx context.Context, c *mgmtapi.Client, store *trust.Store, server string, port int) error {
				var approver trust.Approver = newPrompter(cmd.ErrOrStderr())
				if yes {
					approver = trust.AutoAccept{}
				}
				fp, err := store.Verify(ctx, server, port, approver, c.FetchOptions())
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), map[string]string{
						"server":      trust.Key(server, port),
						"fingerprint": fp,
					})
				}
				okLabel.Fprintf(cmd.OutOrStdout(), "✓ Trusted %s (%s)\n", trust.Key(server, port), trust.FormatFingerprint(fp))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Trust the fingerprint without asking")
	return cmd
}

func newFingerprintForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget [server]",
		Short: "Remove the stored fingerprint of a server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTrustStore(cmd, args, func(ctx context.Context, _ *mgmtapi.Client, store *trust.Store, server string, port int) error {
				existed, err := store.Delete(ctx, server, port)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"server":  trust.Key(server, port),
						"removed": existed,
					})
				}
				if !existed {
					fmt.Fprintf(cmd.OutOrStdout(), "No fingerprint stored for %s\n", trust.Key(server, port))
					return nil
				}
				okLabel.Fprintf(cmd.OutOrStdout(), "✓ Removed fingerprint of %s\n", trust.Key(server, port))
				return nil
			})
		},
	}
}

func newFingerprintListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored fingerprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetConfig()
			c, err := newAPIClient(cfg)
			if err != nil {
				return err
			}
			defer c.Close()
			store, err := c.TrustStore()
			if err != nil {
				return err
			}
			all, keys, err := store.All(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), all)
			}
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", k, trust.FormatFingerprint(all[k]))
			}
			return nil
		},
	}
}
