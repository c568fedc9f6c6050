package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi"
)

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	var (
		f    sessionFlags
		keep bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the management server",
		Long: `Login to the management server and print the session id and API version.
The session is logged out again unless --keep is given, in which case later
commands reuse it until "mgmtcli logout".

Credentials come from MGMT_API_KEY, or from --user / MGMT_USER / the config file
with the password in MGMT_PASSWORD or typed at the prompt. Both may be set in
a .env file in the working directory.

Example:
  mgmtcli login --user admin --keep`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, f, keep)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the session open for later commands")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, f sessionFlags, keep bool) error {
	cfg := GetConfig()
	if cfg == nil {
		return errors.New("no configuration loaded")
	}
	if keep && f.root {
		return errors.New("--keep cannot be combined with --root")
	}

	ctx := cmd.Context()
	c, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	s, err := login(ctx, c, cfg, f, newPrompter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	if keep {
		cfg.SessionID = s.SID.String()
		if err := cfg.WriteConfig(configFile); err != nil {
			logout(ctx, c, s)
			return fmt.Errorf("failed to save configuration: %w", err)
		}
	} else {
		logout(ctx, c, s)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"status":             "success",
			"server":             s.Address(),
			"sid":                s.SID.String(),
			"api_server_version": s.APIVersion.String(),
			"read_only":          s.ReadOnly,
			"kept":               keep,
		})
	}
	out := cmd.OutOrStdout()
	okLabel.Fprintln(out, "✓ Login successful")
	fmt.Fprintf(out, "Server: %s\n", s.Address())
	fmt.Fprintf(out, "Session id: %s\n", s.SID.String())
	fmt.Fprintf(out, "API server version: %s\n", s.APIVersion.String())
	if keep {
		fmt.Fprintln(out, "Session kept; end it with \"mgmtcli logout\"")
	}
	return nil
}

// newLogoutCmd ends the session kept by "login --keep".
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out the kept session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetConfig()
			if cfg.SessionID == "" {
				return errors.New("no kept session; log in with \"mgmtcli login --keep\"")
			}
			ctx := cmd.Context()
			c, err := newAPIClient(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			s, err := c.ResumeSession(ctx, cfg.Server, cfg.SessionID, cfg.Domain)
			if err != nil {
				return err
			}
			resp, err := c.Logout(ctx, s)
			if err != nil {
				return err
			}
			// A session the server no longer knows is gone either way.
			cfg.SessionID = ""
			if err := cfg.WriteConfig(configFile); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			return printLogout(cmd, resp)
		},
	}
}

func printLogout(cmd *cobra.Command, resp *mgmtapi.Response) error {
	if !resp.Success {
		return printResponse(cmd, resp)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]string{"status": "success"})
	}
	okLabel.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
	return nil
}
