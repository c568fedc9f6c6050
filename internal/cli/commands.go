package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mgmtapi/mgmtapi-go/internal/common/apperrors"
	"github.com/mgmtapi/mgmtapi-go/internal/common/logtrace"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
	logLevel   string
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var warnLabel = color.New(color.FgYellow)
var errorLabel = color.New(color.FgRed)

// newRootCmd builds the command tree. Flags are bound to the package globals, so
// each call resets them to their defaults.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mgmtcli [command] [flags]",
		Short: "mgmtcli - a command line client for the management web API",
		Long: `mgmtcli talks to a management server over its JSON web API.
It logs in, runs API commands, pages through show-* queries and manages the
fingerprints of servers you trust.

Examples:
  # Point the CLI at a server
  mgmtcli config --server mgmt.example.com --user admin

  # Run a command and wait for the task it starts
  mgmtcli call add-host '{"name":"web-1","ip-address":"10.0.0.5"}'

  # Fetch every host
  mgmtcli query show-hosts

  # Trust the server certificate
  mgmtcli fingerprint trust`,
		PersistentPreRunE: preRunHandlePersistents,
		SilenceErrors:     true, // Prevent Cobra from printing the error
		SilenceUsage:      true, // Prevent Cobra from printing usage on error
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newFingerprintCmd())
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure. It is called by main.main().
func Execute(ctx context.Context) {
	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrAlreadyHandled) {
		reportError(os.Stdout, os.Stderr, err)
	}
	os.Exit(1)
}

func reportError(stdout, stderr io.Writer, err error) {
	if jsonOutput {
		kv := map[string]string{
			"error": err.Error(),
		}
		if code := apperrors.CodeOf(err); code != "" {
			kv["code"] = code
		}
		_ = printJSON(stdout, kv)
		return
	}
	errorLabel.Fprintf(stderr, "Error: %v\n", err)
}

// preRunHandlePersistents sets up logging and loads the configuration before
// command execution
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	logtrace.InitLoggerWithWriter(logLevel, cmd.ErrOrStderr())

	if configFile == "" {
		var err error
		configFile, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}

	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" || c.Name() == "version" {
			return nil
		}
	}

	if err := LoadConfig(configFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found, configure mgmtcli with \"mgmtcli config --server <host>\" first", configFile)
		}
		return err
	}
	log.Debug().Str("config_file", configFile).Msg("configuration loaded")
	return nil
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mgmtcli",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := configFile
			if configPath == "" {
				configPath = "unknown"
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version":     getCLIVersion(),
					"config_file": configPath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mgmtcli %s\n", getCLIVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", configPath)
			return nil
		},
	}
}

// printJSON writes data as indented JSON
func printJSON(w io.Writer, data any) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}
