package cli

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/port"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/trust"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

const configVersion = "0.1.0"

// Config is the CLI configuration. It is stored as YAML, or as TOML when the file
// name ends in ".toml".
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version" toml:"version"`
	// Server is the management server host name or address
	Server string `yaml:"server" toml:"server"`
	// Port overrides port discovery when non-zero
	Port int `yaml:"port,omitempty" toml:"port,omitempty"`
	// User is the login name; the password comes from MGMT_PASSWORD or a prompt
	User        string `yaml:"user,omitempty" toml:"user,omitempty"`
	Domain      string `yaml:"domain,omitempty" toml:"domain,omitempty"`
	APIVersion  string `yaml:"api_version,omitempty" toml:"api_version,omitempty"`
	CloudMgmtID string `yaml:"cloud_mgmt_id,omitempty" toml:"cloud_mgmt_id,omitempty"`
	// Proxy in "[user:password@]host[:port]" form
	Proxy string `yaml:"proxy,omitempty" toml:"proxy,omitempty"`
	// Fingerprint pins the server certificate and bypasses the fingerprint file
	Fingerprint      string `yaml:"fingerprint,omitempty" toml:"fingerprint,omitempty"`
	FingerprintFile  string `yaml:"fingerprint_file,omitempty" toml:"fingerprint_file,omitempty"`
	DebugFile        string `yaml:"debug_file,omitempty" toml:"debug_file,omitempty"`
	Unsafe           bool   `yaml:"unsafe,omitempty" toml:"unsafe,omitempty"`
	UnsafeAutoAccept bool   `yaml:"unsafe_auto_accept,omitempty" toml:"unsafe_auto_accept,omitempty"`
	// SessionID is a session kept open by "mgmtcli login --keep"
	SessionID string `yaml:"session_id,omitempty" toml:"session_id,omitempty"`
}

var config *Config

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/mgmtcli on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "mgmtcli", DefaultConfigFile), nil
}

func isTOML(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".toml")
}

// LoadConfig loads the configuration from file. {{ .ENV.NAME }} placeholders are
// expanded before decoding.
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}
	raw, err = PreprocessConfig(raw)
	if err != nil {
		return err
	}

	var c Config
	if isTOML(file) {
		_, err = toml.Decode(string(raw), &c)
	} else {
		err = yaml.Unmarshal(raw, &c)
	}
	if err != nil {
		return fmt.Errorf("unable to parse config file: %w", err)
	}

	if err := c.normalize(); err != nil {
		return err
	}
	if c.FingerprintFile == "" {
		c.FingerprintFile = filepath.Join(filepath.Dir(file), trust.DefaultFile)
	}

	config = &c
	return nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// normalize validates the required fields and splits a "host:port" server value.
func (cfg *Config) normalize() error {
	cfg.Server = MorphServer(cfg.Server)
	if cfg.Server == "" {
		return errors.New("server is required")
	}
	if host, p, err := net.SplitHostPort(cfg.Server); err == nil {
		n, err := port.Parse(p)
		if err != nil {
			return err
		}
		if cfg.Port != 0 && cfg.Port != n {
			return fmt.Errorf("server %s conflicts with port %d", cfg.Server, cfg.Port)
		}
		cfg.Server, cfg.Port = host, n
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return port.ErrInvalidPort.Msg(fmt.Sprintf("port out of range: %d", cfg.Port))
	}
	return nil
}

// WriteConfig writes the configuration to file, creating its directory.
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), 0o700)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	var data []byte
	if isTOML(file) {
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(cfg)
		data = buf.Bytes()
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	err = os.WriteFile(file, data, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

// MorphServer reduces a server value to "host" or "host:port": surrounding
// spaces, an https:// scheme and trailing slashes are removed.
func MorphServer(server string) string {
	server = strings.TrimSpace(server)
	server = strings.TrimPrefix(server, "https://")
	return strings.TrimRight(server, "/")
}

func newConfigCmd() *cobra.Command {
	var next Config

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long: `Manage CLI configuration settings like the server and how to trust it.

Example:
  mgmtcli config --server mgmt.example.com --user admin --domain "System Data"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if next.Server == "" {
				return cmd.Help()
			}
			return setServerConfig(cmd, next)
		},
	}

	f := cmd.Flags()
	f.StringVar(&next.Server, "server", "", "Set the server host, optionally with port (e.g., mgmt.example.com:4434)")
	f.IntVar(&next.Port, "port", 0, "Server port; discovered when omitted")
	f.StringVar(&next.User, "user", "", "User name for password logins")
	f.StringVar(&next.Domain, "domain", "", "Domain to log in to")
	f.StringVar(&next.APIVersion, "api-version", "", "API version to request, e.g. 1.9")
	f.StringVar(&next.CloudMgmtID, "cloud-mgmt-id", "", "Cloud management tenant id")
	f.StringVar(&next.Proxy, "proxy", "", "Proxy as [user:password@]host[:port]")
	f.StringVar(&next.Fingerprint, "fingerprint", "", "Pin the server certificate SHA-1 fingerprint")
	f.StringVar(&next.FingerprintFile, "fingerprint-file", "", "Trusted fingerprints file")
	f.StringVar(&next.DebugFile, "debug-file", "", "Record every API call to this file")
	f.BoolVar(&next.Unsafe, "unsafe", false, "Skip certificate verification")
	f.BoolVar(&next.UnsafeAutoAccept, "unsafe-auto-accept", false, "Trust unknown fingerprints without asking")

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigClearCmd())
	return cmd
}

// newConfigShowCmd prints the loaded configuration.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := LoadConfig(configFile); err != nil {
				return err
			}
			cfg := GetConfig()
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", configFile, out)
			return nil
		},
	}
}

// newConfigClearCmd forgets a session kept by "login --keep" without logging it out.
func newConfigClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the kept session",
		Long: `Forget the session kept by "mgmtcli login --keep". The session is not logged
out on the server; use "mgmtcli logout" for that.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := LoadConfig(configFile); err != nil {
				return err
			}
			cfg := GetConfig()
			cfg.SessionID = ""
			if err := cfg.WriteConfig(configFile); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]int{"result": 1})
			}
			okLabel.Fprintln(cmd.OutOrStdout(), "Kept session cleared")
			return nil
		},
	}
}

// setServerConfig replaces the config file with cfg.
func setServerConfig(cmd *cobra.Command, cfg Config) error {
	cfg.Version = configVersion
	if err := cfg.normalize(); err != nil {
		return err
	}
	if err := cfg.WriteConfig(configFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"server":      cfg.Server,
			"config_file": configFile,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Server configured: %s\n", cfg.Server)
	fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", configFile)
	return nil
}
