package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	sesame "github.com/ijub/sesame-go/sdk"
)

const (
	configDirName  = ".sesame"
	configFileName = "config.yaml"
)

// fileConfig holds persistent CLI defaults. Flags always win over it.
type fileConfig struct {
	Character   string `yaml:"character,omitempty"`
	ClientName  string `yaml:"client_name,omitempty"`
	TokenFile   string `yaml:"token_file,omitempty"`
	InsecureTLS *bool  `yaml:"insecure_tls,omitempty"`

	// path is where the config was loaded from and saves to
	path string
}

func configPath(custom string) (string, error) {
	if custom != "" {
		return custom, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// loadFileConfig reads the config file, treating a missing file as an
// empty configuration.
func loadFileConfig(custom string) (*fileConfig, error) {
	path, err := configPath(custom)
	if err != nil {
		return nil, err
	}

	cfg := &fileConfig{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c *fileConfig) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *fileConfig) set(key, value string) error {
	switch key {
	case "character":
		c.Character = value
	case "client_name":
		c.ClientName = value
	case "token_file":
		c.TokenFile = value
	case "insecure_tls":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("insecure_tls must be true or false, got %q", value)
		}
		c.InsecureTLS = &b
	default:
		return fmt.Errorf("unknown config key %q (known keys: character, client_name, token_file, insecure_tls)", key)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage persistent CLI defaults.

Configuration is stored in ~/.sesame/config.yaml. Stored values are
used whenever the matching flag is not given.

Known keys:
  character     - default character (Miles or Maya)
  client_name   - client name reported to the service
  token_file    - token cache location
  insecure_tls  - skip TLS certificate verification (true/false)`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored and effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Config file: %s\n\n", fileCfg.path)

		storedTLS := ""
		if fileCfg.InsecureTLS != nil {
			storedTLS = strconv.FormatBool(*fileCfg.InsecureTLS)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSTORED\tEFFECTIVE")
		fmt.Fprintf(w, "character\t%s\t%s\n", orDash(fileCfg.Character), resolvedCharacter())
		fmt.Fprintf(w, "client_name\t%s\t%s\n", orDash(fileCfg.ClientName), resolvedClientName())
		fmt.Fprintf(w, "token_file\t%s\t%s\n", orDash(fileCfg.TokenFile), sesame.NewFileTokenStore(resolvedTokenFile()).Path())
		fmt.Fprintf(w, "insecure_tls\t%s\t%v\n", orDash(storedTLS), !resolvedTLSVerify())
		return w.Flush()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a default value",
	Long: `Store a default value in the config file.

Examples:
  sesame-chat config set character Maya
  sesame-chat config set insecure_tls false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fileCfg.set(args[0], args[1]); err != nil {
			return err
		}
		if err := fileCfg.save(); err != nil {
			return err
		}
		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	},
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
