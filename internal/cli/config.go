package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/chartrisk/internal/model"
)

const hierarchyHelp = `Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (CHARTRISK_*, e.g. CHARTRISK_CHUNKING_CHUNK_SIZE)
  3. Config file (~/.chartrisk/config.yaml)
  4. Defaults`

var (
	showFormat string
	initPath   string
	initForce  bool
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage chartrisk configuration",
	Long:  "Manage chartrisk configuration files and settings.\n\n" + hierarchyHelp,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, config file and environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", used)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
		}

		return showConfig(cmd.OutOrStdout(), cfg, showFormat)
	},
}

// showConfig renders cfg. The API key carries yaml:"-", so only its
// presence is reported; JSON goes through the YAML form to keep key names.
func showConfig(w io.Writer, cfg *model.Config, format string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	switch format {
	case "yaml", "":
	case "json":
		var generic map[string]any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("convert config: %w", err)
		}
		if data, err = json.MarshalIndent(generic, "", "  "); err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
	default:
		return fmt.Errorf("unknown format %q (yaml, json)", format)
	}

	if _, err := w.Write(bytes.TrimRight(data, "\n")); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if cfg.LLM.APIKey != "" && format != "json" {
		fmt.Fprintln(w, "# llm.api_key: (set)")
	}
	return nil
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Write the default configuration, with comments, to ~/.chartrisk/config.yaml or --path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := initPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("find home directory: %w", err)
			}
			path = filepath.Join(home, ".chartrisk", "config.yaml")
		}

		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		var buf bytes.Buffer
		if err := writeConfigTemplate(&buf, model.DefaultConfig()); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", path)
		fmt.Fprintf(out, "\nCheck it with:\n  chartrisk check --config %s\n", path)
		return nil
	},
}

// writeConfigTemplate writes cfg as YAML framed by explanatory comments
func writeConfigTemplate(w io.Writer, cfg *model.Config) error {
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# chartrisk configuration file\n#\n")
	for _, line := range bytes.Split([]byte(hierarchyHelp), []byte("\n")) {
		buf.WriteString("# ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteString("#\n")
	buf.WriteString("# rules.paths lists catalog files (.yaml, .toml, .json), one rubric each.\n")
	buf.WriteString("# llm.provider enables narrative generation: openai, anthropic or ollama.\n\n")
	buf.Write(body)
	buf.WriteString("\n# Keys are read from the environment:\n")
	buf.WriteString("#   OPENAI_API_KEY      narrative (openai) and guideline embeddings\n")
	buf.WriteString("#   ANTHROPIC_API_KEY   narrative (anthropic)\n")
	buf.WriteString("#   OLLAMA_BASE_URL     narrative (ollama)\n")

	_, err = w.Write(buf.Bytes())
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().StringVar(&showFormat, "format", "yaml", "Output format: yaml or json")
	configInitCmd.Flags().StringVar(&initPath, "path", "", "Write to this path instead of ~/.chartrisk/config.yaml")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}
