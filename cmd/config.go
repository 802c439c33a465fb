package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/groomkit/groom/internal/config"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "groom"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage groom configuration.

Running bare 'groom config' is the same as 'groom config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# groom configuration
# See: groom config show (for effective values and sources)

# State/data directory (default: ~/.config/groom)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/groom/groom.db)
# db_path: {{ .DBPath }}

# Editor for 'groom ticket edit' (falls back to $EDITOR, then $VISUAL)
# editor: vim

# Jira connection
jira:
  base_url: "{{ .JiraBaseURL }}"
  email: "{{ .JiraEmail }}"
  api_token: "{{ .JiraAPIToken }}"

  # Default JQL for 'groom ticket pull' without arguments
  jql: "{{ .JiraJQL }}"

# Inference backend
inference:
  # "ollama" (local, default) or "anthropic"
  backend: "{{ .Backend }}"
  model: "{{ .Model }}"

ollama:
  base_url: "{{ .OllamaBaseURL }}"

# anthropic:
#   api_key: ""

# Readiness checklist. Weights must be positive; the grooming score is
# the weight-fraction of criteria the ticket satisfies.
checklist:
{{- range .Checklist }}
  - key: {{ index . "key" }}
    description: "{{ index . "description" }}"
    weight: {{ index . "weight" }}
{{- end }}

# Story point scale, in preference order for tie breaking.
estimate:
  scale: [1, 2, 3, 5, 8, 13]
`

type configTemplateData struct {
	StateDir      string
	DBPath        string
	JiraBaseURL   string
	JiraEmail     string
	JiraAPIToken  string
	JiraJQL       string
	Backend       string
	Model         string
	OllamaBaseURL string
	Checklist     []map[string]any
}

// defaultChecklistForTemplate exposes the built-in checklist to the
// config template.
func defaultChecklistForTemplate() []map[string]any {
	return config.DefaultChecklist()
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:      viper.GetString("state_dir"),
		DBPath:        viper.GetString("db_path"),
		JiraBaseURL:   viper.GetString("jira.base_url"),
		JiraEmail:     viper.GetString("jira.email"),
		JiraAPIToken:  viper.GetString("jira.api_token"),
		JiraJQL:       viper.GetString("jira.jql"),
		Backend:       viper.GetString("inference.backend"),
		Model:         viper.GetString("inference.model"),
		OllamaBaseURL: viper.GetString("ollama.base_url"),
		Checklist:     defaultChecklistForTemplate(),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "GROOM_STATE_DIR"},
	{Key: "db_path", EnvVar: "GROOM_DB_PATH"},
	{Key: "editor", EnvVar: "GROOM_EDITOR"},
	{Key: "jira.base_url", EnvVar: "GROOM_JIRA_BASE_URL"},
	{Key: "jira.email", EnvVar: "GROOM_JIRA_EMAIL"},
	{Key: "jira.jql", EnvVar: "GROOM_JIRA_JQL"},
	{Key: "inference.backend", EnvVar: "GROOM_INFERENCE_BACKEND"},
	{Key: "inference.model", EnvVar: "GROOM_INFERENCE_MODEL"},
	{Key: "ollama.base_url", EnvVar: "GROOM_OLLAMA_BASE_URL"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := resolveEditor()
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set — set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'groom config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}

// resolveEditor picks the editor: config key, then $EDITOR, then $VISUAL.
func resolveEditor() string {
	if editor := viper.GetString("editor"); editor != "" {
		return editor
	}
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	return os.Getenv("VISUAL")
}
