package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/groomkit/groom/internal/config"
	"github.com/groomkit/groom/internal/engine"
	"github.com/groomkit/groom/internal/gate"
	"github.com/groomkit/groom/internal/inference"
	"github.com/groomkit/groom/internal/output"
	"github.com/groomkit/groom/internal/store"
	"github.com/groomkit/groom/internal/tracker"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "groom",
	Short: "Backlog grooming assistant - mirror, review, and estimate tickets",
	Long: `groom mirrors issue-tracker tickets into a local store, lets you
edit them offline, and runs an AI review and estimate engine over them:
a weighted readiness checklist plus a normalized story-point and
confidence estimate. Reports can be published back to the tracker as
comments that update in place.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/groom/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "groom")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GROOM")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "groom")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "groom.db"))
	viper.SetDefault("editor", "")
	viper.SetDefault("jira.base_url", "")
	viper.SetDefault("jira.email", "")
	viper.SetDefault("jira.api_token", "")
	viper.SetDefault("jira.jql", "")
	viper.SetDefault("inference.backend", "ollama")
	viper.SetDefault("inference.model", "qwen2.5:14b")
	viper.SetDefault("ollama.base_url", "http://localhost:11434")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("checklist", config.DefaultChecklist())
	viper.SetDefault("estimate.scale", []float64{1, 2, 3, 5, 8, 13})

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store, settings, and clients are initialized lazily so config and
	// version commands run without a db or network.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getSettings loads and validates the review configuration.
func getSettings() (*config.Settings, error) {
	return config.Load()
}

// getSource builds the Jira client from configuration.
func getSource() (tracker.IssueSource, error) {
	baseURL := viper.GetString("jira.base_url")
	if baseURL == "" {
		return nil, fmt.Errorf("jira.base_url is not configured (run 'groom config init')")
	}
	return tracker.NewJiraClient(baseURL, viper.GetString("jira.email"), viper.GetString("jira.api_token")), nil
}

// getInference builds the configured inference backend.
func getInference(settings *config.Settings) (inference.Client, error) {
	switch settings.Backend {
	case "anthropic":
		apiKey := viper.GetString("anthropic.api_key")
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic.api_key is not configured")
		}
		return inference.NewAnthropicClient(apiKey, settings.Model), nil
	default:
		return inference.NewOllamaClient(viper.GetString("ollama.base_url"), settings.Model)
	}
}

// getEngine wires store, inference, and settings into a review engine.
func getEngine() (*engine.Engine, *config.Settings, error) {
	settings, err := getSettings()
	if err != nil {
		return nil, nil, err
	}
	s, err := getStore()
	if err != nil {
		return nil, nil, err
	}
	inf, err := getInference(settings)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(s, inf, settings), settings, nil
}

// getPublisher wires store and tracker into a publication gate.
func getPublisher() (*gate.Publisher, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	source, err := getSource()
	if err != nil {
		return nil, err
	}
	return gate.NewPublisher(s, source), nil
}
