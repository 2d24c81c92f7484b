package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/entitylock/internal/config"
	"github.com/Iron-Ham/entitylock/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "entitylock",
	Short: "Per-entity lock coordinator with global escalation",
	Long: `entitylock serializes work on the same entity while letting work on
different entities run in parallel, and lets one owner escalate to
exclusive access over every entity at once.

The CLI runs concurrency scenarios against the coordinator and inspects
its configuration.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/entitylock/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (enables logging)")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ENTITYLOCK")
	// Replace dots with underscores for nested keys in env vars
	// e.g., ENTITYLOCK_STRESS_WORKERS for stress.workers
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()

	if level := viper.GetString("log_level"); level != "" {
		viper.Set("logging.enabled", true)
		viper.Set("logging.level", strings.ToLower(level))
	}
}

// newLogger builds the logger described by the logging section. Disabled
// logging yields a logger that discards everything.
func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLogger(cfg.File, logging.ParseLevel(strings.ToUpper(cfg.Level)))
}
