// Command tripmesh runs the travel assistant as an HTTP service or drives
// single turns from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tripmesh/internal/config"
	"github.com/hupe1980/tripmesh/logging"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tripmesh",
	Short: "tripmesh - conversational travel planning assistant",
	Long: `tripmesh routes chat messages to travel handlers (planner, search,
mail, calendar and recommendation) and streams every step back to the client.

Configuration is read from an optional YAML file, a .env file and the
process environment, in that order of increasing precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		logger, err = buildLogger(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, chatCmd, clearCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
