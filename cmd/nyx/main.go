// Package main provides the nyx CLI for browsing the marketplace and
// querying subscribed data locally.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iotic-Labs/nyx-sdk/internal/app"
	"github.com/Iotic-Labs/nyx-sdk/internal/config"
	"github.com/Iotic-Labs/nyx-sdk/internal/nyx"
)

var (
	envFile    string
	configFile string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "nyx",
	Short:        "Nyx data marketplace client",
	Version:      nyx.Version,
	SilenceUsage: true,
	Long: `Search, subscribe to and query datasets shared on a Nyx marketplace.

Settings come from a .env file, an optional TOML or YAML config file and the
environment, with the environment taking precedence.

Environment variables:
  NYX_URL           Portal URL (default: community instance)
  NYX_USERNAME      Portal user name
  NYX_EMAIL         Portal login email
  NYX_PASSWORD      Portal login password
  NYX_TOKEN         Access token, replaces login
  NYX_LOG_LEVEL     debug, info, warn or error (default: info)
  OPENAI_API_KEY    Key for the ask command with NYX_LLM_PROVIDER=openai
  COHERE_API_KEY    Key for the ask command with NYX_LLM_PROVIDER=cohere
  QDRANT_HOST       Qdrant hostname for --qdrant (default: localhost)
  QDRANT_PORT       Qdrant gRPC port (default: 6334)
  GITHUB_TOKEN      GitHub token for datasets hosted on GitHub (optional)`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(config.Options{EnvFile: envFile, File: configFile})
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger = app.NewLogger(os.Stderr, level)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (default: ./.env)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a .toml or .yaml config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// client builds a portal client from the loaded configuration.
func client() (*nyx.Client, error) {
	return app.NewClient(cfg, logger)
}
