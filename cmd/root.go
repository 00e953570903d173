package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"buchhaltung/internal/config"
	"buchhaltung/internal/logger"
)

var version = "1.0.0"

// appConfig is set once by Execute before any command runs.
var appConfig *config.Config

var errNoConfig = errors.New("configuration could not be loaded, check your environment or .env file")

var rootCmd = &cobra.Command{
	Use:   "buchhaltung",
	Short: "Bookkeeping for a German freelancer practice",
	Long: `buchhaltung imports bank statements, invoices and quotes, and reconciles
incoming payments with local invoices and documents archived in Paperless-ngx.

Configuration is read from the environment (or a .env file) once at startup:
  DB_DRIVER, DB_DSN              - postgres, mysql or sqlite
  PAPERLESS_URL, PAPERLESS_TOKEN - optional document archive
  AI_PROVIDER, AI_API_KEY        - optional openai, ollama or anthropic backend
  GOOGLE_CREDENTIALS             - optional OCR, Document AI and Sheets access`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with the loaded configuration. cfg is nil
// when loading failed; commands then report errNoConfig.
func Execute(cfg *config.Config) {
	log := logger.WithComponent("cmd")
	appConfig = cfg

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func requireConfig() (*config.Config, error) {
	if appConfig == nil {
		return nil, errNoConfig
	}
	return appConfig, nil
}
