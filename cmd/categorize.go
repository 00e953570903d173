package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"buchhaltung/internal/ai"
	"buchhaltung/internal/categorize"
	"buchhaltung/internal/logger"
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Suggest transaction types with AI",
	Long: `Ask the configured AI provider to choose a transaction type for
transactions still typed "Nicht kategorisiert". Accepted types recompute the
net and VAT breakdown; answers outside the type table are rejected.`,
	Args: cobra.NoArgs,
	RunE: runCategorize,
}

func init() {
	rootCmd.AddCommand(categorizeCmd)

	categorizeCmd.Flags().Int("limit", 20, "Maximum transactions to categorize")
	categorizeCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	categorizeCmd.Flags().Int("timeout", 600, "Timeout in seconds")
}

func runCategorize(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("categorize-cli")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	provider, err := newProvider(cfg, log)
	if err != nil {
		return err
	}
	if provider == nil {
		return friendlyError(ai.ErrDisabled, log)
	}

	ctx, cancel := commandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()

	summary, err := categorize.NewService(provider, repos.transactions).CategorizeUncategorized(ctx, limit)
	if err != nil {
		return friendlyError(err, log)
	}

	return writeJSON(summary, outputPath, log)
}
