package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/matching"
	"buchhaltung/pkg/models"
)

var errLinkFailed = errors.New("link was not saved, see the log for details")

var matchCmd = &cobra.Command{
	Use:   "match [transaction-id]",
	Short: "List invoice and archive candidates for a transaction",
	Long: `Score local invoices (amount within 1 EUR, issued within 30 days) and, when
Paperless-ngx is configured, archived documents against an incoming payment.
Candidates are printed best first.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

var linkCmd = &cobra.Command{
	Use:   "link [transaction-id] [invoice-id]",
	Short: "Link a transaction to an invoice or archived document",
	Example: `  # Link to a local invoice
  buchhaltung link 812 42

  # Link to a Paperless-ngx document
  buchhaltung link 812 --document 314 --title "Rechnung Hetzner"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLink,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Auto-link unvalidated incoming payments",
	Long: `Search matches for the newest unvalidated incoming payments and link those
whose best candidate is a local invoice scoring at least 80.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

type matchOutput struct {
	Transaction *models.BankTransaction `json:"transaction"`
	Candidates  []matching.Candidate    `json:"candidates"`
}

func init() {
	rootCmd.AddCommand(matchCmd, linkCmd, reconcileCmd)

	for _, c := range []*cobra.Command{matchCmd, linkCmd, reconcileCmd} {
		c.Flags().Int("timeout", 120, "Timeout in seconds")
	}
	matchCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	reconcileCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")

	linkCmd.Flags().Int("document", 0, "Paperless-ngx document id to link instead of an invoice")
	linkCmd.Flags().String("title", "", "Document title recorded with --document")

	reconcileCmd.Flags().Int("limit", 0, "Maximum transactions to process (default: MATCH_BATCH_LIMIT)")
}

func runMatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("match")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	txID, err := parseID(args[0], "transaction")
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()
	engine := newEngine(cfg, repos)

	tx, err := engine.Transaction(ctx, txID)
	if err != nil {
		return friendlyError(err, log)
	}

	candidates := engine.FindMatchingInvoices(ctx, *tx)
	if candidates == nil {
		candidates = []matching.Candidate{}
	}
	log.Info().
		Uint("transaction_id", txID).
		Int("candidates", len(candidates)).
		Msg("Match search completed")

	return writeJSON(matchOutput{Transaction: tx, Candidates: candidates}, outputPath, log)
}

func runLink(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("link")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	documentID, _ := cmd.Flags().GetInt("document")
	title, _ := cmd.Flags().GetString("title")

	txID, err := parseID(args[0], "transaction")
	if err != nil {
		return err
	}
	if (len(args) == 2) == (documentID > 0) {
		return errors.New("give either an invoice id or --document")
	}

	ctx, cancel := commandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()
	engine := newEngine(cfg, repos)

	var ok bool
	if documentID > 0 {
		ok = engine.LinkTransactionToDocument(ctx, txID, documentID, title)
	} else {
		invoiceID, err := parseID(args[1], "invoice")
		if err != nil {
			return err
		}
		ok = engine.LinkTransactionToInvoice(ctx, txID, invoiceID)
	}
	if !ok {
		return errLinkFailed
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Transaction %d linked\n", txID)
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reconcile")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = cfg.Matching.BatchLimit
	}

	ctx, cancel := commandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()

	summary := newEngine(cfg, repos).FindMatchesForUnvalidatedTransactions(ctx, limit)
	if err := ctx.Err(); err != nil {
		return friendlyError(err, log)
	}

	return writeJSON(summary, outputPath, log)
}
