package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/matching"
	"buchhaltung/internal/numfmt"
	"buchhaltung/internal/reconciliation"
)

var wizardCmd = &cobra.Command{
	Use:   "wizard [transaction-id]",
	Short: "Interactively match one transaction",
	Long: `Search candidates for a transaction, let the AI provider recommend one if
configured, and ask which candidate to link. Enter the candidate number, or
press Enter or Ctrl-C to stop without linking.`,
	Args: cobra.ExactArgs(1),
	RunE: runWizard,
}

func init() {
	rootCmd.AddCommand(wizardCmd)
}

func runWizard(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("wizard-cli")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	txID, err := parseID(args[0], "transaction")
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(0, log)
	defer cancel()

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()

	provider, err := newProvider(cfg, log)
	if err != nil {
		return err
	}
	wizard := reconciliation.NewWizard(newEngine(cfg, repos), newRecommender(provider))

	sess, err := wizard.Start(ctx, txID)
	if err != nil {
		return friendlyError(err, log)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Suche Kandidaten für Transaktion %d ...\n", txID)

	sess, err = wizard.Wait(ctx, sess.ID)
	if err != nil {
		fmt.Fprintln(out, "Abgebrochen.")
		return nil
	}
	if sess.State != reconciliation.StateAwaitingConfirmation {
		fmt.Fprintf(out, "Sitzung beendet (%s).\n", sess.State)
		return nil
	}
	if len(sess.Candidates) == 0 {
		fmt.Fprintln(out, "Keine passenden Rechnungen oder Dokumente gefunden.")
		_, _ = wizard.Cancel(sess.ID)
		return nil
	}

	printCandidates(out, sess)

	index, ok := promptIndex(ctx, cmd.InOrStdin(), out, len(sess.Candidates))
	if !ok {
		_, _ = wizard.Cancel(sess.ID)
		fmt.Fprintln(out, "Abgebrochen, nichts verknüpft.")
		return nil
	}

	sess, err = wizard.Confirm(ctx, sess.ID, index)
	if err != nil {
		if errors.Is(err, reconciliation.ErrLinkFailed) {
			return errLinkFailed
		}
		return friendlyError(err, log)
	}

	linked := sess.Linked
	if linked.IsLocal() {
		fmt.Fprintf(out, "Verknüpft mit Rechnung %s.\n", linked.InvoiceNumber)
	} else {
		fmt.Fprintf(out, "Verknüpft mit Paperless-Dokument %s.\n", linked.Title)
	}
	return nil
}

func printCandidates(out io.Writer, sess reconciliation.Session) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tQuelle\tScore\tDatum\tBetrag\tBeschreibung")
	for i, c := range sess.Candidates {
		date, amount := "", ""
		if c.Date != nil {
			date = c.Date.Format("02.01.2006")
		}
		if c.Amount != nil {
			amount = numfmt.FormatAmount(*c.Amount)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n", i+1, c.Source, c.Score, date, amount, describe(c))
	}
	_ = tw.Flush()

	if rec := sess.Recommendation; rec != nil && rec.Matched {
		fmt.Fprintf(out, "\nEmpfehlung: #%d (%.0f%%) %s\n", rec.CandidateIndex+1, rec.Confidence*100, rec.Reason)
	}
}

func describe(c matching.Candidate) string {
	if c.IsLocal() {
		return strings.TrimSpace(c.InvoiceNumber + " " + c.Customer)
	}
	if c.Correspondent != "" {
		return c.Title + " (" + c.Correspondent + ")"
	}
	return c.Title
}

// promptIndex reads a 1-based candidate number. It gives up on an empty line,
// end of input or when ctx is cancelled.
func promptIndex(ctx context.Context, in io.Reader, out io.Writer, n int) (int, bool) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprintf(out, "\nKandidat verknüpfen (1-%d, Enter für Abbruch): ", n)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return 0, false
		case line, open := <-lines:
			line = strings.TrimSpace(line)
			if !open || line == "" {
				return 0, false
			}
			choice, err := strconv.Atoi(line)
			if err != nil || choice < 1 || choice > n {
				fmt.Fprintf(os.Stderr, "Ungültige Auswahl %q\n", line)
				continue
			}
			return choice - 1, true
		}
	}
}
