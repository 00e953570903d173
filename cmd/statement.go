package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/sheets"
	"buchhaltung/internal/statement"
)

var statementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Import bank statements",
}

var statementImportCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Parse bank statements and store their transactions",
	Long: `Parse one or more bank statements (.pdf or .txt) and store the
transactions. Kontist statements are recognised; other layouts go through a
generic line parser. Scanned PDFs are read with Google Vision OCR when Google
credentials are configured.

With --sheet the bank rows of the configured Google spreadsheet
(GOOGLE_SHEET_URL) are imported as well.`,
	Example: `  # Import two monthly statements
  buchhaltung statement import 2025-09.pdf 2025-10.pdf

  # Show what would be imported without touching the database
  buchhaltung statement import 2025-10.pdf --dry-run

  # Import the bank sheet of the configured spreadsheet
  buchhaltung statement import --sheet`,
	RunE: runStatementImport,
}

type statementImportOutput struct {
	Parsed int `json:"parsed"`
	*statement.ImportSummary
	Transactions []statement.ParsedTransaction `json:"transactions,omitempty"`
}

func init() {
	rootCmd.AddCommand(statementCmd)
	statementCmd.AddCommand(statementImportCmd)

	statementImportCmd.Flags().Bool("sheet", false, "Also import the bank rows of the configured Google spreadsheet")
	statementImportCmd.Flags().String("sheet-name", "", "Sheet to read with --sheet (default: GOOGLE_SHEET_BANK)")
	statementImportCmd.Flags().Bool("skip-duplicates", true, "Skip transactions already stored (default: IMPORT_SKIP_DUPLICATES)")
	statementImportCmd.Flags().Bool("dry-run", false, "Parse only and print the transactions")
	statementImportCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	statementImportCmd.Flags().Int("timeout", 300, "Timeout in seconds")
}

func runStatementImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("statement")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	useSheet, _ := cmd.Flags().GetBool("sheet")
	sheetName, _ := cmd.Flags().GetString("sheet-name")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	skipDuplicates := cfg.Import.SkipDuplicates
	if cmd.Flags().Changed("skip-duplicates") {
		skipDuplicates, _ = cmd.Flags().GetBool("skip-duplicates")
	}
	if sheetName == "" {
		sheetName = cfg.Sheets.BankSheet
	}

	if len(args) == 0 && !useSheet {
		return fmt.Errorf("no statement files given and --sheet not set")
	}

	log.Info().
		Int("files", len(args)).
		Bool("sheet", useSheet).
		Bool("skip_duplicates", skipDuplicates).
		Bool("dry_run", dryRun).
		Msg("Starting statement import")

	for _, path := range args {
		if _, err := validateInputFile(path, log); err != nil {
			return err
		}
	}

	ctx, cancel := commandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	extractor, release := newTextExtractor(ctx, cfg, log)
	defer release()
	parser := statement.NewParser(extractor)

	var records []statement.ParsedTransaction
	for _, path := range args {
		parsed := parser.ParseFile(ctx, path)
		log.Info().
			Str("file", path).
			Int("transactions", len(parsed)).
			Msg("Statement parsed")
		records = append(records, parsed...)
	}

	if useSheet {
		sheetsService, err := sheets.NewSheetsService(ctx, cfg.Google, cfg.Sheets.URL)
		if err != nil {
			return friendlyError(err, log)
		}
		rows, err := statement.NewSheetReader(sheetsService).ReadTransactions(ctx, sheetName)
		if err != nil {
			return friendlyError(err, log)
		}
		records = append(records, rows...)
	}

	if len(records) == 0 {
		return statement.ErrNoTransactions
	}

	if dryRun {
		return writeJSON(statementImportOutput{Parsed: len(records), Transactions: records}, outputPath, log)
	}

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()

	summary := statement.NewImporter(repos.transactions).ImportTransactions(ctx, records, skipDuplicates)
	if err := ctx.Err(); err != nil {
		return friendlyError(err, log)
	}

	return writeJSON(statementImportOutput{Parsed: len(records), ImportSummary: &summary}, outputPath, log)
}
