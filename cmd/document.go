package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"buchhaltung/internal/ai"
	"buchhaltung/internal/config"
	"buchhaltung/internal/document"
	"buchhaltung/internal/logger"
	"buchhaltung/internal/paperless"
	"buchhaltung/internal/pdftext"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Parse and import invoices and quotes",
}

var documentParseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse an invoice or quote and print the result",
	Long: `Parse a German invoice or quote (.pdf or .txt) with the pattern parser.
The amounts are cross-checked and the customer is resolved against the
database, but nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentParse,
}

var documentImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Store an invoice or quote",
	Long: `Parse an invoice or quote and store it with its customer. A missing
number is generated (RE-YYYY-NNNN or AN-YYYY-NNNN).

With --paperless-id the document is read from Paperless-ngx instead of a file,
linked to the stored invoice and retitled in the archive.`,
	Example: `  buchhaltung document import rechnung.pdf
  buchhaltung document import angebot.txt --type quote
  buchhaltung document import --paperless-id 314`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDocumentImport,
}

var documentExtractCmd = &cobra.Command{
	Use:   "extract [pdf-file]",
	Short: "Extract document fields with AI for review",
	Long: `Run the configured AI extractor (AI_EXTRACTOR=prompt or documentai) on a
PDF and print the raw fields together with the document built from them. When
extraction fails the pattern parser result is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentExtract,
}

type documentExtractOutput struct {
	Source   string                  `json:"source"`
	Fields   map[string]any          `json:"fields,omitempty"`
	Document document.ParsedDocument `json:"document"`
	Error    string                  `json:"extraction_error,omitempty"`
}

func init() {
	rootCmd.AddCommand(documentCmd)
	documentCmd.AddCommand(documentParseCmd, documentImportCmd, documentExtractCmd)

	for _, c := range []*cobra.Command{documentParseCmd, documentImportCmd, documentExtractCmd} {
		c.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
		c.Flags().Int("timeout", 120, "Timeout in seconds")
	}
	documentImportCmd.Flags().String("type", "", "Document type: invoice or quote (default: detected)")
	documentImportCmd.Flags().Int("paperless-id", 0, "Import a Paperless-ngx document instead of a file")
}

func runDocumentParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("document")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if _, err := validateInputFile(args[0], log); err != nil {
		return err
	}

	ctx, cancel := commandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	extractor, release := newTextExtractor(ctx, cfg, log)
	defer release()

	text, err := extractor.ExtractText(ctx, args[0])
	if err != nil {
		return friendlyError(err, log)
	}

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()

	doc := document.NewService(repos.customers, repos.invoices).Parse(ctx, text)
	return writeJSON(doc, outputPath, log)
}

func runDocumentImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("document")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	typeFlag, _ := cmd.Flags().GetString("type")
	paperlessID, _ := cmd.Flags().GetInt("paperless-id")

	if (len(args) == 0) == (paperlessID == 0) {
		return fmt.Errorf("give either a file or --paperless-id")
	}

	ctx, cancel := commandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	extractor, release := newTextExtractor(ctx, cfg, log)
	defer release()

	var (
		text    string
		archive *paperless.Client
	)
	if paperlessID > 0 {
		if !cfg.Paperless.Enabled() {
			return friendlyError(paperless.ErrNotConfigured, log)
		}
		archive = paperless.NewClient(cfg.Paperless)
		text, err = archivedText(ctx, archive, extractor, paperlessID)
	} else {
		if _, err := validateInputFile(args[0], log); err != nil {
			return err
		}
		text, err = extractor.ExtractText(ctx, args[0])
	}
	if err != nil {
		return friendlyError(err, log)
	}

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()

	svc := document.NewService(repos.customers, repos.invoices)
	doc := svc.Parse(ctx, text)

	kind := doc.Type
	if typeFlag != "" {
		kind = document.Kind(typeFlag)
	}
	if kind != document.KindInvoice && kind != document.KindQuote {
		return fmt.Errorf("could not tell whether this is an invoice or a quote, set --type")
	}
	if paperlessID > 0 {
		doc.PaperlessDocumentID = &paperlessID
	}

	log.Info().
		Str("type", string(kind)).
		Str("number", doc.Number).
		Str("customer", doc.Customer.Name).
		Int("warnings", len(doc.Warnings)).
		Msg("Importing document")

	res := svc.ImportDocument(ctx, doc, kind)
	if !res.Success {
		return fmt.Errorf("document import failed: %s", res.Error)
	}

	if archive != nil {
		retitleArchived(ctx, archive, paperlessID, kind, res.Number, log)
	}

	return writeJSON(res, outputPath, log)
}

// archivedText reads the OCR content Paperless keeps for a document and
// extracts the original file only when that content is empty.
func archivedText(ctx context.Context, archive *paperless.Client, extractor *pdftext.Extractor, id int) (string, error) {
	doc := archive.Get(ctx, id)
	if doc == nil {
		return "", fmt.Errorf("paperless document %d could not be loaded", id)
	}
	if doc.Content != "" {
		return doc.Content, nil
	}

	data := archive.Download(ctx, id)
	if data == nil {
		return "", fmt.Errorf("paperless document %d has no content and could not be downloaded", id)
	}
	return extractor.FromBytes(ctx, data)
}

func retitleArchived(ctx context.Context, archive *paperless.Client, id int, kind document.Kind, number string, log zerolog.Logger) {
	title := "Rechnung " + number
	if kind == document.KindQuote {
		title = "Angebot " + number
	}
	if !archive.Update(ctx, id, map[string]any{"title": title}) {
		log.Warn().
			Int("document_id", id).
			Str("title", title).
			Msg("Document imported but the archive title was not updated")
	}
}

func runDocumentExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("document-extract")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]
	if _, err := validateInputFile(pdfPath, log); err != nil {
		return err
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", pdfPath, err)
	}

	ctx, cancel := commandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	extractor, release := newTextExtractor(ctx, cfg, log)
	defer release()

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()
	svc := document.NewService(repos.customers, repos.invoices)

	start := time.Now()
	fields, extractErr := extractFields(ctx, cfg, extractor, data, log)
	if extractErr == nil {
		log.Info().
			Int("fields", len(fields)).
			Dur("duration", time.Since(start)).
			Msg("AI extraction completed")
		return writeJSON(documentExtractOutput{
			Source:   cfg.AI.Extractor,
			Fields:   fields,
			Document: svc.ParseFields(ctx, fields),
		}, outputPath, log)
	}

	log.Warn().
		Err(extractErr).
		Msg("AI extraction failed, falling back to the pattern parser")

	text, err := extractor.FromBytes(ctx, data)
	if err != nil {
		return friendlyError(err, log)
	}
	return writeJSON(documentExtractOutput{
		Source:   "parser",
		Document: svc.Parse(ctx, text),
		Error:    extractErr.Error(),
	}, outputPath, log)
}

func extractFields(ctx context.Context, cfg *config.Config, text ai.TextSource, pdf []byte, log zerolog.Logger) (map[string]any, error) {
	provider, err := newProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	fe, err := ai.NewFieldExtractor(ctx, cfg, provider, text)
	if err != nil {
		return nil, err
	}
	if closer, ok := fe.(io.Closer); ok {
		defer closer.Close()
	}

	return fe.ExtractFields(ctx, pdf)
}
