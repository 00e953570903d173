package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"buchhaltung/internal/ai"
	"buchhaltung/internal/config"
	"buchhaltung/internal/ocr"
	"buchhaltung/internal/paperless"
	"buchhaltung/internal/pdftext"
	"buchhaltung/internal/reconciliation"
	"buchhaltung/internal/store"
)

// repositories are the gorm backed stores shared by one command run.
type repositories struct {
	db           *gorm.DB
	transactions *store.TransactionRepository
	invoices     *store.InvoiceRepository
	customers    *store.CustomerRepository
}

func openRepositories(cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	db, err := store.Open(cfg.Database)
	if err != nil {
		log.Error().
			Err(err).
			Str("driver", cfg.Database.Driver).
			Msg("Failed to open database")
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Database.Driver, err)
	}

	return &repositories{
		db:           db,
		transactions: store.NewTransactionRepository(db),
		invoices:     store.NewInvoiceRepository(db),
		customers:    store.NewCustomerRepository(db),
	}, nil
}

func (r *repositories) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newArchive returns nil when no archive is configured, so the engine sees a
// nil interface rather than a nil client.
func newArchive(cfg *config.Config) reconciliation.Archive {
	if !cfg.Paperless.Enabled() {
		return nil
	}
	return paperless.NewClient(cfg.Paperless)
}

func newEngine(cfg *config.Config, repos *repositories) *reconciliation.Engine {
	return reconciliation.NewEngine(repos.transactions, repos.invoices, newArchive(cfg))
}

// newProvider returns a nil Provider when AI is disabled.
func newProvider(cfg *config.Config, log zerolog.Logger) (ai.Provider, error) {
	if !cfg.AI.Enabled() {
		log.Debug().Msg("No AI provider configured")
		return nil, nil
	}

	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		log.Error().
			Err(err).
			Str("provider", cfg.AI.Provider).
			Msg("Failed to create AI provider")
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}
	return provider, nil
}

// newRecommender is nil without a provider, which makes the wizard skip ranking.
func newRecommender(provider ai.Provider) reconciliation.Recommender {
	if provider == nil {
		return nil
	}
	return reconciliation.NewRanker(provider)
}

// newTextExtractor reads PDF text layers and falls back to Vision OCR when
// Google credentials are configured. The returned func releases the client.
func newTextExtractor(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pdftext.Extractor, func()) {
	if !cfg.Google.HasCredentials() {
		return pdftext.New(nil), func() {}
	}

	vision, err := ocr.NewGoogleVision(ctx, cfg.Google)
	if err != nil {
		log.Warn().
			Err(err).
			Msg("OCR unavailable, scanned PDFs will not be readable")
		return pdftext.New(nil), func() {}
	}
	return pdftext.New(vision), func() { _ = vision.Close() }
}

// commandContext creates a context cancelled by SIGINT/SIGTERM and, when
// timeout is positive, by the deadline.
func commandContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// validateInputFile checks that path is a readable, non-empty regular file.
// PDFs are also held to the OCR size limit.
func validateInputFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", path).
				Msg("File not found")
			return nil, fmt.Errorf("file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", path).
				Msg("Permission denied accessing file")
			return nil, fmt.Errorf("permission denied accessing file: %s", path)
		}
		return nil, fmt.Errorf("error accessing file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", path).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}

	if fileInfo.Size() == 0 {
		log.Error().
			Str("file", path).
			Msg("File is empty")
		return nil, fmt.Errorf("file is empty: %s", path)
	}

	if isPDF(path) && fileInfo.Size() > ocr.MaxFileSizeBytes {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxFileSizeBytes).
			Msg("PDF file exceeds maximum size limit")
		return nil, fmt.Errorf("PDF file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxFileSizeBytes)
	}

	return fileInfo, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func parseID(arg, what string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return uint(id), nil
}

// writeJSON prints v as indented JSON to stdout, or to outputPath when set.
func writeJSON(v any, outputPath string, log zerolog.Logger) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().
			Err(err).
			Msg("Failed to marshal output to JSON")
		return fmt.Errorf("failed to format output as JSON: %w", err)
	}

	if outputPath == "" {
		fmt.Println(string(jsonData))
		return nil
	}

	if err := os.WriteFile(outputPath, jsonData, 0o644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes_written", len(jsonData)).
		Msg("Results written to file")
	return nil
}

// friendlyError turns common failures into actionable messages.
func friendlyError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Command failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("operation timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("operation was canceled")
	case errors.Is(err, store.ErrNotFound):
		return err
	case errors.Is(err, paperless.ErrNotConfigured):
		return fmt.Errorf("Paperless-ngx is not configured. Set PAPERLESS_URL and PAPERLESS_TOKEN")
	case errors.Is(err, ai.ErrDisabled):
		return fmt.Errorf("no AI provider configured. Set AI_PROVIDER (openai, ollama or anthropic) and AI_API_KEY")
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured. Set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")
	case errors.Is(err, ocr.ErrPDFTooLarge):
		return fmt.Errorf("PDF file is too large (maximum 20MB). Try compressing or splitting the file")
	case errors.Is(err, ocr.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, ocr.ErrEmptyDocument), errors.Is(err, pdftext.ErrNoText):
		return fmt.Errorf("no readable text found in the document: %w", err)
	case errors.Is(err, ai.ErrProcessorNotFound):
		return fmt.Errorf("Document AI processor not found. Please check DOCUMENT_AI_PROCESSOR_ID")
	case errors.Is(err, ai.ErrQuotaExceeded),
		strings.Contains(errStr, "QUOTA_EXCEEDED"):
		return fmt.Errorf("Google Cloud quota exceeded. Check your project quotas in the Google Cloud Console")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your service account has the required Google Cloud roles")
	default:
		return err
	}
}
