// Package api is the JSON HTTP surface used by the bookkeeping UI.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"buchhaltung/internal/config"
	"buchhaltung/internal/document"
	"buchhaltung/internal/logger"
	"buchhaltung/internal/matching"
	"buchhaltung/internal/reconciliation"
	"buchhaltung/internal/statement"
	"buchhaltung/internal/store"
	"buchhaltung/pkg/models"
)

// StatementParser turns statement text into transactions.
type StatementParser interface {
	Parse(text string) []statement.ParsedTransaction
}

// TransactionImporter stores parsed transactions.
type TransactionImporter interface {
	ImportTransactions(ctx context.Context, records []statement.ParsedTransaction, skipDuplicates bool) statement.ImportSummary
}

// DocumentService parses and imports invoices and quotes.
type DocumentService interface {
	Parse(ctx context.Context, text string) document.ParsedDocument
	ImportDocument(ctx context.Context, doc document.ParsedDocument, kind document.Kind) document.ImportResult
}

// Reconciler finds and records matches between transactions and invoices.
type Reconciler interface {
	Transaction(ctx context.Context, id uint) (*models.BankTransaction, error)
	FindMatchingInvoices(ctx context.Context, tx models.BankTransaction) []matching.Candidate
	LinkTransactionToInvoice(ctx context.Context, txID, invoiceID uint) bool
	LinkTransactionToDocument(ctx context.Context, txID uint, documentID int, title string) bool
	FindMatchesForUnvalidatedTransactions(ctx context.Context, limit int) reconciliation.BatchSummary
}

// Services are the components behind the routes.
type Services struct {
	Statements StatementParser
	Importer   TransactionImporter
	Documents  DocumentService
	Engine     Reconciler
	Wizard     *reconciliation.Wizard
}

// Handler serves the API routes.
type Handler struct {
	Services

	// base outlives single requests; wizard sessions run on it.
	base           context.Context
	skipDuplicates bool
	batchLimit     int
	log            zerolog.Logger
}

// NewHandler creates a handler. Wizard sessions started through it end when
// base is cancelled.
func NewHandler(base context.Context, cfg *config.Config, s Services) *Handler {
	return &Handler{
		Services:       s,
		base:           base,
		skipDuplicates: cfg.Import.SkipDuplicates,
		batchLimit:     cfg.Matching.BatchLimit,
		log:            logger.WithComponent("api"),
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ImportStatement parses statement text and imports the transactions.
func (h *Handler) ImportStatement(c *gin.Context) {
	var payload struct {
		Text           string `json:"text" binding:"required"`
		SkipDuplicates *bool  `json:"skip_duplicates"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	skip := h.skipDuplicates
	if payload.SkipDuplicates != nil {
		skip = *payload.SkipDuplicates
	}

	records := h.Statements.Parse(payload.Text)
	summary := h.Importer.ImportTransactions(c.Request.Context(), records, skip)

	c.JSON(http.StatusOK, gin.H{
		"parsed":   len(records),
		"imported": summary.Imported,
		"skipped":  summary.Skipped,
		"errors":   summary.Errors,
		"total":    summary.Total,
		"batch_id": summary.BatchID,
	})
}

// ParseDocument returns the parsed invoice or quote for review.
func (h *Handler) ParseDocument(c *gin.Context) {
	var payload struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	c.JSON(http.StatusOK, h.Documents.Parse(c.Request.Context(), payload.Text))
}

// ImportDocument stores a reviewed document.
func (h *Handler) ImportDocument(c *gin.Context) {
	var payload struct {
		Document document.ParsedDocument `json:"document"`
		Type     document.Kind           `json:"type"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	kind := payload.Type
	if kind == "" {
		kind = payload.Document.Type
	}
	if kind != document.KindInvoice && kind != document.KindQuote {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be invoice or quote"})
		return
	}

	res := h.Documents.ImportDocument(c.Request.Context(), payload.Document, kind)
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": res.Error})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Matches lists the ranked candidates for one transaction.
func (h *Handler) Matches(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	tx, err := h.Engine.Transaction(c.Request.Context(), id)
	if err != nil {
		h.notFoundOr500(c, err, "transaction not found")
		return
	}

	candidates := h.Engine.FindMatchingInvoices(c.Request.Context(), *tx)
	if candidates == nil {
		candidates = []matching.Candidate{}
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx, "candidates": candidates})
}

// Link records a confirmed match with a local invoice or an archive document.
func (h *Handler) Link(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var payload struct {
		InvoiceID           *uint  `json:"invoice_id"`
		PaperlessDocumentID *int   `json:"paperless_document_id"`
		Title               string `json:"title"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	var success bool
	switch {
	case payload.InvoiceID != nil:
		success = h.Engine.LinkTransactionToInvoice(c.Request.Context(), id, *payload.InvoiceID)
	case payload.PaperlessDocumentID != nil:
		success = h.Engine.LinkTransactionToDocument(c.Request.Context(), id, *payload.PaperlessDocumentID, payload.Title)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invoice_id or paperless_document_id is required"})
		return
	}

	status := http.StatusOK
	if !success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"success": success})
}

// AutoLink runs the batch matcher over unvalidated income.
func (h *Handler) AutoLink(c *gin.Context) {
	limit := h.batchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		limit = n
	}

	c.JSON(http.StatusOK, h.Engine.FindMatchesForUnvalidatedTransactions(c.Request.Context(), limit))
}

// StartWizard opens a matching session for a transaction.
func (h *Handler) StartWizard(c *gin.Context) {
	var payload struct {
		TransactionID uint `json:"transaction_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	s, err := h.Wizard.Start(h.base, payload.TransactionID)
	if err != nil {
		h.notFoundOr500(c, err, "transaction not found")
		return
	}
	c.JSON(http.StatusCreated, sessionBody(s))
}

func (h *Handler) GetWizard(c *gin.Context) {
	s, err := h.Wizard.Get(c.Param("id"))
	if err != nil {
		h.wizardError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionBody(s))
}

// ConfirmWizard links the chosen candidate.
func (h *Handler) ConfirmWizard(c *gin.Context) {
	var payload struct {
		Index *int `json:"index" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	s, err := h.Wizard.Confirm(c.Request.Context(), c.Param("id"), *payload.Index)
	if err != nil {
		h.wizardError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionBody(s))
}

func (h *Handler) CancelWizard(c *gin.Context) {
	s, err := h.Wizard.Cancel(c.Param("id"))
	if err != nil {
		h.wizardError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionBody(s))
}

// sessionBody encodes an empty candidate list as [].
func sessionBody(s reconciliation.Session) reconciliation.Session {
	if s.Candidates == nil {
		s.Candidates = []matching.Candidate{}
	}
	return s
}

func (h *Handler) wizardError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, reconciliation.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reconciliation.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, reconciliation.ErrInvalidCandidate):
		status = http.StatusBadRequest
	case errors.Is(err, reconciliation.ErrLinkFailed):
		status = http.StatusUnprocessableEntity
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Wizard request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) notFoundOr500(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msg})
		return
	}
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return 0, false
	}
	return uint(id), true
}
