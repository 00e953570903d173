package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buchhaltung/internal/config"
	"buchhaltung/internal/document"
	"buchhaltung/internal/matching"
	"buchhaltung/internal/reconciliation"
	"buchhaltung/internal/statement"
	"buchhaltung/internal/store"
	"buchhaltung/pkg/models"
)

type fakeStatements struct{ records []statement.ParsedTransaction }

func (f *fakeStatements) Parse(text string) []statement.ParsedTransaction { return f.records }

type fakeImporter struct {
	skip  *bool
	count int
}

func (f *fakeImporter) ImportTransactions(ctx context.Context, records []statement.ParsedTransaction, skipDuplicates bool) statement.ImportSummary {
	f.skip = &skipDuplicates
	return statement.ImportSummary{Imported: len(records) - 1, Skipped: 1, Total: len(records), BatchID: "batch-1"}
}

type fakeDocuments struct {
	imported []document.Kind
	result   document.ImportResult
}

func (f *fakeDocuments) Parse(ctx context.Context, text string) document.ParsedDocument {
	id := uint(3)
	return document.ParsedDocument{Type: document.KindInvoice, Number: "RE-2025-0042", Customer: document.ParsedCustomer{Name: "Beispiel GmbH"}, CustomerID: &id}
}

func (f *fakeDocuments) ImportDocument(ctx context.Context, doc document.ParsedDocument, kind document.Kind) document.ImportResult {
	f.imported = append(f.imported, kind)
	return f.result
}

type fakeEngine struct {
	mu         sync.Mutex
	candidates []matching.Candidate
	invoiceIDs []uint
	documents  []string
	linkOK     bool
	limit      int
}

func (f *fakeEngine) Transaction(ctx context.Context, id uint) (*models.BankTransaction, error) {
	if id != 7 {
		return nil, fmt.Errorf("lookup: %w", store.ErrNotFound)
	}
	return &models.BankTransaction{ID: 7, Amount: decimal.RequireFromString("2332.40")}, nil
}

func (f *fakeEngine) FindMatchingInvoices(ctx context.Context, tx models.BankTransaction) []matching.Candidate {
	return f.candidates
}

func (f *fakeEngine) LinkTransactionToInvoice(ctx context.Context, txID, invoiceID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoiceIDs = append(f.invoiceIDs, invoiceID)
	return f.linkOK
}

func (f *fakeEngine) LinkTransactionToDocument(ctx context.Context, txID uint, documentID int, title string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, fmt.Sprintf("%d:%s", documentID, title))
	return f.linkOK
}

func (f *fakeEngine) FindMatchesForUnvalidatedTransactions(ctx context.Context, limit int) reconciliation.BatchSummary {
	f.limit = limit
	return reconciliation.BatchSummary{Processed: 2, MatchesFound: 2, AutoLinked: 1}
}

type testServer struct {
	router    *gin.Engine
	engine    *fakeEngine
	importer  *fakeImporter
	documents *fakeDocuments
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	total := decimal.RequireFromString("2332.40")
	engine := &fakeEngine{
		linkOK: true,
		candidates: []matching.Candidate{
			{Source: matching.SourceLocal, ReferenceID: 1, Score: 100, InvoiceNumber: "RE-2025-0042", Customer: "Beispiel GmbH", Amount: &total},
			{Source: matching.SourcePaperless, ReferenceID: 11, Score: 35, Title: "Hetzner Rechnung"},
		},
	}
	ts := &testServer{
		engine:    engine,
		importer:  &fakeImporter{},
		documents: &fakeDocuments{result: document.ImportResult{Success: true, ID: 4, Number: "RE-2025-0042", Customer: "Beispiel GmbH"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		Server:   config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Import:   config.ImportConfig{SkipDuplicates: true},
		Matching: config.MatchingConfig{BatchLimit: 50},
	}
	h := NewHandler(ctx, cfg, Services{
		Statements: &fakeStatements{records: make([]statement.ParsedTransaction, 3)},
		Importer:   ts.importer,
		Documents:  ts.documents,
		Engine:     engine,
		Wizard:     reconciliation.NewWizard(engine, nil),
	})
	ts.router = NewRouter(cfg.Server, h)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	rec, body := newTestServer(t).do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestImportStatement(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/statements/import", gin.H{"text": "irrelevant", "skip_duplicates": false})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["parsed"])
	assert.EqualValues(t, 2, body["imported"])
	assert.EqualValues(t, 1, body["skipped"])
	assert.Equal(t, "batch-1", body["batch_id"])
	require.NotNil(t, ts.importer.skip)
	assert.False(t, *ts.importer.skip)

	ts.do(t, http.MethodPost, "/api/statements/import", gin.H{"text": "irrelevant"})
	assert.True(t, *ts.importer.skip)

	rec, _ = ts.do(t, http.MethodPost, "/api/statements/import", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/documents/parse", gin.H{"text": "Rechnung RE-2025-0042"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RE-2025-0042", body["number"])
	assert.EqualValues(t, 3, body["customer_id"])

	rec, body = ts.do(t, http.MethodPost, "/api/documents/import", gin.H{"document": gin.H{"type": "quote"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 4, body["id"])

	rec, _ = ts.do(t, http.MethodPost, "/api/documents/import", gin.H{"document": gin.H{}, "type": "invoice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []document.Kind{document.KindQuote, document.KindInvoice}, ts.documents.imported)

	rec, _ = ts.do(t, http.MethodPost, "/api/documents/import", gin.H{"document": gin.H{}, "type": "unknown"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.documents.result = document.ImportResult{Error: "document: createInvoice failed"}
	rec, body = ts.do(t, http.MethodPost, "/api/documents/import", gin.H{"document": gin.H{}, "type": "invoice"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "document: createInvoice failed", body["error"])
}

func TestMatches(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/transactions/7/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	candidates := body["candidates"].([]any)
	require.Len(t, candidates, 2)
	first := candidates[0].(map[string]any)
	assert.Equal(t, "local", first["type"])
	assert.EqualValues(t, 100, first["score"])
	assert.Equal(t, "paperless", candidates[1].(map[string]any)["type"])

	ts.engine.candidates = nil
	rec, _ = ts.do(t, http.MethodGet, "/api/transactions/7/matches", nil)
	assert.Contains(t, rec.Body.String(), `"candidates":[]`)

	rec, _ = ts.do(t, http.MethodGet, "/api/transactions/8/matches", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/transactions/abc/matches", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLink(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/transactions/7/link", gin.H{"invoice_id": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, _ = ts.do(t, http.MethodPost, "/api/transactions/7/link", gin.H{"paperless_document_id": 11, "title": "Hetzner Rechnung"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint{1}, ts.engine.invoiceIDs)
	assert.Equal(t, []string{"11:Hetzner Rechnung"}, ts.engine.documents)

	rec, _ = ts.do(t, http.MethodPost, "/api/transactions/7/link", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.engine.linkOK = false
	rec, body = ts.do(t, http.MethodPost, "/api/transactions/7/link", gin.H{"invoice_id": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestAutoLink(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/reconciliation/auto-link", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, ts.engine.limit)
	assert.EqualValues(t, 2, body["processed"])
	assert.EqualValues(t, 2, body["matches_found"])
	assert.EqualValues(t, 1, body["auto_linked"])

	ts.do(t, http.MethodPost, "/api/reconciliation/auto-link?limit=5", nil)
	assert.Equal(t, 5, ts.engine.limit)

	rec, _ = ts.do(t, http.MethodPost, "/api/reconciliation/auto-link?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWizardFlow(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/wizard", gin.H{"transaction_id": 7})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["id"].(string)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		_, body := ts.do(t, http.MethodGet, "/api/wizard/"+id, nil)
		return body["state"] == string(reconciliation.StateAwaitingConfirmation)
	}, 5*time.Second, 10*time.Millisecond)

	rec, _ = ts.do(t, http.MethodPost, "/api/wizard/"+id+"/confirm", gin.H{"index": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = ts.do(t, http.MethodPost, "/api/wizard/"+id+"/confirm", gin.H{"index": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(reconciliation.StateCompleted), body["state"])
	assert.Equal(t, []string{"11:Hetzner Rechnung"}, ts.engine.documents)

	rec, _ = ts.do(t, http.MethodPost, "/api/wizard/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/wizard/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/wizard", gin.H{"transaction_id": 8})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWizardCancel(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.candidates = nil

	_, body := ts.do(t, http.MethodPost, "/api/wizard", gin.H{"transaction_id": 7})
	id := body["id"].(string)

	rec, body := ts.do(t, http.MethodPost, "/api/wizard/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(reconciliation.StateCancelled), body["state"])
	assert.Contains(t, rec.Body.String(), `"candidates":[]`)
}
