package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buchhaltung/internal/config"
	"buchhaltung/internal/logger"
	"buchhaltung/internal/matching"
	"buchhaltung/internal/reconciliation"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42", "transaction")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(bad, "invoice")
		assert.Error(t, err, bad)
	}
}

func TestPromptIndex(t *testing.T) {
	var out bytes.Buffer

	idx, ok := promptIndex(context.Background(), strings.NewReader("7\nx\n2\n"), &out, 3)

	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 3, strings.Count(out.String(), "Kandidat verknüpfen (1-3"))
}

func TestPromptIndexGivesUp(t *testing.T) {
	var out bytes.Buffer

	_, ok := promptIndex(context.Background(), strings.NewReader("\n"), &out, 2)
	assert.False(t, ok)

	_, ok = promptIndex(context.Background(), strings.NewReader(""), &out, 2)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = w.Close()
		_ = r.Close()
	})
	_, ok = promptIndex(ctx, r, &out, 2)
	assert.False(t, ok)
}

func TestPrintCandidates(t *testing.T) {
	amount := decimal.RequireFromString("2332.40")
	date := time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC)
	sess := reconciliation.Session{
		Candidates: []matching.Candidate{
			{Source: matching.SourceLocal, ReferenceID: 5, Score: 100, InvoiceNumber: "RE-2025-0042", Customer: "Beispiel GmbH", Amount: &amount, Date: &date},
			{Source: matching.SourcePaperless, ReferenceID: 14, Score: 40, Title: "Hetzner Online Rechnung", Correspondent: "Hetzner Online GmbH"},
		},
		Recommendation: &reconciliation.Recommendation{Matched: true, CandidateIndex: 0, Confidence: 0.9, Reason: "Betrag stimmt"},
	}
	var out bytes.Buffer

	printCandidates(&out, sess)

	text := out.String()
	assert.Contains(t, text, "RE-2025-0042 Beispiel GmbH")
	assert.Contains(t, text, "29.09.2025")
	assert.Contains(t, text, "Hetzner Online Rechnung (Hetzner Online GmbH)")
	assert.Contains(t, text, "Empfehlung: #1 (90%) Betrag stimmt")
}

func TestSearchFilters(t *testing.T) {
	c := &cobra.Command{}
	c.Flags().AddFlagSet(paperlessSearchCmd.Flags())
	require.NoError(t, c.Flags().Parse([]string{"--tags", "1, 2", "--after", "01.08.2025", "--correspondent", "4"}))

	f, err := searchFilters(c)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, f.TagIDs)
	assert.Equal(t, 4, f.CorrespondentID)
	require.NotNil(t, f.CreatedAfter)
	assert.Equal(t, time.August, f.CreatedAfter.Month())
	assert.Nil(t, f.CreatedBefore)
}

func TestSearchFiltersRejectsBadInput(t *testing.T) {
	c := &cobra.Command{}
	c.Flags().AddFlagSet(paperlessSearchCmd.Flags())
	require.NoError(t, c.Flags().Parse([]string{"--tags", "1,x"}))

	_, err := searchFilters(c)
	assert.Error(t, err)
}

func TestWriteJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, writeJSON(map[string]int{"imported": 3}, path, logger.WithComponent("test")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"imported": 3}`, string(data))
}

func TestValidateInputFile(t *testing.T) {
	log := logger.WithComponent("test")
	dir := t.TempDir()

	_, err := validateInputFile(filepath.Join(dir, "missing.pdf"), log)
	assert.ErrorContains(t, err, "file not found")

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = validateInputFile(empty, log)
	assert.ErrorContains(t, err, "file is empty")

	_, err = validateInputFile(dir, log)
	assert.ErrorContains(t, err, "not a regular file")

	ok := filepath.Join(dir, "statement.txt")
	require.NoError(t, os.WriteFile(ok, []byte("01.10.2025 Miete -950,00"), 0o644))
	info, err := validateInputFile(ok, log)
	require.NoError(t, err)
	assert.Equal(t, "statement.txt", info.Name())
}

func TestOptionalComponentsAreNilInterfaces(t *testing.T) {
	cfg := &config.Config{}

	assert.Nil(t, newArchive(cfg))
	provider, err := newProvider(cfg, logger.WithComponent("test"))
	require.NoError(t, err)
	assert.Nil(t, provider)
	assert.Nil(t, newRecommender(provider))
}

func TestRequireConfig(t *testing.T) {
	saved := appConfig
	t.Cleanup(func() { appConfig = saved })

	appConfig = nil
	_, err := requireConfig()
	assert.ErrorIs(t, err, errNoConfig)

	appConfig = &config.Config{}
	cfg, err := requireConfig()
	require.NoError(t, err)
	assert.Same(t, appConfig, cfg)
}
