package paperless

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buchhaltung/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.PaperlessConfig{BaseURL: srv.URL + "/", Token: "secret", Timeout: 2 * time.Second})
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/documents/", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Hetzner", q.Get("query"))
		assert.Equal(t, "4", q.Get("correspondent__id"))
		assert.Equal(t, "1,2", q.Get("tags__id__all"))
		assert.Equal(t, "2025-08-01", q.Get("created__date__gt"))
		assert.Equal(t, "25", q.Get("page_size"))

		_, _ = io.WriteString(w, `{"count":2,"next":null,"results":[
			{"id":11,"title":"Rechnung Hetzner","created":"2025-09-08","correspondent":4,"tags":[1,2],"content":"Hetzner Online GmbH"},
			{"id":12,"title":"Hetzner Invoice","created":"2025-09-09T10:15:00+02:00","correspondent":null,"tags":[]}
		]}`)
	})

	after := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	docs := c.Search(context.Background(), "Hetzner", SearchFilters{CorrespondentID: 4, TagIDs: []int{1, 2}, CreatedAfter: &after})

	require.Len(t, docs, 2)
	assert.Equal(t, 11, docs[0].ID)
	require.NotNil(t, docs[0].CreatedAt())
	assert.Equal(t, time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC), *docs[0].CreatedAt())
	require.NotNil(t, docs[0].Correspondent)
	assert.Equal(t, 4, *docs[0].Correspondent)
	assert.Nil(t, docs[1].Correspondent)
	assert.Equal(t, 9, docs[1].CreatedAt().Day())
}

func TestFailuresDegradeToEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Invalid token."}`, http.StatusUnauthorized)
	})
	ctx := context.Background()

	assert.Nil(t, c.Search(ctx, "x", SearchFilters{}))
	assert.Nil(t, c.Get(ctx, 1))
	assert.Nil(t, c.Download(ctx, 1))
	assert.False(t, c.Update(ctx, 1, map[string]any{"title": "x"}))
	assert.Nil(t, c.ListCorrespondents(ctx))
	assert.Nil(t, c.ListTags(ctx))
	assert.Empty(t, c.CorrespondentNames(ctx))
}

func TestStatusErrorCarriesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	err := c.do(context.Background(), http.MethodGet, "/api/documents/9/", nil, nil, nil)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, "not found", se.Body)
}

func TestUnreachableArchive(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(config.PaperlessConfig{BaseURL: srv.URL, Token: "t", Timeout: time.Second})

	assert.Nil(t, c.Search(context.Background(), "x", SearchFilters{}))
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(config.PaperlessConfig{})

	assert.False(t, c.Enabled())
	assert.ErrorIs(t, c.do(context.Background(), http.MethodGet, "/api/tags/", nil, nil, nil), ErrNotConfigured)
	assert.Nil(t, c.ListTags(context.Background()))
}

func TestGetAndDownload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/documents/7/":
			_, _ = io.WriteString(w, `{"id":7,"title":"Scan","created":null,"content":"Rechnung RE-2025-0042"}`)
		case "/api/documents/7/download/":
			assert.Equal(t, "true", r.URL.Query().Get("original"))
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = io.WriteString(w, "%PDF-1.7")
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	doc := c.Get(ctx, 7)
	require.NotNil(t, doc)
	assert.Equal(t, "Rechnung RE-2025-0042", doc.Content)
	assert.Nil(t, doc.CreatedAt())

	assert.Equal(t, []byte("%PDF-1.7"), c.Download(ctx, 7))
}

func TestUpdateSendsPatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/documents/5/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Rechnung RE-2025-0042", body["title"])
		_, _ = io.WriteString(w, `{"id":5}`)
	})

	assert.True(t, c.Update(context.Background(), 5, map[string]any{"title": "Rechnung RE-2025-0042"}))
}

func TestListFollowsPages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/correspondents/", r.URL.Path)
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = io.WriteString(w, `{"count":3,"next":"http://archive/api/correspondents/?page=2","results":[{"id":1,"name":"Hetzner"},{"id":2,"name":"Telekom"}]}`)
		default:
			_, _ = io.WriteString(w, `{"count":3,"next":null,"results":[{"id":3,"name":"Beispiel GmbH"}]}`)
		}
	})

	names := c.CorrespondentNames(context.Background())

	assert.Equal(t, map[int]string{1: "Hetzner", 2: "Telekom", 3: "Beispiel GmbH"}, names)
	assert.Equal(t, "http://example.invalid/documents/3/details", (&Client{baseURL: "http://example.invalid"}).DocumentURL(3))
}
