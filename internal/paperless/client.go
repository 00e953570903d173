package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"buchhaltung/internal/config"
	"buchhaltung/internal/logger"
)

const (
	defaultPageSize = 25
	listPageSize    = 250
	maxListPages    = 20
	maxErrorBody    = 512
)

// Client talks to one Paperless-ngx instance with token authentication.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a client from the archive configuration. The request
// timeout applies to every call.
func NewClient(cfg config.PaperlessConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logger.WithComponent("paperless"),
	}
}

// Enabled reports whether an archive URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// DocumentURL is the web UI link of a document.
func (c *Client) DocumentURL(id int) string {
	return fmt.Sprintf("%s/documents/%d/details", c.baseURL, id)
}

// Search runs a full text query. It returns nil when the archive is
// unreachable or answers with an error.
func (c *Client) Search(ctx context.Context, query string, f SearchFilters) []Document {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	if f.CorrespondentID > 0 {
		params.Set("correspondent__id", strconv.Itoa(f.CorrespondentID))
	}
	if len(f.TagIDs) > 0 {
		ids := make([]string, len(f.TagIDs))
		for i, id := range f.TagIDs {
			ids[i] = strconv.Itoa(id)
		}
		params.Set("tags__id__all", strings.Join(ids, ","))
	}
	if f.CreatedAfter != nil {
		params.Set("created__date__gt", f.CreatedAfter.Format("2006-01-02"))
	}
	if f.CreatedBefore != nil {
		params.Set("created__date__lt", f.CreatedBefore.Format("2006-01-02"))
	}
	size := f.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	params.Set("page_size", strconv.Itoa(size))

	var res page[Document]
	if err := c.do(ctx, http.MethodGet, "/api/documents/", params, nil, &res); err != nil {
		c.log.Error().Err(err).Str("query", query).Msg("Document search failed")
		return nil
	}

	c.log.Debug().Str("query", query).Int("count", res.Count).Int("returned", len(res.Results)).Msg("Document search completed")
	return res.Results
}

// Get returns a document's metadata including its OCR content, or nil.
func (c *Client) Get(ctx context.Context, id int) *Document {
	var doc Document
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/documents/%d/", id), nil, nil, &doc); err != nil {
		c.log.Error().Err(err).Int("document_id", id).Msg("Failed to get document")
		return nil
	}
	return &doc
}

// Download returns the original file of a document, or nil.
func (c *Client) Download(ctx context.Context, id int) []byte {
	var buf bytes.Buffer
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/documents/%d/download/", id), url.Values{"original": {"true"}}, nil, &buf); err != nil {
		c.log.Error().Err(err).Int("document_id", id).Msg("Failed to download document")
		return nil
	}
	c.log.Debug().Int("document_id", id).Int("bytes", buf.Len()).Msg("Document downloaded")
	return buf.Bytes()
}

// Update patches document fields such as "title". It reports success.
func (c *Client) Update(ctx context.Context, id int, fields map[string]any) bool {
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/documents/%d/", id), nil, fields, nil); err != nil {
		c.log.Error().Err(err).Int("document_id", id).Msg("Failed to update document")
		return false
	}
	c.log.Info().Int("document_id", id).Interface("fields", fields).Msg("Document updated")
	return true
}

// ListCorrespondents returns all correspondents, or nil.
func (c *Client) ListCorrespondents(ctx context.Context) []Correspondent {
	out, err := listAll[Correspondent](ctx, c, "/api/correspondents/")
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to list correspondents")
		return nil
	}
	return out
}

// ListTags returns all tags, or nil.
func (c *Client) ListTags(ctx context.Context) []Tag {
	out, err := listAll[Tag](ctx, c, "/api/tags/")
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to list tags")
		return nil
	}
	return out
}

// CorrespondentNames maps correspondent ids to names.
func (c *Client) CorrespondentNames(ctx context.Context) map[int]string {
	names := make(map[int]string)
	for _, cor := range c.ListCorrespondents(ctx) {
		names[cor.ID] = cor.Name
	}
	return names
}

func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	params := url.Values{"page_size": {strconv.Itoa(listPageSize)}}
	for pageNo := 1; pageNo <= maxListPages; pageNo++ {
		params.Set("page", strconv.Itoa(pageNo))
		var res page[T]
		if err := c.do(ctx, http.MethodGet, path, params, nil, &res); err != nil {
			return nil, err
		}
		out = append(out, res.Results...)
		if res.Next == nil || *res.Next == "" {
			break
		}
	}
	return out, nil
}

// do sends one request. out may be a *bytes.Buffer for raw bodies, a value
// to decode JSON into, or nil.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	const op = "do"

	if !c.Enabled() {
		return ErrNotConfigured
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json; version=5")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s %s: %w", op, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	switch dst := out.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		if _, err := io.Copy(dst, resp.Body); err != nil {
			return fmt.Errorf("%s: failed to read body: %w", op, err)
		}
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: failed to decode %s: %w", op, path, err)
		}
		return nil
	}
}
