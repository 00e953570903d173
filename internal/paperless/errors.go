package paperless

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no archive URL is configured.
var ErrNotConfigured = errors.New("paperless is not configured")

// StatusError is a non-2xx answer from the archive.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("paperless: %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}
