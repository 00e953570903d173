package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrDisabled is returned when no AI provider is configured.
	ErrDisabled = errors.New("no AI provider configured")

	// ErrUnknownProvider is returned for provider names outside openai, ollama, anthropic.
	ErrUnknownProvider = errors.New("unknown AI provider")

	// ErrEmptyResponse is returned when the model answers without content.
	ErrEmptyResponse = errors.New("empty response from AI provider")

	// ErrInvalidJSON is returned when an answer cannot be decoded.
	ErrInvalidJSON = errors.New("AI response is not valid JSON")

	// ErrNoFields is returned when an extractor found nothing usable.
	ErrNoFields = errors.New("no fields extracted")

	// ErrInvalidCredentials is returned when Google Cloud rejects the credentials.
	ErrInvalidCredentials = errors.New("invalid Google Cloud credentials")

	// ErrInvalidConfiguration is returned when the Document AI configuration is incomplete.
	ErrInvalidConfiguration = errors.New("invalid Document AI configuration")

	// ErrProcessorNotFound is returned when the Document AI processor cannot be accessed.
	ErrProcessorNotFound = errors.New("Document AI processor not found")

	// ErrQuotaExceeded is returned when the Document AI quota is used up.
	ErrQuotaExceeded = errors.New("Document AI API quota exceeded")

	// ErrProcessingFailed is returned for any other Document AI failure.
	ErrProcessingFailed = errors.New("document AI processing failed")
)

// ExtractionError wraps errors with additional context about extraction failures.
type ExtractionError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// Backend names the provider or processor used, if known.
	Backend string
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	switch {
	case e.Details != "":
		return fmt.Sprintf("ai: %s failed: %s: %v", e.Op, e.Details, e.Err)
	case e.Backend != "":
		return fmt.Sprintf("ai: %s failed (backend: %s): %v", e.Op, e.Backend, e.Err)
	default:
		return fmt.Sprintf("ai: %s failed: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements error matching.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractionError wraps an error as an ExtractionError if it isn't already one.
func WrapExtractionError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return err
	}

	return &ExtractionError{Op: op, Err: err, Details: details}
}
