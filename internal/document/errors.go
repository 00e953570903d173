package document

import (
	"errors"
	"fmt"
)

// Common document processing errors
var (
	// ErrEmptyText is returned when a document yields no text to parse.
	ErrEmptyText = errors.New("document text is empty")

	// ErrMissingCustomer is returned when an import has neither a resolved
	// customer nor a name to create one from.
	ErrMissingCustomer = errors.New("document has no customer")

	// ErrUnsupportedKind is returned when importing a document that is neither
	// an invoice nor a quote.
	ErrUnsupportedKind = errors.New("only invoices and quotes can be imported")

	// ErrNumberExhausted is returned when the yearly number sequence cannot be continued.
	ErrNumberExhausted = errors.New("document number sequence cannot be continued")
)

// ImportError wraps import failures with the step that failed.
type ImportError struct {
	// Op is the import step that failed (e.g., "resolveCustomer", "nextNumber").
	Op string

	// Err is the underlying error.
	Err error

	// Number is the document number, when one was already assigned.
	Number string
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	if e.Number != "" {
		return fmt.Sprintf("document: %s failed (number: %s): %v", e.Op, e.Number, e.Err)
	}
	return fmt.Sprintf("document: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ImportError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapImportError wraps an error as an ImportError if it isn't already one.
func WrapImportError(op string, err error, number string) error {
	if err == nil {
		return nil
	}

	var importErr *ImportError
	if errors.As(err, &importErr) {
		return err // Already wrapped
	}

	return &ImportError{Op: op, Err: err, Number: number}
}
