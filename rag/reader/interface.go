// Package reader loads candidate profiles and job description documents.
package reader

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound is returned when a document path does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrExtraction is returned when no text could be extracted.
	ErrExtraction = errors.New("text extraction failed")
)

// ProfileReader loads candidate profiles.
type ProfileReader interface {
	LoadProfiles(ctx context.Context) ([]Profile, error)
}

// TextExtractor returns the plain text of a document.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ReaderError ties a load failure to the file that caused it. Err is usually
// ErrDocumentNotFound or ErrExtraction, possibly wrapping the OS or parser error.
type ReaderError struct {
	Source  string
	Message string
	Err     error
}

func (e *ReaderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Source, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReaderError) Unwrap() error { return e.Err }

// NewReaderError creates a ReaderError.
func NewReaderError(source, message string, err error) *ReaderError {
	return &ReaderError{Source: source, Message: message, Err: err}
}
