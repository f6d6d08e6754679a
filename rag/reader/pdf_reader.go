package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DocumentReader extracts job description text from PDF and plain text
// files. Any extension other than .pdf is read as UTF-8 text.
type DocumentReader struct {
	// MaxBytes bounds plain text reads. Zero means no limit.
	MaxBytes int64
}

// NewDocumentReader creates a new DocumentReader.
func NewDocumentReader() *DocumentReader {
	return &DocumentReader{MaxBytes: 10 << 20}
}

// Extract returns the trimmed text of the document at path. A missing path
// fails with ErrDocumentNotFound before anything is parsed; unreadable or
// empty documents fail with ErrExtraction.
func (r *DocumentReader) Extract(ctx context.Context, path string) (string, error) {
	path, info, err := statDocument(path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var text string
	if strings.ToLower(filepath.Ext(path)) == ".pdf" {
		text, err = extractPDF(path)
	} else {
		text, err = r.extractText(path, info.Size())
	}
	if err != nil {
		return "", NewReaderError(path, "failed to extract text", fmt.Errorf("%w: %w", ErrExtraction, err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", NewReaderError(path, "document has no text", ErrExtraction)
	}
	return text, nil
}

// CheckDocument reports whether path names a readable regular file. Paths
// pasted with surrounding quotes are accepted.
func CheckDocument(path string) error {
	_, _, err := statDocument(path)
	return err
}

func statDocument(path string) (string, os.FileInfo, error) {
	path = strings.TrimSpace(strings.Trim(strings.TrimSpace(path), `"'`))
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return path, nil, NewReaderError(path, "no such file", ErrDocumentNotFound)
		}
		return path, nil, NewReaderError(path, "failed to stat file", err)
	}
	if info.IsDir() {
		return path, nil, NewReaderError(path, "path is a directory", ErrDocumentNotFound)
	}
	return path, info, nil
}

func (r *DocumentReader) extractText(path string, size int64) (string, error) {
	if r.MaxBytes > 0 && size > r.MaxBytes {
		return "", fmt.Errorf("file is %d bytes, limit is %d", size, r.MaxBytes)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// extractPDF joins the plain text of every page.
func extractPDF(path string) (text string, err error) {
	// the pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, pdfReader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	var textBuilder strings.Builder
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Try to continue with other pages
			continue
		}

		pageText = strings.TrimSpace(pageText)
		if pageText != "" {
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n\n")
			}
			textBuilder.WriteString(pageText)
		}
	}
	return textBuilder.String(), nil
}

var _ TextExtractor = (*DocumentReader)(nil)
