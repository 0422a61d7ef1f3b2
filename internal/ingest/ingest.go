// Package ingest reads source documents and checks them before upload.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/upload"
)

// MaxDocumentSize caps documents accepted for upload.
const MaxDocumentSize = 100 << 20

const (
	MimePDF      = "application/pdf"
	MimeMarkdown = "text/markdown"
	MimeText     = "text/plain"
)

var (
	// ErrEmptyDocument is returned for a zero-length document.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrTooLarge is returned when a document exceeds MaxDocumentSize.
	ErrTooLarge = errors.New("document too large")
	// ErrUnsupportedType is returned for documents that are not PDF or text.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrInvalidPDF is returned when a PDF cannot be parsed.
	ErrInvalidPDF = errors.New("invalid PDF")
)

// Source is a document ready to hand to the upload chain.
type Source struct {
	upload.File
	PageCount int // pages in a PDF; 0 for text documents
}

// ReadFile loads and checks a document from disk.
func ReadFile(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("document not found: %w", err)
	}
	if info.Size() > MaxDocumentSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, filepath.Base(path), info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return FromBytes(filepath.Base(path), data)
}

// FromReader loads and checks a document from r, e.g. a multipart upload.
func FromReader(name string, r io.Reader) (*Source, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, name)
	}
	return FromBytes(name, data)
}

// FromBytes detects the document type and validates PDFs.
func FromBytes(name string, data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}

	mimeType, err := DetectType(name, data)
	if err != nil {
		return nil, err
	}

	src := &Source{File: upload.File{Name: name, MimeType: mimeType, Data: data}}
	if mimeType == MimePDF {
		pages, err := CountPages(data)
		if err != nil {
			return nil, err
		}
		src.PageCount = pages
	}
	return src, nil
}

// DetectType returns the document's mime type from its content, falling
// back to the file extension for text formats.
func DetectType(name string, data []byte) (string, error) {
	sniffed := http.DetectContentType(data)
	if sniffed == MimePDF {
		return MimePDF, nil
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".md", ".markdown":
		return MimeMarkdown, nil
	case ".pdf":
		// Extension says PDF but the header does not.
		return "", fmt.Errorf("%w: %s has no PDF header", ErrInvalidPDF, name)
	}

	if strings.HasPrefix(sniffed, "text/plain") {
		if byExt := mime.TypeByExtension(ext); byExt != "" && strings.HasPrefix(byExt, "text/") {
			return strings.SplitN(byExt, ";", 2)[0], nil
		}
		return MimeText, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, name, sniffed)
}

// CountPages parses a PDF and returns its page count.
func CountPages(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if pages == 0 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	return pages, nil
}
