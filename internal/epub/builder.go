// Package epub packages generated chapters as an ePub 3.0 book.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultLanguage is used when Book.Language is empty.
const DefaultLanguage = "es"

// Book contains the metadata needed for epub generation.
type Book struct {
	ID          string // Run id; used as the identifier when it is a UUID
	Title       string
	Author      string
	Language    string // ISO 639-1 code
	Description string
	CreatedAt   time.Time
}

// Chapter is one generated chapter.
type Chapter struct {
	ID       string // capitulo_N; also the XHTML file name
	Number   int
	Title    string
	Markdown string
}

// Builder creates ePub 3.0 files.
type Builder struct {
	book       Book
	chapters   []Chapter
	identifier string
}

// NewBuilder creates a new epub builder.
func NewBuilder(book Book, chapters []Chapter) *Builder {
	if book.Language == "" {
		book.Language = DefaultLanguage
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}
	id, err := uuid.Parse(book.ID)
	if err != nil {
		id = uuid.New()
	}
	return &Builder{
		book:       book,
		chapters:   chapters,
		identifier: "urn:uuid:" + id.String(),
	}
}

// Build generates the epub and writes it to the specified path.
func (b *Builder) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return b.WriteTo(f)
}

// Bytes generates the epub in memory.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the epub to a writer.
func (b *Builder) WriteTo(w io.Writer) error {
	if len(b.chapters) == 0 {
		return fmt.Errorf("epub: no chapters")
	}

	zw := zip.NewWriter(w)

	// mimetype must be first and stored uncompressed
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		return err
	}

	files := []archiveFile{
		{"META-INF/container.xml", constant(containerXML)},
		{"OEBPS/content.opf", constant(b.generatePackage())},
		{"OEBPS/nav.xhtml", constant(b.generateNavigation())},
		{"OEBPS/toc.ncx", constant(b.generateNCX())},
		{"OEBPS/styles/style.css", constant(defaultStylesheet)},
	}
	for _, ch := range b.chapters {
		files = append(files, archiveFile{chapterPath(ch), func() (string, error) { return b.generateChapterXHTML(ch) }})
	}

	for _, f := range files {
		content, err := f.content()
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", f.name, err)
		}
		fw, err := zw.Create(f.name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", f.name, err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	return zw.Close()
}

// archiveFile is one entry of the zip, rendered lazily.
type archiveFile struct {
	name    string
	content func() (string, error)
}

func constant(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

// chapterPath is the chapter's location inside the archive.
func chapterPath(ch Chapter) string {
	return "OEBPS/" + chapterHref(ch)
}

func chapterHref(ch Chapter) string {
	return "chapters/" + ch.ID + ".xhtml"
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const defaultStylesheet = `/* Chapterinator ePub Stylesheet */

body {
  font-family: Georgia, "Times New Roman", serif;
  line-height: 1.6;
  margin: 1em;
  text-align: justify;
}

h1, h2, h3, h4 {
  font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
  text-align: left;
}

h1 {
  font-size: 1.8em;
  border-bottom: 1px solid #ccc;
  padding-bottom: 0.3em;
}

p {
  margin: 0.5em 0;
  text-indent: 1.5em;
}

h1 + p, h2 + p, h3 + p {
  text-indent: 0;
}

table {
  border-collapse: collapse;
  margin: 1em 0;
  width: 100%;
}

th, td {
  border: 1px solid #999;
  padding: 0.3em 0.5em;
}

blockquote {
  margin: 1em 2em;
  font-style: italic;
  border-left: 3px solid #ccc;
  padding-left: 1em;
}

.chapter-number {
  font-size: 0.9em;
  text-transform: uppercase;
  letter-spacing: 0.1em;
}
`
