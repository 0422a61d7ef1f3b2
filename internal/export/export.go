// Package export writes the artifacts of a pipeline run to disk.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/epub"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/pipeline"
)

// File names written by Write.
const (
	CompendioFile    = "compendio.md"
	ProjectBriefFile = "project_brief.md"
	MappingsFile     = "mappings.json"
	SkeletonFile     = "skeleton.json"
	ChaptersDir      = "chapters"
	EbookMarkdown    = "ebook.md"
	EbookHTML        = "ebook.html"
	EbookEPUB        = "ebook.epub"
	RunFile          = "run.json"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts markdown to an HTML fragment. GFM tables are supported.
func RenderHTML(source string) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// HTMLDocument renders markdown into a standalone HTML page.
func HTMLDocument(title, source string) ([]byte, error) {
	body, err := RenderHTML(source)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))
	buf.Write(body)
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// Write stores every artifact the run has produced under dir and returns
// the paths written. Artifacts that do not exist yet are skipped.
func Write(dir string, run *pipeline.Run) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if run.Compendio != "" {
		if err := write(CompendioFile, []byte(run.Compendio)); err != nil {
			return written, err
		}
	}
	if run.ProjectBrief != "" {
		if err := write(ProjectBriefFile, []byte(run.ProjectBrief)); err != nil {
			return written, err
		}
	}
	if len(run.Mappings) > 0 {
		data, err := json.MarshalIndent(run.Mappings, "", "  ")
		if err != nil {
			return written, err
		}
		if err := write(MappingsFile, data); err != nil {
			return written, err
		}
	}
	if !run.Skeleton.IsZero() {
		data, err := json.MarshalIndent(run.Skeleton, "", "  ")
		if err != nil {
			return written, err
		}
		if err := write(SkeletonFile, data); err != nil {
			return written, err
		}
	}
	for _, ch := range run.Chapters.Chapters() {
		body := fmt.Sprintf("# %s\n\n%s\n", ch.Title, ch.Content)
		if err := write(filepath.Join(ChaptersDir, ch.ID+".md"), []byte(body)); err != nil {
			return written, err
		}
	}
	if run.FinalEbook != "" {
		if err := write(EbookMarkdown, []byte(run.FinalEbook)); err != nil {
			return written, err
		}
		page, err := HTMLDocument(Title(run), run.FinalEbook)
		if err != nil {
			return written, err
		}
		if err := write(EbookHTML, page); err != nil {
			return written, err
		}
		book, err := EPUB(run)
		if err != nil {
			return written, err
		}
		if err := write(EbookEPUB, book); err != nil {
			return written, err
		}
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return written, err
	}
	if err := write(RunFile, data); err != nil {
		return written, err
	}
	return written, nil
}

// Title names the ebook after the requested topics.
func Title(run *pipeline.Run) string {
	if run.Structure != nil && run.Structure.Topics != "" {
		return run.Structure.Topics
	}
	return "Ebook " + run.ID
}

// EPUB packages the run's generated chapters as an ePub book.
func EPUB(run *pipeline.Run) ([]byte, error) {
	var chapters []epub.Chapter
	for i, ch := range run.Chapters.Chapters() {
		chapters = append(chapters, epub.Chapter{
			ID:       ch.ID,
			Number:   i + 1,
			Title:    ch.Title,
			Markdown: ch.Content,
		})
	}
	data, err := epub.NewBuilder(epub.Book{
		ID:          run.ID,
		Title:       Title(run),
		Description: run.Skeleton.NarrativeArc,
		CreatedAt:   run.CreatedAt,
	}, chapters).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to build epub: %w", err)
	}
	return data, nil
}
