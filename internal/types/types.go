// Package types provides shared value types used across multiple packages.
// This package has no dependencies on other chapterinator packages to avoid import cycles.
package types

import (
	"encoding/json"
	"strings"
)

// Document is a source file that has been pushed to a public blob host.
// Immutable once created by the upload chain.
type Document struct {
	Name      string `json:"name"`
	RemoteURL string `json:"remote_url"`
	MimeType  string `json:"mime_type"`
	Backend   string `json:"backend,omitempty"`    // Upload backend that accepted the file
	PageCount int    `json:"page_count,omitempty"` // Only known for PDFs
}

// FileInput returns the value the generation service expects for a file-typed input.
func (d Document) FileInput() map[string]any {
	return map[string]any{
		"type":      "file",
		"file_type": d.MimeType,
		"file_url":  d.RemoteURL,
		"file_name": d.Name,
	}
}

// MappingKind identifies one of the stage 2 mapping artifacts.
type MappingKind string

const (
	MappingReferences MappingKind = "references"
	MappingCitations  MappingKind = "citations"
	MappingTables     MappingKind = "tables"
	MappingCombined   MappingKind = "combined"
)

// MappingKinds lists mapping artifacts in production order.
var MappingKinds = []MappingKind{MappingReferences, MappingCitations, MappingTables, MappingCombined}

// ChapterDescriptor is one top-level entry of the skeleton's chapter list.
type ChapterDescriptor struct {
	ID        string   `json:"id"` // capitulo_N
	Title     string   `json:"title"`
	Subtopics []string `json:"subtopics,omitempty"`
	Raw       string   `json:"raw"` // Entry exactly as the skeleton listed it
}

// EstimatedMetrics are the size estimates reported alongside the skeleton.
// Values are kept as text because the service emits both numbers and ranges.
type EstimatedMetrics struct {
	TotalWords string `json:"total_words,omitempty"`
	TotalPages string `json:"total_pages,omitempty"`
}

// Skeleton is the master structure artifact produced by stage 3.
type Skeleton struct {
	// Master is the skeleton object exactly as the service returned it.
	// It is forwarded verbatim to chapter generation and final assembly.
	Master       json.RawMessage     `json:"master,omitempty"`
	Chapters     []ChapterDescriptor `json:"chapters"`
	NarrativeArc string              `json:"narrative_arc,omitempty"`
	Metrics      EstimatedMetrics    `json:"metrics"`
}

// IsZero reports whether no skeleton has been produced.
func (s Skeleton) IsZero() bool {
	return len(s.Master) == 0 && len(s.Chapters) == 0
}

// ChapterIDs returns the chapter identifiers in skeleton order.
func (s Skeleton) ChapterIDs() []string {
	ids := make([]string, len(s.Chapters))
	for i, ch := range s.Chapters {
		ids[i] = ch.ID
	}
	return ids
}

// GeneratedChapter is the output of one chapter generation step.
type GeneratedChapter struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	WordCount      int      `json:"word_count"`
	UsedReferences []string `json:"used_references,omitempty"`
	NextContext    string   `json:"next_context,omitempty"`
}

// SetContent replaces the chapter body and recomputes the word count.
func (c *GeneratedChapter) SetContent(content string) {
	c.Content = content
	c.WordCount = CountWords(content)
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// RunProgress is the derived chapter-generation progress of a run.
type RunProgress struct {
	Completed    int  `json:"completed"`
	Total        int  `json:"total"`
	BookComplete bool `json:"book_complete"`
}

// Fraction returns completed/total, or 0 when no chapters are planned.
func (p RunProgress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}
