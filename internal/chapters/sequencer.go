package chapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/metrics"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
)

var (
	// ErrNothingToGenerate is returned once every chapter has been generated.
	ErrNothingToGenerate = errors.New("all chapters already generated")

	// ErrUnknownChapter is returned for chapter ids outside the sequence.
	ErrUnknownChapter = errors.New("unknown chapter")
)

// State is the chapter-generation progress of a run. Values are treated as
// immutable; every transition returns a new State.
type State struct {
	Sequence        []string                          `json:"sequence"`
	CurrentIndex    int                               `json:"current_index"`
	Completed       []string                          `json:"completed"`
	Generated       map[string]types.GeneratedChapter `json:"generated"`
	PreviousContext string                            `json:"previous_context"`
}

// NewState starts generation over the given chapter sequence.
func NewState(sequence []string) State {
	return State{
		Sequence:  slices.Clone(sequence),
		Generated: map[string]types.GeneratedChapter{},
	}
}

// Next returns the id of the next chapter to generate.
func (s State) Next() (string, bool) {
	if s.CurrentIndex >= len(s.Sequence) {
		return "", false
	}
	return s.Sequence[s.CurrentIndex], true
}

// BookComplete reports whether every chapter in the sequence is generated.
func (s State) BookComplete() bool {
	return len(s.Sequence) > 0 && s.CurrentIndex >= len(s.Sequence)
}

// Progress summarizes the state.
func (s State) Progress() types.RunProgress {
	return types.RunProgress{
		Completed:    len(s.Completed),
		Total:        len(s.Sequence),
		BookComplete: s.BookComplete(),
	}
}

// Chapters returns the generated chapters in sequence order.
func (s State) Chapters() []types.GeneratedChapter {
	out := make([]types.GeneratedChapter, 0, len(s.Completed))
	for _, id := range s.Sequence {
		if ch, ok := s.Generated[id]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Chapter returns one generated chapter.
func (s State) Chapter(id string) (types.GeneratedChapter, bool) {
	ch, ok := s.Generated[id]
	return ch, ok
}

func (s State) clone() State {
	c := s
	c.Sequence = slices.Clone(s.Sequence)
	c.Completed = slices.Clone(s.Completed)
	c.Generated = maps.Clone(s.Generated)
	if c.Generated == nil {
		c.Generated = map[string]types.GeneratedChapter{}
	}
	return c
}

// Edit replaces the content of a generated chapter and recounts its words.
// A non-nil nextContext replaces the chapter's hand-off summary; when the
// edited chapter is the most recent one, the rolling context follows it.
func (s State) Edit(id, content string, nextContext *string) (State, types.GeneratedChapter, error) {
	ch, ok := s.Generated[id]
	if !ok {
		return s, types.GeneratedChapter{}, fmt.Errorf("%w: %s has not been generated", ErrUnknownChapter, id)
	}

	next := s.clone()
	ch.SetContent(content)
	if nextContext != nil {
		ch.NextContext = *nextContext
	}
	next.Generated[id] = ch

	if next.CurrentIndex > 0 && next.Sequence[next.CurrentIndex-1] == id {
		next.PreviousContext = ch.NextContext
	}
	return next, ch, nil
}

// Config configures a Sequencer.
type Config struct {
	Runner      providers.Runner
	OperationID string
	Logger      *slog.Logger
	Metrics     metrics.Recorder
}

// Sequencer generates chapters one at a time.
type Sequencer struct {
	runner      providers.Runner
	operationID string
	logger      *slog.Logger
	metrics     metrics.Recorder
}

// NewSequencer creates a sequencer.
func NewSequencer(cfg Config) *Sequencer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{
		runner:      cfg.Runner,
		operationID: cfg.OperationID,
		logger:      logger.With("component", "chapters"),
		metrics:     metrics.OrNoop(cfg.Metrics),
	}
}

var chapterSchema = providers.MustCompileSchema("chapter", `{
	"type": "object",
	"required": ["generatedChapter"],
	"properties": {
		"generatedChapter": {
			"type": "object",
			"required": ["chapterTitle"],
			"properties": {
				"chapterTitle": {
					"type": "object",
					"minProperties": 1,
					"properties": {
						"contenido_capitulo": {"type": "string"}
					}
				}
			}
		}
	}
}`)

type chapterResponse struct {
	GeneratedChapter struct {
		Chapter chapterPayload `json:"chapterTitle"`
	} `json:"generatedChapter"`
}

type chapterPayload struct {
	Title          json.RawMessage `json:"chapterTitle"`
	Content        string          `json:"contenido_capitulo"`
	WordCount      json.RawMessage `json:"conteo_palabras"`
	UsedReferences json.RawMessage `json:"referencias_usadas"`
	NextContext    string          `json:"resumen_para_siguiente"`
}

// GenerateNext generates the chapter at the state's current index. On
// success it returns the advanced state; on failure st is returned
// unchanged so the same chapter can be attempted again.
func (s *Sequencer) GenerateNext(ctx context.Context, st State, skeleton types.Skeleton, compendio string, onChunk providers.ChunkFunc) (State, types.GeneratedChapter, error) {
	id, ok := st.Next()
	if !ok {
		return st, types.GeneratedChapter{}, ErrNothingToGenerate
	}

	logger := s.logger.With("chapter", id, "index", st.CurrentIndex+1, "total", len(st.Sequence))
	logger.Info("generating chapter")

	inputs := map[string]any{
		"Skeleton":          string(skeleton.Master),
		"CompendioMd":       compendio,
		"previous_context":  st.PreviousContext,
		"capituloConstruir": id,
	}
	res, err := s.runner.Run(ctx, s.operationID, inputs, onChunk)
	if err != nil {
		return st, types.GeneratedChapter{}, fmt.Errorf("chapter %s: %w", id, err)
	}

	var resp chapterResponse
	if err := res.DecodeValidated(chapterSchema, &resp); err != nil {
		return st, types.GeneratedChapter{}, fmt.Errorf("chapter %s: %w", id, err)
	}
	ch := toChapter(id, resp.GeneratedChapter.Chapter, skeleton)

	next := st.clone()
	next.Generated[id] = ch
	next.Completed = append(next.Completed, id)
	next.CurrentIndex++
	next.PreviousContext = ch.NextContext

	s.metrics.IncChaptersGenerated()
	logger.Info("chapter generated", "title", ch.Title, "words", ch.WordCount)
	return next, ch, nil
}

func toChapter(id string, p chapterPayload, skeleton types.Skeleton) types.GeneratedChapter {
	ch := types.GeneratedChapter{
		ID:             id,
		Title:          scalarText(p.Title),
		Content:        p.Content,
		UsedReferences: stringList(p.UsedReferences),
		NextContext:    p.NextContext,
	}
	if ch.Title == "" {
		ch.Title = id
		for _, d := range skeleton.Chapters {
			if d.ID == id {
				ch.Title = d.Title
				break
			}
		}
	}
	if n, ok := wordCount(p.WordCount); ok {
		ch.WordCount = n
	} else {
		ch.WordCount = types.CountWords(ch.Content)
	}
	return ch
}

// wordCount accepts a JSON number or a numeric string.
func wordCount(raw json.RawMessage) (int, bool) {
	text := strings.TrimSpace(scalarText(raw))
	if text == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 0 {
		return n, true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && f >= 0 {
		return int(f), true
	}
	return 0, false
}

// stringList accepts an array of strings, an array of arbitrary values
// (rendered as JSON) or a single string.
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s := scalarText(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := scalarText(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
