// Package chapters turns a book skeleton into an ordered chapter sequence
// and generates chapters one at a time, threading a rolling context.
package chapters

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
)

// subtopicSep separates the chapter title from its subtopics in an entry.
const subtopicSep = "|"

var skeletonSchema = providers.MustCompileSchema("skeleton", `{
	"type": "object",
	"required": ["EsqueletoMaestro"],
	"properties": {
		"EsqueletoMaestro": {
			"type": "object",
			"required": ["esqueletoLogica"],
			"properties": {
				"esqueletoLogica": {
					"type": "object",
					"required": ["estructura_capitulos"],
					"properties": {
						"estructura_capitulos": {
							"type": "array",
							"minItems": 1,
							"items": {"type": "string"}
						},
						"arco_narrativo": {"type": "string"}
					}
				}
			}
		}
	}
}`)

type skeletonResponse struct {
	Master json.RawMessage `json:"EsqueletoMaestro"`
}

type masterSkeleton struct {
	Logic struct {
		Chapters     []string `json:"estructura_capitulos"`
		NarrativeArc string   `json:"arco_narrativo"`
	} `json:"esqueletoLogica"`
	Metrics struct {
		TotalWords json.RawMessage `json:"palabras_totales"`
		TotalPages json.RawMessage `json:"paginas_totales"`
	} `json:"metricas_estimadas"`
}

// ParseSkeleton validates a skeleton-generation result and derives the
// chapter descriptors from it.
func ParseSkeleton(res *providers.Result) (types.Skeleton, error) {
	var resp skeletonResponse
	if err := res.DecodeValidated(skeletonSchema, &resp); err != nil {
		return types.Skeleton{}, err
	}
	return SkeletonFromMaster(resp.Master)
}

// SkeletonFromMaster builds a Skeleton from the EsqueletoMaestro object.
func SkeletonFromMaster(master json.RawMessage) (types.Skeleton, error) {
	var m masterSkeleton
	if err := json.Unmarshal(master, &m); err != nil {
		return types.Skeleton{}, fmt.Errorf("%w: skeleton: %v", providers.ErrMalformedResponse, err)
	}

	chapters := Descriptors(m.Logic.Chapters)
	if len(chapters) == 0 {
		return types.Skeleton{}, fmt.Errorf("%w: skeleton lists no chapters", providers.ErrMalformedResponse)
	}

	return types.Skeleton{
		Master:       master,
		Chapters:     chapters,
		NarrativeArc: m.Logic.NarrativeArc,
		Metrics: types.EstimatedMetrics{
			TotalWords: scalarText(m.Metrics.TotalWords),
			TotalPages: scalarText(m.Metrics.TotalPages),
		},
	}, nil
}

// Descriptors derives one descriptor per top-level entry.
//
// A line starting with a space or tab is a subtopic of the chapter above
// it. Otherwise the line is a chapter: its first "|" segment is the title
// and any further segments are subtopics. Entries may span several lines.
func Descriptors(entries []string) []types.ChapterDescriptor {
	var out []types.ChapterDescriptor
	for _, entry := range entries {
		for _, line := range strings.Split(entry, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			indented := line[0] == ' ' || line[0] == '\t'
			if indented && len(out) > 0 {
				last := &out[len(out)-1]
				last.Subtopics = append(last.Subtopics, trimBullet(line))
				last.Raw += "\n" + line
				continue
			}

			parts := splitSegments(line)
			if len(parts) == 0 {
				continue
			}
			out = append(out, types.ChapterDescriptor{
				ID:        ChapterID(len(out) + 1),
				Title:     parts[0],
				Subtopics: parts[1:],
				Raw:       strings.TrimRight(line, " \t\r"),
			})
		}
	}
	return out
}

// ChapterID returns the identifier of the n-th chapter (1-based).
func ChapterID(n int) string {
	return "capitulo_" + strconv.Itoa(n)
}

// Entry renders a chapter back into the skeleton's entry format.
func Entry(title string, subtopics []string) string {
	parts := []string{strings.TrimSpace(title)}
	for _, s := range subtopics {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "+subtopicSep+" ")
}

// ChapterEdit is one chapter in an edited skeleton.
type ChapterEdit struct {
	Title     string   `json:"title"`
	Subtopics []string `json:"subtopics,omitempty"`
}

// EditSkeleton replaces the chapter list, and the narrative arc when
// narrativeArc is non-nil, inside the master skeleton. Chapters with an
// empty title are dropped. The chapter sequence is derived again.
func EditSkeleton(sk types.Skeleton, edits []ChapterEdit, narrativeArc *string) (types.Skeleton, error) {
	var entries []string
	for _, e := range edits {
		if strings.TrimSpace(e.Title) == "" {
			continue
		}
		entries = append(entries, Entry(e.Title, e.Subtopics))
	}
	if len(entries) == 0 {
		return types.Skeleton{}, fmt.Errorf("skeleton must keep at least one chapter")
	}

	master := map[string]any{}
	if len(sk.Master) > 0 {
		if err := json.Unmarshal(sk.Master, &master); err != nil {
			return types.Skeleton{}, fmt.Errorf("failed to decode skeleton: %w", err)
		}
	}
	logic, _ := master["esqueletoLogica"].(map[string]any)
	if logic == nil {
		logic = map[string]any{}
	}
	logic["estructura_capitulos"] = entries
	if narrativeArc != nil {
		logic["arco_narrativo"] = *narrativeArc
	}
	master["esqueletoLogica"] = logic

	raw, err := json.Marshal(master)
	if err != nil {
		return types.Skeleton{}, fmt.Errorf("failed to encode skeleton: %w", err)
	}
	return SkeletonFromMaster(raw)
}

func splitSegments(line string) []string {
	var parts []string
	for _, p := range strings.Split(line, subtopicSep) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func trimBullet(line string) string {
	s := strings.TrimSpace(line)
	for _, bullet := range []string{"- ", "* ", "• "} {
		s = strings.TrimPrefix(s, bullet)
	}
	return strings.TrimSpace(s)
}

// scalarText renders a JSON scalar as text; numbers keep their literal form.
func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
