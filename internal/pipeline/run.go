package pipeline

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/chapters"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
)

// Run is the state of one pipeline run. The Engine owns the live Run;
// callers only ever see copies returned by Engine.Snapshot.
type Run struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Status    map[StageID]Status `json:"status"`
	Errors    map[StageID]string `json:"errors,omitempty"` // Last failure per stage

	CompendioDoc *types.Document `json:"compendio_document,omitempty"`
	BriefDoc     *types.Document `json:"brief_document,omitempty"`
	Compendio    string          `json:"compendio,omitempty"`
	ProjectBrief string          `json:"project_brief,omitempty"`

	Mappings map[types.MappingKind]json.RawMessage `json:"mappings,omitempty"`

	Structure  *StructureRequest `json:"structure_request,omitempty"`
	Skeleton   types.Skeleton    `json:"skeleton"`
	Chapters   chapters.State    `json:"chapters"`
	FinalEbook string            `json:"final_ebook,omitempty"`
}

// NewRun creates an empty run with every stage pending.
func NewRun() *Run {
	r := &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Status:    make(map[StageID]Status),
		Errors:    make(map[StageID]string),
		Mappings:  make(map[types.MappingKind]json.RawMessage),
		Chapters:  chapters.NewState(nil),
	}
	for _, def := range stageDefs {
		r.Status[def.name] = StatusPending
	}
	return r
}

// StatusOf returns a stage's status; unknown ids read as pending.
func (r *Run) StatusOf(id StageID) Status {
	if s, ok := r.Status[id]; ok {
		return s
	}
	return StatusPending
}

// CurrentStageIndex returns the index in Stages of the first stage that is
// not completed, or len(Stages) when the run is finished.
func (r *Run) CurrentStageIndex() int {
	for i, id := range Stages {
		if r.StatusOf(id) != StatusCompleted {
			return i
		}
	}
	return len(Stages)
}

// Progress returns the chapter-generation progress.
func (r *Run) Progress() types.RunProgress {
	return r.Chapters.Progress()
}

func (r *Run) clone() *Run {
	c := *r
	c.Status = maps.Clone(r.Status)
	c.Errors = maps.Clone(r.Errors)
	c.Mappings = maps.Clone(r.Mappings)
	if r.CompendioDoc != nil {
		d := *r.CompendioDoc
		c.CompendioDoc = &d
	}
	if r.BriefDoc != nil {
		d := *r.BriefDoc
		c.BriefDoc = &d
	}
	if r.Structure != nil {
		s := *r.Structure
		c.Structure = &s
	}
	c.Skeleton.Chapters = append([]types.ChapterDescriptor(nil), r.Skeleton.Chapters...)
	c.Chapters.Sequence = append([]string(nil), r.Chapters.Sequence...)
	c.Chapters.Completed = append([]string(nil), r.Chapters.Completed...)
	c.Chapters.Generated = maps.Clone(r.Chapters.Generated)
	return &c
}

// clearStage discards the artifacts a stage produced and marks it pending.
func (r *Run) clearStage(id StageID) {
	r.Status[id] = StatusPending
	delete(r.Errors, id)

	switch id {
	case StageIngestion:
		r.CompendioDoc, r.BriefDoc = nil, nil
		r.Compendio, r.ProjectBrief = "", ""
	case StageMapping:
		for _, step := range MappingSteps {
			r.clearStage(step)
		}
	case StepReferences, StepCitations, StepTables, StepCombine:
		delete(r.Mappings, stepKinds[id])
	case StageStructure:
		r.Structure = nil
		r.Skeleton = types.Skeleton{}
	case StageChapters:
		r.Chapters = chapters.NewState(r.Skeleton.ChapterIDs())
	case StageAssembly:
		r.FinalEbook = ""
	}
}
