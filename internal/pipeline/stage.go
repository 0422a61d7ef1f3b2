package pipeline

import "github.com/Pablogarciag02/ChapterInator2.0/internal/types"

// StageID identifies a pipeline stage or a stage 2 sub-step.
type StageID string

// Top-level stages in execution order.
const (
	StageIngestion StageID = "ingestion"
	StageMapping   StageID = "mapping"
	StageStructure StageID = "structure"
	StageChapters  StageID = "chapters"
	StageAssembly  StageID = "assembly"
)

// Stage 2 sub-steps in execution order.
const (
	StepReferences StageID = "mapping.references"
	StepCitations  StageID = "mapping.citations"
	StepTables     StageID = "mapping.tables"
	StepCombine    StageID = "mapping.combine"
)

// Stages lists the top-level stages in execution order.
var Stages = []StageID{StageIngestion, StageMapping, StageStructure, StageChapters, StageAssembly}

// MappingSteps lists the stage 2 sub-steps in execution order.
var MappingSteps = []StageID{StepReferences, StepCitations, StepTables, StepCombine}

// Status is the lifecycle state of a stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Stage describes one node of the pipeline graph.
type Stage interface {
	Name() string           // e.g. "mapping", "mapping.citations"
	Dependencies() []string // Stages that must be completed first
	Parent() string         // Owning stage for sub-steps, "" otherwise
	Description() string
}

type stageDef struct {
	name        StageID
	deps        []StageID
	parent      StageID
	description string
}

func (s stageDef) Name() string        { return string(s.name) }
func (s stageDef) Parent() string      { return string(s.parent) }
func (s stageDef) Description() string { return s.description }

func (s stageDef) Dependencies() []string {
	deps := make([]string, len(s.deps))
	for i, d := range s.deps {
		deps[i] = string(d)
	}
	return deps
}

var stageDefs = []stageDef{
	{name: StageIngestion, description: "Upload source documents and extract compendio and brief text"},
	{name: StageMapping, deps: []StageID{StageIngestion}, description: "Map references, citations and tables, then combine them"},
	{name: StepReferences, deps: []StageID{StageIngestion}, parent: StageMapping, description: "Reference mapping"},
	{name: StepCitations, deps: []StageID{StepReferences}, parent: StageMapping, description: "Citation mapping"},
	{name: StepTables, deps: []StageID{StepCitations}, parent: StageMapping, description: "Table mapping"},
	{name: StepCombine, deps: []StageID{StepTables}, parent: StageMapping, description: "Combined content mapping"},
	{name: StageStructure, deps: []StageID{StageMapping}, description: "Generate the book skeleton"},
	{name: StageChapters, deps: []StageID{StageStructure}, description: "Generate chapters one at a time"},
	{name: StageAssembly, deps: []StageID{StageChapters}, description: "Assemble the final ebook"},
}

// DefaultRegistry returns a registry holding the pipeline's stage graph.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range stageDefs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// stepKinds maps each sub-step to the artifact it produces.
var stepKinds = map[StageID]types.MappingKind{
	StepReferences: types.MappingReferences,
	StepCitations:  types.MappingCitations,
	StepTables:     types.MappingTables,
	StepCombine:    types.MappingCombined,
}
