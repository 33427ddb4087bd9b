package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ObservationQueue is the durable buffer between producers and the inference
// pipeline. Enqueue persists before acknowledging; Drain blocks until a batch
// is ready; drained entries are removed only after Confirm, so a crash
// between the two replays the batch (at-least-once handoff).
type ObservationQueue interface {
	Enqueue(ctx context.Context, o Observation) error
	Drain(ctx context.Context) (*Batch, error)
	Confirm(token uint64) error
	Flush()
	Pending() int
	Close() error
}

type PropositionStore interface {
	CreateProposition(ctx context.Context, fields PropositionFields, evidenceIDs []uuid.UUID) (*Proposition, error)
	ReviseProposition(ctx context.Context, groupID uuid.UUID, fields PropositionFields, evidenceIDs []uuid.UUID) (*Proposition, error)
	GetProposition(ctx context.Context, id uuid.UUID) (*Proposition, error)
	GetGroupHistory(ctx context.Context, groupID uuid.UUID) ([]Proposition, error)
	SearchPropositions(ctx context.Context, query string, limit int) ([]ScoredProposition, error)
	GetRelated(ctx context.Context, candidateText string, limit int) ([]ScoredProposition, error)
	ListCurrent(ctx context.Context, limit, offset int) ([]Proposition, error)
	ListEvidence(ctx context.Context, propositionID uuid.UUID) ([]Observation, error)
	UpdateDecay(ctx context.Context, id uuid.UUID, decay float32) error
	CountPropositions(ctx context.Context) (int, error)
}

type ObservationStore interface {
	RecordObservations(ctx context.Context, obs []Observation) error
	GetObservation(ctx context.Context, id uuid.UUID) (*Observation, error)
	// FilterProcessed returns the subset of ids already cited by an evidence
	// link. Replayed observations in that set must not produce propositions
	// again.
	FilterProcessed(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

type DecisionStore interface {
	// RecordDecision persists the record and marks any prior non-superseded
	// record of the same revision group as superseded.
	RecordDecision(ctx context.Context, r *DecisionRecord) error
	ListDecisions(ctx context.Context, groupID uuid.UUID) ([]DecisionRecord, error)
}

type ProfileStore interface {
	CreateNote(ctx context.Context, n *ProfileNote) error
	ListNotes(ctx context.Context, limit int) ([]ProfileNote, error)
}

// LLMClient is the contract every inference provider implements. Responses
// are structured JSON validated at the boundary; schema violations surface as
// ErrValidation.
type LLMClient interface {
	Propose(ctx context.Context, batch []Observation) ([]CandidateProposition, error)
	Relate(ctx context.Context, candidate CandidateProposition, existing Proposition) (Relation, error)
	Merge(ctx context.Context, candidate CandidateProposition, existing Proposition) (*MergedProposition, error)
	Synthesize(ctx context.Context, props []Proposition) ([]ProfileNote, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type DialogueEmitter interface {
	EmitDialogue(ctx context.Context, req DialogueRequest) error
}

type ActionEmitter interface {
	EmitAction(ctx context.Context, req ActionRequest) error
}

// ActivitySource reports how many input events landed inside the trailing
// window. A failing source returns an error wrapping ErrSignalUnavailable.
type ActivitySource interface {
	RecentEvents(window time.Duration) (int, error)
}

// AppSource reports the currently focused application.
type AppSource interface {
	ActiveApplication(ctx context.Context) (string, error)
}

// AttentionSampler yields the latest attention snapshot without blocking.
type AttentionSampler interface {
	Sample() AttentionState
}
