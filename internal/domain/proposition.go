package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinConfidence float32 = 1
	MaxConfidence float32 = 10
)

func ValidConfidence(c float32) bool {
	return c >= MinConfidence && c <= MaxConfidence
}

// Proposition is a confidence-weighted statement about the user. Propositions
// are versioned: revision_group_id identifies the lineage of one evolving
// belief, and version increases by exactly 1 within a group. Rows are
// append-only; the highest version of a group is its current statement.
type Proposition struct {
	ID              uuid.UUID `json:"id"`
	Text            string    `json:"text"`
	Reasoning       string    `json:"reasoning"`
	Confidence      float32   `json:"confidence"`
	Decay           float32   `json:"decay"`
	RevisionGroupID uuid.UUID `json:"revision_group_id"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EffectiveConfidence discounts the stored confidence by accumulated decay.
// The stored confidence itself is never mutated by staleness.
func (p Proposition) EffectiveConfidence(decayWeight float32) float32 {
	c := p.Confidence * (1 - p.Decay*decayWeight)
	if c < MinConfidence {
		return MinConfidence
	}
	return c
}

type ScoredProposition struct {
	Proposition
	Score float64 `json:"score"`
}

// CandidateProposition is a statement proposed by the inference client
// before it is resolved into a new proposition or a revision. Validated
// strictly at the response boundary.
type CandidateProposition struct {
	Text       string  `json:"text" validate:"required,min=1"`
	Reasoning  string  `json:"reasoning" validate:"required,min=1"`
	Confidence float32 `json:"confidence" validate:"gte=1,lte=10"`
}

// MergedProposition is the inference client's merge of a candidate with an
// existing proposition.
type MergedProposition struct {
	Text       string  `json:"text" validate:"required,min=1"`
	Reasoning  string  `json:"reasoning" validate:"required,min=1"`
	Confidence float32 `json:"confidence" validate:"gte=1,lte=10"`
}

// PropositionFields carries the mutable fields of a revision.
type PropositionFields struct {
	Text       string
	Reasoning  string
	Confidence float32
}

type Relation string

const (
	RelationSame      Relation = "same"
	RelationRelated   Relation = "related"
	RelationUnrelated Relation = "unrelated"
)

func ValidRelation(r string) bool {
	switch Relation(r) {
	case RelationSame, RelationRelated, RelationUnrelated:
		return true
	}
	return false
}

// Revisable reports whether the relation routes a candidate to the revise
// path instead of creating a fresh revision group.
func (r Relation) Revisable() bool {
	return r == RelationSame || r == RelationRelated
}
