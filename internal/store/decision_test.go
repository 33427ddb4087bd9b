package store

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestRecordDecisionSupersedesPrevious(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	props := NewPropositionStore(db, nil, zap.NewNop())
	decisions := NewDecisionStore(db)
	evidence := seedObservations(t, db, 2)

	v1, err := props.CreateProposition(ctx, domain.PropositionFields{
		Text:       "User silences chat apps while coding",
		Reasoning:  "Chat windows minimized whenever the editor has focus",
		Confidence: 4,
	}, evidence[:1])
	if err != nil {
		t.Fatalf("CreateProposition: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	first := &domain.DecisionRecord{
		PropositionID:             v1.ID,
		RevisionGroupID:           v1.RevisionGroupID,
		Decision:                  domain.DecisionDialogue,
		ExpectedUtilityNoAction:   -0.2,
		ExpectedUtilityDialogue:   0.13,
		ExpectedUtilityAutonomous: 0.05,
		AttentionLevel:            0.5,
		InterruptionCost:          0.5,
		ConfidenceNormalized:      0.33,
		DecidedAt:                 base,
	}
	if err := decisions.RecordDecision(ctx, first); err != nil {
		t.Fatalf("first decision: %v", err)
	}

	v2, err := props.ReviseProposition(ctx, v1.RevisionGroupID, domain.PropositionFields{
		Text:       "User silences chat apps while coding",
		Reasoning:  "Two more sessions confirm it",
		Confidence: 8,
	}, evidence[1:])
	if err != nil {
		t.Fatalf("ReviseProposition: %v", err)
	}
	second := &domain.DecisionRecord{
		PropositionID:             v2.ID,
		RevisionGroupID:           v1.RevisionGroupID,
		Decision:                  domain.DecisionAutonomous,
		ExpectedUtilityNoAction:   -0.46,
		ExpectedUtilityDialogue:   0.51,
		ExpectedUtilityAutonomous: 0.72,
		AttentionLevel:            0.1,
		InterruptionCost:          0.2,
		ConfidenceNormalized:      0.77,
		DecidedAt:                 base.Add(time.Minute),
	}
	if err := decisions.RecordDecision(ctx, second); err != nil {
		t.Fatalf("second decision: %v", err)
	}

	history, err := decisions.ListDecisions(ctx, v1.RevisionGroupID)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].ID != second.ID {
		t.Errorf("newest decision first, got %s", history[0].Decision)
	}
	if history[0].SupersededAt != nil {
		t.Errorf("live decision marked superseded at %v", history[0].SupersededAt)
	}
	if history[1].SupersededAt == nil {
		t.Error("replaced decision not marked superseded")
	} else if !history[1].SupersededAt.Equal(second.DecidedAt) {
		t.Errorf("superseded_at = %v, want %v", history[1].SupersededAt, second.DecidedAt)
	}
	if history[1].Decision != domain.DecisionDialogue {
		t.Errorf("replaced decision = %s, want dialogue", history[1].Decision)
	}
}

func TestRecordDecisionAssignsDefaults(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	props := NewPropositionStore(db, nil, zap.NewNop())
	decisions := NewDecisionStore(db)
	evidence := seedObservations(t, db, 1)

	p, err := props.CreateProposition(ctx, domain.PropositionFields{
		Text:       "User runs the linter before committing",
		Reasoning:  "Lint output precedes every commit",
		Confidence: 6,
	}, evidence)
	if err != nil {
		t.Fatalf("CreateProposition: %v", err)
	}

	r := &domain.DecisionRecord{
		PropositionID:   p.ID,
		RevisionGroupID: p.RevisionGroupID,
		Decision:        domain.DecisionNoAction,
	}
	if err := decisions.RecordDecision(ctx, r); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	if r.ID == uuid.Nil {
		t.Error("id not assigned")
	}
	if r.DecidedAt.IsZero() {
		t.Error("decided_at not assigned")
	}

	history, err := decisions.ListDecisions(ctx, p.RevisionGroupID)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(history) != 1 || history[0].Decision != domain.DecisionNoAction {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestListDecisionsEmptyGroup(t *testing.T) {
	db := openTestDB(t)
	decisions := NewDecisionStore(db)

	history, err := decisions.ListDecisions(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %d records, want 0", len(history))
	}
}
