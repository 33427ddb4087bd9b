package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/Harshitk-cp/doxa/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func seedPropositions(t *testing.T, h *pipelineHarness, n int) {
	t.Helper()
	ctx := context.Background()
	obs := testObservations(1)
	if err := h.observations.RecordObservations(ctx, obs); err != nil {
		t.Fatalf("RecordObservations() error = %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := h.propositions.CreateProposition(ctx, domain.PropositionFields{
			Text:       fmt.Sprintf("Recurring behavior number %d", i),
			Reasoning:  "seeded",
			Confidence: 5,
		}, []uuid.UUID{obs[0].ID}); err != nil {
			t.Fatalf("CreateProposition() error = %v", err)
		}
	}
}

func TestRunSynthesisBelowTrigger(t *testing.T) {
	h := newPipelineHarness(t, nil)
	profile := store.NewProfileStore(h.db)
	seedPropositions(t, h, 3)

	svc := NewProfileSynthesizer(h.propositions, profile, h.mock, zap.NewNop())
	svc.SetTrigger(5)

	if created := svc.RunSynthesis(context.Background()); created != 0 {
		t.Errorf("created = %d below trigger, want 0", created)
	}
	if len(h.mock.SynthesizeCalls) != 0 {
		t.Errorf("synthesize called %d times below trigger", len(h.mock.SynthesizeCalls))
	}
}

func TestRunSynthesisCreatesNotes(t *testing.T) {
	h := newPipelineHarness(t, nil)
	ctx := context.Background()
	profile := store.NewProfileStore(h.db)
	seedPropositions(t, h, 3)

	h.mock.SynthesizeResponse = []domain.ProfileNote{
		{Category: domain.ProfileWorkflow, Content: "Reviews pull requests before noon", SourceCount: 3},
		{Category: domain.ProfileHabit, Content: "Closes the day by clearing the inbox", SourceCount: 2},
	}

	svc := NewProfileSynthesizer(h.propositions, profile, h.mock, zap.NewNop())
	svc.SetTrigger(3)

	if created := svc.RunSynthesis(ctx); created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}
	if len(h.mock.SynthesizeCalls) != 1 {
		t.Fatalf("synthesize calls = %d, want 1", len(h.mock.SynthesizeCalls))
	}
	if got := len(h.mock.SynthesizeCalls[0]); got != 3 {
		t.Errorf("synthesize saw %d propositions, want 3", got)
	}

	notes, err := profile.ListNotes(ctx, 10)
	if err != nil {
		t.Fatalf("ListNotes() error = %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(notes))
	}

	// The baseline advanced, so an immediate re-run stays quiet.
	if created := svc.RunSynthesis(ctx); created != 0 {
		t.Errorf("created = %d on re-run, want 0", created)
	}
}

func TestRunSynthesisRetriesAfterFailure(t *testing.T) {
	h := newPipelineHarness(t, nil)
	ctx := context.Background()
	profile := store.NewProfileStore(h.db)
	seedPropositions(t, h, 2)

	svc := NewProfileSynthesizer(h.propositions, profile, h.mock, zap.NewNop())
	svc.SetTrigger(2)

	h.mock.SynthesizeError = errors.New("provider unavailable")
	if created := svc.RunSynthesis(ctx); created != 0 {
		t.Fatalf("created = %d during outage, want 0", created)
	}

	h.mock.SynthesizeError = nil
	h.mock.SynthesizeResponse = []domain.ProfileNote{
		{Category: domain.ProfilePreference, Content: "Prefers keyboard-driven tools", SourceCount: 2},
	}
	if created := svc.RunSynthesis(ctx); created != 1 {
		t.Fatalf("created = %d after recovery, want 1", created)
	}
}

func TestRunSynthesisSkipsInvalidNotes(t *testing.T) {
	h := newPipelineHarness(t, nil)
	ctx := context.Background()
	profile := store.NewProfileStore(h.db)
	seedPropositions(t, h, 2)

	h.mock.SynthesizeResponse = []domain.ProfileNote{
		{Category: "mood", Content: "Seems cheerful lately", SourceCount: 1},
		{Category: domain.ProfileWorkflow, Content: "Batches errands on Saturdays", SourceCount: 2},
	}

	svc := NewProfileSynthesizer(h.propositions, profile, h.mock, zap.NewNop())
	svc.SetTrigger(2)

	if created := svc.RunSynthesis(ctx); created != 1 {
		t.Fatalf("created = %d, want only the valid note", created)
	}
	notes, err := profile.ListNotes(ctx, 10)
	if err != nil {
		t.Fatalf("ListNotes() error = %v", err)
	}
	if len(notes) != 1 || notes[0].Category != domain.ProfileWorkflow {
		t.Errorf("notes = %+v, want one workflow note", notes)
	}
}
