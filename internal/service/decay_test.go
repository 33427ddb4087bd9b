package service

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestComputeDecay(t *testing.T) {
	svc := NewDecayService(nil, zap.NewNop())

	tests := []struct {
		name    string
		elapsed time.Duration
		want    float64
	}{
		{"no elapsed time", 0, 0},
		{"negative elapsed time", -time.Hour, 0},
		{"one half-life", 168 * time.Hour, 0.5},
		{"two half-lives", 336 * time.Hour, 0.75},
		{"far past saturates", 10000 * 168 * time.Hour, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, float64(svc.Compute(tt.elapsed)), 1e-6)
		})
	}
}

func TestComputeDecayHonorsHalfLife(t *testing.T) {
	svc := NewDecayService(nil, zap.NewNop())
	svc.SetHalfLife(1)

	assert.InDelta(t, 0.5, float64(svc.Compute(time.Hour)), 1e-6)
}

func TestRunDecayUpdatesStalePropositions(t *testing.T) {
	h := newPipelineHarness(t, nil)
	ctx := context.Background()

	obs := testObservations(1)
	if err := h.observations.RecordObservations(ctx, obs); err != nil {
		t.Fatalf("RecordObservations() error = %v", err)
	}
	evidence := []uuid.UUID{obs[0].ID}

	fresh, err := h.propositions.CreateProposition(ctx, domain.PropositionFields{
		Text:       "Checks mail first thing",
		Reasoning:  "Mail app opens on login",
		Confidence: 6,
	}, evidence)
	if err != nil {
		t.Fatalf("CreateProposition() error = %v", err)
	}
	stale, err := h.propositions.CreateProposition(ctx, domain.PropositionFields{
		Text:       "Used to browse photography forums",
		Reasoning:  "Old browsing sessions",
		Confidence: 6,
	}, evidence)
	if err != nil {
		t.Fatalf("CreateProposition() error = %v", err)
	}

	// Backdate one proposition by a full half-life.
	backdated := time.Now().UTC().Add(-168 * time.Hour)
	if _, err := h.db.Exec(`UPDATE propositions SET updated_at = ? WHERE id = ?`, backdated, stale.ID.String()); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	svc := NewDecayService(h.propositions, zap.NewNop())
	result := svc.RunDecay(ctx)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Updated)

	got, err := h.propositions.GetProposition(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetProposition() error = %v", err)
	}
	assert.InDelta(t, 0.5, float64(got.Decay), 0.05, "one half-life of staleness")
	assert.Equal(t, float32(6), got.Confidence, "decay must not touch stored confidence")

	gotFresh, err := h.propositions.GetProposition(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetProposition() error = %v", err)
	}
	assert.Zero(t, gotFresh.Decay)
}

func TestRunDecaySkipsSettledValues(t *testing.T) {
	h := newPipelineHarness(t, nil)
	ctx := context.Background()

	obs := testObservations(1)
	if err := h.observations.RecordObservations(ctx, obs); err != nil {
		t.Fatalf("RecordObservations() error = %v", err)
	}
	if _, err := h.propositions.CreateProposition(ctx, domain.PropositionFields{
		Text:       "Keeps notifications muted",
		Reasoning:  "Settings snapshot",
		Confidence: 7,
	}, []uuid.UUID{obs[0].ID}); err != nil {
		t.Fatalf("CreateProposition() error = %v", err)
	}

	svc := NewDecayService(h.propositions, zap.NewNop())

	assert.Zero(t, svc.RunDecay(ctx).Updated, "fresh proposition")
	assert.Zero(t, svc.RunDecay(ctx).Updated, "second run")
}

func TestDecayWorkerStartStop(t *testing.T) {
	h := newPipelineHarness(t, nil)
	ctx := context.Background()

	obs := testObservations(1)
	if err := h.observations.RecordObservations(ctx, obs); err != nil {
		t.Fatalf("RecordObservations() error = %v", err)
	}
	prop, err := h.propositions.CreateProposition(ctx, domain.PropositionFields{
		Text:       "Archives receipts monthly",
		Reasoning:  "Folder activity clusters",
		Confidence: 5,
	}, []uuid.UUID{obs[0].ID})
	if err != nil {
		t.Fatalf("CreateProposition() error = %v", err)
	}
	backdated := time.Now().UTC().Add(-336 * time.Hour)
	if _, err := h.db.Exec(`UPDATE propositions SET updated_at = ? WHERE id = ?`, backdated, prop.ID.String()); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	svc := NewDecayService(h.propositions, zap.NewNop())
	svc.SetInterval(10 * time.Millisecond)
	svc.Start()
	defer svc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := h.propositions.GetProposition(ctx, prop.ID)
		if err != nil {
			t.Fatalf("GetProposition() error = %v", err)
		}
		if got.Decay > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("decay worker never updated the backdated proposition")
}
