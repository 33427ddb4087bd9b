package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/Harshitk-cp/doxa/internal/llm"
	"github.com/Harshitk-cp/doxa/internal/queue"
	"github.com/Harshitk-cp/doxa/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type staticAttention struct {
	state domain.AttentionState
}

func (s *staticAttention) Sample() domain.AttentionState { return s.state }

type recordingEmitter struct {
	mu        sync.Mutex
	dialogues []domain.DialogueRequest
	actions   []domain.ActionRequest
}

func (r *recordingEmitter) EmitDialogue(ctx context.Context, req domain.DialogueRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialogues = append(r.dialogues, req)
	return nil
}

func (r *recordingEmitter) EmitAction(ctx context.Context, req domain.ActionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, req)
	return nil
}

type pipelineHarness struct {
	pipeline     *Pipeline
	db           *store.DB
	mock         *llm.MockClient
	observations *store.ObservationStore
	propositions *store.PropositionStore
	decisions    *store.DecisionStore
	emitter      *recordingEmitter
}

func newPipelineHarness(t *testing.T, q domain.ObservationQueue) *pipelineHarness {
	t.Helper()
	db, err := store.Open(store.DialectSQLite, filepath.Join(t.TempDir(), "doxa_test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	engine, err := NewDecisionEngine(DefaultDecisionConfig())
	if err != nil {
		t.Fatalf("NewDecisionEngine() error = %v", err)
	}

	h := &pipelineHarness{
		db:           db,
		mock:         llm.NewMockClient(),
		observations: store.NewObservationStore(db),
		propositions: store.NewPropositionStore(db, nil, zap.NewNop()),
		decisions:    store.NewDecisionStore(db),
		emitter:      &recordingEmitter{},
	}
	h.pipeline = NewPipeline(q, h.observations, h.propositions, h.decisions, h.mock, engine,
		&staticAttention{state: domain.AttentionState{FocusLevel: 0.5, Confidence: 1}},
		h.emitter, h.emitter, zap.NewNop())
	h.pipeline.SetMaxRetries(0)
	return h
}

func testObservations(n int) []domain.Observation {
	obs := make([]domain.Observation, n)
	for i := range obs {
		obs[i] = domain.Observation{
			ID:          uuid.New(),
			CapturedAt:  time.Now().UTC(),
			Content:     fmt.Sprintf("typed editor shortcut sequence %d", i),
			ContentType: domain.ContentTypeInputText,
			Source:      "test",
		}
	}
	return obs
}

func TestRunBatchCreatesAndDecides(t *testing.T) {
	h := newPipelineHarness(t, nil)
	ctx := context.Background()
	h.mock.ProposeResponse = []domain.CandidateProposition{
		{Text: "Prefers the gruvbox editor theme", Reasoning: "Theme switched back twice", Confidence: 9},
		{Text: "Might be planning a trip to Japan", Reasoning: "One stray search", Confidence: 1},
	}

	obs := testObservations(5)
	result, err := h.pipeline.runBatch(ctx, obs)
	if err != nil {
		t.Fatalf("runBatch() error = %v", err)
	}

	if result.Candidates != 2 || result.Created != 2 || result.Revised != 0 {
		t.Errorf("result = %+v, want 2 created", result)
	}
	if result.Actions != 1 || result.NoActions != 1 {
		t.Errorf("result = %+v, want 1 action and 1 no_action", result)
	}

	count, err := h.propositions.CountPropositions(ctx)
	if err != nil {
		t.Fatalf("CountPropositions() error = %v", err)
	}
	if count != 2 {
		t.Errorf("propositions = %d, want 2", count)
	}

	if len(h.emitter.actions) != 1 {
		t.Fatalf("actions emitted = %d, want 1", len(h.emitter.actions))
	}
	if len(h.emitter.dialogues) != 0 {
		t.Errorf("dialogues emitted = %d, want 0", len(h.emitter.dialogues))
	}

	current, err := h.propositions.ListCurrent(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListCurrent() error = %v", err)
	}
	for _, prop := range current {
		evidence, err := h.propositions.ListEvidence(ctx, prop.ID)
		if err != nil {
			t.Fatalf("ListEvidence() error = %v", err)
		}
		if len(evidence) != 5 {
			t.Errorf("evidence for %q = %d observations, want the whole batch", prop.Text, len(evidence))
		}

		records, err := h.decisions.ListDecisions(ctx, prop.RevisionGroupID)
		if err != nil {
			t.Fatalf("ListDecisions() error = %v", err)
		}
		if len(records) != 1 {
			t.Errorf("decisions for %q = %d, want 1", prop.Text, len(records))
		}
	}
}

func TestRunBatchRevisesSameProposition(t *testing.T) {
	h := newPipelineHarness(t, nil)
	ctx := context.Background()

	seedObs := testObservations(1)
	if err := h.observations.RecordObservations(ctx, seedObs); err != nil {
		t.Fatalf("RecordObservations() error = %v", err)
	}
	seed, err := h.propositions.CreateProposition(ctx, domain.PropositionFields{
		Text:       "Drinks dark roast coffee every morning",
		Reasoning:  "Morning orders repeat",
		Confidence: 6,
	}, []uuid.UUID{seedObs[0].ID})
	if err != nil {
		t.Fatalf("CreateProposition() error = %v", err)
	}

	h.mock.ProposeResponse = []domain.CandidateProposition{
		{Text: "Orders dark roast coffee before work", Reasoning: "Cafe receipt parsed", Confidence: 7},
	}
	h.mock.RelateResponse = domain.RelationSame
	h.mock.MergeResponse = &domain.MergedProposition{
		Text:       "Drinks dark roast coffee every workday morning",
		Reasoning:  "Repeated orders plus receipts",
		Confidence: 8,
	}

	result, err := h.pipeline.runBatch(ctx, testObservations(5))
	if err != nil {
		t.Fatalf("runBatch() error = %v", err)
	}
	if result.Revised != 1 || result.Created != 0 {
		t.Errorf("result = %+v, want one revision", result)
	}

	history, err := h.propositions.GetGroupHistory(ctx, seed.RevisionGroupID)
	if err != nil {
		t.Fatalf("GetGroupHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[1].Version != 2 {
		t.Errorf("head version = %d, want 2", history[1].Version)
	}
	if history[1].Text != "Drinks dark roast coffee every workday morning" {
		t.Errorf("head text = %q, want merged text", history[1].Text)
	}

	if len(h.mock.MergeCalls) != 1 {
		t.Fatalf("merge calls = %d, want 1", len(h.mock.MergeCalls))
	}
	if h.mock.MergeCalls[0].Existing.ID != seed.ID {
		t.Errorf("merged against %s, want %s", h.mock.MergeCalls[0].Existing.ID, seed.ID)
	}
}

func TestRunBatchSkipsProcessedObservations(t *testing.T) {
	h := newPipelineHarness(t, nil)
	ctx := context.Background()

	obs := testObservations(3)
	if err := h.observations.RecordObservations(ctx, obs); err != nil {
		t.Fatalf("RecordObservations() error = %v", err)
	}
	ids := []uuid.UUID{obs[0].ID, obs[1].ID, obs[2].ID}
	if _, err := h.propositions.CreateProposition(ctx, domain.PropositionFields{
		Text:       "Already derived once",
		Reasoning:  "seeded",
		Confidence: 5,
	}, ids); err != nil {
		t.Fatalf("CreateProposition() error = %v", err)
	}

	result, err := h.pipeline.runBatch(ctx, obs)
	if err != nil {
		t.Fatalf("runBatch() error = %v", err)
	}
	if result.Duplicates != 3 || result.Candidates != 0 {
		t.Errorf("result = %+v, want whole batch deduped", result)
	}
	if len(h.mock.ProposeCalls) != 0 {
		t.Errorf("propose called %d times for a replayed batch", len(h.mock.ProposeCalls))
	}
}

func TestRunBatchDropsRepeatedlyMalformedProposals(t *testing.T) {
	h := newPipelineHarness(t, nil)
	ctx := context.Background()
	h.mock.ProposeError = fmt.Errorf("parse proposals: %w", domain.ErrValidation)

	obs := testObservations(5)
	result, err := h.pipeline.runBatch(ctx, obs)
	if err != nil {
		t.Fatalf("runBatch() error = %v, want malformed proposals dropped", err)
	}
	if result.Candidates != 0 {
		t.Errorf("candidates = %d, want 0", result.Candidates)
	}

	// The observations themselves stay durable.
	if _, err := h.observations.GetObservation(ctx, obs[0].ID); err != nil {
		t.Errorf("GetObservation() error = %v", err)
	}
	count, err := h.propositions.CountPropositions(ctx)
	if err != nil {
		t.Fatalf("CountPropositions() error = %v", err)
	}
	if count != 0 {
		t.Errorf("propositions = %d, want 0", count)
	}
}

type flakyLLM struct {
	domain.LLMClient
	failures int
	calls    int
}

func (f *flakyLLM) Propose(ctx context.Context, obs []domain.Observation) ([]domain.CandidateProposition, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("truncated response: %w", domain.ErrValidation)
	}
	return f.LLMClient.Propose(ctx, obs)
}

func TestRunBatchRetriesMalformedProposals(t *testing.T) {
	h := newPipelineHarness(t, nil)
	h.mock.ProposeResponse = []domain.CandidateProposition{
		{Text: "Works late on Tuesdays", Reasoning: "Commit timestamps cluster", Confidence: 6},
	}
	flaky := &flakyLLM{LLMClient: h.mock, failures: 1}
	h.pipeline.llm = flaky
	h.pipeline.SetMaxRetries(2)

	result, err := h.pipeline.runBatch(context.Background(), testObservations(5))
	if err != nil {
		t.Fatalf("runBatch() error = %v", err)
	}
	if flaky.calls != 2 {
		t.Errorf("propose attempts = %d, want 2", flaky.calls)
	}
	if result.Created != 1 {
		t.Errorf("created = %d, want 1", result.Created)
	}
}

func TestRunBatchSurfacesProviderFailure(t *testing.T) {
	h := newPipelineHarness(t, nil)
	h.mock.ProposeError = errors.New("connection refused")

	_, err := h.pipeline.runBatch(context.Background(), testObservations(5))
	if err == nil {
		t.Fatal("runBatch() = nil, want an error so the batch replays")
	}
}

func TestRunBatchToleratesCandidateFailures(t *testing.T) {
	h := newPipelineHarness(t, nil)
	h.mock.ProposeResponse = []domain.CandidateProposition{
		{Text: "", Reasoning: "broken candidate", Confidence: 5},
		{Text: "Runs every weekday at dawn", Reasoning: "Workout app opens early", Confidence: 7},
	}

	result, err := h.pipeline.runBatch(context.Background(), testObservations(5))
	if err != nil {
		t.Fatalf("runBatch() error = %v", err)
	}
	if result.Dropped != 1 || result.Created != 1 {
		t.Errorf("result = %+v, want 1 dropped and 1 created", result)
	}
}

func TestPipelineDrainLoop(t *testing.T) {
	q, err := queue.Open(queue.Options{
		InMemory:     true,
		MinBatchSize: 2,
		MaxBatchSize: 10,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("queue.Open() error = %v", err)
	}
	t.Cleanup(func() { q.Close() })

	h := newPipelineHarness(t, q)
	h.mock.ProposeResponse = []domain.CandidateProposition{
		{Text: "Keeps the terminal in fullscreen", Reasoning: "Window events repeat", Confidence: 9},
	}
	h.pipeline.SetGrace(5 * time.Second)
	h.pipeline.Start()

	ctx := context.Background()
	for _, o := range testObservations(2) {
		if err := q.Enqueue(ctx, o); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := h.propositions.CountPropositions(ctx); n >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n, _ := h.propositions.CountPropositions(ctx); n != 1 {
		t.Fatalf("propositions = %d, want 1 after drain", n)
	}

	// One more observation below the batch minimum; Stop must flush it
	// through instead of stranding it.
	if err := q.Enqueue(ctx, testObservations(1)[0]); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	h.pipeline.Stop()

	if n, _ := h.propositions.CountPropositions(ctx); n != 2 {
		t.Errorf("propositions = %d, want 2 after flush on stop", n)
	}
	if q.Pending() != 0 {
		t.Errorf("pending = %d, want 0 after stop", q.Pending())
	}
}
