package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPipelineWorkers = 2
	defaultLLMRetries      = 3
	defaultLLMTimeout      = 60 * time.Second
	defaultShutdownGrace   = 30 * time.Second

	retryBaseDelay  = 500 * time.Millisecond
	drainRetryDelay = time.Second
	batchTimeout    = 5 * time.Minute

	// How many ranked matches the similarity check pulls per candidate.
	// Only the top match is classified today.
	relatedLimit = 5
)

// BatchResult summarizes what one drained batch produced.
type BatchResult struct {
	Observations int `json:"observations"`
	Duplicates   int `json:"duplicates"`
	Candidates   int `json:"candidates"`
	Created      int `json:"created"`
	Revised      int `json:"revised"`
	Dropped      int `json:"dropped"`
	NoActions    int `json:"no_actions"`
	Dialogues    int `json:"dialogues"`
	Actions      int `json:"actions"`
}

// Pipeline turns drained observation batches into propositions and decides
// each one against the current attention snapshot. One goroutine drains the
// queue; batches are handed to a bounded worker pool, so unrelated batches
// process concurrently while candidates within a batch stay ordered.
type Pipeline struct {
	queue        domain.ObservationQueue
	observations domain.ObservationStore
	propositions domain.PropositionStore
	decisions    domain.DecisionStore
	llm          domain.LLMClient
	engine       *DecisionEngine
	attention    domain.AttentionSampler
	dialogue     domain.DialogueEmitter
	actions      domain.ActionEmitter
	logger       *zap.Logger

	workers    int
	maxRetries int
	llmTimeout time.Duration
	grace      time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPipeline creates the inference pipeline.
func NewPipeline(
	queue domain.ObservationQueue,
	observations domain.ObservationStore,
	propositions domain.PropositionStore,
	decisions domain.DecisionStore,
	llm domain.LLMClient,
	engine *DecisionEngine,
	attention domain.AttentionSampler,
	dialogue domain.DialogueEmitter,
	actions domain.ActionEmitter,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		queue:        queue,
		observations: observations,
		propositions: propositions,
		decisions:    decisions,
		llm:          llm,
		engine:       engine,
		attention:    attention,
		dialogue:     dialogue,
		actions:      actions,
		logger:       logger,
		workers:      defaultPipelineWorkers,
		maxRetries:   defaultLLMRetries,
		llmTimeout:   defaultLLMTimeout,
		grace:        defaultShutdownGrace,
		stopCh:       make(chan struct{}),
	}
}

// SetWorkers bounds how many batches process concurrently.
func (p *Pipeline) SetWorkers(n int) {
	if n > 0 {
		p.workers = n
	}
}

// SetMaxRetries bounds retries of failed inference calls.
func (p *Pipeline) SetMaxRetries(n int) {
	if n >= 0 {
		p.maxRetries = n
	}
}

// SetLLMTimeout bounds each individual inference call.
func (p *Pipeline) SetLLMTimeout(d time.Duration) {
	if d > 0 {
		p.llmTimeout = d
	}
}

// SetGrace bounds how long Stop waits for in-flight batches.
func (p *Pipeline) SetGrace(d time.Duration) {
	if d > 0 {
		p.grace = d
	}
}

// Start begins the consumer loop.
func (p *Pipeline) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop flushes the queue so a below-minimum batch is not stranded, lets
// in-flight batches finish within the grace period, and waits for all workers
// to exit. Anything unconfirmed by then replays on next start.
func (p *Pipeline) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pipeline) run() {
	defer p.wg.Done()

	drainCtx, cancelDrain := context.WithCancel(context.Background())
	defer cancelDrain()
	batchCtx, cancelBatches := context.WithCancel(context.Background())
	defer cancelBatches()

	done := make(chan struct{})
	go func() {
		select {
		case <-p.stopCh:
		case <-done:
			return
		}
		cancelDrain()
		select {
		case <-time.After(p.grace):
			cancelBatches()
		case <-done:
		}
	}()

	p.logger.Info("pipeline started", zap.Int("workers", p.workers))

	var g errgroup.Group
	g.SetLimit(p.workers)

	for {
		batch, err := p.queue.Drain(drainCtx)
		if err != nil {
			if errors.Is(err, domain.ErrPersistence) {
				p.logger.Error("drain failed", zap.Error(err))
				select {
				case <-time.After(drainRetryDelay):
					continue
				case <-drainCtx.Done():
				}
			}
			break
		}
		if batch.Empty() {
			continue
		}
		g.Go(func() error {
			p.processBatch(batchCtx, batch)
			return nil
		})
	}

	// Shutdown: force out whatever is durable below the batch minimum.
	// Flush before every drain because a drain resets the flush flag.
	for {
		p.queue.Flush()
		batch, err := p.queue.Drain(batchCtx)
		if err != nil || batch.Empty() {
			break
		}
		g.Go(func() error {
			p.processBatch(batchCtx, batch)
			return nil
		})
	}

	g.Wait()
	close(done)
	p.logger.Info("pipeline stopped")
}

// processBatch runs one batch end to end and confirms it against the queue.
// A batch is left unconfirmed, and so replayed later, only when its
// observations could not be durably recorded or processing was cut off
// mid-batch; inference garbage is dropped instead of replayed.
func (p *Pipeline) processBatch(ctx context.Context, batch *domain.Batch) {
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.runBatch(ctx, batch.Observations)
	if err != nil {
		p.logger.Error("batch left for replay",
			zap.Uint64("token", batch.Token),
			zap.Int("observations", len(batch.Observations)),
			zap.Error(err))
		return
	}

	if err := p.queue.Confirm(batch.Token); err != nil {
		p.logger.Error("confirm failed", zap.Uint64("token", batch.Token), zap.Error(err))
		return
	}

	p.logger.Info("batch processed",
		zap.Uint64("token", batch.Token),
		zap.Int("observations", result.Observations),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("candidates", result.Candidates),
		zap.Int("created", result.Created),
		zap.Int("revised", result.Revised),
		zap.Int("dropped", result.Dropped),
		zap.Int("dialogues", result.Dialogues),
		zap.Int("actions", result.Actions),
		zap.Duration("elapsed", time.Since(start)))
}

func (p *Pipeline) runBatch(ctx context.Context, obs []domain.Observation) (*BatchResult, error) {
	result := &BatchResult{Observations: len(obs)}

	ids := make([]uuid.UUID, len(obs))
	for i, o := range obs {
		ids[i] = o.ID
	}
	processed, err := p.observations.FilterProcessed(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("filter processed: %w", err)
	}

	var fresh []domain.Observation
	for _, o := range obs {
		if processed[o.ID] {
			result.Duplicates++
			continue
		}
		fresh = append(fresh, o)
	}
	if len(fresh) == 0 {
		return result, nil
	}

	if err := p.observations.RecordObservations(ctx, fresh); err != nil {
		return result, fmt.Errorf("record observations: %w", err)
	}
	evidence := make([]uuid.UUID, len(fresh))
	for i, o := range fresh {
		evidence[i] = o.ID
	}

	var candidates []domain.CandidateProposition
	err = p.withRetry(ctx, "propose", func(ctx context.Context) error {
		var perr error
		candidates, perr = p.llm.Propose(ctx, fresh)
		return perr
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			p.logger.Error("dropping proposals after repeated malformed responses",
				zap.Int("observations", len(fresh)),
				zap.Error(err))
			return result, nil
		}
		return result, fmt.Errorf("propose: %w", err)
	}
	result.Candidates = len(candidates)

	for _, cand := range candidates {
		if ctx.Err() != nil {
			return result, fmt.Errorf("resolve interrupted: %w", ctx.Err())
		}
		prop, revised, err := p.resolveCandidate(ctx, cand, evidence)
		if err != nil {
			result.Dropped++
			p.logger.Error("candidate dropped",
				zap.String("candidate", cand.Text),
				zap.Error(err))
			continue
		}
		if revised {
			result.Revised++
		} else {
			result.Created++
		}
		p.decide(ctx, prop, result)
	}
	return result, nil
}

// resolveCandidate routes one candidate to a fresh proposition or a revision
// of the closest existing one. The bool reports which path was taken.
func (p *Pipeline) resolveCandidate(ctx context.Context, cand domain.CandidateProposition, evidence []uuid.UUID) (*domain.Proposition, bool, error) {
	related, err := p.propositions.GetRelated(ctx, cand.Text, relatedLimit)
	if err != nil {
		return nil, false, fmt.Errorf("related lookup: %w", err)
	}

	if len(related) > 0 {
		match := related[0].Proposition
		var rel domain.Relation
		err := p.withRetry(ctx, "relate", func(ctx context.Context) error {
			var rerr error
			rel, rerr = p.llm.Relate(ctx, cand, match)
			return rerr
		})
		if err != nil {
			return nil, false, fmt.Errorf("relate: %w", err)
		}
		if rel.Revisable() {
			return p.reviseFrom(ctx, cand, match, evidence)
		}
	}

	prop, err := p.propositions.CreateProposition(ctx, domain.PropositionFields{
		Text:       cand.Text,
		Reasoning:  cand.Reasoning,
		Confidence: cand.Confidence,
	}, evidence)
	if err != nil {
		return nil, false, fmt.Errorf("create: %w", err)
	}
	return prop, false, nil
}

func (p *Pipeline) reviseFrom(ctx context.Context, cand domain.CandidateProposition, match domain.Proposition, evidence []uuid.UUID) (*domain.Proposition, bool, error) {
	var merged *domain.MergedProposition
	err := p.withRetry(ctx, "merge", func(ctx context.Context) error {
		var merr error
		merged, merr = p.llm.Merge(ctx, cand, match)
		return merr
	})
	if err != nil {
		return nil, false, fmt.Errorf("merge: %w", err)
	}

	prop, err := p.propositions.ReviseProposition(ctx, match.RevisionGroupID, domain.PropositionFields{
		Text:       merged.Text,
		Reasoning:  merged.Reasoning,
		Confidence: merged.Confidence,
	}, evidence)
	if err != nil {
		return nil, false, fmt.Errorf("revise group %s: %w", match.RevisionGroupID, err)
	}
	return prop, true, nil
}

// decide evaluates one resolved proposition against the current attention
// snapshot, persists the record, and emits to the dialogue or action webhook
// when required. Failures here are logged and never fail the batch; the
// proposition itself is already durable.
func (p *Pipeline) decide(ctx context.Context, prop *domain.Proposition, result *BatchResult) {
	att := p.attention.Sample()
	record := p.engine.Decide(*prop, att)

	if err := p.decisions.RecordDecision(ctx, &record); err != nil {
		p.logger.Error("record decision failed",
			zap.String("proposition_id", prop.ID.String()),
			zap.Error(err))
		return
	}

	switch record.Decision {
	case domain.DecisionDialogue:
		result.Dialogues++
		if p.dialogue == nil {
			return
		}
		req := domain.DialogueRequest{PropositionID: prop.ID, QuestionContext: prop.Text}
		if err := p.dialogue.EmitDialogue(ctx, req); err != nil {
			p.logger.Error("dialogue emission failed",
				zap.String("proposition_id", prop.ID.String()),
				zap.Error(err))
		}
	case domain.DecisionAutonomous:
		result.Actions++
		if p.actions == nil {
			return
		}
		req := domain.ActionRequest{PropositionID: prop.ID, ActionPayload: prop.Text}
		if err := p.actions.EmitAction(ctx, req); err != nil {
			p.logger.Error("action emission failed",
				zap.String("proposition_id", prop.ID.String()),
				zap.Error(err))
		}
	default:
		result.NoActions++
	}
}

// withRetry runs one inference call, retrying with exponential backoff until
// it succeeds or the retry bound is spent. Each attempt carries its own
// timeout so a stalled provider burns one attempt, not the whole batch
// budget. The last error is returned as is, so callers can distinguish a
// response that never validated from a provider that was never reachable.
func (p *Pipeline) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.llmTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil || attempt >= p.maxRetries {
			return err
		}
		p.logger.Warn("inference call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-time.After(retryBaseDelay << attempt):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
