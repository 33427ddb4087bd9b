package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultProfileInterval = time.Minute
	defaultProfileTrigger  = 30
)

// ProfileSynthesizer distills recent propositions into durable profile notes
// once enough new ones have accumulated. Notes are append-only; synthesis
// failures are retried on the next tick because the baseline only advances
// after a successful run.
type ProfileSynthesizer struct {
	propositions domain.PropositionStore
	profile      domain.ProfileStore
	llm          domain.LLMClient
	logger       *zap.Logger

	interval time.Duration
	trigger  int
	baseline int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewProfileSynthesizer(propositions domain.PropositionStore, profile domain.ProfileStore, llm domain.LLMClient, logger *zap.Logger) *ProfileSynthesizer {
	return &ProfileSynthesizer{
		propositions: propositions,
		profile:      profile,
		llm:          llm,
		logger:       logger,
		interval:     defaultProfileInterval,
		trigger:      defaultProfileTrigger,
		stopCh:       make(chan struct{}),
	}
}

func (s *ProfileSynthesizer) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// SetTrigger sets how many new propositions accumulate before a synthesis.
func (s *ProfileSynthesizer) SetTrigger(n int) {
	if n > 0 {
		s.trigger = n
	}
}

func (s *ProfileSynthesizer) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Baseline against what already exists so a restart does not
		// immediately re-synthesize the whole backlog.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if count, err := s.propositions.CountPropositions(ctx); err == nil {
			s.baseline = count
		}
		cancel()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("profile synthesizer started",
			zap.Duration("interval", s.interval),
			zap.Int("trigger", s.trigger))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				s.RunSynthesis(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("profile synthesizer stopped")
				return
			}
		}
	}()
}

func (s *ProfileSynthesizer) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunSynthesis checks whether enough new propositions have landed since the
// last successful run and, if so, synthesizes profile notes from the most
// recent ones. Returns how many notes were persisted.
func (s *ProfileSynthesizer) RunSynthesis(ctx context.Context) int {
	count, err := s.propositions.CountPropositions(ctx)
	if err != nil {
		s.logger.Error("failed to count propositions", zap.Error(err))
		return 0
	}
	if count-s.baseline < s.trigger {
		return 0
	}

	recent, err := s.propositions.ListCurrent(ctx, s.trigger, 0)
	if err != nil {
		s.logger.Error("failed to list propositions for synthesis", zap.Error(err))
		return 0
	}
	if len(recent) == 0 {
		s.baseline = count
		return 0
	}

	notes, err := s.llm.Synthesize(ctx, recent)
	if err != nil {
		s.logger.Error("profile synthesis failed", zap.Error(err))
		return 0
	}

	created := 0
	for i := range notes {
		note := notes[i]
		if err := s.profile.CreateNote(ctx, &note); err != nil {
			s.logger.Warn("failed to persist profile note",
				zap.String("category", string(note.Category)),
				zap.Error(err))
			continue
		}
		created++
	}
	s.baseline = count

	if created > 0 {
		s.logger.Info("profile notes synthesized",
			zap.Int("notes", created),
			zap.Int("propositions", len(recent)))
	}
	return created
}
