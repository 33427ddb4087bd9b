package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultDecayRunInterval = 30 * time.Minute
	defaultDecayHalfLife    = 168.0 // hours

	// Writes below this delta are skipped to keep the updater from
	// rewriting every row on every run.
	decayWriteThreshold = 0.005
	decayPageSize       = 200
)

type DecayResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

// DecayService recomputes staleness for current propositions on an interval.
// Stored confidence is never mutated; readers discount it with the decay
// value at query time.
type DecayService struct {
	propositions domain.PropositionStore
	logger       *zap.Logger

	interval time.Duration
	halfLife float64
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewDecayService(propositions domain.PropositionStore, logger *zap.Logger) *DecayService {
	return &DecayService{
		propositions: propositions,
		logger:       logger,
		interval:     defaultDecayRunInterval,
		halfLife:     defaultDecayHalfLife,
		stopCh:       make(chan struct{}),
	}
}

func (s *DecayService) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// SetHalfLife sets how many hours without reinforcement halve a
// proposition's freshness.
func (s *DecayService) SetHalfLife(hours float64) {
	if hours > 0 {
		s.halfLife = hours
	}
}

func (s *DecayService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("decay worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				s.RunDecay(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("decay worker stopped")
				return
			}
		}
	}()
}

func (s *DecayService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunDecay walks the current version of every revision group and refreshes
// its decay value: 1 - 0.5^(hours_since_update / half_life).
func (s *DecayService) RunDecay(ctx context.Context) *DecayResult {
	result := &DecayResult{}
	now := time.Now().UTC()

	for offset := 0; ; offset += decayPageSize {
		page, err := s.propositions.ListCurrent(ctx, decayPageSize, offset)
		if err != nil {
			s.logger.Error("failed to list propositions for decay", zap.Error(err))
			return result
		}
		if len(page) == 0 {
			break
		}

		for _, p := range page {
			result.Scanned++

			decay := s.Compute(now.Sub(p.UpdatedAt))
			if math.Abs(float64(decay-p.Decay)) <= decayWriteThreshold {
				continue
			}
			if err := s.propositions.UpdateDecay(ctx, p.ID, decay); err != nil {
				s.logger.Warn("failed to update decay",
					zap.String("proposition_id", p.ID.String()),
					zap.Error(err))
				continue
			}
			result.Updated++
		}

		if len(page) < decayPageSize {
			break
		}
	}

	if result.Updated > 0 {
		s.logger.Info("decay run complete",
			zap.Int("scanned", result.Scanned),
			zap.Int("updated", result.Updated))
	}
	return result
}

// Compute maps elapsed time since last update to a decay value in [0,1].
func (s *DecayService) Compute(elapsed time.Duration) float32 {
	if elapsed <= 0 {
		return 0
	}
	decay := 1 - math.Pow(0.5, elapsed.Hours()/s.halfLife)
	if decay < 0 {
		return 0
	}
	if decay > 1 {
		return 1
	}
	return float32(decay)
}
