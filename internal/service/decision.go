package service

import (
	"fmt"

	"github.com/Harshitk-cp/doxa/internal/domain"
)

// Base utility matrix for acting on a proposition. "Success" means the
// proposition turns out to be true, "failure" that it was wrong. Doing
// nothing about a true proposition is a missed insight; doing nothing about
// a false one costs nothing.
const (
	autonomousSuccessUtility = 1.0
	autonomousFailureUtility = -0.5
	dialogueSuccessUtility   = 0.7
	dialogueFailureUtility   = -0.15
	missedInsightUtility     = -0.6
)

// DecisionConfig tunes how attention scales the risk of interrupting.
type DecisionConfig struct {
	// HighFocusThreshold and LowFocusThreshold split focus into three bands.
	HighFocusThreshold float64
	LowFocusThreshold  float64

	// BaseInterruptionCost is the mid-band cost of pulling the user away,
	// recorded on every decision after scaling by the band multiplier.
	BaseInterruptionCost float64

	// HighFocusMultiplier and LowFocusMultiplier scale the failure utilities
	// of the two interrupting actions. The mid band multiplies by 1.
	HighFocusMultiplier float64
	LowFocusMultiplier  float64
}

func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		HighFocusThreshold:   0.8,
		LowFocusThreshold:    0.3,
		BaseInterruptionCost: 0.5,
		HighFocusMultiplier:  2.4,
		LowFocusMultiplier:   0.4,
	}
}

// DecisionEngine chooses what to do with a proposition given the user's
// current attention. Decide is a pure function of its inputs: no clock, no
// stores, no randomness, so the same proposition and attention state always
// produce the same decision.
type DecisionEngine struct {
	cfg DecisionConfig
}

func NewDecisionEngine(cfg DecisionConfig) (*DecisionEngine, error) {
	if cfg.HighFocusThreshold <= 0 || cfg.HighFocusThreshold > 1 {
		return nil, fmt.Errorf("%w: high focus threshold %v outside (0, 1]", domain.ErrConfiguration, cfg.HighFocusThreshold)
	}
	if cfg.LowFocusThreshold < 0 || cfg.LowFocusThreshold >= cfg.HighFocusThreshold {
		return nil, fmt.Errorf("%w: low focus threshold %v must be in [0, high)", domain.ErrConfiguration, cfg.LowFocusThreshold)
	}
	if cfg.BaseInterruptionCost < 0 {
		return nil, fmt.Errorf("%w: base interruption cost %v is negative", domain.ErrConfiguration, cfg.BaseInterruptionCost)
	}
	if cfg.HighFocusMultiplier <= 0 || cfg.LowFocusMultiplier <= 0 {
		return nil, fmt.Errorf("%w: focus multipliers must be positive", domain.ErrConfiguration)
	}
	return &DecisionEngine{cfg: cfg}, nil
}

// Decide scores the three possible actions and picks the highest expected
// utility. Ties resolve toward the least intrusive action: no_action over
// dialogue over autonomous_action. The returned record carries every input
// to the choice; ID and DecidedAt are left for the store to assign.
func (e *DecisionEngine) Decide(p domain.Proposition, att domain.AttentionState) domain.DecisionRecord {
	prob := NormalizeConfidence(p.Confidence)
	multiplier := e.attentionMultiplier(att.FocusLevel)

	euNoAction := prob * missedInsightUtility
	euDialogue := prob*dialogueSuccessUtility + (1-prob)*dialogueFailureUtility*multiplier
	euAutonomous := prob*autonomousSuccessUtility + (1-prob)*autonomousFailureUtility*multiplier

	decision := domain.DecisionNoAction
	best := euNoAction
	if euDialogue > best {
		decision = domain.DecisionDialogue
		best = euDialogue
	}
	if euAutonomous > best {
		decision = domain.DecisionAutonomous
	}

	return domain.DecisionRecord{
		PropositionID:             p.ID,
		RevisionGroupID:           p.RevisionGroupID,
		Decision:                  decision,
		ExpectedUtilityNoAction:   euNoAction,
		ExpectedUtilityDialogue:   euDialogue,
		ExpectedUtilityAutonomous: euAutonomous,
		AttentionLevel:            att.FocusLevel,
		InterruptionCost:          e.cfg.BaseInterruptionCost * multiplier,
		ConfidenceNormalized:      prob,
	}
}

func (e *DecisionEngine) attentionMultiplier(focus float64) float64 {
	switch {
	case focus >= e.cfg.HighFocusThreshold:
		return e.cfg.HighFocusMultiplier
	case focus < e.cfg.LowFocusThreshold:
		return e.cfg.LowFocusMultiplier
	default:
		return 1
	}
}

// NormalizeConfidence maps the 1..10 confidence scale onto a probability in
// [0, 1]. Out-of-range input clamps rather than errors.
func NormalizeConfidence(c float32) float64 {
	p := (float64(c) - float64(domain.MinConfidence)) / float64(domain.MaxConfidence-domain.MinConfidence)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
