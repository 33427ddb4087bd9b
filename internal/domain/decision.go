package domain

import (
	"time"

	"github.com/google/uuid"
)

type Decision string

const (
	DecisionNoAction   Decision = "no_action"
	DecisionDialogue   Decision = "dialogue"
	DecisionAutonomous Decision = "autonomous_action"
)

func ValidDecision(d string) bool {
	switch Decision(d) {
	case DecisionNoAction, DecisionDialogue, DecisionAutonomous:
		return true
	}
	return false
}

// DecisionRecord captures one decision-engine evaluation. It is attached to
// the proposition version that triggered it; when the group is revised and
// re-decided, the prior record is marked superseded, never deleted.
type DecisionRecord struct {
	ID                        uuid.UUID  `json:"id"`
	PropositionID             uuid.UUID  `json:"proposition_id"`
	RevisionGroupID           uuid.UUID  `json:"revision_group_id"`
	Decision                  Decision   `json:"decision"`
	ExpectedUtilityNoAction   float64    `json:"expected_utility_no_action"`
	ExpectedUtilityDialogue   float64    `json:"expected_utility_dialogue"`
	ExpectedUtilityAutonomous float64    `json:"expected_utility_autonomous"`
	AttentionLevel            float64    `json:"attention_level"`
	InterruptionCost          float64    `json:"interruption_cost"`
	ConfidenceNormalized      float64    `json:"confidence_normalized"`
	DecidedAt                 time.Time  `json:"decided_at"`
	SupersededAt              *time.Time `json:"superseded_at,omitempty"`
}

// DialogueRequest is emitted to the dialogue webhook when a decision resolves
// to dialogue. The response arrives out of band, correlated by proposition id.
type DialogueRequest struct {
	PropositionID   uuid.UUID `json:"proposition_id"`
	QuestionContext string    `json:"question_context"`
}

// ActionRequest is emitted to the action webhook when a decision resolves to
// autonomous_action.
type ActionRequest struct {
	PropositionID uuid.UUID `json:"proposition_id"`
	ActionPayload string    `json:"action_payload"`
}
