package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProfileCategory string

const (
	ProfileWorkflow   ProfileCategory = "workflow"
	ProfilePreference ProfileCategory = "preference"
	ProfileHabit      ProfileCategory = "habit"
)

func ValidProfileCategory(c string) bool {
	switch ProfileCategory(c) {
	case ProfileWorkflow, ProfilePreference, ProfileHabit:
		return true
	}
	return false
}

// ProfileNote is a durable synthesis of recent propositions into a stable
// statement about how the user works. Notes are append-only.
type ProfileNote struct {
	ID          uuid.UUID       `json:"id"`
	Category    ProfileCategory `json:"category"`
	Content     string          `json:"content"`
	SourceCount int             `json:"source_count"`
	CreatedAt   time.Time       `json:"created_at"`
}
