package domain

import "time"

// AttentionState is a point-in-time estimate of user focus. It is ephemeral:
// recomputed on a fixed cadence, read through non-blocking snapshots, and
// never persisted as authoritative history.
type AttentionState struct {
	FocusLevel          float64   `json:"focus_level"`
	ActiveApplication   string    `json:"active_application"`
	IdleSeconds         float64   `json:"idle_seconds"`
	RecentActivityCount int       `json:"recent_activity_count"`
	AppSwitchRate       float64   `json:"app_switch_rate"`
	Confidence          float64   `json:"confidence"`
	SampledAt           time.Time `json:"sampled_at"`
}
