package domain

import (
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentTypeInputText ContentType = "input_text"
	ContentTypeScreen    ContentType = "screen_capture"
	ContentTypeAudio     ContentType = "audio_transcript"
	ContentTypeAppEvent  ContentType = "app_event"
	ContentTypeSynthetic ContentType = "synthetic"
)

func ValidContentType(t string) bool {
	switch ContentType(t) {
	case ContentTypeInputText, ContentTypeScreen, ContentTypeAudio, ContentTypeAppEvent, ContentTypeSynthetic:
		return true
	}
	return false
}

// Observation is an immutable unit of raw input evidence. It is persisted
// once by a producer and never mutated; propositions reference it through
// evidence links but never own it.
type Observation struct {
	ID          uuid.UUID   `json:"id"`
	CapturedAt  time.Time   `json:"captured_at"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"content_type"`
	Source      string      `json:"source"`
}

// Update is the producer-facing ingress payload. The orchestrator assigns
// the id and defaults captured_at to now before enqueueing.
type Update struct {
	Content     string     `json:"content"`
	ContentType string     `json:"content_type"`
	Source      string     `json:"source"`
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
}

// Batch is a drained set of observations plus the confirmation token the
// consumer hands back once downstream processing has completed.
type Batch struct {
	Token        uint64
	Observations []Observation
}

func (b *Batch) Empty() bool {
	return b == nil || len(b.Observations) == 0
}
