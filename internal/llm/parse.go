package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// stripFences removes the markdown fences models wrap JSON in even when told
// not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseCandidates decodes and strictly validates a propose response. Any
// malformed or out-of-range candidate rejects the whole response, so the
// caller can retry the request rather than persist partial garbage.
func parseCandidates(raw string) ([]domain.CandidateProposition, error) {
	raw = stripFences(raw)
	var candidates []domain.CandidateProposition
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return nil, fmt.Errorf("%w: parse propose response: %v (raw: %s)", domain.ErrValidation, err, raw)
	}
	for i, c := range candidates {
		if err := validate.Struct(c); err != nil {
			return nil, fmt.Errorf("%w: candidate %d: %v", domain.ErrValidation, i, err)
		}
	}
	return candidates, nil
}

func parseRelation(raw string) (domain.Relation, error) {
	token := strings.ToLower(strings.Trim(stripFences(raw), `"'.`))
	if !domain.ValidRelation(token) {
		return "", fmt.Errorf("%w: relation %q (valid: same, related, unrelated)", domain.ErrValidation, raw)
	}
	return domain.Relation(token), nil
}

func parseMerged(raw string) (*domain.MergedProposition, error) {
	raw = stripFences(raw)
	var merged domain.MergedProposition
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return nil, fmt.Errorf("%w: parse merge response: %v (raw: %s)", domain.ErrValidation, err, raw)
	}
	if err := validate.Struct(merged); err != nil {
		return nil, fmt.Errorf("%w: merged proposition: %v", domain.ErrValidation, err)
	}
	return &merged, nil
}

func parseNotes(raw string) ([]domain.ProfileNote, error) {
	raw = stripFences(raw)
	var notes []domain.ProfileNote
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		return nil, fmt.Errorf("%w: parse synthesize response: %v (raw: %s)", domain.ErrValidation, err, raw)
	}
	for i, n := range notes {
		if !domain.ValidProfileCategory(string(n.Category)) {
			return nil, fmt.Errorf("%w: note %d category %q", domain.ErrValidation, i, n.Category)
		}
		if strings.TrimSpace(n.Content) == "" {
			return nil, fmt.Errorf("%w: note %d has empty content", domain.ErrValidation, i)
		}
	}
	return notes, nil
}
