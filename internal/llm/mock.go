package llm

import (
	"context"

	"github.com/Harshitk-cp/doxa/internal/domain"
)

// MockClient is a configurable LLM client for testing.
// Set the response fields to control what each method returns.
type MockClient struct {
	ProposeResponse    []domain.CandidateProposition
	ProposeError       error
	RelateResponse     domain.Relation
	RelateError        error
	MergeResponse      *domain.MergedProposition
	MergeError         error
	SynthesizeResponse []domain.ProfileNote
	SynthesizeError    error

	// Call tracking for assertions
	ProposeCalls    [][]domain.Observation
	RelateCalls     []RelateCall
	MergeCalls      []MergeCall
	SynthesizeCalls [][]domain.Proposition
}

type RelateCall struct {
	Candidate domain.CandidateProposition
	Existing  domain.Proposition
}

type MergeCall struct {
	Candidate domain.CandidateProposition
	Existing  domain.Proposition
}

func NewMockClient() *MockClient {
	return &MockClient{
		ProposeResponse: []domain.CandidateProposition{},
		RelateResponse:  domain.RelationUnrelated,
		MergeResponse: &domain.MergedProposition{
			Text:       "Mock merged proposition",
			Reasoning:  "Mock merged reasoning",
			Confidence: 5,
		},
		SynthesizeResponse: []domain.ProfileNote{},
	}
}

func (c *MockClient) Propose(ctx context.Context, obs []domain.Observation) ([]domain.CandidateProposition, error) {
	c.ProposeCalls = append(c.ProposeCalls, obs)
	if c.ProposeError != nil {
		return nil, c.ProposeError
	}
	return c.ProposeResponse, nil
}

func (c *MockClient) Relate(ctx context.Context, candidate domain.CandidateProposition, existing domain.Proposition) (domain.Relation, error) {
	c.RelateCalls = append(c.RelateCalls, RelateCall{Candidate: candidate, Existing: existing})
	if c.RelateError != nil {
		return "", c.RelateError
	}
	return c.RelateResponse, nil
}

func (c *MockClient) Merge(ctx context.Context, candidate domain.CandidateProposition, existing domain.Proposition) (*domain.MergedProposition, error) {
	c.MergeCalls = append(c.MergeCalls, MergeCall{Candidate: candidate, Existing: existing})
	if c.MergeError != nil {
		return nil, c.MergeError
	}
	return c.MergeResponse, nil
}

func (c *MockClient) Synthesize(ctx context.Context, props []domain.Proposition) ([]domain.ProfileNote, error) {
	c.SynthesizeCalls = append(c.SynthesizeCalls, props)
	if c.SynthesizeError != nil {
		return nil, c.SynthesizeError
	}
	return c.SynthesizeResponse, nil
}

// Reset clears all recorded calls and resets responses to defaults.
func (c *MockClient) Reset() {
	c.ProposeResponse = []domain.CandidateProposition{}
	c.ProposeError = nil
	c.RelateResponse = domain.RelationUnrelated
	c.RelateError = nil
	c.MergeResponse = &domain.MergedProposition{
		Text:       "Mock merged proposition",
		Reasoning:  "Mock merged reasoning",
		Confidence: 5,
	}
	c.MergeError = nil
	c.SynthesizeResponse = []domain.ProfileNote{}
	c.SynthesizeError = nil
	c.ProposeCalls = nil
	c.RelateCalls = nil
	c.MergeCalls = nil
	c.SynthesizeCalls = nil
}
