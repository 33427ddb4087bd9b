package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/doxa/internal/domain"
)

const (
	cerebrasAPIURL = "https://api.cerebras.ai/v1/chat/completions"
	cerebrasModel  = "llama-3.3-70b"
)

type CerebrasClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewCerebrasClient(apiKey string) *CerebrasClient {
	return &CerebrasClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// Cerebras uses OpenAI-compatible request/response format
type cerebrasMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cerebrasRequest struct {
	Model       string            `json:"model"`
	Messages    []cerebrasMessage `json:"messages"`
	Temperature float32           `json:"temperature"`
}

type cerebrasResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *CerebrasClient) complete(ctx context.Context, messages []cerebrasMessage, temp float32) (string, error) {
	body, err := json.Marshal(cerebrasRequest{
		Model:       cerebrasModel,
		Messages:    messages,
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal cerebras request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cerebrasAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create cerebras request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cerebras request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read cerebras response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cerebras API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result cerebrasResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal cerebras response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("cerebras API error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("cerebras API returned no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (c *CerebrasClient) Propose(ctx context.Context, obs []domain.Observation) ([]domain.CandidateProposition, error) {
	messages := []cerebrasMessage{
		{Role: "user", Content: fmt.Sprintf(proposePrompt, renderObservations(obs))},
	}

	result, err := c.complete(ctx, messages, 0.3)
	if err != nil {
		return nil, fmt.Errorf("propose: %w", err)
	}
	return parseCandidates(result)
}

func (c *CerebrasClient) Relate(ctx context.Context, candidate domain.CandidateProposition, existing domain.Proposition) (domain.Relation, error) {
	messages := []cerebrasMessage{
		{Role: "user", Content: fmt.Sprintf(relatePrompt, candidate.Text, existing.Text)},
	}

	result, err := c.complete(ctx, messages, 0)
	if err != nil {
		return "", fmt.Errorf("relate: %w", err)
	}
	return parseRelation(result)
}

func (c *CerebrasClient) Merge(ctx context.Context, candidate domain.CandidateProposition, existing domain.Proposition) (*domain.MergedProposition, error) {
	messages := []cerebrasMessage{
		{Role: "user", Content: fmt.Sprintf(mergePrompt, existing.Text, existing.Reasoning, candidate.Text, candidate.Reasoning)},
	}

	result, err := c.complete(ctx, messages, 0.2)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return parseMerged(result)
}

func (c *CerebrasClient) Synthesize(ctx context.Context, props []domain.Proposition) ([]domain.ProfileNote, error) {
	if len(props) == 0 {
		return nil, nil
	}

	messages := []cerebrasMessage{
		{Role: "user", Content: fmt.Sprintf(synthesizePrompt, renderPropositions(props))},
	}

	result, err := c.complete(ctx, messages, 0.3)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return parseNotes(result)
}
