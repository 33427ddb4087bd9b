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
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicModel       = "claude-3-5-haiku-20241022"
	anthropicVersion     = "2023-06-01"
	anthropicMaxTokens   = 2048
)

type AnthropicClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *AnthropicClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     anthropicModel,
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read anthropic response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal anthropic response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s", result.Error.Message)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic API returned no content")
	}

	return strings.TrimSpace(result.Content[0].Text), nil
}

func (c *AnthropicClient) Propose(ctx context.Context, obs []domain.Observation) ([]domain.CandidateProposition, error) {
	result, err := c.complete(ctx, fmt.Sprintf(proposePrompt, renderObservations(obs)))
	if err != nil {
		return nil, fmt.Errorf("propose: %w", err)
	}
	return parseCandidates(result)
}

func (c *AnthropicClient) Relate(ctx context.Context, candidate domain.CandidateProposition, existing domain.Proposition) (domain.Relation, error) {
	result, err := c.complete(ctx, fmt.Sprintf(relatePrompt, candidate.Text, existing.Text))
	if err != nil {
		return "", fmt.Errorf("relate: %w", err)
	}
	return parseRelation(result)
}

func (c *AnthropicClient) Merge(ctx context.Context, candidate domain.CandidateProposition, existing domain.Proposition) (*domain.MergedProposition, error) {
	result, err := c.complete(ctx, fmt.Sprintf(mergePrompt, existing.Text, existing.Reasoning, candidate.Text, candidate.Reasoning))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return parseMerged(result)
}

func (c *AnthropicClient) Synthesize(ctx context.Context, props []domain.Proposition) ([]domain.ProfileNote, error) {
	if len(props) == 0 {
		return nil, nil
	}

	result, err := c.complete(ctx, fmt.Sprintf(synthesizePrompt, renderPropositions(props)))
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return parseNotes(result)
}
