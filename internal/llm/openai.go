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
	openAIChatURL = "https://api.openai.com/v1/chat/completions"
	chatModel     = "gpt-4o-mini"
)

type OpenAIClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// chat types for OpenAI API
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) complete(ctx context.Context, messages []chatMessage, temp float32) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       chatModel,
		Messages:    messages,
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("chat API error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) Propose(ctx context.Context, obs []domain.Observation) ([]domain.CandidateProposition, error) {
	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(proposePrompt, renderObservations(obs))},
	}

	result, err := c.complete(ctx, messages, 0.3)
	if err != nil {
		return nil, fmt.Errorf("propose: %w", err)
	}
	return parseCandidates(result)
}

func (c *OpenAIClient) Relate(ctx context.Context, candidate domain.CandidateProposition, existing domain.Proposition) (domain.Relation, error) {
	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(relatePrompt, candidate.Text, existing.Text)},
	}

	result, err := c.complete(ctx, messages, 0)
	if err != nil {
		return "", fmt.Errorf("relate: %w", err)
	}
	return parseRelation(result)
}

func (c *OpenAIClient) Merge(ctx context.Context, candidate domain.CandidateProposition, existing domain.Proposition) (*domain.MergedProposition, error) {
	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(mergePrompt, existing.Text, existing.Reasoning, candidate.Text, candidate.Reasoning)},
	}

	result, err := c.complete(ctx, messages, 0.2)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return parseMerged(result)
}

func (c *OpenAIClient) Synthesize(ctx context.Context, props []domain.Proposition) ([]domain.ProfileNote, error) {
	if len(props) == 0 {
		return nil, nil
	}

	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(synthesizePrompt, renderPropositions(props))},
	}

	result, err := c.complete(ctx, messages, 0.3)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return parseNotes(result)
}
