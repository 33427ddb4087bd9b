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
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"
)

type GeminiClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (c *GeminiClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{
				Parts: []geminiPart{{Text: prompt}},
				Role:  "user",
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s?key=%s", geminiBaseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal gemini response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("gemini API error: %s", result.Error.Message)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini API returned no content")
	}

	return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text), nil
}

func (c *GeminiClient) Propose(ctx context.Context, obs []domain.Observation) ([]domain.CandidateProposition, error) {
	result, err := c.complete(ctx, fmt.Sprintf(proposePrompt, renderObservations(obs)))
	if err != nil {
		return nil, fmt.Errorf("propose: %w", err)
	}
	return parseCandidates(result)
}

func (c *GeminiClient) Relate(ctx context.Context, candidate domain.CandidateProposition, existing domain.Proposition) (domain.Relation, error) {
	result, err := c.complete(ctx, fmt.Sprintf(relatePrompt, candidate.Text, existing.Text))
	if err != nil {
		return "", fmt.Errorf("relate: %w", err)
	}
	return parseRelation(result)
}

func (c *GeminiClient) Merge(ctx context.Context, candidate domain.CandidateProposition, existing domain.Proposition) (*domain.MergedProposition, error) {
	result, err := c.complete(ctx, fmt.Sprintf(mergePrompt, existing.Text, existing.Reasoning, candidate.Text, candidate.Reasoning))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return parseMerged(result)
}

func (c *GeminiClient) Synthesize(ctx context.Context, props []domain.Proposition) ([]domain.ProfileNote, error) {
	if len(props) == 0 {
		return nil, nil
	}

	result, err := c.complete(ctx, fmt.Sprintf(synthesizePrompt, renderPropositions(props)))
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return parseNotes(result)
}
