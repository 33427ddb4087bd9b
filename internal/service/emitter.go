package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"go.uber.org/zap"
)

const webhookTimeout = 10 * time.Second

// WebhookEmitter posts dialogue and action requests as JSON to configured
// HTTP endpoints. An empty URL downgrades that channel to a log line so the
// pipeline keeps running without a consumer attached.
type WebhookEmitter struct {
	dialogueURL string
	actionURL   string
	httpClient  *http.Client
	logger      *zap.Logger
}

var (
	_ domain.DialogueEmitter = (*WebhookEmitter)(nil)
	_ domain.ActionEmitter   = (*WebhookEmitter)(nil)
)

func NewWebhookEmitter(dialogueURL, actionURL string, logger *zap.Logger) *WebhookEmitter {
	return &WebhookEmitter{
		dialogueURL: dialogueURL,
		actionURL:   actionURL,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

func (e *WebhookEmitter) EmitDialogue(ctx context.Context, req domain.DialogueRequest) error {
	if e.dialogueURL == "" {
		e.logger.Info("dialogue request, no webhook configured",
			zap.String("proposition_id", req.PropositionID.String()),
			zap.String("question_context", req.QuestionContext))
		return nil
	}
	return e.post(ctx, e.dialogueURL, req)
}

func (e *WebhookEmitter) EmitAction(ctx context.Context, req domain.ActionRequest) error {
	if e.actionURL == "" {
		e.logger.Info("action request, no webhook configured",
			zap.String("proposition_id", req.PropositionID.String()),
			zap.String("action_payload", req.ActionPayload))
		return nil
	}
	return e.post(ctx, e.actionURL, req)
}

func (e *WebhookEmitter) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
