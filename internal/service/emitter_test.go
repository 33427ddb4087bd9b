package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestEmitDialoguePostsJSON(t *testing.T) {
	var got domain.DialogueRequest
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e := NewWebhookEmitter(srv.URL, "", zap.NewNop())
	req := domain.DialogueRequest{
		PropositionID:   uuid.New(),
		QuestionContext: "Do you want reviews batched before noon?",
	}
	if err := e.EmitDialogue(context.Background(), req); err != nil {
		t.Fatalf("EmitDialogue() error = %v", err)
	}
	if got.PropositionID != req.PropositionID || got.QuestionContext != req.QuestionContext {
		t.Errorf("webhook received %+v, want %+v", got, req)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
}

func TestEmitActionReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "consumer offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	e := NewWebhookEmitter("", srv.URL, zap.NewNop())
	err := e.EmitAction(context.Background(), domain.ActionRequest{
		PropositionID: uuid.New(),
		ActionPayload: "pin the terminal workspace",
	})
	if err == nil {
		t.Fatal("EmitAction() returned nil for a 502 response")
	}
}

func TestEmitWithoutURLIsQuiet(t *testing.T) {
	e := NewWebhookEmitter("", "", zap.NewNop())
	if err := e.EmitDialogue(context.Background(), domain.DialogueRequest{PropositionID: uuid.New()}); err != nil {
		t.Errorf("EmitDialogue() error = %v with no URL configured", err)
	}
	if err := e.EmitAction(context.Background(), domain.ActionRequest{PropositionID: uuid.New()}); err != nil {
		t.Errorf("EmitAction() error = %v with no URL configured", err)
	}
}
