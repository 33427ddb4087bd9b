// Seed script for creating demo data in doxa.
// Run with: go run ./scripts/seed.go
//
// Writes through the store layer directly, so no server or inference
// provider is needed. Point DATABASE_PATH (or DATABASE_URL for postgres)
// at the same database the server uses, then explore the read endpoints.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/doxa/internal/config"
	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/Harshitk-cp/doxa/internal/store"
)

func main() {
	_ = config.Load()

	driver := config.DatabaseDriver()
	dsn := config.DatabasePath()
	if driver == store.DialectPostgres {
		dsn = config.DatabaseURL()
		if dsn == "" {
			log.Fatal("DATABASE_URL is required for the postgres driver")
		}
	}

	db, err := store.Open(driver, dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database\n", driver)

	ctx := context.Background()
	observations := store.NewObservationStore(db)
	propositions := store.NewPropositionStore(db, nil, zap.NewNop())
	decisions := store.NewDecisionStore(db)
	profile := store.NewProfileStore(db)

	now := time.Now().UTC()

	// Raw evidence: a few days of behavioral signals.
	samples := []struct {
		content     string
		contentType domain.ContentType
		source      string
		age         time.Duration
	}{
		{"go test ./... && git push", domain.ContentTypeInputText, "keystroke_monitor", 72 * time.Hour},
		{"golangci-lint run before commit", domain.ContentTypeInputText, "keystroke_monitor", 48 * time.Hour},
		{"git push origin main", domain.ContentTypeInputText, "keystroke_monitor", 24 * time.Hour},
		{"switched to Terminal", domain.ContentTypeAppEvent, "window_tracker", 26 * time.Hour},
		{"Standup notes: runs the full suite locally, CI is backup only", domain.ContentTypeAudio, "meeting_transcriber", 30 * time.Hour},
		{"switched to Figma", domain.ContentTypeAppEvent, "window_tracker", 4 * time.Hour},
		{"switched to Visual Studio Code", domain.ContentTypeAppEvent, "window_tracker", 3 * time.Hour},
		{"Reviewing design mocks for the settings page", domain.ContentTypeScreen, "screen_ocr", 4 * time.Hour},
	}

	var obs []domain.Observation
	for _, s := range samples {
		obs = append(obs, domain.Observation{
			ID:          uuid.New(),
			CapturedAt:  now.Add(-s.age),
			Content:     s.content,
			ContentType: s.contentType,
			Source:      s.source,
		})
	}
	if err := observations.RecordObservations(ctx, obs); err != nil {
		log.Fatalf("Failed to record observations: %v", err)
	}
	fmt.Printf("Recorded %d observations\n", len(obs))

	// A proposition with one revision, so group history has two versions.
	v1, err := propositions.CreateProposition(ctx, domain.PropositionFields{
		Text:       "The user runs the test suite before pushing",
		Reasoning:  "Test invocations precede every observed git push",
		Confidence: 5,
	}, []uuid.UUID{obs[0].ID, obs[2].ID})
	if err != nil {
		log.Fatalf("Failed to create proposition: %v", err)
	}
	fmt.Printf("Created proposition [%.0f]: %s\n", v1.Confidence, truncate(v1.Text, 50))

	v2, err := propositions.ReviseProposition(ctx, v1.RevisionGroupID, domain.PropositionFields{
		Text:       "The user runs tests and lint locally before every push",
		Reasoning:  "A later lint invocation strengthens the pre-push routine",
		Confidence: 7,
	}, []uuid.UUID{obs[1].ID, obs[4].ID})
	if err != nil {
		log.Fatalf("Failed to revise proposition: %v", err)
	}
	fmt.Printf("Revised to v%d [%.0f]: %s\n", v2.Version, v2.Confidence, truncate(v2.Text, 50))

	// A second, unrelated group.
	design, err := propositions.CreateProposition(ctx, domain.PropositionFields{
		Text:       "The user reviews design mocks in the early afternoon",
		Reasoning:  "Figma and mock-review activity clusters after lunch",
		Confidence: 4,
	}, []uuid.UUID{obs[5].ID, obs[7].ID})
	if err != nil {
		log.Fatalf("Failed to create proposition: %v", err)
	}
	fmt.Printf("Created proposition [%.0f]: %s\n", design.Confidence, truncate(design.Text, 50))

	// A decision for the revised head, as the engine would record it.
	rec := &domain.DecisionRecord{
		PropositionID:             v2.ID,
		RevisionGroupID:           v2.RevisionGroupID,
		Decision:                  domain.DecisionNoAction,
		ExpectedUtilityNoAction:   0.30,
		ExpectedUtilityDialogue:   0.05,
		ExpectedUtilityAutonomous: -0.45,
		AttentionLevel:            0.82,
		InterruptionCost:          1.20,
		ConfidenceNormalized:      0.70,
	}
	if err := decisions.RecordDecision(ctx, rec); err != nil {
		log.Fatalf("Failed to record decision: %v", err)
	}
	fmt.Printf("Recorded decision: %s\n", rec.Decision)

	// Profile notes the synthesizer would have produced.
	notes := []domain.ProfileNote{
		{Category: domain.ProfileWorkflow, Content: "Verifies changes locally before sharing them; CI is treated as a safety net", SourceCount: 3},
		{Category: domain.ProfileHabit, Content: "Splits the day between focused coding and afternoon design review", SourceCount: 2},
	}
	for i := range notes {
		if err := profile.CreateNote(ctx, &notes[i]); err != nil {
			log.Printf("Warning: Failed to create profile note: %v", err)
			continue
		}
		fmt.Printf("Created profile note [%s]: %s\n", notes[i].Category, truncate(notes[i].Content, 50))
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nWith the server running, explore the data:")
	fmt.Println("curl 'http://localhost:8080/api/v1/propositions/search?q=tests'")
	fmt.Printf("curl http://localhost:8080/api/v1/propositions/%s\n", v2.ID)
	fmt.Printf("curl http://localhost:8080/api/v1/groups/%s/history\n", v2.RevisionGroupID)
	fmt.Printf("curl http://localhost:8080/api/v1/groups/%s/decisions\n", v2.RevisionGroupID)
	fmt.Println("curl http://localhost:8080/api/v1/profile")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
