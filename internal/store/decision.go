package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/google/uuid"
)

type DecisionStore struct {
	db *DB
}

var _ domain.DecisionStore = (*DecisionStore)(nil)

func NewDecisionStore(db *DB) *DecisionStore {
	return &DecisionStore{db: db}
}

// RecordDecision persists the record and marks the previous non-superseded
// record of the same revision group as superseded. Superseded records are
// kept, never deleted.
func (s *DecisionStore) RecordDecision(ctx context.Context, r *domain.DecisionRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.DecidedAt.IsZero() {
		r.DecidedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	supersede := s.db.rebind(`UPDATE decision_records
		SET superseded_at = ?
		WHERE revision_group_id = ? AND superseded_at IS NULL`)
	if _, err := tx.ExecContext(ctx, supersede, r.DecidedAt, r.RevisionGroupID.String()); err != nil {
		return fmt.Errorf("%w: supersede decisions: %v", domain.ErrPersistence, err)
	}

	insert := s.db.rebind(`INSERT INTO decision_records
		(id, proposition_id, revision_group_id, decision, eu_no_action, eu_dialogue, eu_autonomous,
		 attention_level, interruption_cost, confidence_normalized, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, insert,
		r.ID.String(), r.PropositionID.String(), r.RevisionGroupID.String(), string(r.Decision),
		r.ExpectedUtilityNoAction, r.ExpectedUtilityDialogue, r.ExpectedUtilityAutonomous,
		r.AttentionLevel, r.InterruptionCost, r.ConfidenceNormalized, r.DecidedAt)
	if err != nil {
		return fmt.Errorf("%w: insert decision: %v", domain.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit decision: %v", domain.ErrPersistence, err)
	}
	return nil
}

// ListDecisions returns a revision group's decision history, newest first.
func (s *DecisionStore) ListDecisions(ctx context.Context, groupID uuid.UUID) ([]domain.DecisionRecord, error) {
	query := s.db.rebind(`SELECT id, proposition_id, revision_group_id, decision,
		       eu_no_action, eu_dialogue, eu_autonomous,
		       attention_level, interruption_cost, confidence_normalized,
		       decided_at, superseded_at
		FROM decision_records
		WHERE revision_group_id = ?
		ORDER BY decided_at DESC`)
	rows, err := s.db.QueryContext(ctx, query, groupID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: list decisions: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.DecisionRecord
	for rows.Next() {
		var r domain.DecisionRecord
		var id, propID, grpID, decision string
		err := rows.Scan(&id, &propID, &grpID, &decision,
			&r.ExpectedUtilityNoAction, &r.ExpectedUtilityDialogue, &r.ExpectedUtilityAutonomous,
			&r.AttentionLevel, &r.InterruptionCost, &r.ConfidenceNormalized,
			&r.DecidedAt, &r.SupersededAt)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse decision id %q: %w", id, err)
		}
		if r.PropositionID, err = uuid.Parse(propID); err != nil {
			return nil, fmt.Errorf("parse proposition id %q: %w", propID, err)
		}
		if r.RevisionGroupID, err = uuid.Parse(grpID); err != nil {
			return nil, fmt.Errorf("parse revision group id %q: %w", grpID, err)
		}
		r.Decision = domain.Decision(decision)
		out = append(out, r)
	}
	return out, rows.Err()
}
