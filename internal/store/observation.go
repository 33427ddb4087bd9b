package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/google/uuid"
)

type ObservationStore struct {
	db *DB
}

var _ domain.ObservationStore = (*ObservationStore)(nil)

func NewObservationStore(db *DB) *ObservationStore {
	return &ObservationStore{db: db}
}

// RecordObservations persists the batch. Idempotent by id: replayed
// observations are silently skipped so restart replays never duplicate rows.
func (s *ObservationStore) RecordObservations(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	var query string
	if s.db.dialect == DialectPostgres {
		query = `INSERT INTO observations (id, captured_at, content, content_type, source)
			VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`
	} else {
		query = `INSERT OR IGNORE INTO observations (id, captured_at, content, content_type, source)
			VALUES (?, ?, ?, ?, ?)`
	}
	for _, o := range obs {
		if _, err := tx.ExecContext(ctx, query,
			o.ID.String(), o.CapturedAt, o.Content, string(o.ContentType), o.Source); err != nil {
			return fmt.Errorf("%w: record observation %s: %v", domain.ErrPersistence, o.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit observations: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *ObservationStore) GetObservation(ctx context.Context, id uuid.UUID) (*domain.Observation, error) {
	query := s.db.rebind(`SELECT id, captured_at, content, content_type, source
		FROM observations WHERE id = ?`)
	var o domain.Observation
	var rawID, ctype string
	err := s.db.QueryRowContext(ctx, query, id.String()).
		Scan(&rawID, &o.CapturedAt, &o.Content, &ctype, &o.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get observation: %v", domain.ErrPersistence, err)
	}
	if o.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parse observation id %q: %w", rawID, err)
	}
	o.ContentType = domain.ContentType(ctype)
	return &o, nil
}

// FilterProcessed returns the subset of ids already cited by an evidence
// link. The pipeline skips those when a replayed batch comes through.
func (s *ObservationStore) FilterProcessed(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	processed := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return processed, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	query := `SELECT DISTINCT observation_id FROM evidence_links
		WHERE observation_id IN (` + s.db.placeholders(len(ids), 1) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: filter processed: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan observation id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse observation id %q: %w", raw, err)
		}
		processed[id] = true
	}
	return processed, rows.Err()
}
