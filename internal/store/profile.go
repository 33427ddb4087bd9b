package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/google/uuid"
)

type ProfileStore struct {
	db *DB
}

var _ domain.ProfileStore = (*ProfileStore)(nil)

func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) CreateNote(ctx context.Context, n *domain.ProfileNote) error {
	if !domain.ValidProfileCategory(string(n.Category)) {
		return fmt.Errorf("%w: profile category %q", domain.ErrValidation, n.Category)
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	query := s.db.rebind(`INSERT INTO profile_notes (id, category, content, source_count, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		n.ID.String(), string(n.Category), n.Content, n.SourceCount, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert profile note: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *ProfileStore) ListNotes(ctx context.Context, limit int) ([]domain.ProfileNote, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.rebind(`SELECT id, category, content, source_count, created_at
		FROM profile_notes
		ORDER BY created_at DESC
		LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list profile notes: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.ProfileNote
	for rows.Next() {
		var n domain.ProfileNote
		var id, category string
		if err := rows.Scan(&id, &category, &n.Content, &n.SourceCount, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile note: %w", err)
		}
		if n.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse profile note id %q: %w", id, err)
		}
		n.Category = domain.ProfileCategory(category)
		out = append(out, n)
	}
	return out, rows.Err()
}
