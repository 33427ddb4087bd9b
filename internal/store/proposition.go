package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

const (
	reviseMaxAttempts = 3
	reviseRetryDelay  = 25 * time.Millisecond

	relatedLexicalWeight = 0.4
	relatedVectorWeight  = 0.6
)

// currentVersions restricts a query to the highest version of each revision
// group.
const currentVersions = `(
	SELECT revision_group_id, MAX(version) AS max_version
	FROM propositions
	GROUP BY revision_group_id
) cur`

type PropositionStore struct {
	db       *DB
	embedder domain.EmbeddingClient
	logger   *zap.Logger
}

var _ domain.PropositionStore = (*PropositionStore)(nil)

// NewPropositionStore builds the store. embedder may be nil; it only
// contributes on the postgres dialect, where related lookup blends lexical
// rank with pgvector proximity.
func NewPropositionStore(db *DB, embedder domain.EmbeddingClient, logger *zap.Logger) *PropositionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropositionStore{db: db, embedder: embedder, logger: logger}
}

func validateFields(f domain.PropositionFields) error {
	if strings.TrimSpace(f.Text) == "" {
		return fmt.Errorf("%w: proposition text is empty", domain.ErrValidation)
	}
	if strings.TrimSpace(f.Reasoning) == "" {
		return fmt.Errorf("%w: proposition reasoning is empty", domain.ErrValidation)
	}
	if !domain.ValidConfidence(f.Confidence) {
		return fmt.Errorf("%w: confidence %.2f outside [%.0f,%.0f]",
			domain.ErrValidation, f.Confidence, domain.MinConfidence, domain.MaxConfidence)
	}
	return nil
}

// CreateProposition persists a version-1 proposition under a fresh revision
// group and links the cited evidence. Every proposition must cite at least
// one observation.
func (s *PropositionStore) CreateProposition(ctx context.Context, fields domain.PropositionFields, evidenceIDs []uuid.UUID) (*domain.Proposition, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	if len(evidenceIDs) == 0 {
		return nil, fmt.Errorf("%w: proposition cites no evidence", domain.ErrValidation)
	}

	now := time.Now().UTC()
	p := &domain.Proposition{
		ID:              uuid.New(),
		Text:            fields.Text,
		Reasoning:       fields.Reasoning,
		Confidence:      fields.Confidence,
		RevisionGroupID: uuid.New(),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.insert(ctx, p, evidenceIDs); err != nil {
		return nil, err
	}
	return p, nil
}

// ReviseProposition appends the next version to an existing revision group.
// Concurrent revises of the same group serialize through compare-and-swap on
// the (revision_group_id, version) unique index: losers re-read the head and
// retry up to reviseMaxAttempts before surfacing a conflict.
func (s *PropositionStore) ReviseProposition(ctx context.Context, groupID uuid.UUID, fields domain.PropositionFields, evidenceIDs []uuid.UUID) (*domain.Proposition, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	if len(evidenceIDs) == 0 {
		return nil, fmt.Errorf("%w: revision cites no evidence", domain.ErrValidation)
	}

	for attempt := 1; attempt <= reviseMaxAttempts; attempt++ {
		head, err := s.groupHead(ctx, groupID)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		p := &domain.Proposition{
			ID:              uuid.New(),
			Text:            fields.Text,
			Reasoning:       fields.Reasoning,
			Confidence:      fields.Confidence,
			RevisionGroupID: groupID,
			Version:         head.Version + 1,
			CreatedAt:       head.CreatedAt,
			UpdatedAt:       now,
		}
		err = s.insert(ctx, p, evidenceIDs)
		if err == nil {
			return p, nil
		}
		if s.db.isUniqueViolation(err) || errors.Is(err, domain.ErrConcurrencyConflict) {
			s.logger.Debug("revision race lost, retrying",
				zap.String("revision_group_id", groupID.String()),
				zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(reviseRetryDelay):
			}
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: revision group %s", domain.ErrConcurrencyConflict, groupID)
}

func (s *PropositionStore) insert(ctx context.Context, p *domain.Proposition, evidenceIDs []uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	if s.db.dialect == DialectPostgres {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO propositions
				(id, text, reasoning, confidence, decay, revision_group_id, version, embedding, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.ID.String(), p.Text, p.Reasoning, p.Confidence, p.Decay,
			p.RevisionGroupID.String(), p.Version, s.embedText(ctx, p.Text),
			p.CreatedAt, p.UpdatedAt)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO propositions
				(id, text, reasoning, confidence, decay, revision_group_id, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID.String(), p.Text, p.Reasoning, p.Confidence, p.Decay,
			p.RevisionGroupID.String(), p.Version, p.CreatedAt, p.UpdatedAt)
	}
	if err != nil {
		if s.db.isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("%w: insert proposition: %v", domain.ErrPersistence, err)
	}

	var linkQuery string
	if s.db.dialect == DialectPostgres {
		linkQuery = `INSERT INTO evidence_links (observation_id, proposition_id, created_at)
			VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	} else {
		linkQuery = `INSERT OR IGNORE INTO evidence_links (observation_id, proposition_id, created_at)
			VALUES (?, ?, ?)`
	}
	for _, obsID := range evidenceIDs {
		if _, err := tx.ExecContext(ctx, linkQuery, obsID.String(), p.ID.String(), p.UpdatedAt); err != nil {
			return fmt.Errorf("%w: link evidence %s: %v", domain.ErrPersistence, obsID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if s.db.isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("%w: commit proposition: %v", domain.ErrPersistence, err)
	}
	return nil
}

// embedText returns a vector value for postgres inserts, or nil when no
// embedder is configured or embedding fails.
func (s *PropositionStore) embedText(ctx context.Context, text string) any {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Debug("embedding unavailable, storing without vector", zap.Error(err))
		return nil
	}
	v := pgvector.NewVector(vec)
	return v
}

func (s *PropositionStore) groupHead(ctx context.Context, groupID uuid.UUID) (*domain.Proposition, error) {
	query := s.db.rebind(`SELECT id, text, reasoning, confidence, decay, revision_group_id, version, created_at, updated_at
		FROM propositions
		WHERE revision_group_id = ?
		ORDER BY version DESC
		LIMIT 1`)
	p, err := scanPropositionRow(s.db.QueryRowContext(ctx, query, groupID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revision group %s: %w", groupID, ErrNotFound)
	}
	return p, err
}

func (s *PropositionStore) GetProposition(ctx context.Context, id uuid.UUID) (*domain.Proposition, error) {
	query := s.db.rebind(`SELECT id, text, reasoning, confidence, decay, revision_group_id, version, created_at, updated_at
		FROM propositions WHERE id = ?`)
	p, err := scanPropositionRow(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetGroupHistory returns every version of a revision group, ascending.
func (s *PropositionStore) GetGroupHistory(ctx context.Context, groupID uuid.UUID) ([]domain.Proposition, error) {
	query := s.db.rebind(`SELECT id, text, reasoning, confidence, decay, revision_group_id, version, created_at, updated_at
		FROM propositions
		WHERE revision_group_id = ?
		ORDER BY version ASC`)
	rows, err := s.db.QueryContext(ctx, query, groupID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: group history: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()
	return collectPropositions(rows)
}

// SearchPropositions runs ranked full-text search over the current version
// of each group. All query terms must match. An empty or unmatched query
// returns an empty result without error.
func (s *PropositionStore) SearchPropositions(ctx context.Context, query string, limit int) ([]domain.ScoredProposition, error) {
	if limit <= 0 {
		limit = 10
	}
	if strings.TrimSpace(query) == "" {
		return []domain.ScoredProposition{}, nil
	}
	if s.db.dialect == DialectPostgres {
		return s.searchPostgres(ctx, query, limit)
	}
	return s.searchSQLite(ctx, sanitizeMatch(query), limit)
}

// GetRelated surfaces existing propositions that share terms with a
// candidate statement. Any shared term counts, unlike SearchPropositions.
// On postgres with an embedder configured, lexical rank is blended with
// vector proximity.
func (s *PropositionStore) GetRelated(ctx context.Context, candidateText string, limit int) ([]domain.ScoredProposition, error) {
	if limit <= 0 {
		limit = 5
	}
	if strings.TrimSpace(candidateText) == "" {
		return []domain.ScoredProposition{}, nil
	}

	if s.db.dialect != DialectPostgres {
		return s.searchSQLite(ctx, sanitizeMatchAny(candidateText), limit)
	}

	lexical, err := s.relatedPostgresLexical(ctx, candidateText, limit)
	if err != nil {
		return nil, err
	}
	if s.embedder == nil {
		return lexical, nil
	}
	vec, err := s.embedder.Embed(ctx, candidateText)
	if err != nil {
		s.logger.Debug("related lookup falling back to lexical only", zap.Error(err))
		return lexical, nil
	}
	vector, err := s.relatedPostgresVector(ctx, vec, limit)
	if err != nil {
		return nil, err
	}
	return mergeScored(lexical, vector, relatedLexicalWeight, relatedVectorWeight, limit), nil
}

func (s *PropositionStore) searchSQLite(ctx context.Context, match string, limit int) ([]domain.ScoredProposition, error) {
	if match == "" {
		return []domain.ScoredProposition{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.text, p.reasoning, p.confidence, p.decay, p.revision_group_id, p.version,
		       p.created_at, p.updated_at, -propositions_fts.rank AS score
		FROM propositions_fts
		JOIN propositions p ON p.rowid = propositions_fts.rowid
		JOIN `+currentVersions+`
		  ON cur.revision_group_id = p.revision_group_id AND cur.max_version = p.version
		WHERE propositions_fts MATCH ?
		ORDER BY propositions_fts.rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()
	return collectScored(rows)
}

func (s *PropositionStore) searchPostgres(ctx context.Context, query string, limit int) ([]domain.ScoredProposition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.text, p.reasoning, p.confidence, p.decay, p.revision_group_id, p.version,
		       p.created_at, p.updated_at,
		       ts_rank(p.text_search, plainto_tsquery('english', $1)) AS score
		FROM propositions p
		JOIN `+currentVersions+`
		  ON cur.revision_group_id = p.revision_group_id AND cur.max_version = p.version
		WHERE p.text_search @@ plainto_tsquery('english', $1)
		ORDER BY score DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()
	return collectScored(rows)
}

func (s *PropositionStore) relatedPostgresLexical(ctx context.Context, text string, limit int) ([]domain.ScoredProposition, error) {
	terms := tsqueryAny(text)
	if terms == "" {
		return []domain.ScoredProposition{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.text, p.reasoning, p.confidence, p.decay, p.revision_group_id, p.version,
		       p.created_at, p.updated_at,
		       ts_rank(p.text_search, to_tsquery('english', $1)) AS score
		FROM propositions p
		JOIN `+currentVersions+`
		  ON cur.revision_group_id = p.revision_group_id AND cur.max_version = p.version
		WHERE p.text_search @@ to_tsquery('english', $1)
		ORDER BY score DESC
		LIMIT $2`, terms, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: related lookup: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()
	return collectScored(rows)
}

func (s *PropositionStore) relatedPostgresVector(ctx context.Context, vec []float32, limit int) ([]domain.ScoredProposition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.text, p.reasoning, p.confidence, p.decay, p.revision_group_id, p.version,
		       p.created_at, p.updated_at,
		       1 - (p.embedding <=> $1) AS score
		FROM propositions p
		JOIN `+currentVersions+`
		  ON cur.revision_group_id = p.revision_group_id AND cur.max_version = p.version
		WHERE p.embedding IS NOT NULL
		ORDER BY p.embedding <=> $1
		LIMIT $2`, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: vector lookup: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()
	return collectScored(rows)
}

// ListCurrent pages through the newest current-version propositions.
func (s *PropositionStore) ListCurrent(ctx context.Context, limit, offset int) ([]domain.Proposition, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.rebind(`SELECT p.id, p.text, p.reasoning, p.confidence, p.decay, p.revision_group_id, p.version,
		       p.created_at, p.updated_at
		FROM propositions p
		JOIN ` + currentVersions + `
		  ON cur.revision_group_id = p.revision_group_id AND cur.max_version = p.version
		ORDER BY p.updated_at DESC
		LIMIT ? OFFSET ?`)
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list current: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()
	return collectPropositions(rows)
}

// ListEvidence returns the observations cited by a proposition.
func (s *PropositionStore) ListEvidence(ctx context.Context, propositionID uuid.UUID) ([]domain.Observation, error) {
	query := s.db.rebind(`SELECT o.id, o.captured_at, o.content, o.content_type, o.source
		FROM evidence_links e
		JOIN observations o ON o.id = e.observation_id
		WHERE e.proposition_id = ?
		ORDER BY o.captured_at ASC`)
	rows, err := s.db.QueryContext(ctx, query, propositionID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: list evidence: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.Observation
	for rows.Next() {
		var o domain.Observation
		var id, ctype string
		if err := rows.Scan(&id, &o.CapturedAt, &o.Content, &ctype, &o.Source); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse observation id %q: %w", id, err)
		}
		o.ID = parsed
		o.ContentType = domain.ContentType(ctype)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PropositionStore) UpdateDecay(ctx context.Context, id uuid.UUID, decay float32) error {
	query := s.db.rebind(`UPDATE propositions SET decay = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, decay, id.String())
	if err != nil {
		return fmt.Errorf("%w: update decay: %v", domain.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PropositionStore) CountPropositions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM propositions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count propositions: %v", domain.ErrPersistence, err)
	}
	return n, nil
}

// tsqueryAny renders candidate text as an OR tsquery, keeping only plain
// word characters so the query cannot break tsquery syntax.
func tsqueryAny(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		var b strings.Builder
		for _, r := range f {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			terms = append(terms, b.String())
		}
	}
	return strings.Join(terms, " | ")
}

// mergeScored combines two ranked lists keyed by proposition id with the
// given weights and returns the topK by combined score.
func mergeScored(a, b []domain.ScoredProposition, weightA, weightB float64, topK int) []domain.ScoredProposition {
	combined := make(map[uuid.UUID]domain.ScoredProposition, len(a)+len(b))
	for _, sp := range a {
		sp.Score = sp.Score * weightA
		combined[sp.ID] = sp
	}
	for _, sp := range b {
		if existing, ok := combined[sp.ID]; ok {
			existing.Score += sp.Score * weightB
			combined[sp.ID] = existing
			continue
		}
		sp.Score = sp.Score * weightB
		combined[sp.ID] = sp
	}
	out := make([]domain.ScoredProposition, 0, len(combined))
	for _, sp := range combined {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPropositionRow(row rowScanner) (*domain.Proposition, error) {
	var (
		p       domain.Proposition
		id      string
		groupID string
	)
	err := row.Scan(&id, &p.Text, &p.Reasoning, &p.Confidence, &p.Decay, &groupID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse proposition id %q: %w", id, err)
	}
	if p.RevisionGroupID, err = uuid.Parse(groupID); err != nil {
		return nil, fmt.Errorf("parse revision group id %q: %w", groupID, err)
	}
	return &p, nil
}

func collectPropositions(rows *sql.Rows) ([]domain.Proposition, error) {
	var out []domain.Proposition
	for rows.Next() {
		p, err := scanPropositionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposition: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func collectScored(rows *sql.Rows) ([]domain.ScoredProposition, error) {
	out := []domain.ScoredProposition{}
	for rows.Next() {
		var (
			sp      domain.ScoredProposition
			id      string
			groupID string
		)
		err := rows.Scan(&id, &sp.Text, &sp.Reasoning, &sp.Confidence, &sp.Decay, &groupID, &sp.Version,
			&sp.CreatedAt, &sp.UpdatedAt, &sp.Score)
		if err != nil {
			return nil, fmt.Errorf("scan scored proposition: %w", err)
		}
		if sp.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse proposition id %q: %w", id, err)
		}
		if sp.RevisionGroupID, err = uuid.Parse(groupID); err != nil {
			return nil, fmt.Errorf("parse revision group id %q: %w", groupID, err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}
