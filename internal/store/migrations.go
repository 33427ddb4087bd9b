package store

const schemaVersionMax = 1

var sqliteMigrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS observations (
			id           TEXT PRIMARY KEY,
			captured_at  TIMESTAMP NOT NULL,
			content      TEXT NOT NULL,
			content_type TEXT NOT NULL,
			source       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS propositions (
			id                TEXT PRIMARY KEY,
			text              TEXT NOT NULL,
			reasoning         TEXT NOT NULL DEFAULT '',
			confidence        REAL NOT NULL CHECK (confidence >= 1 AND confidence <= 10),
			decay             REAL NOT NULL DEFAULT 0,
			revision_group_id TEXT NOT NULL,
			version           INTEGER NOT NULL CHECK (version >= 1),
			created_at        TIMESTAMP NOT NULL,
			updated_at        TIMESTAMP NOT NULL,
			UNIQUE (revision_group_id, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_propositions_group
			ON propositions (revision_group_id, version DESC)`,
		`CREATE TABLE IF NOT EXISTS evidence_links (
			observation_id TEXT NOT NULL REFERENCES observations(id),
			proposition_id TEXT NOT NULL REFERENCES propositions(id),
			created_at     TIMESTAMP NOT NULL,
			PRIMARY KEY (observation_id, proposition_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_proposition
			ON evidence_links (proposition_id)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS propositions_fts USING fts5(
			text,
			reasoning,
			content='propositions',
			content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS propositions_fts_insert
			AFTER INSERT ON propositions BEGIN
				INSERT INTO propositions_fts(rowid, text, reasoning)
				VALUES (new.rowid, new.text, new.reasoning);
			END`,
		`CREATE TRIGGER IF NOT EXISTS propositions_fts_delete
			AFTER DELETE ON propositions BEGIN
				INSERT INTO propositions_fts(propositions_fts, rowid, text, reasoning)
				VALUES ('delete', old.rowid, old.text, old.reasoning);
			END`,
		`CREATE TRIGGER IF NOT EXISTS propositions_fts_update
			AFTER UPDATE ON propositions BEGIN
				INSERT INTO propositions_fts(propositions_fts, rowid, text, reasoning)
				VALUES ('delete', old.rowid, old.text, old.reasoning);
				INSERT INTO propositions_fts(rowid, text, reasoning)
				VALUES (new.rowid, new.text, new.reasoning);
			END`,
		`CREATE TABLE IF NOT EXISTS decision_records (
			id                    TEXT PRIMARY KEY,
			proposition_id        TEXT NOT NULL REFERENCES propositions(id),
			revision_group_id     TEXT NOT NULL,
			decision              TEXT NOT NULL,
			eu_no_action          REAL NOT NULL,
			eu_dialogue           REAL NOT NULL,
			eu_autonomous         REAL NOT NULL,
			attention_level       REAL NOT NULL,
			interruption_cost     REAL NOT NULL,
			confidence_normalized REAL NOT NULL,
			decided_at            TIMESTAMP NOT NULL,
			superseded_at         TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_group
			ON decision_records (revision_group_id, decided_at DESC)`,
		`CREATE TABLE IF NOT EXISTS profile_notes (
			id           TEXT PRIMARY KEY,
			category     TEXT NOT NULL,
			content      TEXT NOT NULL,
			source_count INTEGER NOT NULL DEFAULT 0,
			created_at   TIMESTAMP NOT NULL
		)`,
	},
}

var postgresMigrations = map[int][]string{
	1: {
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS observations (
			id           UUID PRIMARY KEY,
			captured_at  TIMESTAMPTZ NOT NULL,
			content      TEXT NOT NULL,
			content_type TEXT NOT NULL,
			source       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS propositions (
			id                UUID PRIMARY KEY,
			text              TEXT NOT NULL,
			reasoning         TEXT NOT NULL DEFAULT '',
			confidence        REAL NOT NULL CHECK (confidence BETWEEN 1 AND 10),
			decay             REAL NOT NULL DEFAULT 0,
			revision_group_id UUID NOT NULL,
			version           INTEGER NOT NULL CHECK (version >= 1),
			embedding         vector(1536),
			text_search       TSVECTOR GENERATED ALWAYS AS
				(to_tsvector('english', text || ' ' || reasoning)) STORED,
			created_at        TIMESTAMPTZ NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL,
			UNIQUE (revision_group_id, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_propositions_group
			ON propositions (revision_group_id, version DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_propositions_search
			ON propositions USING GIN (text_search)`,
		`CREATE TABLE IF NOT EXISTS evidence_links (
			observation_id UUID NOT NULL REFERENCES observations(id),
			proposition_id UUID NOT NULL REFERENCES propositions(id),
			created_at     TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (observation_id, proposition_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_proposition
			ON evidence_links (proposition_id)`,
		`CREATE TABLE IF NOT EXISTS decision_records (
			id                    UUID PRIMARY KEY,
			proposition_id        UUID NOT NULL REFERENCES propositions(id),
			revision_group_id     UUID NOT NULL,
			decision              TEXT NOT NULL,
			eu_no_action          DOUBLE PRECISION NOT NULL,
			eu_dialogue           DOUBLE PRECISION NOT NULL,
			eu_autonomous         DOUBLE PRECISION NOT NULL,
			attention_level       DOUBLE PRECISION NOT NULL,
			interruption_cost     DOUBLE PRECISION NOT NULL,
			confidence_normalized DOUBLE PRECISION NOT NULL,
			decided_at            TIMESTAMPTZ NOT NULL,
			superseded_at         TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_group
			ON decision_records (revision_group_id, decided_at DESC)`,
		`CREATE TABLE IF NOT EXISTS profile_notes (
			id           UUID PRIMARY KEY,
			category     TEXT NOT NULL,
			content      TEXT NOT NULL,
			source_count INTEGER NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL
		)`,
	},
}
