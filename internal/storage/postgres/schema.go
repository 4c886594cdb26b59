// Package postgres provides a PostgreSQL implementation of the storage
// interfaces, with pgvector-accelerated similarity search when the
// extension is available.
package postgres

// Schema contains the SQL statements to create the database schema.
// All statements are idempotent so the schema can be applied on every open.
const Schema = `
-- Speakers: canonical deduplicated profiles. Rows are never deleted;
-- the merge sweep tombstones absorbed speakers via merged_into.
CREATE TABLE IF NOT EXISTS speakers (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    name_key TEXT NOT NULL,
    title TEXT,
    primary_affiliation TEXT,
    affiliations JSONB,
    bio TEXT,
    first_seen TIMESTAMPTZ NOT NULL,
    last_updated TIMESTAMPTZ NOT NULL,
    merged_into TEXT
);

CREATE INDEX IF NOT EXISTS idx_speakers_name_key ON speakers(name_key);
CREATE INDEX IF NOT EXISTS idx_speakers_merged_into ON speakers(merged_into);

-- Participations: speaker <-> event junction. The primary key enforces the
-- upsert semantics that make mention resolution idempotent.
CREATE TABLE IF NOT EXISTS participations (
    event_id TEXT NOT NULL,
    speaker_id TEXT NOT NULL,
    role TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (event_id, speaker_id)
);

CREATE INDEX IF NOT EXISTS idx_participations_speaker ON participations(speaker_id);

-- Attributes: tagged attribute values per speaker. The expression index
-- gives case-insensitive dedup on (speaker, kind, value).
CREATE TABLE IF NOT EXISTS attributes (
    speaker_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    value TEXT NOT NULL,
    region TEXT,
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    source TEXT,
    is_primary BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_attributes_dedup
    ON attributes (speaker_id, kind, LOWER(value));

-- Audit log: ambiguous-merge decisions awaiting administrative review.
CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    event_id TEXT,
    mention_name TEXT NOT NULL,
    chosen_id TEXT NOT NULL,
    candidate_ids JSONB,
    status TEXT NOT NULL DEFAULT 'pending_review',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    reviewed_at TIMESTAMPTZ,
    reviewer_notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_status ON audit_log(status);

-- Embeddings: one profile embedding per speaker. The bytea column is the
-- durable representation; embedding_vec is added by MigrationPgvector when
-- the extension is available.
CREATE TABLE IF NOT EXISTS embeddings (
    speaker_id TEXT PRIMARY KEY,
    embedding BYTEA NOT NULL,
    dimension INTEGER NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// MigrationPgvector adds the pgvector column and cosine index to the
// embeddings table. It is applied only when the vector extension loaded.
const MigrationPgvector = `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'embeddings' AND column_name = 'embedding_vec'
    ) THEN
        ALTER TABLE embeddings ADD COLUMN embedding_vec vector;
    END IF;
END $$;

DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_indexes WHERE indexname = 'idx_embeddings_vec_cosine'
    ) THEN
        EXECUTE 'CREATE INDEX idx_embeddings_vec_cosine ON embeddings USING ivfflat (embedding_vec vector_cosine_ops) WITH (lists = 100)';
    END IF;
END $$;
`
