// Package sqlite provides a SQLite-backed implementation of the storage
// interfaces. It is the default production backend for single-node
// deployments; similarity search is brute-force over an embedding blob
// column, which is fine at the corpus sizes a single node handles.
package sqlite

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
    affiliations TEXT,
    bio TEXT,
    first_seen TIMESTAMP NOT NULL,
    last_updated TIMESTAMP NOT NULL,
    merged_into TEXT
);

-- name_key is the canonicalized display name; the resolver looks candidates
-- up by it on every mention, so it must be an index hit.
CREATE INDEX IF NOT EXISTS idx_speakers_name_key ON speakers(name_key);
CREATE INDEX IF NOT EXISTS idx_speakers_merged_into ON speakers(merged_into);

-- Participations: speaker <-> event junction. The primary key enforces the
-- upsert semantics that make mention resolution idempotent.
CREATE TABLE IF NOT EXISTS participations (
    event_id TEXT NOT NULL,
    speaker_id TEXT NOT NULL,
    role TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (event_id, speaker_id)
);

CREATE INDEX IF NOT EXISTS idx_participations_speaker ON participations(speaker_id);

-- Attributes: tagged attribute values per speaker. NOCASE collation on
-- value/region gives case-insensitive dedup and preference matching.
CREATE TABLE IF NOT EXISTS attributes (
    speaker_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    value TEXT NOT NULL COLLATE NOCASE,
    region TEXT COLLATE NOCASE,
    confidence REAL NOT NULL DEFAULT 0,
    source TEXT,
    is_primary INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (speaker_id, kind, value)
);

-- Audit log: ambiguous-merge decisions awaiting administrative review.
CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    event_id TEXT,
    mention_name TEXT NOT NULL,
    chosen_id TEXT NOT NULL,
    candidate_ids TEXT,
    status TEXT NOT NULL DEFAULT 'pending_review',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    reviewed_at TIMESTAMP,
    reviewer_notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_status ON audit_log(status);

-- Embeddings: one profile embedding per speaker, stored as a binary blob
-- of little-endian float32 values.
CREATE TABLE IF NOT EXISTS embeddings (
    speaker_id TEXT PRIMARY KEY,
    embedding BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
