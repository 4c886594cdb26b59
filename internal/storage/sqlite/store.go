package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/podium-hq/podium/internal/normalize"
	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db   *sql.DB
	norm *normalize.Normalizer
}

// Compile-time assertion that Store satisfies the full storage surface.
var _ storage.Store = (*Store)(nil)

// NewStore opens a SQLite speaker store, configures WAL mode, and creates
// the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open
	// connection serialises writes and avoids SQLITE_BUSY errors under
	// concurrent load. WAL mode lets readers proceed without blocking the
	// writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	// Wait instead of failing with SQLITE_BUSY when the connection is held
	// by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	// Name keys never drop stopwords; "De La Cruz" keeps its particles.
	return &Store{db: db, norm: normalize.NewNormalizer(nil)}, nil
}

// Close flushes the WAL into the main database file and releases resources.
// The TRUNCATE checkpoint removes the -shm and -wal files so another process
// can open the database without encountering stale WAL state.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Printf("sqlite: WAL checkpoint on close failed (non-fatal): %v", err)
	}
	return s.db.Close()
}

// CreateSpeaker inserts a new canonical speaker.
func (s *Store) CreateSpeaker(ctx context.Context, speaker *types.Speaker) error {
	if speaker == nil || speaker.ID == "" {
		return fmt.Errorf("%w: speaker ID is required", storage.ErrInvalidInput)
	}

	affiliationsJSON, err := marshalStrings(speaker.Affiliations)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal affiliations: %w", err)
	}

	if speaker.FirstSeen.IsZero() {
		speaker.FirstSeen = time.Now().UTC()
	}
	if speaker.LastUpdated.IsZero() {
		speaker.LastUpdated = speaker.FirstSeen
	}

	query := `
		INSERT INTO speakers (
			id, display_name, name_key, title, primary_affiliation,
			affiliations, bio, first_seen, last_updated, merged_into
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		speaker.ID,
		speaker.DisplayName,
		s.norm.Key(speaker.DisplayName),
		nullableString(speaker.Title),
		nullableString(speaker.PrimaryAffiliation),
		nullableString(affiliationsJSON),
		nullableString(speaker.Bio),
		speaker.FirstSeen,
		speaker.LastUpdated,
		nullableString(speaker.MergedInto),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create speaker: %w", err)
	}
	return nil
}

const speakerColumns = `id, display_name, title, primary_affiliation, affiliations, bio, first_seen, last_updated, merged_into`

// GetSpeaker retrieves a speaker by ID, including tombstoned ones.
func (s *Store) GetSpeaker(ctx context.Context, id string) (*types.Speaker, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: speaker ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+speakerColumns+` FROM speakers WHERE id = ?`, id)
	speaker, err := scanSpeaker(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get speaker: %w", err)
	}
	return speaker, nil
}

// UpdateSpeaker overwrites the mutable fields of an existing speaker.
func (s *Store) UpdateSpeaker(ctx context.Context, speaker *types.Speaker) error {
	if speaker == nil || speaker.ID == "" {
		return fmt.Errorf("%w: speaker ID is required", storage.ErrInvalidInput)
	}

	affiliationsJSON, err := marshalStrings(speaker.Affiliations)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal affiliations: %w", err)
	}

	speaker.LastUpdated = time.Now().UTC()

	query := `
		UPDATE speakers SET
			display_name = ?,
			name_key = ?,
			title = ?,
			primary_affiliation = ?,
			affiliations = ?,
			bio = ?,
			last_updated = ?,
			merged_into = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		speaker.DisplayName,
		s.norm.Key(speaker.DisplayName),
		nullableString(speaker.Title),
		nullableString(speaker.PrimaryAffiliation),
		nullableString(affiliationsJSON),
		nullableString(speaker.Bio),
		speaker.LastUpdated,
		nullableString(speaker.MergedInto),
		speaker.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update speaker: %w", err)
	}
	return requireRows(result)
}

// FindSpeakersByNameKey returns non-tombstoned speakers with the given name
// key, ordered by ID ascending.
func (s *Store) FindSpeakersByNameKey(ctx context.Context, nameKey string) ([]*types.Speaker, error) {
	query := `
		SELECT ` + speakerColumns + `
		FROM speakers
		WHERE name_key = ? AND merged_into IS NULL
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, nameKey)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to find speakers by name key: %w", err)
	}
	defer rows.Close()

	var speakers []*types.Speaker
	for rows.Next() {
		speaker, err := scanSpeaker(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan speaker: %w", err)
		}
		speakers = append(speakers, speaker)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating speakers: %w", err)
	}
	return speakers, nil
}

// ListSpeakers returns speakers with pagination, ordered by ID ascending.
func (s *Store) ListSpeakers(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Speaker], error) {
	opts.Normalize()

	whereClause := " WHERE merged_into IS NULL"
	if opts.IncludeTombstoned {
		whereClause = ""
	}

	query := `SELECT ` + speakerColumns + ` FROM speakers` + whereClause +
		` ORDER BY id ASC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list speakers: %w", err)
	}
	defer rows.Close()

	var speakers []types.Speaker
	for rows.Next() {
		speaker, err := scanSpeaker(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan speaker: %w", err)
		}
		speakers = append(speakers, *speaker)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating speakers: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM speakers"+whereClause).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count speakers: %w", err)
	}

	return &storage.PaginatedResult[types.Speaker]{
		Items:    speakers,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(speakers) < total,
	}, nil
}

// TombstoneSpeaker marks a speaker as absorbed into another.
func (s *Store) TombstoneSpeaker(ctx context.Context, id, mergedInto string) error {
	if id == "" || mergedInto == "" {
		return fmt.Errorf("%w: speaker ID and merge target are required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE speakers SET merged_into = ?, last_updated = ? WHERE id = ?",
		mergedInto, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to tombstone speaker: %w", err)
	}
	return requireRows(result)
}

// AddParticipation records that a speaker appeared at an event. Upsert on
// (event_id, speaker_id); re-adding the same pair only refreshes the role.
func (s *Store) AddParticipation(ctx context.Context, p *types.EventParticipation) error {
	if p == nil || p.EventID == "" || p.SpeakerID == "" {
		return fmt.Errorf("%w: event ID and speaker ID are required", storage.ErrInvalidInput)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO participations (event_id, speaker_id, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id, speaker_id) DO UPDATE SET
			role = CASE WHEN excluded.role != '' THEN excluded.role ELSE participations.role END
	`
	_, err := s.db.ExecContext(ctx, query, p.EventID, p.SpeakerID, p.Role, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to add participation: %w", err)
	}
	return nil
}

// ListParticipations returns all participations for a speaker, oldest first.
func (s *Store) ListParticipations(ctx context.Context, speakerID string) ([]types.EventParticipation, error) {
	if speakerID == "" {
		return nil, fmt.Errorf("%w: speaker ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, speaker_id, role, created_at
		FROM participations
		WHERE speaker_id = ?
		ORDER BY created_at ASC, event_id ASC
	`, speakerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list participations: %w", err)
	}
	defer rows.Close()

	var participations []types.EventParticipation
	for rows.Next() {
		var p types.EventParticipation
		var role sql.NullString
		if err := rows.Scan(&p.EventID, &p.SpeakerID, &role, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan participation: %w", err)
		}
		p.Role = role.String
		participations = append(participations, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating participations: %w", err)
	}
	return participations, nil
}

// CountParticipations returns the number of events a speaker appeared at.
func (s *Store) CountParticipations(ctx context.Context, speakerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM participations WHERE speaker_id = ?", speakerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count participations: %w", err)
	}
	return count, nil
}

// RepointParticipations moves all participation rows from one speaker to
// another. Rows that would collide with an existing (event, speaker) pair
// on the target are dropped, which preserves the uniqueness invariant.
func (s *Store) RepointParticipations(ctx context.Context, fromID, toID string) error {
	if fromID == "" || toID == "" {
		return fmt.Errorf("%w: both speaker IDs are required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin repoint: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE OR IGNORE participations SET speaker_id = ? WHERE speaker_id = ?", toID, fromID,
	); err != nil {
		return fmt.Errorf("sqlite: failed to repoint participations: %w", err)
	}
	// Whatever remains collided with an existing pair on the target.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM participations WHERE speaker_id = ?", fromID,
	); err != nil {
		return fmt.Errorf("sqlite: failed to drop colliding participations: %w", err)
	}
	return tx.Commit()
}

// PutAttribute stores an attribute value. Dedup is case-insensitive on
// (speaker, kind, value); a primary insert demotes the previous primary of
// the same kind.
func (s *Store) PutAttribute(ctx context.Context, attr *types.Attribute) error {
	if attr == nil || attr.SpeakerID == "" || attr.Value == "" {
		return fmt.Errorf("%w: speaker ID and value are required", storage.ErrInvalidInput)
	}
	if attr.Confidence < 0 || attr.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be in [0,1]", storage.ErrInvalidInput)
	}

	if attr.CreatedAt.IsZero() {
		attr.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin attribute write: %w", err)
	}
	defer tx.Rollback()

	if attr.IsPrimary {
		if _, err := tx.ExecContext(ctx,
			"UPDATE attributes SET is_primary = 0 WHERE speaker_id = ? AND kind = ?",
			attr.SpeakerID, attr.Kind,
		); err != nil {
			return fmt.Errorf("sqlite: failed to demote primary attribute: %w", err)
		}
	}

	query := `
		INSERT INTO attributes (speaker_id, kind, value, region, confidence, source, is_primary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(speaker_id, kind, value) DO UPDATE SET
			region = excluded.region,
			confidence = excluded.confidence,
			source = excluded.source,
			is_primary = excluded.is_primary
	`
	if _, err := tx.ExecContext(ctx, query,
		attr.SpeakerID,
		string(attr.Kind),
		attr.Value,
		nullableString(attr.Region),
		attr.Confidence,
		nullableString(attr.Source),
		boolToInt(attr.IsPrimary),
		attr.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: failed to put attribute: %w", err)
	}
	return tx.Commit()
}

// GetAttributes returns all attributes for a speaker.
func (s *Store) GetAttributes(ctx context.Context, speakerID string) ([]types.Attribute, error) {
	if speakerID == "" {
		return nil, fmt.Errorf("%w: speaker ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT speaker_id, kind, value, region, confidence, source, is_primary, created_at
		FROM attributes
		WHERE speaker_id = ?
		ORDER BY kind ASC, value ASC
	`, speakerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get attributes: %w", err)
	}
	defer rows.Close()

	var attrs []types.Attribute
	for rows.Next() {
		var a types.Attribute
		var kind string
		var region, source sql.NullString
		var isPrimary int
		if err := rows.Scan(&a.SpeakerID, &kind, &a.Value, &region, &a.Confidence, &source, &isPrimary, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan attribute: %w", err)
		}
		a.Kind = types.AttributeKind(kind)
		a.Region = region.String
		a.Source = source.String
		a.IsPrimary = isPrimary != 0
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating attributes: %w", err)
	}
	return attrs, nil
}

// RepointAttributes moves all attribute rows from one speaker to another,
// dropping rows that would collide on (kind, value). A moved primary is
// demoted when the target already has a primary of that kind, keeping the
// at-most-one-primary-per-kind invariant.
func (s *Store) RepointAttributes(ctx context.Context, fromID, toID string) error {
	if fromID == "" || toID == "" {
		return fmt.Errorf("%w: both speaker IDs are required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin repoint: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE attributes SET is_primary = 0
		WHERE speaker_id = ? AND is_primary = 1
		  AND EXISTS (
			SELECT 1 FROM attributes a2
			WHERE a2.speaker_id = ?
			  AND a2.kind = attributes.kind
			  AND a2.is_primary = 1
		  )`, fromID, toID,
	); err != nil {
		return fmt.Errorf("sqlite: failed to demote duplicate primaries: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE OR IGNORE attributes SET speaker_id = ? WHERE speaker_id = ?", toID, fromID,
	); err != nil {
		return fmt.Errorf("sqlite: failed to repoint attributes: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM attributes WHERE speaker_id = ?", fromID,
	); err != nil {
		return fmt.Errorf("sqlite: failed to drop colliding attributes: %w", err)
	}
	return tx.Commit()
}

// AppendAudit stores a new audit entry.
func (s *Store) AppendAudit(ctx context.Context, entry *types.AuditEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("%w: audit entry ID is required", storage.ErrInvalidInput)
	}

	candidatesJSON, err := marshalStrings(entry.CandidateIDs)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal candidate IDs: %w", err)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = types.AuditPendingReview
	}

	query := `
		INSERT INTO audit_log (id, event_id, mention_name, chosen_id, candidate_ids, status, created_at, reviewed_at, reviewer_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		nullableString(entry.EventID),
		entry.MentionName,
		entry.ChosenID,
		nullableString(candidatesJSON),
		entry.Status,
		entry.CreatedAt,
		nullableTime(entry.ReviewedAt),
		nullableString(entry.ReviewerNotes),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns audit entries, newest first, optionally filtered by
// status.
func (s *Store) ListAudit(ctx context.Context, status string) ([]types.AuditEntry, error) {
	query := `
		SELECT id, event_id, mention_name, chosen_id, candidate_ids, status, created_at, reviewed_at, reviewer_notes
		FROM audit_log
	`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []types.AuditEntry
	for rows.Next() {
		var e types.AuditEntry
		var eventID, candidatesJSON, notes sql.NullString
		var reviewedAt sql.NullTime
		if err := rows.Scan(&e.ID, &eventID, &e.MentionName, &e.ChosenID, &candidatesJSON, &e.Status, &e.CreatedAt, &reviewedAt, &notes); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan audit entry: %w", err)
		}
		e.EventID = eventID.String
		e.ReviewerNotes = notes.String
		if reviewedAt.Valid {
			t := reviewedAt.Time
			e.ReviewedAt = &t
		}
		if candidatesJSON.Valid && candidatesJSON.String != "" {
			if err := json.Unmarshal([]byte(candidatesJSON.String), &e.CandidateIDs); err != nil {
				return nil, fmt.Errorf("sqlite: failed to unmarshal candidate IDs: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating audit entries: %w", err)
	}
	return entries, nil
}

// ResolveAudit marks an entry reviewed and records the reviewer notes.
func (s *Store) ResolveAudit(ctx context.Context, id, notes string) error {
	if id == "" {
		return fmt.Errorf("%w: audit entry ID is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE audit_log
		SET status = ?, reviewed_at = ?, reviewer_notes = ?
		WHERE id = ?
	`, types.AuditReviewed, time.Now().UTC(), nullableString(notes), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to resolve audit entry: %w", err)
	}
	return requireRows(result)
}

// StoreEmbedding stores (or replaces) the profile embedding for a speaker.
func (s *Store) StoreEmbedding(ctx context.Context, speakerID string, embedding []float32, model string) error {
	if speakerID == "" {
		return fmt.Errorf("%w: speaker ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}

	query := `
		INSERT INTO embeddings (speaker_id, embedding, dimension, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(speaker_id) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.ExecContext(ctx, query, speakerID, serializeEmbedding(embedding), len(embedding), model)
	if err != nil {
		return fmt.Errorf("sqlite: failed to store embedding: %w", err)
	}
	return nil
}

// SimilaritySearch returns up to limit non-tombstoned speakers ranked by
// cosine similarity to the query vector. Hard requirements are applied in
// SQL; the cosine scoring itself is brute-force over the surviving pool.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, hard []types.Requirement, limit int) ([]storage.SimilarityResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector cannot be empty", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		return []storage.SimilarityResult{}, nil
	}

	sqlQuery := `
		SELECT e.speaker_id, e.embedding, e.dimension
		FROM embeddings e
		JOIN speakers s ON s.id = e.speaker_id
		WHERE s.merged_into IS NULL
	`
	var args []interface{}
	for _, req := range hard {
		// Location requirements also match on the declared region.
		sqlQuery += `
		AND EXISTS (
			SELECT 1 FROM attributes a
			WHERE a.speaker_id = e.speaker_id
			  AND a.kind = ?
			  AND (a.value = ? OR (a.kind = 'location' AND a.region = ?))
		)`
		args = append(args, string(req.Type), req.Value, req.Value)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: similarity search failed: %w", err)
	}
	defer rows.Close()

	var results []storage.SimilarityResult
	for rows.Next() {
		var speakerID string
		var blob []byte
		var dimension int
		if err := rows.Scan(&speakerID, &blob, &dimension); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan embedding: %w", err)
		}
		embedding, err := deserializeEmbedding(blob, dimension)
		if err != nil {
			return nil, fmt.Errorf("sqlite: corrupt embedding for speaker %s: %w", speakerID, err)
		}
		results = append(results, storage.SimilarityResult{
			SpeakerID: speakerID,
			Score:     storage.CosineSimilarity(query, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating embeddings: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SpeakerID < results[j].SpeakerID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanSpeaker.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSpeaker reads one speaker row.
func scanSpeaker(row scanner) (*types.Speaker, error) {
	var speaker types.Speaker
	var title, primaryAffiliation, affiliationsJSON, bio, mergedInto sql.NullString

	err := row.Scan(
		&speaker.ID,
		&speaker.DisplayName,
		&title,
		&primaryAffiliation,
		&affiliationsJSON,
		&bio,
		&speaker.FirstSeen,
		&speaker.LastUpdated,
		&mergedInto,
	)
	if err != nil {
		return nil, err
	}

	speaker.Title = title.String
	speaker.PrimaryAffiliation = primaryAffiliation.String
	speaker.Bio = bio.String
	speaker.MergedInto = mergedInto.String
	if affiliationsJSON.Valid && affiliationsJSON.String != "" {
		if err := json.Unmarshal([]byte(affiliationsJSON.String), &speaker.Affiliations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal affiliations: %w", err)
		}
	}
	return &speaker, nil
}

// requireRows converts a zero-rows-affected result into ErrNotFound.
func requireRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// serializeEmbedding converts a float32 slice to little-endian bytes.
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding converts little-endian bytes back to a float32 slice.
// dimension validates the buffer size.
func deserializeEmbedding(buf []byte, dimension int) ([]float32, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*4 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}
	embedding := make([]float32, dimension)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return embedding, nil
}

// marshalStrings JSON-encodes a string slice, returning "" for empty input
// so the column stays NULL.
func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// nullableString converts a string to sql.NullString. An empty string is
// treated as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullableTime converts a time pointer to sql.NullTime.
func nullableTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// boolToInt converts a bool to the 0/1 SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
