// Package storage provides composable storage interfaces for the Podium
// speaker store.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. The identity resolver
// and ranking engine receive these interfaces by injection, so tests run
// against the in-memory implementation and production against SQLite or
// Postgres.
package storage

import (
	"context"

	"github.com/podium-hq/podium/pkg/types"
)

// SpeakerStore provides CRUD and lookup operations for canonical speakers.
type SpeakerStore interface {
	// CreateSpeaker inserts a new canonical speaker.
	// Returns ErrInvalidInput if the ID is empty.
	CreateSpeaker(ctx context.Context, speaker *types.Speaker) error

	// GetSpeaker retrieves a speaker by ID, including tombstoned ones.
	// Returns ErrNotFound if the speaker doesn't exist.
	GetSpeaker(ctx context.Context, id string) (*types.Speaker, error)

	// UpdateSpeaker overwrites the mutable fields of an existing speaker.
	// Returns ErrNotFound if the speaker doesn't exist.
	UpdateSpeaker(ctx context.Context, speaker *types.Speaker) error

	// FindSpeakersByNameKey returns all non-tombstoned speakers whose
	// canonical name key equals nameKey (see normalize.Key), ordered by ID
	// ascending. Name keys are stored at creation time so the lookup is an
	// index hit, not a scan.
	FindSpeakersByNameKey(ctx context.Context, nameKey string) ([]*types.Speaker, error)

	// ListSpeakers returns speakers with pagination. Tombstoned speakers
	// are included only when opts.IncludeTombstoned is set.
	ListSpeakers(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Speaker], error)

	// TombstoneSpeaker marks a speaker as absorbed into another. The row is
	// never deleted so external references stay valid.
	// Returns ErrNotFound if the speaker doesn't exist.
	TombstoneSpeaker(ctx context.Context, id, mergedInto string) error
}

// ParticipationStore manages the speaker↔event junction rows.
type ParticipationStore interface {
	// AddParticipation records that a speaker appeared at an event.
	// Upsert on (event_id, speaker_id): re-adding the same pair is a no-op,
	// which is what makes mention resolution idempotent.
	AddParticipation(ctx context.Context, p *types.EventParticipation) error

	// ListParticipations returns all participations for a speaker.
	ListParticipations(ctx context.Context, speakerID string) ([]types.EventParticipation, error)

	// CountParticipations returns the number of events a speaker appeared at.
	CountParticipations(ctx context.Context, speakerID string) (int, error)

	// RepointParticipations moves all participation rows from one speaker
	// to another, collapsing pairs that would collide. Used by the merge
	// sweep.
	RepointParticipations(ctx context.Context, fromID, toID string) error
}

// AttributeStore manages per-speaker attribute records.
type AttributeStore interface {
	// PutAttribute stores an attribute value. When IsPrimary is set, any
	// previous primary of the same kind is demoted so at most one primary
	// per kind exists. Returns ErrInvalidInput for confidence outside [0,1].
	PutAttribute(ctx context.Context, attr *types.Attribute) error

	// GetAttributes returns all attributes for a speaker.
	GetAttributes(ctx context.Context, speakerID string) ([]types.Attribute, error)

	// RepointAttributes moves all attribute rows from one speaker to
	// another. Used by the merge sweep.
	RepointAttributes(ctx context.Context, fromID, toID string) error
}

// AuditLog records ambiguous-merge decisions for administrative review.
type AuditLog interface {
	// AppendAudit stores a new audit entry.
	AppendAudit(ctx context.Context, entry *types.AuditEntry) error

	// ListAudit returns audit entries, newest first. An empty status
	// returns all entries; otherwise only entries with that status.
	ListAudit(ctx context.Context, status string) ([]types.AuditEntry, error)

	// ResolveAudit marks an entry reviewed and records the reviewer notes.
	// Returns ErrNotFound if the entry doesn't exist.
	ResolveAudit(ctx context.Context, id, notes string) error
}

// EmbeddingStore persists speaker profile embeddings and answers
// similarity-shortlist queries for the discovery engine.
type EmbeddingStore interface {
	// StoreEmbedding stores (or replaces) the profile embedding for a speaker.
	StoreEmbedding(ctx context.Context, speakerID string, embedding []float32, model string) error

	// SimilaritySearch returns up to limit non-tombstoned speakers ranked
	// by cosine similarity to the query vector. Hard requirements filter
	// the pool: a speaker qualifies only if it has a matching attribute for
	// every requirement. Scores are clamped to [0,1].
	SimilaritySearch(ctx context.Context, query []float32, hard []types.Requirement, limit int) ([]SimilarityResult, error)
}

// Store is the full storage surface the engines are wired with.
type Store interface {
	SpeakerStore
	ParticipationStore
	AttributeStore
	AuditLog
	EmbeddingStore

	// Close releases any resources held by the store.
	Close() error
}
