// Package types defines the core domain types for Podium: candidate
// mentions, canonical speakers, event participations, speaker attributes,
// queries, and scored candidates.
package types

import "time"

// CandidateMention is a single per-event, pre-merge observation of a person.
// It is produced by the extraction layer, consumed by the identity resolver,
// and discarded after resolution.
type CandidateMention struct {
	RawName        string `json:"raw_name"`        // Name exactly as it appeared on the event page
	RawTitle       string `json:"raw_title"`       // Title/role text, may be empty
	RawAffiliation string `json:"raw_affiliation"` // Affiliation text, may be empty
	RawBio         string `json:"raw_bio"`         // Biography text, may be empty
	SourceEventID  string `json:"source_event_id"` // Event the mention was extracted from
}

// Speaker is the canonical, deduplicated record representing one real-world
// person. A speaker is created on the first unmatched mention and mutated on
// later merges; it is never hard-deleted, only tombstoned by the merge sweep.
type Speaker struct {
	// ID is the immutable identifier. IDs are UUIDv7, so lexicographic
	// order matches creation order.
	ID string `json:"id"`

	// DisplayName is the name shown on the profile. Matching against it is
	// case-insensitive but otherwise exact.
	DisplayName string `json:"display_name"`

	// Title is the speaker's title. First writer wins unless empty.
	Title string `json:"title,omitempty"`

	// PrimaryAffiliation is the affiliation from the mention that created
	// the speaker. It is always an element of Affiliations.
	PrimaryAffiliation string `json:"primary_affiliation,omitempty"`

	// Affiliations is the set of all affiliations seen for this speaker.
	// Order carries no meaning.
	Affiliations []string `json:"affiliations,omitempty"`

	// Bio is the speaker biography. First writer wins unless empty.
	Bio string `json:"bio,omitempty"`

	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`

	// MergedInto is set when the merge sweep absorbed this speaker into
	// another. A tombstoned speaker is excluded from matching and ranking
	// but kept so external references stay valid.
	MergedInto string `json:"merged_into,omitempty"`
}

// Tombstoned reports whether this speaker has been absorbed by a sweep merge.
func (s *Speaker) Tombstoned() bool {
	return s.MergedInto != ""
}

// HasAffiliation reports whether aff is already recorded for the speaker.
// Comparison is exact; normalization is the matcher's concern.
func (s *Speaker) HasAffiliation(aff string) bool {
	for _, a := range s.Affiliations {
		if a == aff {
			return true
		}
	}
	return false
}

// EventParticipation links a speaker to an event they appeared at.
// The (EventID, SpeakerID) pair is unique; re-resolving the same mention
// must not produce a second row.
type EventParticipation struct {
	EventID   string    `json:"event_id"`
	SpeakerID string    `json:"speaker_id"`
	Role      string    `json:"role,omitempty"` // e.g. "keynote", "panelist"
	CreatedAt time.Time `json:"created_at"`
}

// AuditEntry records an ambiguous merge: a mention matched more than one
// existing speaker and was merged into the earliest-created survivor.
// Entries are surfaced for administrative review; ingestion never blocks
// on them.
type AuditEntry struct {
	ID            string     `json:"id"`
	EventID       string     `json:"event_id"`
	MentionName   string     `json:"mention_name"`
	ChosenID      string     `json:"chosen_id"`     // Speaker the mention was merged into
	CandidateIDs  []string   `json:"candidate_ids"` // All speakers that matched
	Status        string     `json:"status"`        // "pending_review" or "reviewed"
	CreatedAt     time.Time  `json:"created_at"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	ReviewerNotes string     `json:"reviewer_notes,omitempty"`
}

// Audit entry statuses.
const (
	AuditPendingReview = "pending_review"
	AuditReviewed      = "reviewed"
)
