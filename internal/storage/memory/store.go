// Package memory provides an in-memory implementation of the storage
// interfaces. It backs unit tests and ephemeral runs; production uses the
// sqlite or postgres backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/podium-hq/podium/internal/normalize"
	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/pkg/types"
)

// Store is a thread-safe in-memory storage.Store implementation.
type Store struct {
	mu sync.RWMutex

	speakers       map[string]*types.Speaker
	nameIndex      map[string][]string // normalize.Key(display_name) -> speaker IDs, sorted
	participations map[string][]types.EventParticipation
	attributes     map[string][]types.Attribute
	audit          []types.AuditEntry
	embeddings     map[string][]float32

	norm *normalize.Normalizer
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		speakers:       make(map[string]*types.Speaker),
		nameIndex:      make(map[string][]string),
		participations: make(map[string][]types.EventParticipation),
		attributes:     make(map[string][]types.Attribute),
		embeddings:     make(map[string][]float32),
		norm:           normalize.NewNormalizer(nil), // name keys never drop stopwords
	}
}

// CreateSpeaker inserts a new canonical speaker.
func (s *Store) CreateSpeaker(ctx context.Context, speaker *types.Speaker) error {
	if speaker == nil || speaker.ID == "" {
		return fmt.Errorf("%w: speaker ID is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.speakers[speaker.ID]; exists {
		return fmt.Errorf("%w: speaker %s already exists", storage.ErrInvalidInput, speaker.ID)
	}

	cp := cloneSpeaker(speaker)
	s.speakers[cp.ID] = cp

	key := s.norm.Key(cp.DisplayName)
	s.nameIndex[key] = insertSorted(s.nameIndex[key], cp.ID)
	return nil
}

// GetSpeaker retrieves a speaker by ID, including tombstoned ones.
func (s *Store) GetSpeaker(ctx context.Context, id string) (*types.Speaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.speakers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneSpeaker(sp), nil
}

// UpdateSpeaker overwrites the mutable fields of an existing speaker.
func (s *Store) UpdateSpeaker(ctx context.Context, speaker *types.Speaker) error {
	if speaker == nil || speaker.ID == "" {
		return fmt.Errorf("%w: speaker ID is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.speakers[speaker.ID]
	if !ok {
		return storage.ErrNotFound
	}

	// Keep the name index consistent if the display name changed.
	oldKey := s.norm.Key(old.DisplayName)
	newKey := s.norm.Key(speaker.DisplayName)
	if oldKey != newKey {
		s.nameIndex[oldKey] = removeID(s.nameIndex[oldKey], speaker.ID)
		s.nameIndex[newKey] = insertSorted(s.nameIndex[newKey], speaker.ID)
	}

	s.speakers[speaker.ID] = cloneSpeaker(speaker)
	return nil
}

// FindSpeakersByNameKey returns non-tombstoned speakers with the given name
// key, ordered by ID ascending.
func (s *Store) FindSpeakersByNameKey(ctx context.Context, nameKey string) ([]*types.Speaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*types.Speaker
	for _, id := range s.nameIndex[nameKey] {
		sp := s.speakers[id]
		if sp == nil || sp.Tombstoned() {
			continue
		}
		result = append(result, cloneSpeaker(sp))
	}
	return result, nil
}

// ListSpeakers returns speakers with pagination, ordered by ID ascending.
func (s *Store) ListSpeakers(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Speaker], error) {
	opts.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.speakers))
	for id, sp := range s.speakers {
		if sp.Tombstoned() && !opts.IncludeTombstoned {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := len(ids)
	start := opts.Offset()
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	items := make([]types.Speaker, 0, end-start)
	for _, id := range ids[start:end] {
		items = append(items, *cloneSpeaker(s.speakers[id]))
	}

	return &storage.PaginatedResult[types.Speaker]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  end < total,
	}, nil
}

// TombstoneSpeaker marks a speaker as absorbed into another.
func (s *Store) TombstoneSpeaker(ctx context.Context, id, mergedInto string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.speakers[id]
	if !ok {
		return storage.ErrNotFound
	}
	sp.MergedInto = mergedInto
	sp.LastUpdated = time.Now().UTC()
	return nil
}

// AddParticipation records a speaker↔event link with upsert semantics on
// (event_id, speaker_id).
func (s *Store) AddParticipation(ctx context.Context, p *types.EventParticipation) error {
	if p == nil || p.EventID == "" || p.SpeakerID == "" {
		return fmt.Errorf("%w: event and speaker IDs are required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.participations[p.SpeakerID] {
		if existing.EventID == p.EventID {
			return nil // already linked
		}
	}

	cp := *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.participations[p.SpeakerID] = append(s.participations[p.SpeakerID], cp)
	return nil
}

// ListParticipations returns all participations for a speaker.
func (s *Store) ListParticipations(ctx context.Context, speakerID string) ([]types.EventParticipation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.EventParticipation, len(s.participations[speakerID]))
	copy(out, s.participations[speakerID])
	return out, nil
}

// CountParticipations returns the number of events for a speaker.
func (s *Store) CountParticipations(ctx context.Context, speakerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participations[speakerID]), nil
}

// RepointParticipations moves participation rows between speakers,
// collapsing (event, speaker) collisions.
func (s *Store) RepointParticipations(ctx context.Context, fromID, toID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.participations[toID]))
	for _, p := range s.participations[toID] {
		seen[p.EventID] = true
	}
	for _, p := range s.participations[fromID] {
		if seen[p.EventID] {
			continue
		}
		p.SpeakerID = toID
		s.participations[toID] = append(s.participations[toID], p)
		seen[p.EventID] = true
	}
	delete(s.participations, fromID)
	return nil
}

// PutAttribute stores an attribute value, demoting any previous primary of
// the same kind when the new one is primary.
func (s *Store) PutAttribute(ctx context.Context, attr *types.Attribute) error {
	if attr == nil || attr.SpeakerID == "" {
		return fmt.Errorf("%w: speaker ID is required", storage.ErrInvalidInput)
	}
	if attr.Confidence < 0 || attr.Confidence > 1 {
		return fmt.Errorf("%w: confidence %g outside [0,1]", storage.ErrInvalidInput, attr.Confidence)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	attrs := s.attributes[attr.SpeakerID]
	if attr.IsPrimary {
		for i := range attrs {
			if attrs[i].Kind == attr.Kind {
				attrs[i].IsPrimary = false
			}
		}
	}

	cp := *attr
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	// Replace an existing (kind, value) row instead of duplicating it.
	for i := range attrs {
		if attrs[i].Kind == cp.Kind && strings.EqualFold(attrs[i].Value, cp.Value) {
			attrs[i] = cp
			s.attributes[attr.SpeakerID] = attrs
			return nil
		}
	}

	s.attributes[attr.SpeakerID] = append(attrs, cp)
	return nil
}

// GetAttributes returns all attributes for a speaker.
func (s *Store) GetAttributes(ctx context.Context, speakerID string) ([]types.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Attribute, len(s.attributes[speakerID]))
	copy(out, s.attributes[speakerID])
	return out, nil
}

// RepointAttributes moves attribute rows between speakers. Duplicate
// (kind, value) pairs on the target are collapsed; a moved primary is
// demoted when the target already has a primary of that kind.
func (s *Store) RepointAttributes(ctx context.Context, fromID, toID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.attributes[toID]
	havePrimary := make(map[types.AttributeKind]bool)
	haveValue := make(map[string]bool)
	for _, a := range target {
		if a.IsPrimary {
			havePrimary[a.Kind] = true
		}
		haveValue[string(a.Kind)+"\x00"+strings.ToLower(a.Value)] = true
	}

	for _, a := range s.attributes[fromID] {
		key := string(a.Kind) + "\x00" + strings.ToLower(a.Value)
		if haveValue[key] {
			continue
		}
		a.SpeakerID = toID
		if a.IsPrimary && havePrimary[a.Kind] {
			a.IsPrimary = false
		}
		if a.IsPrimary {
			havePrimary[a.Kind] = true
		}
		target = append(target, a)
		haveValue[key] = true
	}

	s.attributes[toID] = target
	delete(s.attributes, fromID)
	return nil
}

// AppendAudit stores a new audit entry.
func (s *Store) AppendAudit(ctx context.Context, entry *types.AuditEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("%w: audit entry ID is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	cp.CandidateIDs = append([]string(nil), entry.CandidateIDs...)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.audit = append(s.audit, cp)
	return nil
}

// ListAudit returns audit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, status string) ([]types.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		if status != "" && s.audit[i].Status != status {
			continue
		}
		out = append(out, s.audit[i])
	}
	return out, nil
}

// ResolveAudit marks an entry reviewed.
func (s *Store) ResolveAudit(ctx context.Context, id, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.audit {
		if s.audit[i].ID == id {
			now := time.Now().UTC()
			s.audit[i].Status = types.AuditReviewed
			s.audit[i].ReviewedAt = &now
			s.audit[i].ReviewerNotes = notes
			return nil
		}
	}
	return storage.ErrNotFound
}

// StoreEmbedding stores the profile embedding for a speaker.
func (s *Store) StoreEmbedding(ctx context.Context, speakerID string, embedding []float32, model string) error {
	if speakerID == "" {
		return fmt.Errorf("%w: speaker ID is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]float32, len(embedding))
	copy(cp, embedding)
	s.embeddings[speakerID] = cp
	return nil
}

// SimilaritySearch brute-forces cosine similarity over all stored
// embeddings, applying hard-requirement attribute filters.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, hard []types.Requirement, limit int) ([]storage.SimilarityResult, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []storage.SimilarityResult
	for id, emb := range s.embeddings {
		sp := s.speakers[id]
		if sp == nil || sp.Tombstoned() {
			continue
		}
		if !s.satisfiesRequirements(id, hard) {
			continue
		}
		results = append(results, storage.SimilarityResult{
			SpeakerID: id,
			Score:     storage.CosineSimilarity(query, emb),
		})
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

// satisfiesRequirements reports whether a speaker has a matching attribute
// for every hard requirement. Caller holds the read lock.
func (s *Store) satisfiesRequirements(speakerID string, hard []types.Requirement) bool {
	for _, req := range hard {
		matched := false
		for i := range s.attributes[speakerID] {
			a := &s.attributes[speakerID][i]
			if a.Kind == req.Type && a.Matches(req.Value) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Close releases resources (a no-op for the in-memory store).
func (s *Store) Close() error {
	return nil
}

// cloneSpeaker deep-copies a speaker so callers can't mutate store state.
func cloneSpeaker(sp *types.Speaker) *types.Speaker {
	cp := *sp
	cp.Affiliations = append([]string(nil), sp.Affiliations...)
	return &cp
}

// insertSorted inserts id into a sorted slice, keeping it sorted and unique.
func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

// removeID removes id from a sorted slice.
func removeID(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}
