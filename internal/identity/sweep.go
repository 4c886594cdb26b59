package identity

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/pkg/types"
)

// Sweeper is the periodic batch reconciler for speakers that should have
// merged at ingestion but didn't — typically because a synonym was
// configured after the mentions were processed.
//
// Sweep must not run concurrently with active ingestion; the ingestion
// engine holds the exclusion gate.
type Sweeper struct {
	store   storage.Store
	matcher *Matcher
}

// NewSweeper creates a sweeper using the same matching rule as the resolver.
func NewSweeper(store storage.Store, matcher *Matcher) *Sweeper {
	return &Sweeper{store: store, matcher: matcher}
}

// MergeAction records one sweep merge: absorbed was tombstoned and its
// rows repointed to surviving.
type MergeAction struct {
	AbsorbedID  string `json:"absorbed_id"`
	SurvivingID string `json:"surviving_id"`
}

// Sweep re-applies the resolver's matching rule pairwise across all
// canonical speakers, bucketed by name key so only same-named speakers are
// ever compared. Within a bucket, speakers whose affiliations transitively
// overlap form one cluster; each cluster merges into its earliest-created
// (lowest-ID) member. Running Sweep twice with no intervening ingestion
// yields zero actions the second time.
func (w *Sweeper) Sweep(ctx context.Context) ([]MergeAction, error) {
	buckets, err := w.bucketSpeakers(ctx)
	if err != nil {
		return nil, err
	}

	var actions []MergeAction
	for _, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}
		merged, err := w.sweepBucket(ctx, bucket)
		if err != nil {
			return actions, err
		}
		actions = append(actions, merged...)
	}

	if len(actions) > 0 {
		log.Printf("identity: sweep merged %d speaker(s)", len(actions))
	}
	return actions, nil
}

// Plan computes the merges a Sweep would perform without applying any of
// them. Used for dry runs.
func (w *Sweeper) Plan(ctx context.Context) ([]MergeAction, error) {
	buckets, err := w.bucketSpeakers(ctx)
	if err != nil {
		return nil, err
	}

	var actions []MergeAction
	for _, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}
		for _, pair := range w.clusterBucket(bucket) {
			actions = append(actions, MergeAction{
				AbsorbedID:  bucket[pair.absorbed].ID,
				SurvivingID: bucket[pair.survivor].ID,
			})
		}
	}
	return actions, nil
}

// mergePair indexes one planned merge within an ID-sorted bucket.
type mergePair struct {
	survivor int
	absorbed int
}

// bucketSpeakers loads every non-tombstoned speaker, grouped by name key.
func (w *Sweeper) bucketSpeakers(ctx context.Context) (map[string][]*types.Speaker, error) {
	buckets := make(map[string][]*types.Speaker)

	opts := storage.ListOptions{Page: 1, Limit: 200}
	for {
		page, err := w.store.ListSpeakers(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("identity: sweep list speakers: %w", err)
		}
		for i := range page.Items {
			sp := page.Items[i]
			key := w.matcher.NameKey(sp.DisplayName)
			if key == "" {
				// Unnamed speakers never merge with each other.
				continue
			}
			buckets[key] = append(buckets[key], &sp)
		}
		if !page.HasMore {
			break
		}
		opts.Page++
	}

	return buckets, nil
}

// sweepBucket merges overlap-connected clusters within one name bucket.
func (w *Sweeper) sweepBucket(ctx context.Context, bucket []*types.Speaker) ([]MergeAction, error) {
	var actions []MergeAction
	for _, pair := range w.clusterBucket(bucket) {
		action, err := w.absorb(ctx, bucket[pair.survivor], bucket[pair.absorbed])
		if err != nil {
			return actions, err
		}
		actions = append(actions, *action)
	}
	return actions, nil
}

// clusterBucket sorts the bucket by ID and returns the (survivor, absorbed)
// index pairs of every overlap-connected cluster.
func (w *Sweeper) clusterBucket(bucket []*types.Speaker) []mergePair {
	sort.Slice(bucket, func(i, j int) bool { return bucket[i].ID < bucket[j].ID })

	// Each speaker's affiliations collapse to one expanded token union, so
	// the pairwise check below is a set intersection instead of re-running
	// the matcher per affiliation pair. Two speakers overlap exactly when
	// some affiliation of one shares a token with some affiliation of the
	// other, and shared tokens survive the union.
	tokens := make([]map[string]bool, len(bucket))
	for i, sp := range bucket {
		set := make(map[string]bool)
		for _, aff := range sp.Affiliations {
			for t := range w.matcher.Tokens(aff) {
				set[t] = true
			}
		}
		tokens[i] = set
	}

	// Union-find over bucket indices; affiliation overlap connects nodes.
	parent := make([]int, len(bucket))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			// Keep the smaller index as root so clusters merge into the
			// lowest ID (bucket is ID-sorted).
			if ri > rj {
				ri, rj = rj, ri
			}
			parent[rj] = ri
		}
	}

	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			if tokensIntersect(tokens[i], tokens[j]) {
				union(i, j)
			}
		}
	}

	var pairs []mergePair
	for i := 1; i < len(bucket); i++ {
		root := find(i)
		if root == i {
			continue
		}
		pairs = append(pairs, mergePair{survivor: root, absorbed: i})
	}
	return pairs
}

// tokensIntersect reports whether the two token sets share any element.
// Empty sets never intersect, which preserves the matcher's rule that a
// speaker with no affiliation tokens matches nothing.
func tokensIntersect(a, b map[string]bool) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for t := range a {
		if b[t] {
			return true
		}
	}
	return false
}

// absorb merges the absorbed speaker into the survivor: novel affiliations
// are appended, empty title/bio filled, participation and attribute rows
// repointed, and the absorbed record tombstoned (never deleted, so external
// references stay valid).
func (w *Sweeper) absorb(ctx context.Context, survivor, absorbed *types.Speaker) (*MergeAction, error) {
	changed := false
	for _, aff := range absorbed.Affiliations {
		if !hasAffiliationFold(survivor, aff) {
			survivor.Affiliations = append(survivor.Affiliations, aff)
			changed = true
		}
	}
	if survivor.Title == "" && absorbed.Title != "" {
		survivor.Title = absorbed.Title
		changed = true
	}
	if survivor.Bio == "" && absorbed.Bio != "" {
		survivor.Bio = absorbed.Bio
		changed = true
	}
	if changed {
		survivor.LastUpdated = time.Now().UTC()
		if err := w.store.UpdateSpeaker(ctx, survivor); err != nil {
			return nil, fmt.Errorf("identity: sweep update survivor %s: %w", survivor.ID, err)
		}
	}

	if err := w.store.RepointParticipations(ctx, absorbed.ID, survivor.ID); err != nil {
		return nil, fmt.Errorf("identity: sweep repoint participations %s: %w", absorbed.ID, err)
	}
	if err := w.store.RepointAttributes(ctx, absorbed.ID, survivor.ID); err != nil {
		return nil, fmt.Errorf("identity: sweep repoint attributes %s: %w", absorbed.ID, err)
	}
	if err := w.store.TombstoneSpeaker(ctx, absorbed.ID, survivor.ID); err != nil {
		return nil, fmt.Errorf("identity: sweep tombstone %s: %w", absorbed.ID, err)
	}

	return &MergeAction{AbsorbedID: absorbed.ID, SurvivingID: survivor.ID}, nil
}
