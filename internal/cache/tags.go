package cache

import (
	"context"
	"sync"
	"time"
)

// tagTTLMargin is added on top of a member's TTL when extending a tag set's
// lifetime, so the set outlives its longest-lived member instead of orphaning
// registrations forever.
const tagTTLMargin = time.Minute

// TagIndex maintains the many-to-many join between tags and cache keys: a
// local in-process map pair for same-process invalidation, mirrored into a
// per-tag set in the backing store for cross-process invalidation. The index
// is a superset view of reality: a key listed under a tag may already have
// expired, which lookups tolerate as an ordinary miss.
type TagIndex struct {
	mu        sync.Mutex
	tagToKeys map[string]map[string]struct{}
	keyToTags map[string]map[string]struct{}

	store     *RemoteStore
	setPrefix string
}

// NewTagIndex creates a tag index mirroring registrations into store under
// set keys of the form setPrefix + tag.
func NewTagIndex(store *RemoteStore, setPrefix string) *TagIndex {
	return &TagIndex{
		tagToKeys: make(map[string]map[string]struct{}),
		keyToTags: make(map[string]map[string]struct{}),
		store:     store,
		setPrefix: setPrefix,
	}
}

// SetKey returns the backing-store set key for a tag.
func (t *TagIndex) SetKey(tag string) string {
	return t.setPrefix + tag
}

// Track registers key under each tag, locally and in the backing store, and
// extends each tag set's TTL past the member's TTL. The remote registration
// is best-effort: a store failure leaves the local index authoritative for
// this process.
func (t *TagIndex) Track(ctx context.Context, key string, ttl time.Duration, tags ...string) {
	if len(tags) == 0 {
		return
	}

	t.mu.Lock()
	for _, tag := range tags {
		if t.tagToKeys[tag] == nil {
			t.tagToKeys[tag] = make(map[string]struct{})
		}
		t.tagToKeys[tag][key] = struct{}{}
		if t.keyToTags[key] == nil {
			t.keyToTags[key] = make(map[string]struct{})
		}
		t.keyToTags[key][tag] = struct{}{}
	}
	t.mu.Unlock()

	for _, tag := range tags {
		setKey := t.SetKey(tag)
		if err := t.store.AddToSet(ctx, setKey, key); err != nil {
			continue
		}
		_ = t.store.ExpireSet(ctx, setKey, ttl+tagTTLMargin)
	}
}

// Snapshot returns every key registered under tag: the union of the backing
// store's set and the local index. The enumeration must happen before any
// value deletion, so a registration racing an invalidation can survive the
// pass but is never left deleted-yet-listed-stale.
func (t *TagIndex) Snapshot(ctx context.Context, tag string) []string {
	seen := make(map[string]struct{})
	for _, key := range t.store.SetMembers(ctx, t.SetKey(tag)) {
		seen[key] = struct{}{}
	}

	t.mu.Lock()
	for key := range t.tagToKeys[tag] {
		seen[key] = struct{}{}
	}
	t.mu.Unlock()

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	return keys
}

// Forget drops the local bookkeeping for the given keys, after an
// invalidation pass has deleted their values. Only the enumerated keys are
// dropped: a registration racing the pass keeps its entry under tag and is
// picked up by the next pass.
func (t *TagIndex) Forget(tag string, keys []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, key := range keys {
		// The values are gone, so the keys leave every tag they carried,
		// not just the invalidated one.
		for other := range t.keyToTags[key] {
			if members, ok := t.tagToKeys[other]; ok {
				delete(members, key)
				if len(members) == 0 {
					delete(t.tagToKeys, other)
				}
			}
		}
		delete(t.keyToTags, key)
	}
}

// Untrack removes key from every tag it is registered under, locally only.
// Remote set membership decays via the tag set's own TTL.
func (t *TagIndex) Untrack(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for tag := range t.keyToTags[key] {
		if members, ok := t.tagToKeys[tag]; ok {
			delete(members, key)
			if len(members) == 0 {
				delete(t.tagToKeys, tag)
			}
		}
	}
	delete(t.keyToTags, key)
}

// LocalKeys returns the keys registered under tag in this process only.
func (t *TagIndex) LocalKeys(tag string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.tagToKeys[tag]))
	for key := range t.tagToKeys[tag] {
		keys = append(keys, key)
	}
	return keys
}
