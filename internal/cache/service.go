package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/docuflow/tiercache/internal/codec"
	"github.com/docuflow/tiercache/internal/config"
)

// Service orchestrates the two tiers: read-through L1 then L2 with promotion,
// write-through to both, tag-aware invalidation and metrics. Construct one at
// process start and pass it to callers; Close releases the store connection.
// All methods are safe for concurrent use.
type Service struct {
	codec *codec.Codec
	l1    *MemoryCache
	store *RemoteStore
	tags  *TagIndex
	stats *collector

	logger     zerolog.Logger
	keyPrefix  string
	defaultTTL time.Duration
	l1TTL      time.Duration
}

// New builds a Service from configuration. An unreachable backing store is
// not fatal: the service starts with L1 only and recovers when the store
// comes back.
func New(cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	c, err := codec.New(cfg.CompressionThreshold, codec.Compression(cfg.CompressionCodec))
	if err != nil {
		return nil, err
	}

	l1TTL := config.ParseTTL(cfg.L1.TTL, config.DefaultL1TTL)
	l1, err := NewMemoryCache(cfg.L1.MaxEntries, l1TTL)
	if err != nil {
		return nil, err
	}

	store, err := NewRemoteStore(cfg.BackingStoreURL, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		codec:      c,
		l1:         l1,
		store:      store,
		tags:       NewTagIndex(store, cfg.KeyPrefix+"tag:"),
		stats:      &collector{},
		logger:     logger,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: config.ParseTTL(cfg.DefaultTTL, config.DefaultTTL),
		l1TTL:      l1TTL,
	}, nil
}

// composeKey namespaces a caller key so unrelated subsystems never collide.
func (s *Service) composeKey(namespace, key string) string {
	if namespace == "" {
		return s.keyPrefix + key
	}
	return s.keyPrefix + namespace + ":" + key
}

// Get reads key into dst, checking L1 first and falling back to the backing
// store, promoting store hits into L1. Undecodable entries are purged and
// treated as misses. The returned error is nil in every degraded mode; a
// false result simply means the caller must recompute.
func (s *Service) Get(ctx context.Context, key string, dst any, opts ...Option) (bool, error) {
	o := s.applyOptions(opts)
	start := time.Now()
	defer func() { s.stats.getLatency(time.Since(start)) }()

	k := s.composeKey(o.namespace, key)

	if data, ok := s.l1.Get(k); ok {
		err := s.codec.Decode(data, dst)
		if err == nil {
			s.stats.hit(tierL1)
			return true, nil
		}
		s.logger.Warn().Err(err).Str("key", k).Msg("Purging undecodable L1 entry")
		s.l1.Delete(k)
	}
	s.stats.tierMiss(tierL1)

	data, remaining, ok := s.store.GetWithTTL(ctx, k)
	if !ok {
		s.stats.tierMiss(tierL2)
		s.stats.miss()
		return false, nil
	}
	if err := s.codec.Decode(data, dst); err != nil {
		// Corrupt or format-mismatched payload: purge best-effort and miss.
		s.logger.Warn().Err(err).Str("key", k).Msg("Purging undecodable store entry")
		s.store.Delete(ctx, k)
		s.stats.tierMiss(tierL2)
		s.stats.miss()
		return false, nil
	}

	// Promote into L1, bounded by both the entry's remaining lifetime and
	// the L1 TTL so the copy never outlives the source of truth.
	promoteTTL := s.l1TTL
	if remaining > 0 {
		promoteTTL = min(remaining, s.l1TTL)
	}
	if s.l1.Set(k, data, promoteTTL) {
		s.stats.eviction(tierL1)
	}
	s.stats.hit(tierL2)
	return true, nil
}

// Set encodes value and writes it to L1 unconditionally, then to the backing
// store best-effort: even if the store write fails, in-process readers see
// the value, and the degradation is logged rather than surfaced. Only an
// encoding failure (apperrors.ErrSerialization) is returned, since it means
// the value itself cannot be cached.
func (s *Service) Set(ctx context.Context, key string, value any, opts ...Option) error {
	o := s.applyOptions(opts)

	data, err := s.codec.Encode(value)
	if err != nil {
		return err
	}

	k := s.composeKey(o.namespace, key)
	if s.l1.Set(k, data, min(o.ttl, s.l1TTL)) {
		s.stats.eviction(tierL1)
	}

	// Best-effort store write; the store already logged any failure.
	_ = s.store.Set(ctx, k, data, o.ttl)

	if len(o.tags) > 0 {
		s.tags.Track(ctx, k, o.ttl, o.tags...)
	}
	return nil
}

// Delete removes key from both tiers and from the local tag bookkeeping.
// Idempotent: deleting an absent key succeeds.
func (s *Service) Delete(ctx context.Context, key string, opts ...Option) bool {
	o := s.applyOptions(opts)
	k := s.composeKey(o.namespace, key)

	s.l1.Delete(k)
	s.store.Delete(ctx, k)
	s.tags.Untrack(k)
	return true
}

// MGet reads a batch of keys, serving what it can from L1 and fetching the
// rest from the store in one round trip. The result maps caller keys to
// decoded values; absent and undecodable keys are simply missing.
func (s *Service) MGet(ctx context.Context, keys []string, opts ...Option) map[string]any {
	o := s.applyOptions(opts)

	out := make(map[string]any, len(keys))
	missing := make([]string, 0, len(keys))
	composedFor := make(map[string]string, len(keys))

	for _, key := range keys {
		k := s.composeKey(o.namespace, key)
		composedFor[k] = key
		data, ok := s.l1.Get(k)
		if !ok {
			s.stats.tierMiss(tierL1)
			missing = append(missing, k)
			continue
		}
		var v any
		if err := s.codec.Decode(data, &v); err != nil {
			s.l1.Delete(k)
			s.stats.tierMiss(tierL1)
			missing = append(missing, k)
			continue
		}
		s.stats.hit(tierL1)
		out[key] = v
	}

	if len(missing) == 0 {
		return out
	}

	fetched := s.store.MGetWithTTL(ctx, missing...)
	for _, k := range missing {
		entry, ok := fetched[k]
		if !ok {
			s.stats.tierMiss(tierL2)
			s.stats.miss()
			continue
		}
		var v any
		if err := s.codec.Decode(entry.data, &v); err != nil {
			s.logger.Warn().Err(err).Str("key", k).Msg("Purging undecodable store entry")
			s.store.Delete(ctx, k)
			s.stats.tierMiss(tierL2)
			s.stats.miss()
			continue
		}
		// Same promotion bound as Get: the L1 copy never outlives the
		// source entry.
		promoteTTL := s.l1TTL
		if entry.ttl > 0 {
			promoteTTL = min(entry.ttl, s.l1TTL)
		}
		if s.l1.Set(k, entry.data, promoteTTL) {
			s.stats.eviction(tierL1)
		}
		s.stats.hit(tierL2)
		out[composedFor[k]] = v
	}
	return out
}

// MSet writes a batch of entries with one TTL, pipelining the store writes.
// Encoding failures abort the batch before anything is written, so a bad
// value never partially applies.
func (s *Service) MSet(ctx context.Context, entries map[string]any, opts ...Option) error {
	o := s.applyOptions(opts)

	encoded := make(map[string][]byte, len(entries))
	for key, value := range entries {
		data, err := s.codec.Encode(value)
		if err != nil {
			return err
		}
		encoded[s.composeKey(o.namespace, key)] = data
	}

	for k, data := range encoded {
		if s.l1.Set(k, data, min(o.ttl, s.l1TTL)) {
			s.stats.eviction(tierL1)
		}
	}
	_ = s.store.MSet(ctx, encoded, o.ttl)

	if len(o.tags) > 0 {
		for k := range encoded {
			s.tags.Track(ctx, k, o.ttl, o.tags...)
		}
	}
	return nil
}

// InvalidateByTag removes every key registered under tag from both tiers and
// drops the tag registration itself. It returns the number of keys removed.
// The key set is enumerated before any deletion, so a registration racing
// this pass may survive it, but nothing is ever left deleted-yet-served.
func (s *Service) InvalidateByTag(ctx context.Context, tag string) int {
	keys := s.tags.Snapshot(ctx, tag)

	for _, k := range keys {
		s.l1.Delete(k)
	}
	s.store.Delete(ctx, append(append([]string{}, keys...), s.tags.SetKey(tag))...)
	s.tags.Forget(tag, keys)

	s.stats.invalidation(len(keys))
	if len(keys) > 0 {
		s.logger.Debug().Str("tag", tag).Int("keys", len(keys)).Msg("Invalidated tag")
	}
	return len(keys)
}

// Stats returns a snapshot of the in-process counters.
func (s *Service) Stats() Stats {
	return s.stats.snapshot()
}

// Ping reports whether the backing store is reachable. L1 keeps serving
// either way.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close drops the L1 contents and releases the store connection.
func (s *Service) Close() error {
	s.l1.Purge()
	return s.store.Close()
}
