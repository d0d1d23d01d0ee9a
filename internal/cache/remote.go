package cache

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/docuflow/tiercache/internal/apperrors"
)

const (
	// remoteOpTimeout bounds every round trip to the backing store.
	remoteOpTimeout = 2 * time.Second

	// msetChunkSize caps the number of SETs per pipeline so very large
	// batches do not produce unbounded round-trip payloads.
	msetChunkSize = 512
)

// RemoteStore is the L2 tier: a thin adapter over a Redis/Valkey client.
// Every operation is fallible; failures degrade to a miss for reads and to a
// logged no-op for writes, so the store being down never fails a caller.
// A circuit breaker short-circuits round trips while the store is unhealthy.
type RemoteStore struct {
	client  *redis.Client
	logger  zerolog.Logger
	breaker circuitbreaker.CircuitBreaker[any]
}

// NewRemoteStore connects to the backing store at the given URL
// (redis://host:port/db). An unreachable store is logged but not fatal: the
// adapter starts in degraded mode and recovers when the store comes back.
func NewRemoteStore(url string, logger zerolog.Logger) (*RemoteStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	s := newRemoteStore(redis.NewClient(opts), logger)

	ctx, cancel := context.WithTimeout(context.Background(), remoteOpTimeout)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("Backing store unreachable, starting degraded")
	}
	return s, nil
}

func newRemoteStore(client *redis.Client, logger zerolog.Logger) *RemoteStore {
	return &RemoteStore{
		client: client,
		logger: logger,
		breaker: circuitbreaker.Builder[any]().
			WithFailureThreshold(5).
			WithDelay(10 * time.Second).
			WithSuccessThreshold(2).
			Build(),
	}
}

// run executes a single store operation under the per-op timeout and the
// circuit breaker, logging failures at warning level. The returned error is
// for internal bookkeeping only; callers degrade instead of propagating it.
func (s *RemoteStore) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, remoteOpTimeout)
	defer cancel()

	err := failsafe.NewExecutor[any](s.breaker).WithContext(opCtx).Run(func() error {
		return fn(opCtx)
	})
	if err == nil {
		return nil
	}

	storeErrorsTotal.WithLabelValues(op).Inc()
	if errors.Is(err, circuitbreaker.ErrOpen) {
		// The breaker already logged the underlying failures; opening is
		// expected while the store is down.
		s.logger.Debug().Str("op", op).Msg("Backing store circuit open, skipping")
	} else {
		s.logger.Warn().Err(err).Str("op", op).Msg("Backing store operation failed")
	}
	return apperrors.NewStoreUnavailableError(op, err)
}

// Get returns the payload stored at key, or false on a miss or any failure.
func (s *RemoteStore) Get(ctx context.Context, key string) ([]byte, bool) {
	var data []byte
	var found bool
	err := s.run(ctx, "get", func(ctx context.Context) error {
		b, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = b, true
		return nil
	})
	if err != nil {
		return nil, false
	}
	return data, found
}

// GetWithTTL returns the payload at key together with its remaining TTL.
// A non-positive TTL means the remaining lifetime is unknown (no expiry set,
// or the server did not report one); callers should fall back to their own
// bound rather than assume the value is fresh indefinitely.
func (s *RemoteStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, bool) {
	var data []byte
	var ttl time.Duration
	var found bool
	err := s.run(ctx, "get", func(ctx context.Context) error {
		pipe := s.client.Pipeline()
		getCmd := pipe.Get(ctx, key)
		ttlCmd := pipe.PTTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return err
		}
		b, err := getCmd.Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = b, true
		if d := ttlCmd.Val(); d > 0 {
			ttl = d
		}
		return nil
	})
	if err != nil {
		return nil, 0, false
	}
	return data, ttl, found
}

// Set stores the payload at key with the given TTL. Best-effort: failures are
// logged and reported but the caller treats the write as advisory.
func (s *RemoteStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.run(ctx, "set", func(ctx context.Context) error {
		return s.client.Set(ctx, key, data, ttl).Err()
	})
}

// Delete removes the given keys and returns how many existed. Idempotent and
// best-effort; a store failure reports zero removals.
func (s *RemoteStore) Delete(ctx context.Context, keys ...string) int {
	if len(keys) == 0 {
		return 0
	}
	var removed int64
	err := s.run(ctx, "delete", func(ctx context.Context) error {
		n, err := s.client.Del(ctx, keys...).Result()
		if err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0
	}
	return int(removed)
}

// AddToSet registers members in the set at setKey.
func (s *RemoteStore) AddToSet(ctx context.Context, setKey string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.run(ctx, "sadd", func(ctx context.Context) error {
		return s.client.SAdd(ctx, setKey, args...).Err()
	})
}

// SetMembers returns the members of the set at setKey, or nil on failure.
func (s *RemoteStore) SetMembers(ctx context.Context, setKey string) []string {
	var members []string
	err := s.run(ctx, "smembers", func(ctx context.Context) error {
		m, err := s.client.SMembers(ctx, setKey).Result()
		if err != nil {
			return err
		}
		members = m
		return nil
	})
	if err != nil {
		return nil
	}
	return members
}

// ExpireSet extends the TTL of the set at setKey. NX covers a freshly
// created set (which has no TTL and which GT would treat as infinite), and GT
// only ever lengthens the remaining lifetime, so concurrent registrations
// with shorter TTLs cannot shorten a longer-lived tag set.
func (s *RemoteStore) ExpireSet(ctx context.Context, setKey string, ttl time.Duration) error {
	return s.run(ctx, "expire", func(ctx context.Context) error {
		pipe := s.client.Pipeline()
		pipe.ExpireNX(ctx, setKey, ttl)
		pipe.ExpireGT(ctx, setKey, ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// storedValue pairs a fetched payload with its remaining lifetime. A
// non-positive TTL means the remaining lifetime is unknown, the same
// convention GetWithTTL uses.
type storedValue struct {
	data []byte
	ttl  time.Duration
}

// MGetWithTTL returns the payloads and remaining TTLs for the given keys in
// one pipelined round trip. Absent keys and failures are simply missing from
// the result map.
func (s *RemoteStore) MGetWithTTL(ctx context.Context, keys ...string) map[string]storedValue {
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]storedValue, len(keys))
	err := s.run(ctx, "mget", func(ctx context.Context) error {
		pipe := s.client.Pipeline()
		getCmds := make([]*redis.StringCmd, len(keys))
		ttlCmds := make([]*redis.DurationCmd, len(keys))
		for i, k := range keys {
			getCmds[i] = pipe.Get(ctx, k)
			ttlCmds[i] = pipe.PTTL(ctx, k)
		}
		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return err
		}
		for i, k := range keys {
			b, err := getCmds[i].Bytes()
			if err != nil {
				continue
			}
			v := storedValue{data: b}
			if d := ttlCmds[i].Val(); d > 0 {
				v.ttl = d
			}
			out[k] = v
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return out
}

// MSet stores every entry with the given TTL using pipelined writes, chunked
// so very large batches stay bounded. Best-effort like Set.
func (s *RemoteStore) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}

	var firstErr error
	for start := 0; start < len(keys); start += msetChunkSize {
		end := start + msetChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]
		err := s.run(ctx, "mset", func(ctx context.Context) error {
			pipe := s.client.Pipeline()
			for _, k := range chunk {
				pipe.Set(ctx, k, entries[k], ttl)
			}
			_, err := pipe.Exec(ctx)
			return err
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ping reports whether the backing store is reachable.
func (s *RemoteStore) Ping(ctx context.Context) error {
	return s.run(ctx, "ping", func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}

// Close releases the underlying client connection.
func (s *RemoteStore) Close() error {
	return s.client.Close()
}
