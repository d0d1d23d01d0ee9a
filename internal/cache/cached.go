package cache

import "context"

// Loader produces a value of type T when the cache cannot. The bool return
// signals whether a value exists; return false to avoid caching a zero value
// for a legitimate "not found".
type Loader[T any] func(ctx context.Context) (T, bool, error)

// Cached is a cache-aside helper: check the cache for key, otherwise call
// load and store the result. Loader errors propagate; cache errors never do —
// if the Set after a successful load fails, the caller still gets the value.
func Cached[T any](ctx context.Context, s *Service, key string, load Loader[T], opts ...Option) (T, bool, error) {
	var out T
	if found, err := s.Get(ctx, key, &out, opts...); err == nil && found {
		return out, true, nil
	}

	result, ok, err := load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if !ok {
		var zero T
		return zero, false, nil
	}

	// Best-effort store; the caller got their value either way.
	_ = s.Set(ctx, key, result, opts...)
	return result, true, nil
}

// Fetch reads key into a value of type T, for callers that want typed reads
// without carrying a destination pointer.
func Fetch[T any](ctx context.Context, s *Service, key string, opts ...Option) (T, bool, error) {
	var out T
	found, err := s.Get(ctx, key, &out, opts...)
	if err != nil || !found {
		var zero T
		return zero, false, err
	}
	return out, true, nil
}
