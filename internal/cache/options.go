package cache

import "time"

// callOptions holds the per-call settings resolved from Options.
type callOptions struct {
	ttl       time.Duration
	tags      []string
	namespace string
}

// Option configures a single cache call.
type Option func(*callOptions)

// WithTTL overrides the service's default TTL for this call.
func WithTTL(d time.Duration) Option {
	return func(o *callOptions) { o.ttl = d }
}

// WithTags registers the written keys under the given tags for grouped
// invalidation. Ignored on reads.
func WithTags(tags ...string) Option {
	return func(o *callOptions) { o.tags = append(o.tags, tags...) }
}

// WithNamespace scopes the key to a namespace so unrelated subsystems never
// collide. The composed key is prefix + namespace + ":" + key.
func WithNamespace(ns string) Option {
	return func(o *callOptions) { o.namespace = ns }
}

func (s *Service) applyOptions(opts []Option) callOptions {
	o := callOptions{ttl: s.defaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = s.defaultTTL
	}
	return o
}
