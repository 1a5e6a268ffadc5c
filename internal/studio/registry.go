package studio

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/memegenie/internal/domain"
	"github.com/timmy/memegenie/internal/logger"
)

type session struct {
	studio   *Studio
	lastSeen time.Time
}

// Registry owns the live studio sessions and evicts idle ones.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	opts     Options
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry whose sessions share opts.
// Parameters:
//   - opts: collaborators handed to every new Studio.
//   - ttl: idle time after which a session may be evicted; zero disables eviction.
//
// Returns:
//   - *Registry: empty registry.
func NewRegistry(opts Options, ttl time.Duration) *Registry {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: make(map[string]*session),
		opts:     opts,
		ttl:      ttl,
		now:      now,
	}
}

// Create starts a new session with a random id.
func (r *Registry) Create() *Studio {
	id := uuid.NewString()
	s := New(id, r.opts)

	r.mu.Lock()
	r.sessions[id] = &session{studio: s, lastSeen: r.now()}
	r.mu.Unlock()
	return s
}

// Get returns the session and marks it as used.
func (r *Registry) Get(id string) (*Studio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sess.lastSeen = r.now()
	return sess.studio, nil
}

// Delete drops the session. An in-flight operation still completes, its
// result is simply unreachable.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle longer than the TTL, skipping busy ones.
// Returns the number evicted.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	evicted := 0
	for id, sess := range r.sessions {
		if sess.lastSeen.After(cutoff) || sess.studio.Busy() {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.With(logger.Fields{logger.FieldComponent: "registry"}).WithCount(n).Info(ctx, "Evicted idle sessions (%d left)", r.Len())
			}
		}
	}
}
