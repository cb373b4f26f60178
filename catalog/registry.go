package catalog

import (
	"context"
	"sync"
	"time"

	"catalog-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngineFactory builds the engine for a new session.
type EngineFactory func() *Engine

type session struct {
	engine   *Engine
	lastSeen time.Time
}

// Registry holds one Engine per consumer session and drops sessions that have
// been idle longer than the idle timeout.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	factory  EngineFactory
	idle     time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewRegistry(factory EngineFactory, idle time.Duration, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*session),
		factory:  factory,
		idle:     idle,
		now:      time.Now,
		log:      log,
	}
}

// Get returns the engine of session id. An empty, malformed or unknown id
// gets a fresh session; the returned id is the one to use from now on.
func (r *Registry) Get(id string) (*Engine, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := uuid.Parse(id); err == nil {
		if s, ok := r.sessions[id]; ok {
			s.lastSeen = r.now()
			return s.engine, id, false
		}
	}
	id = uuid.NewString()
	r.sessions[id] = &session{engine: r.factory(), lastSeen: r.now()}
	r.log.Debug("Catalog session created", zap.String("session_id", id))
	return r.sessions[id].engine, id, true
}

// Lookup returns the engine of an existing session without creating one.
func (r *Registry) Lookup(id string) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.now()
	return s.engine, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes and removes idle sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	cutoff := r.now().Add(-r.idle)
	var expired []*Engine
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s.engine)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		e.Close()
	}
	if len(expired) > 0 {
		r.log.Info("Expired idle catalog sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Broadcast applies a remote change to every session.
func (r *Registry) Broadcast(ctx context.Context, ev models.ChangeEvent) {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.sessions))
	for _, s := range r.sessions {
		engines = append(engines, s.engine)
	}
	r.mu.Unlock()

	for _, e := range engines {
		e.ApplyRemoteChange(ctx, ev)
	}
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.engine.Close()
	}
}
