package dnd

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// BoardLoader fetches a user's board from the read model the first time a
// gesture touches it.
type BoardLoader func(ctx context.Context, userID string) (*Board, error)

// CommitterFactory builds the commit path for one user's engine.
type CommitterFactory func(userID string) Committer

// Registry owns one engine per user and serializes all gesture callbacks
// against it, standing in for the single UI event loop the core assumes.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry

	load    BoardLoader
	commits CommitterFactory
	logger  *log.Logger
}

type registryEntry struct {
	mu     sync.Mutex
	engine *Engine
}

// NewRegistry creates a registry. load and commits must be non-nil.
func NewRegistry(load BoardLoader, commits CommitterFactory, logger *log.Logger) *Registry {
	if load == nil {
		panic("dnd.NewRegistry: board loader is nil")
	}
	if commits == nil {
		panic("dnd.NewRegistry: committer factory is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Registry{
		entries: make(map[string]*registryEntry),
		load:    load,
		commits: commits,
		logger:  logger,
	}
}

// With runs fn against the user's engine under that user's lock, loading the
// board lazily on first use. Errors from the loader or fn are returned
// unchanged.
func (r *Registry) With(ctx context.Context, userID string, fn func(*Engine) error) error {
	ent := r.entry(userID)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.engine == nil {
		board, err := r.load(ctx, userID)
		if err != nil {
			return err
		}
		ent.engine = NewEngine(board, r.commits(userID), r.logger)
	}
	return fn(ent.engine)
}

// Evict drops a user's engine so the next gesture reloads from the read
// model. Used when the durable state changed outside the engine.
func (r *Registry) Evict(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userID)
}

func (r *Registry) entry(userID string) *registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[userID]
	if !ok {
		ent = &registryEntry{}
		r.entries[userID] = ent
	}
	return ent
}
