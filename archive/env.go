package archive

import (
	"log/slog"

	"github.com/meigma/arcvfs/cache"
	"github.com/meigma/arcvfs/vfs"
)

// Env carries the session state drivers share: node identities, the
// instance registry, the metadata cache and the cooperative yield hook.
type Env struct {
	ids      *vfs.IDs
	registry *Registry
	cache    *cache.Store
	logger   *slog.Logger
	yield    func()
	charset  string
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithIDs shares an identity table, typically the one used by the host
// filesystem adapter of the same session.
func WithIDs(ids *vfs.IDs) EnvOption {
	return func(e *Env) {
		e.ids = ids
	}
}

// WithCache enables metadata persistence.
func WithCache(store *cache.Store) EnvOption {
	return func(e *Env) {
		e.cache = store
	}
}

// WithLogger sets the logger for driver diagnostics.
func WithLogger(logger *slog.Logger) EnvOption {
	return func(e *Env) {
		e.logger = logger
	}
}

// WithYield sets the hook called during long scans and forward seeks.
func WithYield(fn func()) EnvOption {
	return func(e *Env) {
		e.yield = fn
	}
}

// WithCharset sets a charset override applied to every newly mounted
// archive that supports one.
func WithCharset(name string) EnvOption {
	return func(e *Env) {
		e.charset = name
	}
}

// NewEnv returns an Env with a fresh identity table and registry unless
// options supply them.
func NewEnv(opts ...EnvOption) *Env {
	e := &Env{}
	for _, opt := range opts {
		opt(e)
	}
	if e.ids == nil {
		e.ids = vfs.NewIDs()
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	return e
}

// IDs returns the identity table.
func (e *Env) IDs() *vfs.IDs { return e.ids }

// Registry returns the instance registry.
func (e *Env) Registry() *Registry { return e.registry }

// Cache returns the metadata cache, or nil.
func (e *Env) Cache() *cache.Store { return e.cache }

// Charset returns the session-wide charset override.
func (e *Env) Charset() string { return e.charset }

// Yield runs the cooperative yield hook, if any.
func (e *Env) Yield() {
	if e.yield != nil {
		e.yield()
	}
}

// Logger returns the logger, falling back to a discard logger if nil.
func (e *Env) Logger() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}
