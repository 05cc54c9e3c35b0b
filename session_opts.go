package arcvfs

import (
	"errors"
	"log/slog"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/cache"
	"github.com/meigma/arcvfs/http"
)

// Option configures a Session.
type Option func(*Session) error

// --- Cache Options ---

// WithCacheFile loads the metadata cache from path when the session is
// created and writes it back on Close if it changed. A missing file starts
// an empty cache.
func WithCacheFile(path string) Option {
	return func(s *Session) error {
		if path == "" {
			return errors.New("arcvfs: empty cache path")
		}
		s.cachePath = path
		s.store = nil
		return nil
	}
}

// WithCache uses an existing store. The session never commits a shared
// store; its owner does.
func WithCache(store *cache.Store) Option {
	return func(s *Session) error {
		s.store = store
		s.cachePath = ""
		return nil
	}
}

// --- Driver Options ---

// WithDrivers replaces the default driver list. Drivers are offered a file
// in the given order, after the ones claiming its extension.
func WithDrivers(drivers ...archive.Driver) Option {
	return func(s *Session) error {
		if len(drivers) == 0 {
			return errors.New("arcvfs: no drivers")
		}
		s.drivers = append([]archive.Driver(nil), drivers...)
		return nil
	}
}

// WithCharset applies a charset override to every archive mounted by the
// session whose format supports one.
func WithCharset(name string) Option {
	return func(s *Session) error {
		s.charset = name
		return nil
	}
}

// WithYield sets the hook called during long scans and forward seeks.
func WithYield(fn func()) Option {
	return func(s *Session) error {
		s.yield = fn
		return nil
	}
}

// --- Source Options ---

// WithHTTPOptions sets the options used by OpenURL.
func WithHTTPOptions(opts ...http.Option) Option {
	return func(s *Session) error {
		s.httpOpts = append(s.httpOpts, opts...)
		return nil
	}
}

// --- Observability Options ---

// WithLogger sets the logger shared by the session, its drivers and the
// cache it opens.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		s.logger = logger
		return nil
	}
}
