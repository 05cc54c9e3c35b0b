package arcvfs

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/cache"
	"github.com/meigma/arcvfs/drivers/bzip2fs"
	"github.com/meigma/arcvfs/drivers/gzipfs"
	"github.com/meigma/arcvfs/drivers/pakfs"
	"github.com/meigma/arcvfs/drivers/rpgfs"
	"github.com/meigma/arcvfs/drivers/tarfs"
	"github.com/meigma/arcvfs/drivers/zcompfs"
	"github.com/meigma/arcvfs/drivers/zipfs"
	"github.com/meigma/arcvfs/http"
	"github.com/meigma/arcvfs/vfs"
)

// Session mounts archives and resolves paths through them.
type Session struct {
	env *archive.Env

	// store is the metadata cache. It is committed on Close only when the
	// session opened it from cachePath.
	store     *cache.Store
	cachePath string

	drivers []archive.Driver
	byExt   map[string][]archive.Driver

	charset  string
	yield    func()
	httpOpts []http.Option
	logger   *slog.Logger
	closed   bool
}

// DefaultDrivers returns one instance of every built-in driver in the
// order they are offered files without a matching extension.
func DefaultDrivers() []archive.Driver {
	return []archive.Driver{
		zipfs.New(),
		tarfs.New(),
		gzipfs.New(),
		bzip2fs.New(),
		zcompfs.New(),
		pakfs.New(),
		rpgfs.New(),
	}
}

// New creates a session with the given options.
//
// Without a cache option the session keeps metadata in memory only.
func New(opts ...Option) (*Session, error) {
	s := &Session{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.drivers == nil {
		s.drivers = DefaultDrivers()
	}
	s.byExt = make(map[string][]archive.Driver)
	for _, d := range s.drivers {
		for _, ext := range d.Extensions() {
			s.byExt[ext] = append(s.byExt[ext], d)
		}
	}

	if s.cachePath != "" {
		store, err := cache.Open(s.cachePath, cache.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.store = store
	}
	if s.store == nil {
		s.store = cache.New(cache.WithLogger(s.logger))
	}

	s.env = archive.NewEnv(
		archive.WithCache(s.store),
		archive.WithLogger(s.logger),
		archive.WithYield(s.yield),
		archive.WithCharset(s.charset),
	)
	return s, nil
}

func (s *Session) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Env returns the driver environment of the session.
func (s *Session) Env() *archive.Env { return s.env }

// IDs returns the identity table shared by every node of the session.
func (s *Session) IDs() *vfs.IDs { return s.env.IDs() }

// Cache returns the metadata cache.
func (s *Session) Cache() *cache.Store { return s.store }

// Drivers returns the drivers in the order files are offered to them
// when no extension matches.
func (s *Session) Drivers() []archive.Driver {
	return append([]archive.Driver(nil), s.drivers...)
}

// Mount offers f to the drivers registered for its extension, then to the
// rest, and returns the root of the first archive that claims it. The
// caller owns the returned reference.
func (s *Session) Mount(f vfs.File) (vfs.Dir, error) {
	if s.closed {
		return nil, ErrClosed
	}
	ext := archive.Ext(f.Name())
	tried := make(map[archive.Driver]bool, len(s.drivers))
	try := func(d archive.Driver) (vfs.Dir, error) {
		if tried[d] {
			return nil, archive.ErrNotMine
		}
		tried[d] = true
		dir, err := d.Detect(s.env, f, ext)
		if err != nil {
			if errors.Is(err, archive.ErrNotMine) {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %w", d.Name(), err)
		}
		s.log().Debug("mounted archive", "name", f.Name(), "format", d.Name())
		return dir, nil
	}

	for _, list := range [][]archive.Driver{s.byExt[ext], s.drivers} {
		for _, d := range list {
			dir, err := try(d)
			if errors.Is(err, archive.ErrNotMine) {
				continue
			}
			return dir, err
		}
	}
	return nil, ErrNotArchive
}

// OpenURL returns a remote file served over HTTP range requests. The file
// can be passed to Mount.
func (s *Session) OpenURL(rawURL string) (vfs.File, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return http.Open(s.env.IDs(), rawURL, s.httpOpts...)
}

// Close writes the metadata cache back if the session opened it and it
// changed. Nodes obtained from the session stay usable, but no new ones
// can be opened.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cachePath == "" {
		return nil
	}
	return s.store.Commit()
}
