package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/arcvfs"
	"github.com/meigma/arcvfs/cache"
	"github.com/meigma/arcvfs/vfs"
)

// session opens a session configured from the global flags. Later options
// override earlier ones.
func (a *app) session(opts ...arcvfs.Option) (*arcvfs.Session, error) {
	base := []arcvfs.Option{arcvfs.WithLogger(a.logger)}
	if a.CachePath != "" {
		base = append(base, arcvfs.WithCacheFile(a.CachePath))
	}
	if a.Charset != "" {
		base = append(base, arcvfs.WithCharset(a.Charset))
	}
	return arcvfs.New(append(base, opts...)...)
}

func (a *app) closeSession(s *arcvfs.Session) {
	if err := s.Close(); err != nil {
		a.logger.Warn("metadata cache not saved", "error", err)
	}
}

func isURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// resolve returns the node named by target: a host path, or an http(s)
// URL whose fragment is a path inside the remote archive.
func resolve(s *arcvfs.Session, target string) (vfs.Node, error) {
	if !isURL(target) {
		return s.Resolve(target)
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	inner := u.Fragment
	u.Fragment = ""
	f, err := s.OpenURL(u.String())
	if err != nil {
		return nil, err
	}
	defer f.Unref()
	return s.ResolveFrom(f, inner)
}

func resolveDir(s *arcvfs.Session, target string) (vfs.Dir, error) {
	n, err := resolve(s, target)
	if err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case vfs.Dir:
		return n, nil
	case vfs.File:
		defer n.Unref()
		return s.Mount(n)
	}
	n.Unref()
	return nil, fmt.Errorf("%s: %w", target, arcvfs.ErrNotExist)
}

func resolveFile(s *arcvfs.Session, target string) (vfs.File, error) {
	n, err := resolve(s, target)
	if err != nil {
		return nil, err
	}
	f, ok := n.(vfs.File)
	if !ok {
		n.Unref()
		return nil, fmt.Errorf("%s: %w", target, arcvfs.ErrNotFile)
	}
	return f, nil
}

// LsCmd lists a directory.
type LsCmd struct {
	Flat bool   `kong:"name=flat,short=r,help='List every file below the directory, without subdirectories.'"`
	Path string `kong:"arg,required,name=path,help='Directory, archive or URL. (eg. music/pack.zip/tunes)'"`
}

func (c *LsCmd) Run(a *app) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	defer a.closeSession(s)

	d, err := resolveDir(s, c.Path)
	if err != nil {
		return err
	}
	defer d.Unref()

	if c.Flat {
		files, err := vfs.ListFlat(d)
		if err != nil {
			return err
		}
		defer vfs.Release(files)
		for _, f := range files {
			fmt.Fprintln(a.out, f.Name())
		}
		return nil
	}

	it, err := d.ReadDirStart(
		func(f vfs.File) { fmt.Fprintln(a.out, f.Name()) },
		func(sub vfs.Dir) { fmt.Fprintln(a.out, sub.Name()+"/") },
	)
	if err != nil {
		return err
	}
	for it.Iterate() {
	}
	it.Cancel()
	return nil
}

// CatCmd writes a file to stdout.
type CatCmd struct {
	Offset uint64 `kong:"name=offset,default=0,help='Start reading at this byte.'"`
	Length int64  `kong:"name=length,default=-1,help='Stop after this many bytes. Negative reads to the end.'"`
	Path   string `kong:"arg,required,name=path,help='File, possibly inside archives.'"`
}

func (c *CatCmd) Run(a *app) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	defer a.closeSession(s)

	f, err := resolveFile(s, c.Path)
	if err != nil {
		return err
	}
	defer f.Unref()

	h, err := f.Open()
	if err != nil {
		return err
	}
	defer h.Unref()
	if err := h.SeekSet(c.Offset); err != nil {
		return err
	}
	var r io.Reader = vfs.NewReader(h)
	if c.Length >= 0 {
		r = io.LimitReader(r, c.Length)
	}
	_, err = io.Copy(a.out, r)
	return err
}

// StatCmd prints what the player would learn about a file.
type StatCmd struct {
	Path string `kong:"arg,required,name=path,help='File, possibly inside archives.'"`
}

func (c *StatCmd) Run(a *app) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	defer a.closeSession(s)

	f, err := resolveFile(s, c.Path)
	if err != nil {
		return err
	}
	defer f.Unref()

	ready := f.SizeReady()
	size, err := f.Size()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "name:       %s\n", f.Name())
	fmt.Fprintf(a.out, "size:       %d\n", size)
	fmt.Fprintf(a.out, "size ready: %t\n", ready)
	return nil
}

// VerifyCmd decodes every file of each archive.
type VerifyCmd struct {
	Jobs  int      `kong:"name=jobs,short=j,default=4,help='Archives verified in parallel.'"`
	Paths []string `kong:"arg,required,name=path,help='Archives or directories to verify.'"`
}

type verifyResult struct {
	files int
	bytes uint64
	err   error
}

func (c *VerifyCmd) Run(a *app) error {
	var store *cache.Store
	if a.CachePath != "" {
		var err error
		if store, err = cache.Open(a.CachePath, cache.WithLogger(a.logger)); err != nil {
			return err
		}
	} else {
		store = cache.New(cache.WithLogger(a.logger))
	}

	results := make([]verifyResult, len(c.Paths))
	var g errgroup.Group
	g.SetLimit(max(c.Jobs, 1))
	for i, p := range c.Paths {
		g.Go(func() error {
			results[i] = a.verify(store, p)
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for i, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(a.out, "FAIL %s: %v\n", c.Paths[i], r.err)
			continue
		}
		fmt.Fprintf(a.out, "OK   %s (%d files, %d bytes)\n", c.Paths[i], r.files, r.bytes)
	}

	if err := store.Commit(); err != nil {
		a.logger.Warn("metadata cache not saved", "error", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d archives failed", failed, len(c.Paths))
	}
	return nil
}

// verify runs in its own session; only the store is shared.
func (a *app) verify(store *cache.Store, target string) verifyResult {
	s, err := a.session(arcvfs.WithCache(store))
	if err != nil {
		return verifyResult{err: err}
	}
	defer a.closeSession(s)

	d, err := resolveDir(s, target)
	if err != nil {
		return verifyResult{err: err}
	}
	defer d.Unref()

	var res verifyResult
	var errs []error
	err = vfs.Walk(d, func(p string, f vfs.File) error {
		data, err := vfs.ReadFile(f)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			return nil
		}
		res.files++
		res.bytes += uint64(len(data))
		return nil
	})
	res.err = errors.Join(append(errs, err)...)
	return res
}

// CacheCmd groups the metadata cache commands.
type CacheCmd struct {
	List CacheListCmd `kong:"cmd,help='List cache entries.'"`
	Rm   CacheRmCmd   `kong:"cmd,help='Remove one cache entry.'"`
}

func openStore(a *app) (*cache.Store, error) {
	if a.CachePath == "" {
		return nil, errors.New("no cache file configured")
	}
	return cache.Open(a.CachePath, cache.WithLogger(a.logger))
}

// CacheListCmd prints every entry of the cache.
type CacheListCmd struct{}

func (c *CacheListCmd) Run(a *app) error {
	store, err := openStore(a)
	if err != nil {
		return err
	}
	for e := range store.All() {
		fmt.Fprintf(a.out, "%-8s %12d %6d %s\n", e.SIG, e.Size, len(e.Blob), e.Name)
	}
	return nil
}

// CacheRmCmd removes the entry with the given key.
type CacheRmCmd struct {
	Name string `kong:"arg,required,name=name,help='Container file name.'"`
	Size string `kong:"arg,required,name=size,help='Container size in bytes.'"`
	SIG  string `kong:"arg,required,name=sig,help='Driver signature. (eg. GZIP)'"`
}

func (c *CacheRmCmd) Run(a *app) error {
	size, err := strconv.ParseUint(c.Size, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", c.Size, err)
	}
	store, err := openStore(a)
	if err != nil {
		return err
	}
	if err := store.Remove(c.Name, size, c.SIG); err != nil {
		return err
	}
	return store.Commit()
}
