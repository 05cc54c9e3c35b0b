package archive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/text/encoding"

	"github.com/meigma/arcvfs/vfs"
)

// scanYieldEvery is the number of scan steps between yields.
const scanYieldEvery = 64

// Config describes a container recognised by a driver.
type Config struct {
	// SIG tags cache entries and registry slots.
	SIG string

	// Backend scans and opens members.
	Backend Backend

	// Handle is an already opened container handle, typically the one
	// used for detection. The instance takes ownership. If nil the
	// container is opened on first use.
	Handle vfs.FileHandle

	// Tree is the initial tree. Nil starts from an empty root.
	Tree *Tree

	// Complete reports that Tree needs no scanning.
	Complete bool

	// Meta selects the cache blob codec. Nil persists the whole tree.
	Meta Meta

	// Names is the default raw name decoding rule.
	Names NameMode

	// NoCharset hides the charset override on the root directory.
	NoCharset bool

	// Provisional marks the sizes in Tree as header claims. Reads are not
	// clipped to them, and the first full decode replaces them.
	Provisional bool
}

// Instance is one mounted container.
type Instance struct {
	env       *Env
	sig       string
	container vfs.File
	size      uint64
	handle    vfs.FileHandle
	backend   Backend
	meta      Meta
	tree      *Tree

	scanned     bool
	scanErr     error
	provisional bool
	steps   int
	refs    int

	namer       namer
	charsetName string
	noCharset   bool

	dirIDs    []uint32
	dirNames  []string
	fileIDs   []uint32
	fileNames []string
	dirByID   map[uint32]uint32
	fileByID  map[uint32]uint32
}

// Mount creates, or reuses, the instance for container f and returns its
// root directory with one reference.
//
// A registered live instance for the same container and SIG is reused.
// Otherwise the metadata cache is consulted: a blob that decodes is
// applied to the tree and the scan is skipped.
func Mount(env *Env, f vfs.File, cfg Config) (vfs.Dir, error) {
	if inst := env.registry.Lookup(f.ID(), cfg.SIG); inst != nil {
		if cfg.Handle != nil {
			cfg.Handle.Unref()
		}
		if cfg.Backend != nil {
			cfg.Backend.Close()
		}
		inst.Ref()
		return inst.root(), nil
	}

	size, err := f.Size()
	if err != nil {
		if cfg.Handle != nil {
			cfg.Handle.Unref()
		}
		return nil, err
	}

	inst := &Instance{
		env:       env,
		sig:       cfg.SIG,
		container: f,
		size:      size,
		handle:    cfg.Handle,
		backend:   cfg.Backend,
		meta:      cfg.Meta,
		tree:      cfg.Tree,
		scanned:   cfg.Complete && cfg.Tree != nil,
		refs:      1,
		namer:     namer{mode: cfg.Names},
		noCharset: cfg.NoCharset,
		dirByID:   make(map[uint32]uint32),
		fileByID:  make(map[uint32]uint32),
	}
	if inst.tree == nil {
		inst.tree = NewTree()
	}
	if inst.meta == nil {
		inst.meta = TreeMeta{}
	}
	if !inst.noCharset && env.charset != "" {
		if err := inst.setCharset(env.charset); err != nil {
			env.Logger().Warn("ignoring charset override", "charset", env.charset, "error", err)
		}
	}

	inst.provisional = cfg.Provisional
	inst.restore()
	inst.sync()
	f.Ref()
	env.registry.add(inst)
	return inst.root(), nil
}

func (in *Instance) log() *slog.Logger {
	return in.env.Logger().With("sig", in.sig, "container", in.container.Name())
}

// restore applies the cached blob for the container, if any.
func (in *Instance) restore() {
	store := in.env.cache
	if store == nil {
		return
	}
	blob, err := store.Get(in.container.Name(), in.size, in.sig)
	if err != nil {
		in.log().Debug("metadata cache miss")
		return
	}
	if err := in.meta.Decode(blob, in.tree); err != nil {
		in.log().Debug("ignoring undecodable cache entry", "error", err)
		return
	}
	if _, ok := in.meta.(TreeMeta); ok {
		in.scanned = true
	}
	in.provisional = false
	in.log().Debug("metadata cache hit", "dirs", len(in.tree.Dirs), "files", len(in.tree.Files))
}

// persist stores the current facts in the metadata cache.
func (in *Instance) persist() {
	store := in.env.cache
	if store == nil {
		return
	}
	blob := in.meta.Encode(in.tree)
	if blob == nil {
		return
	}
	if err := store.Add(in.container.Name(), in.size, in.sig, blob); err != nil {
		in.log().Debug("metadata not cached", "error", err)
	}
}

// Env returns the session environment.
func (in *Instance) Env() *Env { return in.env }

// Tree returns the tree being built. Backends append to it during Scan.
func (in *Instance) Tree() *Tree { return in.tree }

// Container returns the container file. The reference is borrowed.
func (in *Instance) Container() vfs.File { return in.container }

// ContainerSize returns the size of the container file.
func (in *Instance) ContainerSize() uint64 { return in.size }

// Logger returns a logger annotated with the container.
func (in *Instance) Logger() *slog.Logger { return in.log() }

// Handle returns the shared container handle, opening it on first use.
// Callers must position it before every read.
func (in *Instance) Handle() (vfs.FileHandle, error) {
	if in.handle == nil {
		h, err := in.container.Open()
		if err != nil {
			return nil, err
		}
		in.handle = h
	}
	return in.handle, nil
}

// Section returns a reader over n bytes of the container starting at off.
// Use Unbounded for n to read to the end of the container.
func (in *Instance) Section(off, n uint64) (*Section, error) {
	h, err := in.Handle()
	if err != nil {
		return nil, err
	}
	return NewSection(h, off, n), nil
}

// Ref takes a reference on the instance.
func (in *Instance) Ref() {
	in.refs++
}

// Unref drops a reference. The last one tears the instance down.
func (in *Instance) Unref() {
	if in.refs <= 0 {
		return
	}
	in.refs--
	if in.refs > 0 {
		return
	}
	in.env.registry.remove(in)
	if in.backend != nil {
		in.backend.Close()
	}
	if in.handle != nil {
		in.handle.Unref()
		in.handle = nil
	}
	in.log().Debug("archive released")
	in.container.Unref()
}

// Scanned reports whether the tree is complete.
func (in *Instance) Scanned() bool { return in.scanned }

// ScanErr returns the error that ended the scan early, if any.
func (in *Instance) ScanErr() error { return in.scanErr }

// scanStep runs one backend scan step.
func (in *Instance) scanStep() {
	if in.scanned {
		return
	}
	in.steps++
	if in.steps%scanYieldEvery == 0 {
		in.env.Yield()
	}
	done, err := in.backend.Scan(in)
	in.sync()
	switch {
	case err != nil:
		in.scanned = true
		in.scanErr = err
		in.log().Warn("archive scan stopped", "files", len(in.tree.Files), "error", err)
	case done:
		in.scanned = true
		in.log().Debug("archive scanned", "dirs", len(in.tree.Dirs), "files", len(in.tree.Files))
		in.persist()
	}
}

// scanUntil steps the scan until found reports true or the scan ends.
func (in *Instance) scanUntil(found func() bool) {
	for !found() && !in.scanned {
		in.scanStep()
	}
}

// sync assigns identities and display names to newly added nodes.
func (in *Instance) sync() {
	t := in.tree
	ids := in.env.ids
	for d := len(in.dirIDs); d < len(t.Dirs); d++ {
		var id uint32
		if d == 0 {
			id = in.container.ID()
		} else {
			id = ids.Intern(in.dirIDs[t.Dirs[d].Parent], t.Dirs[d].Raw)
			if _, dup := in.dirByID[id]; !dup {
				in.dirByID[id] = uint32(d) //nolint:gosec // index of an existing dir
			}
		}
		in.dirIDs = append(in.dirIDs, id)
		in.dirNames = append(in.dirNames, in.namer.name(t.Dirs[d].Raw, t.Dirs[d].UTF8))
	}
	for i := len(in.fileIDs); i < len(t.Files); i++ {
		e := &t.Files[i]
		id := ids.Intern(in.dirIDs[e.Dir], e.Raw)
		if _, dup := in.fileByID[id]; !dup {
			in.fileByID[id] = uint32(i) //nolint:gosec // index of an existing file
		}
		in.fileIDs = append(in.fileIDs, id)
		in.fileNames = append(in.fileNames, in.namer.name(e.Raw, e.UTF8))
	}
}

// Charset returns the active charset override.
func (in *Instance) Charset() string { return in.charsetName }

func (in *Instance) setCharset(name string) error {
	var enc encoding.Encoding
	if name != "" {
		var err error
		if enc, err = LookupCharset(name); err != nil {
			return err
		}
	}
	in.namer.override = enc
	in.charsetName = name
	for d := range in.dirNames {
		in.dirNames[d] = in.namer.name(in.tree.Dirs[d].Raw, in.tree.Dirs[d].UTF8)
	}
	for i := range in.fileNames {
		in.fileNames[i] = in.namer.name(in.tree.Files[i].Raw, in.tree.Files[i].UTF8)
	}
	return nil
}

// learnSize records the size of file i found by decoding it completely.
func (in *Instance) learnSize(i uint32, size uint64) {
	e := &in.tree.Files[i]
	if e.SizeKnown && !in.provisional {
		return
	}
	if e.SizeKnown && e.Size != size {
		in.log().Debug("header size contradicted by decode", "file", in.fileNames[i], "claimed", e.Size, "size", size)
	}
	in.provisional = false
	e.Size = size
	e.SizeKnown = true
	in.log().Debug("member size learned", "file", in.fileNames[i], "size", size)
	if in.scanned && in.scanErr == nil {
		in.persist()
	}
}

// fileSize returns the size of file i, decoding it if necessary.
func (in *Instance) fileSize(i uint32) (uint64, error) {
	if e := in.tree.Files[i]; e.SizeKnown {
		return e.Size, nil
	}
	h, err := in.open(i)
	if err != nil {
		return 0, err
	}
	defer h.Unref()

	buf := make([]byte, discardChunk)
	for {
		_, err := h.Read(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("archive: sizing %s: %w", in.fileNames[i], err)
		}
		in.env.Yield()
	}
	return in.tree.Files[i].Size, nil
}

// open returns a new handle on file i.
func (in *Instance) open(i uint32) (*handle, error) {
	m, err := in.backend.Open(in, i)
	if err != nil {
		return nil, err
	}
	in.Ref()
	return &handle{inst: in, index: i, m: m, refs: 1}, nil
}
