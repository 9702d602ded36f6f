// Package objectstore implements the content-addressed blob/tree/commit
// database that backs a project's ".mem/memov.git" bare repository. It is a
// thin layer over go-git's plumbing types: every write goes straight to the
// storage.Storer, bypassing go-git's high-level Worktree/Commit API, because
// the Snapshot Engine needs to compose trees from mixed sources (some
// entries freshly hashed from the workspace, others inherited verbatim from
// a previous commit) — something Worktree.Commit cannot express.
package objectstore

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"

	"github.com/memovai/contextgit/internal/memerr"
)

var log = logrus.WithField("pkg", "objectstore")

// HeadRef is the moving ref this engine owns, distinct from any ref a host
// git installation might also keep in the same bare repository.
const HeadRef = plumbing.ReferenceName("refs/memov/HEAD")

const branchRefPrefix = "refs/memov/heads/"
const noteRefPrefix = "refs/memov/notes/"

// TreeEntry is one (name, mode, object-id) triple destined for a Tree.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash plumbing.Hash
}

// FileEntry is a fully-resolved project-relative path paired with its blob id.
type FileEntry struct {
	Path string
	Hash plumbing.Hash
}

// Store wraps a bare repository's storer with memov's plumbing operations.
type Store struct {
	root   string
	fs     billy.Filesystem
	storer *filesystem.Storage
}

// Init creates a new bare repository at root (the directory that will hold
// "objects/", "refs/", etc. directly — memov's own ".mem/memov.git").
func Init(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, memerr.Wrap(memerr.CommitFailed, err, "create store directory %s", root)
	}
	fs := osfs.New(root)
	storer := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())
	if _, err := gogit.Init(storer, nil); err != nil {
		return nil, memerr.Wrap(memerr.CommitFailed, err, "initialize bare repository at %s", root)
	}
	log.WithField("path", root).Info("initialized object store")
	return &Store{root: root, fs: fs, storer: storer}, nil
}

// Open attaches to an existing bare repository at root.
func Open(root string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, memerr.New(memerr.StoreNotInitialized, "no object store at %s", root)
	}
	fs := osfs.New(root)
	storer := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())
	return &Store{root: root, fs: fs, storer: storer}, nil
}

// Exists reports whether root already contains an initialized bare repository.
func Exists(root string) bool {
	_, err := os.Stat(path.Join(root, "objects"))
	return err == nil
}

// WriteBlob stores raw bytes as a blob object and returns its id.
func (s *Store) WriteBlob(data []byte) (plumbing.Hash, error) {
	obj := s.storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, memerr.Wrap(memerr.CommitFailed, err, "open blob writer")
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, memerr.Wrap(memerr.CommitFailed, err, "write blob bytes")
	}
	w.Close()
	id, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, memerr.Wrap(memerr.CommitFailed, err, "store blob object")
	}
	return id, nil
}

// WriteBlobFile reads absPath from disk and stores its contents as a blob.
func (s *Store) WriteBlobFile(absPath string) (plumbing.Hash, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return plumbing.ZeroHash, memerr.Wrap(memerr.CommitFailed, err, "read file %s", absPath)
	}
	return s.WriteBlob(data)
}

// sortTreeEntries orders entries the way git does: byte-wise, but directory
// names are compared as though they carried a trailing "/" so that e.g. a
// file "lib" sorts before "lib-2", while a directory "lib" (compared as
// "lib/") sorts after it.
func sortTreeEntries(entries []TreeEntry) {
	key := func(e TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}
	sort.Slice(entries, func(i, j int) bool {
		return key(entries[i]) < key(entries[j])
	})
}

// WriteTree stores a flat set of entries as a single tree object. Callers
// composing nested directory structures should use BuildTree instead, which
// recurses and calls WriteTree once per directory level.
func (s *Store) WriteTree(entries []TreeEntry) (plumbing.Hash, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sortTreeEntries(sorted)

	tree := &object.Tree{}
	for _, e := range sorted {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: e.Name,
			Mode: e.Mode,
			Hash: e.Hash,
		})
	}
	obj := s.storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, memerr.Wrap(memerr.CommitFailed, err, "encode tree")
	}
	id, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, memerr.Wrap(memerr.CommitFailed, err, "store tree object")
	}
	return id, nil
}

// BuildTree composes a (possibly multi-level) tree from a flat map of
// project-relative paths to blob ids, recursing into directories depth-first
// so that identical input always yields identical tree ids regardless of
// insertion order.
func (s *Store) BuildTree(files map[string]plumbing.Hash) (plumbing.Hash, error) {
	type node struct {
		blob     *plumbing.Hash
		children map[string]*node
	}
	root := &node{children: map[string]*node{}}
	for p, h := range files {
		parts := strings.Split(path.Clean(filepathToSlash(p)), "/")
		cur := root
		for i, part := range parts {
			if i == len(parts)-1 {
				hh := h
				if cur.children[part] == nil {
					cur.children[part] = &node{}
				}
				cur.children[part].blob = &hh
				continue
			}
			if cur.children[part] == nil {
				cur.children[part] = &node{children: map[string]*node{}}
			}
			cur = cur.children[part]
		}
	}

	var write func(n *node) (plumbing.Hash, error)
	write = func(n *node) (plumbing.Hash, error) {
		var entries []TreeEntry
		for name, child := range n.children {
			if child.blob != nil {
				entries = append(entries, TreeEntry{Name: name, Mode: filemode.Regular, Hash: *child.blob})
				continue
			}
			id, err := write(child)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			entries = append(entries, TreeEntry{Name: name, Mode: filemode.Dir, Hash: id})
		}
		return s.WriteTree(entries)
	}
	return write(root)
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// WriteCommit stores a commit object over the given tree and parents.
func (s *Store) WriteCommit(treeID plumbing.Hash, parents []plumbing.Hash, author object.Signature, message string) (plumbing.Hash, error) {
	commit := &object.Commit{
		Author:       author,
		Committer:    author,
		Message:      message,
		TreeHash:     treeID,
		ParentHashes: parents,
	}
	obj := s.storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, memerr.Wrap(memerr.CommitFailed, err, "encode commit")
	}
	id, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, memerr.Wrap(memerr.CommitFailed, err, "store commit object")
	}
	log.WithField("commit", id.String()).Info("wrote commit")
	return id, nil
}

// UpdateRef points a named branch ref (bare name, no prefix) at id.
func (s *Store) UpdateRef(name string, id plumbing.Hash) error {
	ref := plumbing.NewHashReference(plumbing.ReferenceName(branchRefPrefix+name), id)
	if err := s.storer.SetReference(ref); err != nil {
		return memerr.Wrap(memerr.CommitFailed, err, "update ref %s", name)
	}
	return nil
}

// ResolveRef looks up a named branch ref.
func (s *Store) ResolveRef(name string) (plumbing.Hash, error) {
	ref, err := s.storer.Reference(plumbing.ReferenceName(branchRefPrefix + name))
	if err != nil {
		return plumbing.ZeroHash, memerr.New(memerr.StoreNotInitialized, "ref %s not found", name)
	}
	return ref.Hash(), nil
}

// SetHead moves the engine-owned HEAD ref to id.
func (s *Store) SetHead(id plumbing.Hash) error {
	ref := plumbing.NewHashReference(HeadRef, id)
	if err := s.storer.SetReference(ref); err != nil {
		return memerr.Wrap(memerr.CommitFailed, err, "update HEAD")
	}
	return nil
}

// Head returns the current HEAD commit id, or ZeroHash if unset.
func (s *Store) Head() (plumbing.Hash, error) {
	ref, err := s.storer.Reference(HeadRef)
	if err != nil {
		return plumbing.ZeroHash, nil
	}
	return ref.Hash(), nil
}

// ReadTree decodes the tree object for id.
func (s *Store) ReadTree(id plumbing.Hash) (*object.Tree, error) {
	obj, err := s.storer.EncodedObject(plumbing.TreeObject, id)
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "read tree %s", id)
	}
	tree := &object.Tree{}
	if err := tree.Decode(obj); err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "decode tree %s", id)
	}
	return tree, nil
}

// GetCommit decodes the commit object for id.
func (s *Store) GetCommit(id plumbing.Hash) (*object.Commit, error) {
	obj, err := s.storer.EncodedObject(plumbing.CommitObject, id)
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "read commit %s", id)
	}
	commit := &object.Commit{}
	if err := commit.Decode(obj); err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "decode commit %s", id)
	}
	return commit, nil
}

// WalkCommit returns the commit chain from id back to the root, oldest last
// (i.e. id itself first), following first-parent only — this system never
// produces merge commits.
func (s *Store) WalkCommit(id plumbing.Hash) ([]*object.Commit, error) {
	var out []*object.Commit
	cur := id
	for cur != plumbing.ZeroHash {
		c, err := s.GetCommit(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		if len(c.ParentHashes) == 0 {
			break
		}
		cur = c.ParentHashes[0]
	}
	return out, nil
}

// GetHistory returns commit ids from the root to id, oldest-to-newest.
func (s *Store) GetHistory(id plumbing.Hash) ([]plumbing.Hash, error) {
	commits, err := s.WalkCommit(id)
	if err != nil {
		return nil, err
	}
	out := make([]plumbing.Hash, len(commits))
	for i, c := range commits {
		out[len(commits)-1-i] = c.Hash
	}
	return out, nil
}

// ListFilesAt walks the tree reachable from commit id and returns every
// blob with its project-relative path.
func (s *Store) ListFilesAt(id plumbing.Hash) ([]FileEntry, error) {
	m, err := s.FileBlobMapAt(id)
	if err != nil {
		return nil, err
	}
	out := make([]FileEntry, 0, len(m))
	for p, h := range m {
		out = append(out, FileEntry{Path: p, Hash: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// FileBlobMapAt returns every tracked path at commit id mapped to its blob id.
func (s *Store) FileBlobMapAt(id plumbing.Hash) (map[string]plumbing.Hash, error) {
	if id == plumbing.ZeroHash {
		return map[string]plumbing.Hash{}, nil
	}
	commit, err := s.GetCommit(id)
	if err != nil {
		return nil, err
	}
	tree, err := s.ReadTree(commit.TreeHash)
	if err != nil {
		return nil, err
	}
	out := map[string]plumbing.Hash{}
	var walk func(prefix string, t *object.Tree) error
	walk = func(prefix string, t *object.Tree) error {
		for _, entry := range t.Entries {
			rel := entry.Name
			if prefix != "" {
				rel = prefix + "/" + entry.Name
			}
			if entry.Mode == filemode.Dir {
				sub, err := s.ReadTree(entry.Hash)
				if err != nil {
					return err
				}
				if err := walk(rel, sub); err != nil {
					return err
				}
				continue
			}
			out[rel] = entry.Hash
		}
		return nil
	}
	if err := walk("", tree); err != nil {
		return nil, err
	}
	return out, nil
}

// Archive returns a tar byte-stream of the full tree reachable from commit id.
func (s *Store) Archive(id plumbing.Hash) ([]byte, error) {
	files, err := s.ListFilesAt(id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		obj, err := s.storer.EncodedObject(plumbing.BlobObject, f.Hash)
		if err != nil {
			return nil, memerr.Wrap(memerr.Unknown, err, "read blob for archive %s", f.Path)
		}
		r, err := obj.Reader()
		if err != nil {
			return nil, memerr.Wrap(memerr.Unknown, err, "open blob reader %s", f.Path)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, memerr.Wrap(memerr.Unknown, err, "read blob %s", f.Path)
		}
		hdr := &tar.Header{
			Name: f.Path,
			Mode: 0o644,
			Size: int64(len(data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, memerr.Wrap(memerr.Unknown, err, "write tar header %s", f.Path)
		}
		if _, err := tw.Write(data); err != nil {
			return nil, memerr.Wrap(memerr.Unknown, err, "write tar body %s", f.Path)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "close tar writer")
	}
	return buf.Bytes(), nil
}

// ExtractArchive writes every entry in a tar byte-stream to destRoot.
func ExtractArchive(data []byte, destRoot string) error {
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return memerr.Wrap(memerr.Unknown, err, "read tar entry")
		}
		dest := path.Join(destRoot, hdr.Name)
		if err := os.MkdirAll(path.Dir(dest), 0o755); err != nil {
			return memerr.Wrap(memerr.CommitFailed, err, "create directory for %s", hdr.Name)
		}
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return memerr.Wrap(memerr.CommitFailed, err, "open %s for extraction", hdr.Name)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return memerr.Wrap(memerr.CommitFailed, err, "write extracted file %s", hdr.Name)
		}
		f.Close()
	}
}

// GetNote returns the note text attached to commit id, or "" if none.
func (s *Store) GetNote(id plumbing.Hash) (string, error) {
	ref, err := s.storer.Reference(plumbing.ReferenceName(noteRefPrefix + id.String()))
	if err != nil {
		return "", nil
	}
	obj, err := s.storer.EncodedObject(plumbing.BlobObject, ref.Hash())
	if err != nil {
		return "", memerr.Wrap(memerr.Unknown, err, "read note blob for %s", id)
	}
	r, err := obj.Reader()
	if err != nil {
		return "", memerr.Wrap(memerr.Unknown, err, "open note reader for %s", id)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", memerr.Wrap(memerr.Unknown, err, "read note bytes for %s", id)
	}
	return string(data), nil
}

// SetNote attaches (or replaces) a detached note for commit id, used by
// amend to update prompt/response without rewriting the commit itself.
func (s *Store) SetNote(id plumbing.Hash, text string) error {
	blobID, err := s.WriteBlob([]byte(text))
	if err != nil {
		return err
	}
	ref := plumbing.NewHashReference(plumbing.ReferenceName(noteRefPrefix+id.String()), blobID)
	if err := s.storer.SetReference(ref); err != nil {
		return memerr.Wrap(memerr.CommitFailed, err, "set note for %s", id)
	}
	return nil
}

// Branches lists every memov-owned branch ref (bare names, no prefix).
func (s *Store) Branches() ([]string, error) {
	refs, err := s.storer.IterReferences()
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "iterate references")
	}
	var out []string
	err = refs.ForEach(func(r *plumbing.Reference) error {
		name := string(r.Name())
		if strings.HasPrefix(name, branchRefPrefix) {
			out = append(out, strings.TrimPrefix(name, branchRefPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "walk references")
	}
	sort.Strings(out)
	return out, nil
}

// Now returns a timestamp usable as a commit signature's When field.
// Exists so callers don't reach for time.Now() ad hoc and so tests can
// construct deterministic signatures by calling this once per fixture.
func Now() time.Time { return time.Now() }
