// Package fetch defines the narrow transport boundary the core pulls
// manifests and file payloads through, plus a filesystem-backed mirror
// implementation for local content trees.
package fetch

import (
	"fmt"
	"os"
	"strconv"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Kind selects what a Fetch call is asking for.
type Kind int

const (
	KindMoM Kind = iota
	KindManifest
	KindFullfile
	KindPack
)

func (k Kind) String() string {
	switch k {
	case KindMoM:
		return "MoM"
	case KindManifest:
		return "manifest"
	case KindFullfile:
		return "fullfile"
	default:
		return "pack"
	}
}

// Fetcher pulls a blob by kind, version and identifier. The identifier is
// a component name for manifests and packs, a content hash for fullfiles,
// and unused for the MoM.
type Fetcher interface {
	Fetch(kind Kind, version int, id string) ([]byte, error)
}

// Unpacker extracts a pack archive into an output directory. Archive
// handling lives outside the core; callers may pass nil to disable packs.
type Unpacker interface {
	Extract(archive []byte, outDir string) error
}

// NotFoundError marks a blob the transport could not locate.
type NotFoundError struct {
	Kind    Kind
	Version int
	ID      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found at version %d", e.Kind, e.ID, e.Version)
}

// Mirror serves content from a local tree laid out the way the server
// publishes it:
//
//	<root>/<version>/Manifest.MoM
//	<root>/<version>/Manifest.<component>
//	<root>/<version>/files/<hash>
//	<root>/<version>/pack-<component>.tar
type Mirror struct {
	fs   billy.Filesystem
	root string
}

// NewMirror wraps a content tree rooted at root.
func NewMirror(fs billy.Filesystem, root string) *Mirror {
	return &Mirror{fs: fs, root: root}
}

func (m *Mirror) path(kind Kind, version int, id string) string {
	ver := strconv.Itoa(version)
	switch kind {
	case KindMoM:
		return m.fs.Join(m.root, ver, "Manifest.MoM")
	case KindManifest:
		return m.fs.Join(m.root, ver, "Manifest."+id)
	case KindFullfile:
		return m.fs.Join(m.root, ver, "files", id)
	default:
		return m.fs.Join(m.root, ver, "pack-"+id+".tar")
	}
}

// Fetch implements Fetcher.
func (m *Mirror) Fetch(kind Kind, version int, id string) ([]byte, error) {
	path := m.path(kind, version, id)
	data, err := util.ReadFile(m.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Kind: kind, Version: version, ID: id}
		}
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	return data, nil
}
