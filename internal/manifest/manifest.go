// Package manifest models bundle manifests and the Manifest of Manifests,
// parses their JSON wire form, and consolidates per-bundle file lists into
// the global target view.
package manifest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ohler55/ojg/oj"
)

// FileType classifies a manifest entry.
type FileType int

const (
	TypeFile FileType = iota
	TypeDir
	TypeLink
	TypeDeleted
	TypeManifest
)

var typeNames = map[string]FileType{
	"file":      TypeFile,
	"directory": TypeDir,
	"symlink":   TypeLink,
	"deleted":   TypeDeleted,
	"manifest":  TypeManifest,
}

func (t FileType) String() string {
	for name, v := range typeNames {
		if v == t {
			return name
		}
	}
	return "unknown"
}

// File is one record in a manifest: a path the bundle provides, or a
// reference to a sub-manifest when it lives in the MoM.
type File struct {
	Path       string
	Hash       string
	Type       FileType
	LastChange int

	DoNotUpdate  bool
	Ignored      bool
	Experimental bool

	// Staging holds the sidecar name while the installer is mid-flight.
	Staging string
}

// IsDeleted reports whether the record marks its path as gone.
func (f *File) IsDeleted() bool { return f.Type == TypeDeleted }

// Manifest is one parsed bundle description. For the MoM, Files holds
// TypeManifest references and Submanifests is populated by the store.
type Manifest struct {
	Component    string
	Version      int
	Format       int
	ContentSize  int64
	Experimental bool
	Includes     []string
	Optional     []string
	Files        []*File

	Submanifests []*Manifest
}

// wire mirrors the JSON layout.
type wire struct {
	Component    string     `json:"component"`
	Version      int        `json:"version"`
	Format       int        `json:"format"`
	ContentSize  int64      `json:"contentsize"`
	Experimental bool       `json:"experimental"`
	Includes     []string   `json:"includes"`
	Optional     []string   `json:"optional"`
	Files        []wireFile `json:"files"`
}

type wireFile struct {
	Path       string   `json:"path"`
	Hash       string   `json:"hash"`
	Type       string   `json:"type"`
	LastChange int      `json:"last_change"`
	Flags      []string `json:"flags"`
}

var errNoComponent = errors.New("manifest has no component name")

// Parse decodes a manifest blob and checks its structural invariants:
// paths unique, no self-include. The returned files are sorted by path
// whatever their order in the blob.
func Parse(data []byte) (*Manifest, error) {
	var w wire
	if err := oj.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if w.Component == "" {
		return nil, errNoComponent
	}

	m := &Manifest{
		Component:    w.Component,
		Version:      w.Version,
		Format:       w.Format,
		ContentSize:  w.ContentSize,
		Experimental: w.Experimental,
		Includes:     w.Includes,
		Optional:     w.Optional,
	}

	for _, inc := range append(append([]string{}, w.Includes...), w.Optional...) {
		if inc == w.Component {
			return nil, fmt.Errorf("manifest %s includes itself", w.Component)
		}
	}

	seen := make(map[string]bool, len(w.Files))
	for _, wf := range w.Files {
		t, ok := typeNames[wf.Type]
		if !ok {
			return nil, fmt.Errorf("manifest %s: unknown file type %q for %s", w.Component, wf.Type, wf.Path)
		}
		if seen[wf.Path] {
			return nil, fmt.Errorf("manifest %s: duplicate path %s", w.Component, wf.Path)
		}
		seen[wf.Path] = true

		f := &File{
			Path:       wf.Path,
			Hash:       wf.Hash,
			Type:       t,
			LastChange: wf.LastChange,
		}
		for _, flag := range wf.Flags {
			switch flag {
			case "do-not-update":
				f.DoNotUpdate = true
			case "ignored-by-update":
				f.Ignored = true
			case "experimental":
				f.Experimental = true
			}
		}
		m.Files = append(m.Files, f)
	}

	sort.SliceStable(m.Files, func(i, j int) bool {
		return m.Files[i].Path < m.Files[j].Path
	})
	return m, nil
}

// FindBundle looks a bundle reference up in a MoM by component name.
func (m *Manifest) FindBundle(name string) *File {
	for _, f := range m.Files {
		if f.Type == TypeManifest && f.Path == name {
			return f
		}
	}
	return nil
}

// FindFile looks a path up in the manifest's file list.
func (m *Manifest) FindFile(path string) *File {
	for _, f := range m.Files {
		if f.Path == path {
			return f
		}
	}
	return nil
}

// FindSubmanifest returns the loaded submanifest for a component, if any.
func (m *Manifest) FindSubmanifest(component string) *Manifest {
	for _, sub := range m.Submanifests {
		if sub.Component == component {
			return sub
		}
	}
	return nil
}

// PrintableName decorates experimental bundles in listings.
func (f *File) PrintableName() string {
	if f.Experimental {
		return f.Path + " (experimental)"
	}
	return f.Path
}

// TotalContentSize sums the declared content size across manifests.
func TotalContentSize(manifests []*Manifest) int64 {
	var total int64
	for _, m := range manifests {
		total += m.ContentSize
	}
	return total
}
