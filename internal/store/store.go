// Package store loads and caches manifests. It is content-addressed: a
// component at a given change version is immutable, so a manifest fetched
// once is never revalidated. When a mix overlay is active, local manifests
// shadow upstream ones.
package store

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-git/go-billy/v5/util"

	"github.com/imgos/swup/internal/config"
	"github.com/imgos/swup/internal/digest"
	"github.com/imgos/swup/internal/fetch"
	"github.com/imgos/swup/internal/manifest"
	"github.com/imgos/swup/internal/status"
)

// Store resolves manifests through the in-memory cache, the mix overlay,
// the on-disk cache, and the fetcher, in that order of preference.
type Store struct {
	ctx     *config.Context
	fetcher fetch.Fetcher

	loaded map[string]*manifest.Manifest
}

// New builds a store for one operation.
func New(ctx *config.Context, fetcher fetch.Fetcher) *Store {
	return &Store{
		ctx:     ctx,
		fetcher: fetcher,
		loaded:  make(map[string]*manifest.Manifest),
	}
}

func cacheKey(component string, version int) string {
	return component + "@" + strconv.Itoa(version)
}

// LoadMoM loads the Manifest of Manifests for a version. With mix enabled
// the local overlay MoM is preferred over the upstream one.
func (s *Store) LoadMoM(version int, mix bool) (*manifest.Manifest, error) {
	key := cacheKey("MoM", version)
	if m, ok := s.loaded[key]; ok {
		return m, nil
	}

	data, err := s.raw(fetch.KindMoM, version, "MoM", mix)
	if err != nil {
		return nil, status.Wrap(status.CouldntLoadMoM, err, "unable to load %d Manifest.MoM", version)
	}
	mom, err := manifest.Parse(data)
	if err != nil {
		return nil, status.Wrap(status.CouldntLoadMoM, err, "unable to parse %d Manifest.MoM", version)
	}
	mom.Version = version
	s.loaded[key] = mom
	return mom, nil
}

// LoadManifest loads the manifest a MoM entry references and verifies its
// content digest against the hash the MoM recorded.
func (s *Store) LoadManifest(ref *manifest.File, mom *manifest.Manifest) (*manifest.Manifest, error) {
	key := cacheKey(ref.Path, ref.LastChange)
	if m, ok := s.loaded[key]; ok {
		return m, nil
	}

	mix := s.ctx.MixEnabled(ref.LastChange)
	data, err := s.raw(fetch.KindManifest, ref.LastChange, ref.Path, mix)
	if err != nil {
		return nil, status.Wrap(status.CouldntLoadManifest, err,
			"unable to load manifest %s version %d", ref.Path, ref.LastChange)
	}
	if got := digest.Compute(data); got != ref.Hash {
		return nil, status.Errorf(status.CouldntLoadManifest,
			"manifest %s version %d hash mismatch: got %.8s, MoM lists %.8s",
			ref.Path, ref.LastChange, got, ref.Hash)
	}

	m, err := manifest.Parse(data)
	if err != nil {
		return nil, status.Wrap(status.CouldntLoadManifest, err,
			"unable to parse manifest %s version %d", ref.Path, ref.LastChange)
	}
	if m.Component != ref.Path {
		return nil, status.Errorf(status.CouldntLoadManifest,
			"manifest %s declares component %q", ref.Path, m.Component)
	}
	s.loaded[key] = m
	return m, nil
}

// Recurse loads the manifest for every subscribed component, yielding the
// transitive manifest set of an operation.
func (s *Store) Recurse(mom *manifest.Manifest, subs []string) ([]*manifest.Manifest, error) {
	var out []*manifest.Manifest
	for _, name := range subs {
		ref := mom.FindBundle(name)
		if ref == nil {
			return nil, status.Errorf(status.RecurseManifest, "bundle %q not in MoM", name)
		}
		m, err := s.LoadManifest(ref, mom)
		if err != nil {
			return nil, status.Wrap(status.RecurseManifest, err, "cannot load MoM sub-manifests")
		}
		out = append(out, m)
	}
	return out, nil
}

// raw resolves the manifest bytes: mix overlay first, then the on-disk
// cache, then the fetcher (populating the cache on the way out).
func (s *Store) raw(kind fetch.Kind, version int, component string, mix bool) ([]byte, error) {
	name := "Manifest." + component
	if kind == fetch.KindMoM {
		name = "Manifest.MoM"
	}

	if mix {
		mixPath := s.ctx.FS.Join(s.ctx.MixDir, strconv.Itoa(version), name)
		if data, err := util.ReadFile(s.ctx.FS, mixPath); err == nil {
			return data, nil
		}
	}

	cached := s.ctx.FS.Join(s.ctx.ManifestCacheDir(version), name)
	if data, err := util.ReadFile(s.ctx.FS, cached); err == nil {
		return data, nil
	}

	id := component
	if kind == fetch.KindMoM {
		id = ""
	}
	data, err := s.fetcher.Fetch(kind, version, id)
	if err != nil {
		return nil, err
	}
	if err := s.cacheWrite(cached, data); err != nil {
		// The cache is an optimization; a write failure must not fail the load.
		s.ctx.Log.Debug("could not cache %s: %v\n", cached, err)
	}
	return data, nil
}

func (s *Store) cacheWrite(path string, data []byte) error {
	dir := s.ctx.FS.Join(path, "..")
	if err := s.ctx.FS.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := s.ctx.FS.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
