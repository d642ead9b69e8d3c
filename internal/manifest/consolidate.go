package manifest

import "sort"

// Consolidate merges the file lists of several manifests into one view
// sorted by path with collisions resolved: a live record beats a deleted
// one, and among live records the later change wins. A file deleted in one
// bundle must not erase the same path still provided by another.
func Consolidate(manifests []*Manifest) []*File {
	var all []*File
	for _, m := range manifests {
		for _, f := range m.Files {
			if f.Type == TypeManifest {
				continue
			}
			all = append(all, f)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Path < all[j].Path
	})

	out := all[:0]
	for _, f := range all {
		if len(out) == 0 || out[len(out)-1].Path != f.Path {
			out = append(out, f)
			continue
		}
		prev := out[len(out)-1]
		if better(f, prev) {
			out[len(out)-1] = f
		}
	}
	return out
}

// better reports whether candidate should displace incumbent for one path.
func better(candidate, incumbent *File) bool {
	if candidate.IsDeleted() != incumbent.IsDeleted() {
		return incumbent.IsDeleted()
	}
	return candidate.LastChange > incumbent.LastChange
}

// FilterOutDeleted drops records whose type is deleted.
func FilterOutDeleted(files []*File) []*File {
	out := make([]*File, 0, len(files))
	for _, f := range files {
		if !f.IsDeleted() {
			out = append(out, f)
		}
	}
	return out
}

// FilterOutExisting returns the desired records whose exact content is not
// already present in installed, matching by path and hash.
func FilterOutExisting(desired, installed []*File) []*File {
	have := make(map[string]string, len(installed))
	for _, f := range installed {
		have[f.Path] = f.Hash
	}
	out := make([]*File, 0, len(desired))
	for _, f := range desired {
		if hash, ok := have[f.Path]; ok && hash == f.Hash {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FilesToUnlink yields the records from the removed set whose paths no kept
// bundle still provides. A path is kept if any kept record for it is live.
func FilesToUnlink(removed, kept []*File) []*File {
	keep := make(map[string]bool, len(kept))
	for _, f := range kept {
		if !f.IsDeleted() {
			keep[f.Path] = true
		}
	}
	var out []*File
	for _, f := range removed {
		if f.IsDeleted() || keep[f.Path] {
			continue
		}
		out = append(out, f)
	}
	return out
}
