package resolve

import (
	"sort"
	"strings"

	gotree "github.com/disiqueira/gotree/v3"

	"github.com/imgos/swup/internal/manifest"
)

// Dependents is the outcome of a reverse traversal: which installed
// bundles transitively include a target.
type Dependents struct {
	// Names is the deduplicated, sorted list of dependent bundles.
	Names []string

	trees []gotree.Tree
}

// Count returns the number of distinct dependents.
func (d *Dependents) Count() int { return len(d.Names) }

// Render draws the dependency trees, one root per direct dependent.
// Duplicates are fine in this view; it mirrors the actual include edges.
func (d *Dependents) Render() string {
	var b strings.Builder
	for _, t := range d.trees {
		b.WriteString(t.Print())
	}
	return b.String()
}

// RequiredBy finds every bundle among the MoM's loaded submanifests whose
// transitive includes contain target. Bundles in exclusions are not
// reported, but their own dependents still are: the caller intends to
// remove them too, yet whoever needs them needs the target as well.
//
// The traversal scans includes only. Optional includes never force a
// bundle to stay installed, so opting out of optional bundles does not
// change reverse resolution.
func RequiredBy(mom *manifest.Manifest, target string, exclusions []string) *Dependents {
	d := &Dependents{}
	excluded := make(map[string]bool, len(exclusions))
	for _, e := range exclusions {
		excluded[e] = true
	}
	seen := make(map[string]bool)

	var walk func(target string) []gotree.Tree
	walk = func(target string) []gotree.Tree {
		var nodes []gotree.Tree
		for _, bundle := range mom.Submanifests {
			if bundle.Component == target {
				// Manifests never include themselves; skipping here also
				// keeps a buggy self-edge from recursing forever.
				continue
			}
			if !includes(bundle, target) {
				continue
			}

			children := walk(bundle.Component)
			if excluded[bundle.Component] {
				// Not a blocker itself, but its dependents are.
				nodes = append(nodes, children...)
				continue
			}

			node := gotree.New(bundle.Component)
			for _, c := range children {
				node.AddTree(c)
			}
			nodes = append(nodes, node)

			if !seen[bundle.Component] {
				seen[bundle.Component] = true
				d.Names = append(d.Names, bundle.Component)
			}
		}
		return nodes
	}

	d.trees = walk(target)
	sort.Strings(d.Names)
	return d
}

func includes(m *manifest.Manifest, name string) bool {
	for _, inc := range m.Includes {
		if inc == name {
			return true
		}
	}
	return false
}
