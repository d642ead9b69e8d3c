package resolve

import (
	"github.com/imgos/swup/internal/config"
	"github.com/imgos/swup/internal/manifest"
	"github.com/imgos/swup/internal/store"
	"github.com/imgos/swup/internal/track"
)

// Result reports what a forward traversal did. It replaces the classic
// bitmask return with explicit fields plus per-bundle diagnostics.
type Result struct {
	New     bool // at least one new subscription was added
	Err     bool // a manifest failed to load; traversal aborted
	BadName bool // at least one name was not in the MoM

	Diags []Diag
}

// Diag records one per-bundle fault.
type Diag struct {
	Bundle string
	Reason string
}

func (r *Result) merge(other Result) {
	r.New = r.New || other.New
	r.Err = r.Err || other.Err
	r.BadName = r.BadName || other.BadName
	r.Diags = append(r.Diags, other.Diags...)
}

// AddSubscriptions seeds the subscription set with the named bundles and
// recurses over their includes, and over optional includes unless the
// caller opted out. With findAll false, bundles already installed on the
// system are skipped entirely.
//
// The already-subscribed short-circuit is suppressed at depth 0 so the
// seed list is always materialized: the caller needs every requested name
// in the set to tell "user asked" apart from "pulled transitively".
func AddSubscriptions(ctx *config.Context, names []string, subs *SubSet,
	mom *manifest.Manifest, st *store.Store, findAll bool, depth int) Result {

	var r Result
	for _, name := range names {
		ref := mom.FindBundle(name)
		if ref == nil {
			ctx.Log.Warn("Bundle \"%s\" is invalid, skipping it...\n", name)
			r.BadName = true
			r.Diags = append(r.Diags, Diag{Bundle: name, Reason: "not in MoM"})
			continue
		}

		if !findAll && track.IsInstalled(ctx, name) {
			continue
		}

		m, err := st.LoadManifest(ref, mom)
		if err != nil {
			ctx.Log.Error("Unable to download manifest %s version %d, exiting now\n", name, ref.LastChange)
			r.Err = true
			r.Diags = append(r.Diags, Diag{Bundle: name, Reason: err.Error()})
			return r
		}

		if subs.Has(name) {
			// Deeper levels will see this bundle again at the top level;
			// cutting out here is what terminates include cycles.
			if depth > 0 {
				continue
			}
		} else {
			subs.Add(name, ref.LastChange)
			r.New = true
		}

		if len(m.Includes) > 0 {
			r.merge(AddSubscriptions(ctx, m.Includes, subs, mom, st, findAll, depth+1))
			if r.Err {
				return r
			}
		}
		if !ctx.SkipOptional && len(m.Optional) > 0 {
			r.merge(AddSubscriptions(ctx, m.Optional, subs, mom, st, findAll, depth+1))
			if r.Err {
				return r
			}
		}
	}
	return r
}
