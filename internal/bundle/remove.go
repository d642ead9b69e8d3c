package bundle

import (
	"github.com/imgos/swup/internal/remove"
	"github.com/imgos/swup/internal/track"
)

// Remove takes the named bundles off the system, refusing targets other
// installed bundles still depend on unless force is set.
func (m *Manager) Remove(names []string) error {
	version, mom, err := m.loadMoM()
	if err != nil {
		m.record("bundleremove", names, version, err, 0)
		return err
	}

	installedNames, _ := track.InstalledBundles(m.ctx)
	subs, err := m.store.Recurse(mom, inMoM(mom, installedNames))
	if err != nil {
		m.ctx.Log.Error("Cannot load MoM sub-manifests\n")
		m.record("bundleremove", names, version, err, 0)
		return err
	}
	mom.Submanifests = subs

	_, err = remove.Bundles(m.ctx, mom, names)
	m.record("bundleremove", names, version, err, 0)
	if err != nil {
		m.ctx.Log.Print("\nFailed to remove bundle(s)\n")
	}
	return err
}
