package track

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgos/swup/internal/config"
	"github.com/imgos/swup/internal/msg"
)

func testCtx(t *testing.T) *config.Context {
	t.Helper()
	cfg := config.Defaults()
	cfg.PathPrefix = "/target"
	cfg.StateDir = "/state"
	return config.NewContext(cfg, memfs.New(), msg.Discard())
}

func TestInstalled_CreatesSystemMarker(t *testing.T) {
	ctx := testCtx(t)
	assert.False(t, IsInstalled(ctx, "editors"))

	require.NoError(t, Installed(ctx, "editors"))
	assert.True(t, IsInstalled(ctx, "editors"))
}

func TestTracked_SeedsFromSystemViewOnFirstUse(t *testing.T) {
	ctx := testCtx(t)
	// Bundles installed before tracking existed, plus the MoM sentinel.
	require.NoError(t, Installed(ctx, "os-core"))
	require.NoError(t, Installed(ctx, "vim"))
	require.NoError(t, util.WriteFile(ctx.FS, ctx.FS.Join(ctx.BundlesDir(), ".MoM"), []byte("x"), 0o644))

	Tracked(ctx, "editors")

	assert.Equal(t, []string{"editors", "os-core", "vim"}, TrackedBundles(ctx))
	assert.False(t, IsTracked(ctx, ".MoM"), "sentinel must not be copied into tracking dir")
}

func TestTracked_PopulatedDirIsNotReseeded(t *testing.T) {
	ctx := testCtx(t)
	require.NoError(t, Installed(ctx, "os-core"))
	Tracked(ctx, "editors")

	// A bundle installed later must not appear just because it is in the
	// system view.
	require.NoError(t, Installed(ctx, "games"))
	Tracked(ctx, "devtools")

	assert.True(t, IsTracked(ctx, "devtools"))
	assert.False(t, IsTracked(ctx, "games"))
}

func TestUntracked_IsBestEffort(t *testing.T) {
	ctx := testCtx(t)
	Tracked(ctx, "editors")
	require.True(t, IsTracked(ctx, "editors"))

	Untracked(ctx, "editors")
	assert.False(t, IsTracked(ctx, "editors"))

	// Removing a bundle that was never tracked must not panic or error.
	Untracked(ctx, "ghost")
}

func TestInstalledBundles_SortedWithoutSentinel(t *testing.T) {
	ctx := testCtx(t)
	require.NoError(t, Installed(ctx, "vim"))
	require.NoError(t, Installed(ctx, "emacs"))
	require.NoError(t, util.WriteFile(ctx.FS, ctx.FS.Join(ctx.BundlesDir(), ".MoM"), []byte("x"), 0o644))

	names, err := InstalledBundles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"emacs", "vim"}, names)
}
