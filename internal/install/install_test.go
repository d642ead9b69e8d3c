package install

import (
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgos/swup/internal/config"
	"github.com/imgos/swup/internal/digest"
	"github.com/imgos/swup/internal/manifest"
	"github.com/imgos/swup/internal/msg"
	"github.com/imgos/swup/internal/status"
)

func testCtx(t *testing.T) *config.Context {
	t.Helper()
	cfg := config.Defaults()
	cfg.PathPrefix = "/target"
	cfg.StateDir = "/state"
	return config.NewContext(cfg, memfs.New(), msg.Discard())
}

func testInstaller(ctx *config.Context) *Installer {
	in := New(ctx)
	in.syncFS = func() {}
	return in
}

// stageContent puts a payload into the staging area and returns its record.
func stageContent(t *testing.T, ctx *config.Context, path, content string) *manifest.File {
	t.Helper()
	hash := digest.Compute([]byte(content))
	require.NoError(t, util.WriteFile(ctx.FS, ctx.FS.Join(ctx.StagedDir(), hash), []byte(content), 0o644))
	return &manifest.File{Path: path, Hash: hash, Type: manifest.TypeFile, LastChange: 20}
}

func TestInstall_FileLandsWithDeclaredContent(t *testing.T) {
	ctx := testCtx(t)
	f := stageContent(t, ctx, "/usr/bin/ed", "ed binary")

	require.NoError(t, testInstaller(ctx).Install([]*manifest.File{f}, nil))

	got, err := util.ReadFile(ctx.FS, "/target/usr/bin/ed")
	require.NoError(t, err)
	assert.Equal(t, "ed binary", string(got))
	assert.True(t, digest.Verify(ctx.FS, "/target/usr/bin/ed", f.Hash))

	// No sidecar left behind.
	_, err = ctx.FS.Lstat("/target/usr/bin/ed.update")
	assert.Error(t, err)
}

func TestInstall_DirectoryAndSymlink(t *testing.T) {
	ctx := testCtx(t)
	linkHash := digest.Compute([]byte("/usr/bin/ed"))
	require.NoError(t, ctx.FS.MkdirAll(ctx.StagedDir(), 0o755))
	require.NoError(t, ctx.FS.Symlink("/usr/bin/ed", ctx.FS.Join(ctx.StagedDir(), linkHash)))

	plan := []*manifest.File{
		{Path: "/usr/bin", Type: manifest.TypeDir, Hash: "d", LastChange: 20},
		{Path: "/usr/bin/red", Type: manifest.TypeLink, Hash: linkHash, LastChange: 20},
	}
	require.NoError(t, testInstaller(ctx).Install(plan, nil))

	info, err := ctx.FS.Lstat("/target/usr/bin")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	target, err := ctx.FS.Readlink("/target/usr/bin/red")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/ed", target)
}

func TestInstall_SkipsDeletedDoNotUpdateIgnored(t *testing.T) {
	ctx := testCtx(t)
	plan := []*manifest.File{
		{Path: "/a", Type: manifest.TypeDeleted, Hash: digest.ZeroHash, LastChange: 20},
		{Path: "/b", Type: manifest.TypeFile, Hash: "x", DoNotUpdate: true, LastChange: 20},
		{Path: "/c", Type: manifest.TypeFile, Hash: "y", Ignored: true, LastChange: 20},
	}
	// None of these have staged content; installing must not even try.
	require.NoError(t, testInstaller(ctx).Install(plan, nil))

	for _, p := range []string{"/target/a", "/target/b", "/target/c"} {
		_, err := ctx.FS.Lstat(p)
		assert.Error(t, err, p)
	}
}

func TestInstall_ReplacesTypeChangedTarget(t *testing.T) {
	ctx := testCtx(t)
	// A directory sits where the record wants a regular file.
	require.NoError(t, ctx.FS.MkdirAll("/target/usr/bin/ed", 0o755))
	require.NoError(t, util.WriteFile(ctx.FS, "/target/usr/bin/ed/stale", []byte("x"), 0o644))

	f := stageContent(t, ctx, "/usr/bin/ed", "now a file")
	require.NoError(t, testInstaller(ctx).Install([]*manifest.File{f}, nil))

	got, err := util.ReadFile(ctx.FS, "/target/usr/bin/ed")
	require.NoError(t, err)
	assert.Equal(t, "now a file", string(got))
}

func TestInstall_IsIdempotent(t *testing.T) {
	ctx := testCtx(t)
	f := stageContent(t, ctx, "/usr/bin/ed", "ed binary")
	in := testInstaller(ctx)

	require.NoError(t, in.Install([]*manifest.File{f}, nil))

	// A second run over a fresh plan record reaches the same state.
	f2 := &manifest.File{Path: f.Path, Hash: f.Hash, Type: manifest.TypeFile, LastChange: f.LastChange}
	require.NoError(t, in.Install([]*manifest.File{f2}, nil))

	got, err := util.ReadFile(ctx.FS, "/target/usr/bin/ed")
	require.NoError(t, err)
	assert.Equal(t, "ed binary", string(got))
}

func TestInstall_CrashBetweenPhasesConverges(t *testing.T) {
	ctx := testCtx(t)
	a := stageContent(t, ctx, "/usr/bin/a", "content a")
	b := stageContent(t, ctx, "/usr/bin/b", "content b")
	in := testInstaller(ctx)

	// Phase A completed, then the process died before any rename.
	require.NoError(t, in.Stage(a))
	require.NoError(t, in.Stage(b))
	_, err := ctx.FS.Lstat("/target/usr/bin/a.update")
	require.NoError(t, err, "sidecars from the interrupted run stay on disk")

	// The re-run stages over the leftovers and completes both phases.
	a2 := stageContent(t, ctx, "/usr/bin/a", "content a")
	b2 := stageContent(t, ctx, "/usr/bin/b", "content b")
	require.NoError(t, in.Install([]*manifest.File{a2, b2}, nil))

	for path, want := range map[string]string{
		"/target/usr/bin/a": "content a",
		"/target/usr/bin/b": "content b",
	} {
		got, err := util.ReadFile(ctx.FS, path)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestRename_PathRepairedRecordRecoveredFromMoM(t *testing.T) {
	ctx := testCtx(t)
	staged := stageContent(t, ctx, "/usr/bin/ed", "repaired")
	in := testInstaller(ctx)
	require.NoError(t, in.Stage(staged))

	// The plan's copy of the record lost its staging name; the MoM's
	// consolidated view still has the staged one.
	bare := &manifest.File{Path: "/usr/bin/ed", Hash: staged.Hash, Type: manifest.TypeFile, LastChange: 20}
	mom := &manifest.Manifest{
		Component:    "MoM",
		Submanifests: []*manifest.Manifest{{Component: "editors", Files: []*manifest.File{staged}}},
	}
	require.NoError(t, in.Rename([]*manifest.File{bare}, mom))

	got, err := util.ReadFile(ctx.FS, "/target/usr/bin/ed")
	require.NoError(t, err)
	assert.Equal(t, "repaired", string(got))
}

func TestCheckDiskSpace_AppliesFudgeFactor(t *testing.T) {
	ctx := testCtx(t)
	bundles := []*manifest.Manifest{{Component: "big", ContentSize: 1000}}

	err := CheckDiskSpace(ctx, bundles, func(string) (int64, error) { return 1050, nil })
	require.Error(t, err, "1000 * 1.1 exceeds 1050")
	assert.Equal(t, status.DiskSpaceError, status.CodeOf(err))

	err = CheckDiskSpace(ctx, bundles, func(string) (int64, error) { return 1200, nil })
	assert.NoError(t, err)
}

func TestCheckDiskSpace_ProbeFailureIsDiskSpaceError(t *testing.T) {
	ctx := testCtx(t)
	err := CheckDiskSpace(ctx, nil, func(string) (int64, error) { return -1, errors.New("statfs failed") })
	require.Error(t, err)
	assert.Equal(t, status.DiskSpaceError, status.CodeOf(err))
}

func TestCheckDiskSpace_SkippableByOverride(t *testing.T) {
	ctx := testCtx(t)
	ctx.SkipDiskCheck = true
	bundles := []*manifest.Manifest{{Component: "big", ContentSize: 1 << 40}}
	err := CheckDiskSpace(ctx, bundles, func(string) (int64, error) { return 0, nil })
	assert.NoError(t, err)
}

func TestCheckDiskSpace_ConsultsUsrOnly(t *testing.T) {
	ctx := testCtx(t)
	var probed string
	_ = CheckDiskSpace(ctx, nil, func(path string) (int64, error) {
		probed = path
		return 1 << 30, nil
	})
	assert.Equal(t, "/target/usr", probed)
}
