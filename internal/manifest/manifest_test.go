package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const editorsManifest = `{
  "component": "editors",
  "version": 20,
  "format": 1,
  "contentsize": 52480,
  "includes": ["os-core"],
  "optional": ["editors-extras"],
  "files": [
    {"path": "/usr/share/doc/ed", "hash": "bb", "type": "file", "last_change": 10},
    {"path": "/usr/bin/ed", "hash": "aa", "type": "file", "last_change": 20,
     "flags": ["do-not-update"]},
    {"path": "/usr/bin", "hash": "cc", "type": "directory", "last_change": 5},
    {"path": "/usr/bin/red", "hash": "dd", "type": "symlink", "last_change": 20}
  ]
}`

func TestParse_SortsFilesByPath(t *testing.T) {
	m, err := Parse([]byte(editorsManifest))
	require.NoError(t, err)

	assert.Equal(t, "editors", m.Component)
	assert.Equal(t, 20, m.Version)
	assert.Equal(t, int64(52480), m.ContentSize)
	assert.Equal(t, []string{"os-core"}, m.Includes)
	assert.Equal(t, []string{"editors-extras"}, m.Optional)

	var paths []string
	for _, f := range m.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"/usr/bin", "/usr/bin/ed", "/usr/bin/red", "/usr/share/doc/ed"}, paths)
}

func TestParse_Flags(t *testing.T) {
	m, err := Parse([]byte(editorsManifest))
	require.NoError(t, err)

	ed := m.FindFile("/usr/bin/ed")
	require.NotNil(t, ed)
	assert.True(t, ed.DoNotUpdate)
	assert.False(t, ed.Ignored)

	assert.Equal(t, TypeDir, m.FindFile("/usr/bin").Type)
	assert.Equal(t, TypeLink, m.FindFile("/usr/bin/red").Type)
}

func TestParse_RejectsDuplicatePaths(t *testing.T) {
	_, err := Parse([]byte(`{"component": "x", "version": 1, "files": [
		{"path": "/a", "hash": "1", "type": "file", "last_change": 1},
		{"path": "/a", "hash": "2", "type": "file", "last_change": 1}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate path")
}

func TestParse_RejectsSelfInclude(t *testing.T) {
	_, err := Parse([]byte(`{"component": "x", "version": 1, "includes": ["x"]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "includes itself")
}

func TestParse_RejectsMissingComponent(t *testing.T) {
	_, err := Parse([]byte(`{"version": 1}`))
	assert.Error(t, err)
}

func TestParse_RejectsUnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"component": "x", "version": 1, "files": [
		{"path": "/a", "hash": "1", "type": "socket", "last_change": 1}]}`))
	assert.Error(t, err)
}

func TestFindBundle_OnlyMatchesManifestEntries(t *testing.T) {
	mom, err := Parse([]byte(`{"component": "MoM", "version": 10, "files": [
		{"path": "os-core", "hash": "aa", "type": "manifest", "last_change": 10},
		{"path": "editors", "hash": "bb", "type": "manifest", "last_change": 20}]}`))
	require.NoError(t, err)

	require.NotNil(t, mom.FindBundle("editors"))
	assert.Equal(t, 20, mom.FindBundle("editors").LastChange)
	assert.Nil(t, mom.FindBundle("no-such-bundle"))
}

func TestPrintableName_AnnotatesExperimental(t *testing.T) {
	f := &File{Path: "devtools", Experimental: true}
	assert.Equal(t, "devtools (experimental)", f.PrintableName())
	f.Experimental = false
	assert.Equal(t, "devtools", f.PrintableName())
}
