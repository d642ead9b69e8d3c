package telemetry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpool_RecordAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	spool, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = spool.Close() }()

	err = spool.Record(Event{
		Operation: "bundleadd",
		Bundles:   []string{"editors", "devtools"},
		Version:   33000,
		Result:    0,
		Bytes:     52480,
	})
	require.NoError(t, err)

	var op, bundles string
	var version, result int
	var bytes int64
	row := spool.db.QueryRow(`SELECT operation, bundles, version, result, bytes FROM events`)
	require.NoError(t, row.Scan(&op, &bundles, &version, &result, &bytes))
	assert.Equal(t, "bundleadd", op)
	assert.Equal(t, "editors, devtools", bundles)
	assert.Equal(t, 33000, version)
	assert.Equal(t, 0, result)
	assert.Equal(t, int64(52480), bytes)
}

func TestSpool_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	spool, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, spool.Record(Event{Operation: "bundleadd"}))
	require.NoError(t, spool.Close())

	spool, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = spool.Close() }()
	require.NoError(t, spool.Record(Event{Operation: "bundleremove"}))

	var n int
	require.NoError(t, spool.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	assert.NoError(t, r.Record(Event{Operation: "bundleadd"}))
	assert.NoError(t, r.Close())
}
