package dialect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_KnownEngines(t *testing.T) {
	profiles := DefaultProfiles()

	assert.Equal(t, Generic, profiles.Detect("memtable"))
	assert.Equal(t, Generic, profiles.Detect("postgres"))
	assert.Equal(t, DistributedCompute, profiles.Detect("cluster"))
	assert.Equal(t, DistributedCompute, profiles.Detect("spark"))
	assert.Equal(t, RestrictedSQL, profiles.Detect("mssql"))
}

func TestDetect_UnknownFallsBackToGeneric(t *testing.T) {
	profiles := DefaultProfiles()

	// Totality: any identifier maps to a dialect, unknowns to Generic.
	assert.Equal(t, Generic, profiles.Detect("no-such-engine"))
	assert.Equal(t, Generic, profiles.Detect(""))
}

func TestParseRoundTrip(t *testing.T) {
	for _, d := range []Dialect{Generic, DistributedCompute, RestrictedSQL} {
		got, err := Parse(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	_, err := Parse("t-sql")
	assert.Error(t, err)
}

func TestLoadProfiles_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := "engines:\n  snowstore: distributed_compute\n  postgres: restricted_sql\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)

	// New entry added, existing default overridden, untouched defaults kept.
	assert.Equal(t, DistributedCompute, profiles.Detect("snowstore"))
	assert.Equal(t, RestrictedSQL, profiles.Detect("postgres"))
	assert.Equal(t, RestrictedSQL, profiles.Detect("mssql"))
}

func TestLoadProfiles_RejectsUnknownTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engines:\n  x: exotic\n"), 0o644))

	_, err := LoadProfiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dialect")
}

func TestLoadProfiles_MissingFile(t *testing.T) {
	_, err := LoadProfiles(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
