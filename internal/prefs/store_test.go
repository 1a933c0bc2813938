package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())

	code, err := s.CanonicalCurrency()
	require.NoError(t, err)
	require.Empty(t, code, "missing key reads as unset")

	require.NoError(t, s.SetCanonicalCurrency("MAD"))
	code, err = s.CanonicalCurrency()
	require.NoError(t, err)
	require.Equal(t, "MAD", code)

	require.NoError(t, s.SetFeatureFlags(map[string]bool{"auto_migrate_currency": true}))
	flags, err := s.FeatureFlags()
	require.NoError(t, err)
	require.True(t, flags["auto_migrate_currency"])

	require.NoError(t, s.Delete(KeyCanonicalCurrency))
	code, err = s.CanonicalCurrency()
	require.NoError(t, err)
	require.Empty(t, code)
}

func TestStoreValuesAreSealedOnDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.SetCanonicalCurrency("MAD"))

	raw, err := os.ReadFile(filepath.Join(dir, fileName))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "MAD", "plain text must not appear in the store file")
}
