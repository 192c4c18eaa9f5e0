package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults filling and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty settings get defaults.
	settings := new(Config)

	require.NoError(t, Validate(settings))
	require.Equal(t, Default(), settings)

	// Relative host.
	settings = &Config{
		CanonicalHost: "lunarapp.site",
	}

	require.Error(t, Validate(settings))

	// Prefix with a colon.
	settings = &Config{
		NamespacePrefix: "sparkle:x",
	}

	require.ErrorIs(t, Validate(settings), errInvalidNamespacePrefix)

	// Leading dot in the extension is dropped.
	settings = &Config{
		ArtifactExtension: ".zip",
	}

	require.NoError(t, Validate(settings))
	require.Equal(t, "zip", settings.ArtifactExtension)

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		CanonicalHost: "https://updates.example.com",
		AppName:       "Example",
		Manifest:      filepath.Join(dir, "Releases", "appcast.xml"),
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoad_Missing verifies that only the default filename falls back to defaults.
func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestURLsAndPaths verifies the canonical URL and artifact naming conventions.
func TestURLsAndPaths(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.CanonicalHost = "https://lunarapp.site/"
	cfg.Manifest = filepath.Join("dist", "appcast.xml")

	releaseURL, err := cfg.ReleaseURL("3.2.1")
	require.NoError(t, err)
	require.Equal(t, "https://lunarapp.site/download/3.2.1", releaseURL)

	deltaURL, err := cfg.DeltaURL("3.2.1", "3.1.0")
	require.NoError(t, err)
	require.Equal(t, "https://lunarapp.site/delta/3.2.1/3.1.0", deltaURL)

	require.Equal(t, filepath.Join("dist", "Lunar-3.2.1.dmg"), cfg.ReleaseArtifactPath("3.2.1"))
	require.Equal(t, filepath.Join("dist", "Lunar3.2.1-3.1.0.delta"), cfg.DeltaArtifactPath("3.2.1", "3.1.0"))
}

// TestConfig_URLsRejectUnsafeVersions verifies versions are never escaped or collapsed into the URL.
func TestConfig_URLsRejectUnsafeVersions(t *testing.T) {
	t.Parallel()

	cfg := Default()

	for _, version := range []string{"", ".", "..", "1.0 beta", "1.0/2", `1.0\2`, "1.0?x", "1.0#x", "1%2F0"} {
		_, err := cfg.ReleaseURL(version)
		require.ErrorIs(t, err, ErrInvalidVersion, version)

		_, err = cfg.DeltaURL("2.0.0", version)
		require.ErrorIs(t, err, ErrInvalidVersion, version)

		_, err = cfg.DeltaURL(version, "1.0.0")
		require.ErrorIs(t, err, ErrInvalidVersion, version)
	}

	releaseURL, err := cfg.ReleaseURL("4.0.0-beta.1+build.7")
	require.NoError(t, err)
	require.Equal(t, "https://lunarapp.site/download/4.0.0-beta.1+build.7", releaseURL)
}
