package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/appcast-updater/internal/config"
	"github.com/oshokin/appcast-updater/internal/service/updater"
)

const appcastBody = `<?xml version="1.0" encoding="utf-8"?>
<rss xmlns:sparkle="http://www.andymatuschak.org/xml-namespaces/sparkle" version="2.0">
  <channel>
    <title>Lunar</title>
    <item>
      <title>Version 4.0.0</title>
      <enclosure url="https://old.example/Lunar-4.0.0.dmg" sparkle:version="4.0.0" length="2048" type="application/octet-stream"/>
      <sparkle:deltas>
        <enclosure url="https://old.example/a.delta" sparkle:version="4.0.0" sparkle:deltaFrom="3.9.1" type="application/octet-stream"/>
        <enclosure url="https://old.example/b.delta" sparkle:version="4.0.0" sparkle:deltaFrom="3.9.0" sparkle:dsaSignature="DELTASIG" type="application/octet-stream"/>
      </sparkle:deltas>
    </item>
    <item>
      <title>Version 3.9.1</title>
      <enclosure url="https://old.example/Lunar-3.9.1.dmg" sparkle:version="3.9.1" sparkle:dsaSignature="OLDSIG"/>
    </item>
  </channel>
</rss>
`

// writeReleaseTree creates Releases/appcast.xml and ReleaseNotes/4.0.0.md under dir.
func writeReleaseTree(t *testing.T, dir string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Releases"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ReleaseNotes"), 0o750))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Releases", "appcast.xml"), []byte(appcastBody), 0o600))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "ReleaseNotes", "4.0.0.md"),
		[]byte("## Improvements\n\nFaster *DDC* reads.\n"),
		0o600,
	))
}

// TestUpdater_DefaultLayout runs the updater from a release directory using only built-in defaults.
func TestUpdater_DefaultLayout(t *testing.T) {
	// Setup test directory and change working directory.
	dir := t.TempDir()
	prev, _ := os.Getwd() //nolint:errcheck // Test code needs simple os.Getwd for directory change.

	require.NoError(t, os.Chdir(dir))

	t.Cleanup(func() {
		_ = os.Chdir(prev)
	})

	writeReleaseTree(t, dir)

	// No settings file exists, so defaults apply.
	err := updater.Run(context.Background(), &updater.Options{
		ConfigPath: config.DefaultConfigFilename,
	})
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join("Releases", "appcast.xml"))
	require.NoError(t, err)

	out := string(contents)
	require.Contains(t, out, `url="https://lunarapp.site/download/4.0.0"`)
	require.Contains(t, out, `url="https://lunarapp.site/download/3.9.1"`)
	require.Contains(t, out, `url="https://lunarapp.site/delta/4.0.0/3.9.1"`)
	require.Contains(t, out, `url="https://lunarapp.site/delta/4.0.0/3.9.0"`)
	require.Contains(t, out, `<h2 id="improvements">Improvements</h2>`)
	require.Contains(t, out, `h2#improvements {`)
	require.Equal(t, 1, strings.Count(out, "<![CDATA["))

	// Signatures are untouched without a key.
	require.Contains(t, out, `sparkle:dsaSignature="OLDSIG"`)
	require.Contains(t, out, `sparkle:dsaSignature="DELTASIG"`)
	require.Equal(t, 2, strings.Count(out, "sparkle:dsaSignature="))
}
