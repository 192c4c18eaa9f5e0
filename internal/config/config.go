package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the process-wide settings of the appcast updater.
type Config struct {
	// CanonicalHost is the distribution host every download URL is rewritten to.
	CanonicalHost string `yaml:"canonical_host"`
	// NamespacePrefix is the XML prefix used for update-specific attributes.
	NamespacePrefix string `yaml:"namespace_prefix"`
	// NamespaceURI is the URI bound to NamespacePrefix.
	NamespaceURI string `yaml:"namespace_uri"`
	// SignerPath is the external executable that prints a signature for an artifact.
	SignerPath string `yaml:"signer_path"`
	// AppName is the artifact filename prefix, e.g. "Lunar" in "Lunar-5.1.0.dmg".
	AppName string `yaml:"app_name"`
	// ArtifactExtension is the extension of full release artifacts, without the dot.
	ArtifactExtension string `yaml:"artifact_extension"`
	// Manifest is the path to the appcast file, read and overwritten in place.
	// Release artifacts are looked up next to it.
	Manifest string `yaml:"manifest"`
	// ReleaseNotesDir holds <version>.md files.
	ReleaseNotesDir string `yaml:"release_notes_dir"`
	// NotesStyle is the CSS embedded in front of every rendered changelog.
	NotesStyle string `yaml:"notes_style"`
}

const (
	// DefaultConfigFilename is the default filename for updater settings.
	DefaultConfigFilename = "appcast-updater.yaml"

	// DefaultCanonicalHost is where download URLs point when nothing else is configured.
	DefaultCanonicalHost = "https://lunarapp.site"

	// DefaultNamespacePrefix is the conventional Sparkle prefix.
	DefaultNamespacePrefix = "sparkle"

	// DefaultNamespaceURI is the Sparkle namespace.
	DefaultNamespaceURI = "http://www.andymatuschak.org/xml-namespaces/sparkle"

	// DefaultSignerPath is the location of the signing helper.
	DefaultSignerPath = "/usr/local/sbin/sign_update"

	// DefaultAppName is the artifact filename prefix.
	DefaultAppName = "Lunar"

	// DefaultArtifactExtension is the extension of full release artifacts.
	DefaultArtifactExtension = "dmg"

	// DefaultManifest is the manifest location relative to the working directory.
	DefaultManifest = "Releases/appcast.xml"

	// DefaultReleaseNotesDir is the release notes location relative to the working directory.
	DefaultReleaseNotesDir = "ReleaseNotes"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultManifestPermissions is used when the manifest mode cannot be detected.
	DefaultManifestPermissions = 0o644

	// deltaExtension is fixed by the update framework.
	deltaExtension = "delta"
)

// DefaultNotesStyle is the stylesheet prepended to rendered release notes.
const DefaultNotesStyle = `
    * {
        font-family: Menlo, monospace;
        color: #333333;
    }

    a {
        color: #1DA1F2;
    }

    a:hover {
        color: #0077b5;
    }

    h2#features {
        color: #EDB44B;
    }

    h2#improvements {
        color: #3E3E70;
    }

    h2#fixes {
        color: #E14283;
    }
`

// ErrInvalidVersion is returned for versions that cannot be used as a single URL path segment.
var ErrInvalidVersion = errors.New("version is not a valid path segment")

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidCanonicalHost is returned when the host is not an absolute URL.
	errInvalidCanonicalHost = errors.New("canonical host must be an absolute URL")
	// errInvalidNamespacePrefix is returned for prefixes that cannot be used in XML names.
	errInvalidNamespacePrefix = errors.New("invalid namespace prefix")
)

// Default returns a configuration populated with the built-in values.
func Default() *Config {
	return &Config{
		CanonicalHost:     DefaultCanonicalHost,
		NamespacePrefix:   DefaultNamespacePrefix,
		NamespaceURI:      DefaultNamespaceURI,
		SignerPath:        DefaultSignerPath,
		AppName:           DefaultAppName,
		ArtifactExtension: DefaultArtifactExtension,
		Manifest:          DefaultManifest,
		ReleaseNotesDir:   DefaultReleaseNotesDir,
		NotesStyle:        DefaultNotesStyle,
	}
}

// Load reads configuration from the provided path and validates it.
// A missing file at the default location yields the built-in defaults,
// while an explicitly named missing file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes Config to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills unset fields with defaults and checks the remaining values.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	fillDefaults(settings)

	host, err := url.ParseRequestURI(settings.CanonicalHost)
	if err != nil {
		return fmt.Errorf("invalid canonical host: %w", err)
	}

	if host.Scheme == "" || host.Host == "" {
		return fmt.Errorf("%s: %w", settings.CanonicalHost, errInvalidCanonicalHost)
	}

	if strings.ContainsAny(settings.NamespacePrefix, ": \t\r\n") {
		return fmt.Errorf("%q: %w", settings.NamespacePrefix, errInvalidNamespacePrefix)
	}

	return nil
}

// ReleaseURL returns the canonical download URL of a full release.
func (c *Config) ReleaseURL(version string) (string, error) {
	if err := checkVersion(version); err != nil {
		return "", err
	}

	return url.JoinPath(c.CanonicalHost, "download", version)
}

// DeltaURL returns the canonical download URL of a delta from one version to another.
func (c *Config) DeltaURL(to, from string) (string, error) {
	for _, version := range []string{to, from} {
		if err := checkVersion(version); err != nil {
			return "", err
		}
	}

	return url.JoinPath(c.CanonicalHost, "delta", to, from)
}

// checkVersion rejects versions that url.JoinPath would escape or collapse.
func checkVersion(version string) error {
	if version == "" || version == "." || version == ".." ||
		strings.ContainsAny(version, "/\\?#% \t\r\n") {
		return fmt.Errorf("%q: %w", version, ErrInvalidVersion)
	}

	return nil
}

// ArtifactsDir is the directory holding the manifest and the release artifacts.
func (c *Config) ArtifactsDir() string {
	return filepath.Dir(filepath.Clean(c.Manifest))
}

// ReleaseArtifactPath returns the path of the full release artifact, <App>-<version>.<ext>.
func (c *Config) ReleaseArtifactPath(version string) string {
	name := fmt.Sprintf("%s-%s.%s", c.AppName, version, c.ArtifactExtension)

	return filepath.Join(c.ArtifactsDir(), name)
}

// DeltaArtifactPath returns the path of a delta artifact, <App><to>-<from>.delta.
func (c *Config) DeltaArtifactPath(to, from string) string {
	name := fmt.Sprintf("%s%s-%s.%s", c.AppName, to, from, deltaExtension)

	return filepath.Join(c.ArtifactsDir(), name)
}

// fillDefaults replaces empty fields with their built-in values.
func fillDefaults(settings *Config) {
	defaults := Default()

	for _, field := range []struct {
		value    *string
		fallback string
	}{
		{&settings.CanonicalHost, defaults.CanonicalHost},
		{&settings.NamespacePrefix, defaults.NamespacePrefix},
		{&settings.NamespaceURI, defaults.NamespaceURI},
		{&settings.SignerPath, defaults.SignerPath},
		{&settings.AppName, defaults.AppName},
		{&settings.ArtifactExtension, defaults.ArtifactExtension},
		{&settings.Manifest, defaults.Manifest},
		{&settings.ReleaseNotesDir, defaults.ReleaseNotesDir},
		{&settings.NotesStyle, defaults.NotesStyle},
	} {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
	}

	settings.ArtifactExtension = strings.TrimPrefix(settings.ArtifactExtension, ".")
}
