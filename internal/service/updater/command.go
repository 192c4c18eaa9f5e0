package updater

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/oshokin/appcast-updater/internal/config"
	"github.com/oshokin/appcast-updater/internal/domain/appcast"
	"github.com/oshokin/appcast-updater/internal/logger"
	"github.com/oshokin/appcast-updater/internal/releasenotes"
	"github.com/oshokin/appcast-updater/internal/repository/manifest"
	"github.com/oshokin/appcast-updater/internal/signer"
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Config is used instead of loading ConfigPath when set.
	Config *config.Config
	// ManifestPath overrides the manifest location from the configuration.
	ManifestPath string
	// ReleaseNotesDir overrides the release notes directory from the configuration.
	ReleaseNotesDir string
	// KeyPath is the private signing key. Signing is skipped when it is empty.
	KeyPath string
	// DryRun performs the pass without invoking the signer or writing the manifest.
	DryRun bool
	// Signer replaces the external signing helper from the configuration.
	Signer signer.Signer
}

// signable is implemented by release and delta entries.
type signable interface {
	Signature() string
	SetSignature(signature string)
}

// stats counts what a run changed.
type stats struct {
	releases  int
	deltas    int
	signed    int
	described int
}

// runner holds the collaborators of a single pass over the manifest.
// It is unexported; callers use Run(ctx, Options).
type runner struct {
	cfg        *config.Config         // Effective configuration.
	keyPath    string                 // Signing key, empty to skip signing.
	dryRun     bool                   // Whether to skip signing and writing.
	repository manifest.Repository    // Where the manifest is loaded from and saved to.
	signer     signer.Signer          // Produces missing signatures.
	notes      *releasenotes.Renderer // Renders missing descriptions.
	stats      stats                  // Counters for the final report.
}

// Run executes the update pass and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "appcast-updater")

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	release, err := acquireMarker(ctx, cfg.ArtifactsDir())
	if err != nil {
		return err
	}

	defer release()

	up := newRunner(cfg, opts)
	if err = up.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Appcast update failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "Appcast update completed",
		"releases", up.stats.releases,
		"deltas", up.stats.deltas,
		"signed", up.stats.signed,
		"described", up.stats.described,
		"dry_run", up.dryRun)

	return nil
}

// loadConfig resolves the effective configuration from the options.
func loadConfig(opts *Options) (*config.Config, error) {
	var cfg *config.Config

	if opts.Config != nil {
		copied := *opts.Config
		cfg = &copied
	} else {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if opts.ManifestPath != "" {
		cfg.Manifest = opts.ManifestPath
	}

	if opts.ReleaseNotesDir != "" {
		cfg.ReleaseNotesDir = opts.ReleaseNotesDir
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newRunner wires the collaborators for a run.
func newRunner(cfg *config.Config, opts *Options) *runner {
	sign := opts.Signer
	if sign == nil {
		sign = signer.NewExec(cfg.SignerPath)
	}

	namespace := appcast.Namespace{
		Prefix: cfg.NamespacePrefix,
		URI:    cfg.NamespaceURI,
	}

	return &runner{
		cfg:        cfg,
		keyPath:    opts.KeyPath,
		dryRun:     opts.DryRun,
		repository: manifest.NewFileRepository(cfg.Manifest, namespace),
		signer:     sign,
		notes:      releasenotes.NewRenderer(cfg.ReleaseNotesDir, cfg.NotesStyle),
	}
}

// Run loads the manifest, processes every entry and saves the result.
// Nothing is written unless every entry was processed.
func (u *runner) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Loading manifest", "path", u.cfg.Manifest)

	doc, err := u.repository.Load(ctx)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	releases, err := doc.Releases()
	if err != nil {
		return fmt.Errorf("read releases: %w", err)
	}

	if u.keyPath == "" {
		logger.Info(ctx, "No signing key given, signatures are left as they are")
	}

	for _, release := range releases {
		if err = u.processRelease(ctx, release); err != nil {
			return err
		}
	}

	if u.dryRun {
		logger.Info(ctx, "Dry run, the manifest is left untouched")
		return nil
	}

	logger.InfoKV(ctx, "Saving manifest", "path", u.cfg.Manifest)

	if err = u.repository.Save(ctx, doc); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	return nil
}

// processRelease rewrites, signs and describes one release entry and its deltas.
func (u *runner) processRelease(ctx context.Context, release *appcast.Release) error {
	version := release.Version()
	ctx = logger.WithKV(ctx, "version", version)

	downloadURL, err := u.cfg.ReleaseURL(version)
	if err != nil {
		return fmt.Errorf("build download url for %s: %w", version, err)
	}

	release.SetURL(downloadURL)
	u.stats.releases++

	if err = u.signEntry(ctx, release, u.cfg.ReleaseArtifactPath(version)); err != nil {
		return err
	}

	if err = u.describe(ctx, release); err != nil {
		return err
	}

	deltas, err := release.Deltas()
	if err != nil {
		return fmt.Errorf("read deltas: %w", err)
	}

	for _, delta := range deltas {
		if err = u.processDelta(ctx, delta); err != nil {
			return err
		}
	}

	return nil
}

// processDelta rewrites and signs one delta entry.
func (u *runner) processDelta(ctx context.Context, delta *appcast.Delta) error {
	to, from := delta.Version(), delta.From()
	ctx = logger.WithKV(ctx, "delta_from", from)

	checkDeltaOrder(ctx, to, from)

	downloadURL, err := u.cfg.DeltaURL(to, from)
	if err != nil {
		return fmt.Errorf("build delta url for %s-%s: %w", to, from, err)
	}

	delta.SetURL(downloadURL)
	u.stats.deltas++

	return u.signEntry(ctx, delta, u.cfg.DeltaArtifactPath(to, from))
}

// signEntry stores a signature for the artifact when a key was given and the entry has none.
func (u *runner) signEntry(ctx context.Context, entry signable, artifactPath string) error {
	if u.keyPath == "" {
		return nil
	}

	if entry.Signature() != "" {
		logger.Debug(ctx, "Signature present, skipping signing")
		return nil
	}

	logger.InfoKV(ctx, "Signing artifact", "artifact", artifactPath)

	if u.dryRun {
		return nil
	}

	signature, err := u.signer.Sign(ctx, artifactPath, u.keyPath)
	if err != nil {
		return fmt.Errorf("sign %s: %w", artifactPath, err)
	}

	entry.SetSignature(signature)
	u.stats.signed++

	return nil
}

// describe attaches rendered release notes when the release has no description element.
// An empty but present description is left alone.
func (u *runner) describe(ctx context.Context, release *appcast.Release) error {
	if release.HasDescription() {
		return nil
	}

	block, err := u.notes.Render(release.Version())
	if errors.Is(err, releasenotes.ErrNotFound) {
		logger.DebugKV(ctx, "No release notes, description not attached", "path", u.notes.Path(release.Version()))
		return nil
	}

	if err != nil {
		return fmt.Errorf("render release notes: %w", err)
	}

	logger.InfoKV(ctx, "Attaching release notes", "path", u.notes.Path(release.Version()))

	release.AttachDescription(block)
	u.stats.described++

	return nil
}

// checkDeltaOrder warns about deltas whose source is not older than their target.
func checkDeltaOrder(ctx context.Context, to, from string) {
	toVersion, err := semver.NewVersion(to)
	if err != nil {
		logger.DebugKV(ctx, "Delta target is not a semantic version", "error", err)
		return
	}

	fromVersion, err := semver.NewVersion(from)
	if err != nil {
		logger.DebugKV(ctx, "Delta source is not a semantic version", "error", err)
		return
	}

	if !fromVersion.LessThan(toVersion) {
		logger.WarnKV(ctx, "Delta source is not older than its target", "to", to)
	}
}
