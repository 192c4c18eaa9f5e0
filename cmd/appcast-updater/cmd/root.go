package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/appcast-updater/internal/config"
	"github.com/oshokin/appcast-updater/internal/logger"
	"github.com/oshokin/appcast-updater/internal/service/updater"
	"github.com/oshokin/appcast-updater/internal/version"
)

// errUnknownLogLevel is returned for unsupported --log-level values.
var errUnknownLogLevel = errors.New("unknown log level")

// flags holds the values of the root command flags.
type flags struct {
	// configPath to the configuration YAML file.
	configPath string
	// manifestPath overrides the manifest location.
	manifestPath string
	// releaseNotesDir overrides the release notes directory.
	releaseNotesDir string
	// logLevel is the minimum level of printed messages.
	logLevel string
	// dryRun skips signing and writing.
	dryRun bool
}

// newRootCommand builds the command tree.
func newRootCommand() *cobra.Command {
	opts := new(flags)

	rootCmd := &cobra.Command{
		Use:   "appcast-updater [key-path]",
		Short: "Rewrite download URLs, sign artifacts and attach release notes in the appcast",
		Long: "Rewrite every download URL in the appcast to the canonical host, sign release and delta " +
			"artifacts that have no signature yet when a private key is given, and attach rendered " +
			"release notes to entries without a description. The manifest is written only if every entry succeeds.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return applyLogLevel(opts.logLevel)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &updater.Options{
				ConfigPath:      opts.configPath,
				ManifestPath:    opts.manifestPath,
				ReleaseNotesDir: opts.releaseNotesDir,
				DryRun:          opts.dryRun,
			}

			if len(args) > 0 {
				options.KeyPath = args[0]
			}

			return updater.Run(ctx, options)
		},
	}

	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "info", "minimum log level (debug, info, warn, error)")
	rootCmd.Flags().StringVarP(&opts.manifestPath, "manifest", "m", "", "path to the appcast, overrides the configuration")
	rootCmd.Flags().StringVarP(&opts.releaseNotesDir, "notes", "n", "", "release notes directory, overrides the configuration")
	rootCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "process the appcast without signing or writing it")

	rootCmd.AddCommand(newConfigCommand(opts))
	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// Execute runs the appcast-updater CLI and exits with non-zero status on error.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// applyLogLevel sets the global log level from its textual form.
func applyLogLevel(level string) error {
	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, level)
	}

	logger.SetLevel(parsed)

	return nil
}
