package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/appcast-updater/internal/logger"
	"github.com/oshokin/appcast-updater/internal/service/common"
)

const (
	// MarkerFilename marks that an update of the manifest in the same directory is in progress.
	MarkerFilename = ".appcast-updater.lock"

	// markerLifetime is the period after which a marker is ignored regardless of its owner.
	markerLifetime = 30 * time.Minute
)

// errAlreadyRunning indicates that another run holds the marker.
var errAlreadyRunning = errors.New("another appcast update is running")

// marker is the content of the run marker file.
type marker struct {
	// PID is the process that wrote the marker.
	PID int `yaml:"pid"`
	// Actor is who started the run.
	Actor common.Actor `yaml:"actor"`
	// StartedAt is when the run started.
	StartedAt time.Time `yaml:"started_at"`
}

// markerPath returns the marker location for a manifest directory.
func markerPath(dir string) string {
	return filepath.Join(dir, MarkerFilename)
}

// acquireMarker places the run marker into dir and returns a function removing it.
// The marker is created exclusively, a present one is replaced only when it is stale.
func acquireMarker(ctx context.Context, dir string) (func(), error) {
	path := markerPath(dir)

	current := marker{
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC(),
	}

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect actor for the run marker", "error", err)
	} else {
		current.Actor = *actor
	}

	contents, err := yaml.Marshal(&current)
	if err != nil {
		return nil, fmt.Errorf("encode run marker: %w", err)
	}

	err = placeMarker(path, contents)
	if errors.Is(err, os.ErrExist) {
		if IsUpdaterRunningNow(ctx, path) {
			return nil, fmt.Errorf("%s: %w", path, errAlreadyRunning)
		}

		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale run marker: %w", removeErr)
		}

		err = placeMarker(path, contents)
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, errAlreadyRunning)
		}
	}

	if err != nil {
		return nil, err
	}

	release := func() {
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove the run marker", "path", path, "error", removeErr)
		}
	}

	return release, nil
}

// placeMarker writes contents to a temporary file and links it to path.
// The link fails with os.ErrExist when path is taken, so a marker is never seen half-written.
func placeMarker(path string, contents []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), MarkerFilename+".*")
	if err != nil {
		return fmt.Errorf("create run marker: %w", err)
	}

	tempPath := temp.Name()
	defer os.Remove(tempPath) //nolint:errcheck // The temporary name is dropped either way.

	_, writeErr := temp.Write(contents)
	if err = errors.Join(writeErr, temp.Close()); err != nil {
		return fmt.Errorf("write run marker: %w", err)
	}

	if err = os.Link(tempPath, path); err != nil {
		return fmt.Errorf("place run marker: %w", err)
	}

	return nil
}

// IsUpdaterRunningNow reports whether the marker at path belongs to a live run.
// Unreadable, expired or orphaned markers are treated as stale.
func IsUpdaterRunningNow(ctx context.Context, path string) bool {
	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug(ctx, "Run marker not found, continuing")
		return false
	}

	if err != nil {
		logger.InfoKV(ctx, "Unable to read run marker, replacing it", "error", err)
		return false
	}

	var existing marker
	if err = yaml.Unmarshal(contents, &existing); err != nil {
		logger.InfoKV(ctx, "The run marker is unreadable, replacing it", "error", err)
		return false
	}

	if time.Since(existing.StartedAt) > markerLifetime {
		logger.InfoKV(ctx, "The run marker is too old, replacing it", "started_at", existing.StartedAt)
		return false
	}

	if hostname, hostErr := os.Hostname(); hostErr == nil &&
		existing.Actor.Hostname != "" && existing.Actor.Hostname != hostname {
		// Processes on other hosts cannot be checked.
		logger.WarnKV(ctx, "A run on another host holds the marker",
			"host", existing.Actor.Hostname, "user", existing.Actor.Username)

		return true
	}

	if !isProcessAlive(existing.PID) {
		logger.InfoKV(ctx, "The run marker owner has exited, replacing it", "pid", existing.PID)
		return false
	}

	logger.WarnKV(ctx, "Another run holds the marker",
		"pid", existing.PID, "user", existing.Actor.Username, "started_at", existing.StartedAt)

	return true
}

// isProcessAlive checks the process table for pid.
// When the table cannot be read the process is assumed to be alive.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return true
	}

	return process != nil
}
