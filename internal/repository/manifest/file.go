package manifest

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/appcast-updater/internal/config"
	"github.com/oshokin/appcast-updater/internal/domain/appcast"
)

// Repository defines persistence operations for the manifest.
type Repository interface {
	Load(ctx context.Context) (*appcast.Document, error)
	Save(ctx context.Context, doc *appcast.Document) error
}

// FileRepository persists the manifest to an XML file on disk.
type FileRepository struct {
	// path is the filesystem location of the manifest.
	path string
	// ns is the update namespace expected in the manifest.
	ns appcast.Namespace
	// mu serializes access to the manifest file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the manifest file does not exist.
	ErrNotFound = errors.New("manifest not found")

	errNilDocument = errors.New("manifest document is nil")
)

// NewFileRepository creates a repository that reads and writes the manifest at the provided path.
func NewFileRepository(path string, ns appcast.Namespace) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
		ns:   ns,
	}
}

// Path returns the manifest location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads and parses the manifest from disk.
func (r *FileRepository) Load(_ context.Context) (*appcast.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", r.path, ErrNotFound)
		}

		return nil, fmt.Errorf("read manifest: %w", err)
	}

	doc, err := appcast.Parse(contents, r.ns)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.path, err)
	}

	return doc, nil
}

// Save serializes the manifest and swaps it into place atomically.
// The written bytes are checked against their SHA-256 digest before the swap,
// and the original file mode is kept.
func (r *FileRepository) Save(_ context.Context, doc *appcast.Document) error {
	if doc == nil {
		return errNilDocument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := doc.Bytes()
	if err != nil {
		return err
	}

	mode := os.FileMode(config.DefaultManifestPermissions)
	if info, statErr := os.Stat(r.path); statErr == nil {
		mode = info.Mode().Perm()
	}

	checksum := sha256.Sum256(data)
	options := goupdate.Options{
		TargetPath: r.path,
		TargetMode: mode,
		Checksum:   checksum[:],
		Hash:       crypto.SHA256,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
