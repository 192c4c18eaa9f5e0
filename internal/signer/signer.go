package signer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// maxStderrLength bounds the helper output quoted in errors.
const maxStderrLength = 512

var (
	// ErrArtifactNotFound is returned when the artifact to sign does not exist.
	ErrArtifactNotFound = errors.New("artifact not found")

	errEmptySignature = errors.New("signer printed an empty signature")
	errNoExecutable   = errors.New("signer executable is not set")
)

// Signer produces a signature for an artifact using a private key.
type Signer interface {
	Sign(ctx context.Context, artifactPath, keyPath string) (string, error)
}

// Func adapts an ordinary function to the Signer interface.
type Func func(ctx context.Context, artifactPath, keyPath string) (string, error)

// Sign calls f.
func (f Func) Sign(ctx context.Context, artifactPath, keyPath string) (string, error) {
	return f(ctx, artifactPath, keyPath)
}

// Exec signs artifacts with an external executable.
type Exec struct {
	// path is the signing helper executable.
	path string
}

// NewExec creates a signer running the executable at path.
func NewExec(path string) *Exec {
	return &Exec{
		path: path,
	}
}

// Sign runs the helper and returns its standard output without line breaks.
// A missing artifact, a failing helper or an empty output are errors.
func (s *Exec) Sign(ctx context.Context, artifactPath, keyPath string) (string, error) {
	if s.path == "" {
		return "", errNoExecutable
	}

	if _, err := os.Stat(artifactPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", artifactPath, ErrArtifactNotFound)
		}

		return "", fmt.Errorf("stat artifact: %w", err)
	}

	var stderr bytes.Buffer

	//nolint:gosec // The helper path comes from the operator's configuration.
	cmd := exec.CommandContext(ctx, filepath.Clean(s.path), artifactPath, keyPath)
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("run %s for %s: %w%s", s.path, artifactPath, err, describeStderr(stderr.String()))
	}

	signature := strings.TrimSpace(strings.ReplaceAll(string(output), "\n", ""))
	if signature == "" {
		return "", fmt.Errorf("%s: %w", artifactPath, errEmptySignature)
	}

	return signature, nil
}

// describeStderr formats helper diagnostics for an error message.
func describeStderr(stderr string) string {
	clean := strings.TrimSpace(stderr)
	if clean == "" {
		return ""
	}

	if len(clean) > maxStderrLength {
		clean = clean[:maxStderrLength] + "..."
	}

	return ": " + clean
}
