package signer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeHelper creates an executable shell script acting as a signing helper.
func writeHelper(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell helpers are not available on windows")
	}

	path := filepath.Join(t.TempDir(), "sign_update")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700))

	return path
}

// writeArtifact creates a dummy artifact file.
func writeArtifact(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "Lunar-3.2.1.dmg")
	require.NoError(t, os.WriteFile(path, []byte("dmg"), 0o600))

	return path
}

// TestExec_Sign verifies arguments are passed through and the newline is stripped.
//
// Helper tests are not parallel: exec of a freshly written script fails with
// ETXTBSY if another goroutine forks while the file is still open.
func TestExec_Sign(t *testing.T) {
	helper := writeHelper(t, `echo "SIG:$(basename "$1"):$(basename "$2")"`)
	artifact := writeArtifact(t)

	signature, err := NewExec(helper).Sign(context.Background(), artifact, "/keys/dsa_priv.pem")
	require.NoError(t, err)
	require.Equal(t, "SIG:Lunar-3.2.1.dmg:dsa_priv.pem", signature)
}

// TestExec_SignFailures verifies helper and artifact failures are reported.
func TestExec_SignFailures(t *testing.T) {
	artifact := writeArtifact(t)

	failing := writeHelper(t, `echo "bad key" >&2; exit 3`)
	_, err := NewExec(failing).Sign(context.Background(), artifact, "key")
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, exitErr.ExitCode())
	require.True(t, strings.HasSuffix(err.Error(), ": bad key"), err.Error())

	silent := writeHelper(t, `exit 0`)
	_, err = NewExec(silent).Sign(context.Background(), artifact, "key")
	require.ErrorIs(t, err, errEmptySignature)

	_, err = NewExec(silent).Sign(context.Background(), filepath.Join(t.TempDir(), "missing.dmg"), "key")
	require.ErrorIs(t, err, ErrArtifactNotFound)

	_, err = NewExec(filepath.Join(t.TempDir(), "missing-helper")).Sign(context.Background(), artifact, "key")
	require.Error(t, err)

	_, err = NewExec("").Sign(context.Background(), artifact, "key")
	require.ErrorIs(t, err, errNoExecutable)
}

// TestFunc verifies the adapter forwards its arguments.
func TestFunc(t *testing.T) {
	t.Parallel()

	var s Signer = Func(func(_ context.Context, artifactPath, keyPath string) (string, error) {
		return artifactPath + "|" + keyPath, nil
	})

	signature, err := s.Sign(context.Background(), "a", "k")
	require.NoError(t, err)
	require.Equal(t, "a|k", signature)
}
