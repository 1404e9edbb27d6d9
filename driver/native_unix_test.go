//go:build darwin || linux || freebsd

package driver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenNotALibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libcudabind.so")
	require.NoError(t, os.WriteFile(path, []byte("not an ELF file"), 0o600))

	_, err := Open(LibraryOptions{Path: path})
	assert.ErrorIs(t, err, ErrLibraryNotFound)
}

func TestOpenEmbeddedGarbage(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(LibraryOptions{Embedded: []byte("garbage"), StageDir: dir})
	assert.ErrorIs(t, err, ErrLibraryNotFound)

	// The staged copy never outlives Open.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenMissingSymbols(t *testing.T) {
	var libc string
	for _, candidate := range []string{
		"/lib/x86_64-linux-gnu/libc.so.6",
		"/lib/aarch64-linux-gnu/libc.so.6",
		"/usr/lib/libc.so.6",
		"/lib64/libc.so.6",
		"/usr/lib/libSystem.B.dylib",
	} {
		if _, err := os.Stat(candidate); err == nil {
			libc = candidate
			break
		}
	}
	if libc == "" {
		t.Skip("no system C library at a known path")
	}

	_, err := Open(LibraryOptions{Path: libc})
	require.ErrorIs(t, err, ErrSymbolResolution)

	var symErr *SymbolError
	require.True(t, errors.As(err, &symErr))
	assert.Equal(t, libc, symErr.Library)
	assert.ElementsMatch(t, SymbolNames(), symErr.Missing)
}
