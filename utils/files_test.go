package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	isDir, exists, err := Exists(dir)
	require.NoError(t, err)
	assert.True(t, isDir)
	assert.True(t, exists)

	isDir, exists, err = Exists(file)
	require.NoError(t, err)
	assert.False(t, isDir)
	assert.True(t, exists)

	_, exists, err = Exists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCopyFileReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	require.NoError(t, os.WriteFile(src, []byte("fresh content"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("stale"), 0o644))

	n, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.EqualValues(t, len("fresh content"), n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "fresh content", string(got))

	size, err := FileSize(dst)
	require.NoError(t, err)
	assert.EqualValues(t, n, size)
}

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, CheckWritable(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file must be removed")

	assert.Error(t, CheckWritable(filepath.Join(dir, "missing")))
}
