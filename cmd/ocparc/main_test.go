package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcvfs/internal/testutil"
)

func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	song := testutil.Pattern(3000, 7)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pack.zip"), testutil.Zip(t,
		testutil.ZipMember{Name: "tunes/a.mod", Data: []byte("0123456789"), Method: zip.Deflate},
		testutil.ZipMember{Name: "tunes/old/b.xm", Data: song, Method: zip.Deflate},
		testutil.ZipMember{Name: "readme.txt", Data: []byte("hi")},
	), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.bz2"), testutil.Bzip2(t, song), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.zip"), []byte("PK\x05\x06 not really"), 0o644))
	return dir
}

func runCmd(t *testing.T, cachePath string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"--cache=" + cachePath, "--log-level=error"}, args...), &stdout, &stderr, "")
	return stdout.String(), err
}

func TestLs(t *testing.T) {
	t.Parallel()

	dir := fixture(t)
	out, err := runCmd(t, "", "ls", filepath.Join(dir, "pack.zip"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tunes/", "readme.txt"}, strings.Fields(out))

	out, err = runCmd(t, "", "ls", "--flat", filepath.Join(dir, "pack.zip", "tunes"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.mod", "b.xm"}, strings.Fields(out))
}

func TestCat(t *testing.T) {
	t.Parallel()

	dir := fixture(t)
	member := filepath.Join(dir, "pack.zip", "tunes", "a.mod")
	out, err := runCmd(t, "", "cat", member)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", out)

	out, err = runCmd(t, "", "cat", "--offset", "3", "--length", "4", member)
	require.NoError(t, err)
	assert.Equal(t, "3456", out)

	_, err = runCmd(t, "", "cat", filepath.Join(dir, "pack.zip", "tunes"))
	require.Error(t, err)
}

func TestStatUsesCache(t *testing.T) {
	t.Parallel()

	dir := fixture(t)
	cachePath := filepath.Join(t.TempDir(), "meta.dat")
	member := filepath.Join(dir, "song.bz2", "song")

	out, err := runCmd(t, cachePath, "stat", member)
	require.NoError(t, err)
	assert.Contains(t, out, "size:       3000")
	assert.Contains(t, out, "size ready: false")

	out, err = runCmd(t, cachePath, "stat", member)
	require.NoError(t, err)
	assert.Contains(t, out, "size ready: true")

	out, err = runCmd(t, cachePath, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "song.bz2")
}

func TestCacheRm(t *testing.T) {
	t.Parallel()

	dir := fixture(t)
	cachePath := filepath.Join(t.TempDir(), "meta.dat")
	_, err := runCmd(t, cachePath, "stat", filepath.Join(dir, "song.bz2", "song"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "song.bz2"))
	require.NoError(t, err)
	size := strconv.FormatInt(info.Size(), 10)

	_, err = runCmd(t, cachePath, "cache", "rm", "song.bz2", size, "BZIP2")
	require.NoError(t, err)
	out, err := runCmd(t, cachePath, "cache", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "song.bz2")

	_, err = runCmd(t, cachePath, "cache", "rm", "song.bz2", size, "BZIP2")
	require.Error(t, err)
	_, err = runCmd(t, "", "cache", "list")
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	dir := fixture(t)
	out, err := runCmd(t, "", "verify", "-j", "2",
		filepath.Join(dir, "pack.zip"),
		filepath.Join(dir, "song.bz2"),
	)
	require.NoError(t, err)
	assert.Contains(t, out, "(3 files, 3012 bytes)")
	assert.Contains(t, out, "(1 files, 3000 bytes)")

	out, err = runCmd(t, "", "verify", filepath.Join(dir, "pack.zip"), filepath.Join(dir, "broken.zip"))
	require.Error(t, err)
	assert.Contains(t, out, "FAIL "+filepath.Join(dir, "broken.zip"))
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"--log-level", "loud", "ls", t.TempDir()}, &stdout, &stderr, "")
	require.Error(t, err)
}
