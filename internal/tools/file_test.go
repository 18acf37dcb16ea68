package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "lines.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir, path
}

func TestReadFile_OffsetIsOneIndexed(t *testing.T) {
	dir, path := writeTempFile(t, "one\ntwo\nthree\nfour\n")
	tctx := &Context{Cwd: dir}

	res := readFile(context.Background(), map[string]any{"path": path, "offset": 1}, tctx)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Contains(t, res.Content, "1\tone")

	res = readFile(context.Background(), map[string]any{"path": path, "offset": 2}, tctx)
	require.Equal(t, StatusSuccess, res.Status)
	assert.NotContains(t, res.Content, "1\tone")
	assert.Contains(t, res.Content, "2\ttwo")
}

func TestReadFile_ZeroOffsetReadsFromStart(t *testing.T) {
	dir, path := writeTempFile(t, "one\ntwo\n")
	tctx := &Context{Cwd: dir}

	res := readFile(context.Background(), map[string]any{"path": path}, tctx)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Contains(t, res.Content, "1\tone")
}
