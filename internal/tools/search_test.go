package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionsForType(t *testing.T) {
	assert.Equal(t, []string{"go"}, extensionsForType("go"))
	assert.Equal(t, []string{"ts", "tsx"}, extensionsForType("TS"))
	assert.Equal(t, []string{"proto"}, extensionsForType("proto"))
}

func TestGrepTool_TypeFilterRestrictsToMatchingExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("needle\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.py"), []byte("needle\n"), 0o644))

	tctx := &Context{Cwd: dir}
	res := grepTool(context.Background(), map[string]any{
		"pattern": "needle",
		"path":    dir,
		"type":    "go",
	}, tctx)

	require.Equal(t, StatusSuccess, res.Status)
	assert.Contains(t, res.Content, "a.go")
	assert.NotContains(t, res.Content, "b.py")
}

func TestGrepTool_OffsetSkipsLeadingResults(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("needle\n"), 0o644))
	}

	tctx := &Context{Cwd: dir}
	full := grepTool(context.Background(), map[string]any{
		"pattern":     "needle",
		"path":        dir,
		"output_mode": "files_with_matches",
	}, tctx)
	require.Equal(t, StatusSuccess, full.Status)

	paged := grepTool(context.Background(), map[string]any{
		"pattern":     "needle",
		"path":        dir,
		"output_mode": "files_with_matches",
		"offset":      2,
	}, tctx)
	require.Equal(t, StatusSuccess, paged.Status)
	assert.Less(t, len(paged.Content), len(full.Content))
}
