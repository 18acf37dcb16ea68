package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/brokerline/acpd/internal/permission"
)

const (
	defaultReadLimit = 2000
	maxLSEntries     = 1000
)

func registerFileTools(r *Registry) {
	r.Register(Definition{
		Name:               "Read",
		Description:        "Read a text file, optionally starting at a given line and limited to a number of lines.",
		Kind:               permission.KindRead,
		RequiresPermission: true,
		Schema: schema(map[string]any{
			"path":   strProp("Absolute or cwd-relative path to the file"),
			"offset": intProp("1-indexed line to start from; 0 or absent reads from the start"),
			"limit":  intProp("Maximum number of lines to return"),
		}, "path"),
		Execute: readFile,
	})

	r.Register(Definition{
		Name:               "Write",
		Description:        "Create or overwrite a file with the given content.",
		Kind:               permission.KindEdit,
		RequiresPermission: true,
		Schema: schema(map[string]any{
			"path":    strProp("Absolute or cwd-relative path to the file"),
			"content": strProp("Content to write"),
		}, "path", "content"),
		Execute: writeFile,
	})

	r.Register(Definition{
		Name:               "Edit",
		Description:        "Replace an exact substring in a file, once or everywhere.",
		Kind:               permission.KindEdit,
		RequiresPermission: true,
		Schema: schema(map[string]any{
			"path":        strProp("Absolute or cwd-relative path to the file"),
			"old_string":  strProp("Exact text to replace"),
			"new_string":  strProp("Replacement text"),
			"replace_all": boolProp("Replace every occurrence instead of requiring exactly one match"),
		}, "path", "old_string", "new_string"),
		Execute: editFile,
	})

	r.Register(Definition{
		Name:               "LS",
		Description:        "List directory entries, optionally ignoring glob-ish patterns.",
		Kind:               permission.KindRead,
		RequiresPermission: true,
		Schema: schema(map[string]any{
			"path":   strProp("Absolute or cwd-relative directory path"),
			"ignore": arrProp("Patterns to ignore: *.ext, prefix*, or an exact name"),
		}, "path"),
		Execute: listDir,
	})
}

func readFile(_ context.Context, input map[string]any, tctx *Context) Result {
	path, ok := input["path"].(string)
	if !ok || path == "" {
		return errResult("Read requires a non-empty 'path'")
	}
	abs := resolvePath(tctx.Cwd, path)

	data, err := os.ReadFile(abs)
	if err != nil {
		return errResult(fmt.Sprintf("error opening %s: %s", DisplayPath(tctx.Cwd, abs), err))
	}

	offset := intField(input, "offset")
	limit := intField(input, "limit")
	if limit <= 0 {
		limit = defaultReadLimit
	}
	if offset < 0 {
		offset = 0
	}
	// offset is 1-indexed (spec §4.1); convert to a 0-index before using it
	// as a slice position so offset:1 includes the file's first line.
	if offset > 0 {
		offset--
	}

	lines := strings.Split(string(data), "\n")
	// Saturating arithmetic: offset/limit overflow must never panic or
	// index out of range (P7).
	start := offset
	if start > len(lines) {
		start = len(lines)
	}
	end := start + limit
	if end < start || end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i, line := range lines[start:end] {
		fmt.Fprintf(&b, "%6d\t%s\n", start+i+1, line)
	}

	return Result{Status: StatusSuccess, Content: b.String()}
}

func writeFile(_ context.Context, input map[string]any, tctx *Context) Result {
	path, ok := input["path"].(string)
	if !ok || path == "" {
		return errResult("Write requires a non-empty 'path'")
	}
	content, _ := input["content"].(string)
	abs := resolvePath(tctx.Cwd, path)

	_, statErr := os.Stat(abs)
	existed := statErr == nil

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errResult(fmt.Sprintf("error creating parent directories: %s", err))
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return errResult(fmt.Sprintf("error writing %s: %s", DisplayPath(tctx.Cwd, abs), err))
	}

	verb := "Created"
	if existed {
		verb = "Updated"
	}
	return Result{
		Status:  StatusSuccess,
		Content: fmt.Sprintf("%s %s", verb, DisplayPath(tctx.Cwd, abs)),
		Metadata: map[string]any{
			"path": abs, "new_text": content, "created": !existed,
		},
	}
}

func editFile(_ context.Context, input map[string]any, tctx *Context) Result {
	path, _ := input["path"].(string)
	oldStr, _ := input["old_string"].(string)
	newStr, _ := input["new_string"].(string)
	replaceAll, _ := input["replace_all"].(bool)

	if path == "" {
		return errResult("Edit requires a non-empty 'path'")
	}
	abs := resolvePath(tctx.Cwd, path)

	data, err := os.ReadFile(abs)
	if err != nil {
		return errResult(fmt.Sprintf("error opening %s: %s", DisplayPath(tctx.Cwd, abs), err))
	}
	content := string(data)

	count := strings.Count(content, oldStr)
	if count == 0 {
		return errResult("old_string not found in file")
	}
	if count > 1 && !replaceAll {
		return errResult(fmt.Sprintf("old_string matches %d times; pass replace_all or narrow the match", count))
	}

	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(content, oldStr, newStr)
	} else {
		updated = strings.Replace(content, oldStr, newStr, 1)
	}

	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return errResult(fmt.Sprintf("error writing %s: %s", DisplayPath(tctx.Cwd, abs), err))
	}

	return Result{
		Status:  StatusSuccess,
		Content: fmt.Sprintf("Edited %s", DisplayPath(tctx.Cwd, abs)),
		Metadata: map[string]any{
			"path": abs, "old_text": content, "new_text": updated,
		},
	}
}

func listDir(_ context.Context, input map[string]any, tctx *Context) Result {
	path, _ := input["path"].(string)
	if path == "" {
		path = tctx.Cwd
	}
	abs := resolvePath(tctx.Cwd, path)

	var ignore []string
	if raw, ok := input["ignore"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				ignore = append(ignore, s)
			}
		}
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return errResult(fmt.Sprintf("error reading %s: %s", DisplayPath(tctx.Cwd, abs), err))
	}

	var dirs, files []string
	for _, e := range entries {
		if matchesAny(ignore, e.Name()) {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, e.Name()+"/")
		} else {
			files = append(files, e.Name())
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)

	all := append(dirs, files...)
	truncated := false
	if len(all) > maxLSEntries {
		all = all[:maxLSEntries]
		truncated = true
	}

	var b strings.Builder
	for _, name := range all {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if truncated {
		b.WriteString("… (truncated)\n")
	}

	return Result{Status: StatusSuccess, Content: b.String()}
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		switch {
		case p == name:
			return true
		case strings.HasSuffix(p, "*") && strings.HasPrefix(name, strings.TrimSuffix(p, "*")):
			return true
		case strings.HasPrefix(p, "*") && strings.HasSuffix(name, strings.TrimPrefix(p, "*")):
			return true
		}
	}
	return false
}

func errResult(msg string) Result {
	return Result{Status: StatusError, Content: msg, IsError: true}
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
