package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brokerline/acpd/internal/permission"
)

const maxGlobEntries = 1000

// typeExtensions is a small, ripgrep-style --type-to-extension table for
// grepTool's "type" filter. Unknown type names fall back to the type name
// itself as a single extension (e.g. "type": "proto" -> *.proto).
var typeExtensions = map[string][]string{
	"go":     {"go"},
	"py":     {"py"},
	"js":     {"js", "jsx", "mjs"},
	"ts":     {"ts", "tsx"},
	"rust":   {"rs"},
	"java":   {"java"},
	"c":      {"c", "h"},
	"cpp":    {"cpp", "cc", "cxx", "hpp", "hh"},
	"yaml":   {"yaml", "yml"},
	"json":   {"json"},
	"md":     {"md", "markdown"},
	"shell":  {"sh", "bash"},
	"ruby":   {"rb"},
	"php":    {"php"},
	"html":   {"html", "htm"},
	"css":    {"css"},
}

func extensionsForType(typ string) []string {
	if exts, ok := typeExtensions[strings.ToLower(typ)]; ok {
		return exts
	}
	return []string{typ}
}

func registerSearchTools(r *Registry) {
	r.Register(Definition{
		Name:               "Glob",
		Description:        "Find files matching a glob pattern under a path, newest first.",
		Kind:               permission.KindSearch,
		RequiresPermission: true,
		Schema: schema(map[string]any{
			"pattern": strProp("Glob pattern in filepath.Match syntax, e.g. *.go or cmd/*/*.go; ** matches a single path segment, not nested directories"),
			"path":    strProp("Directory to search under; defaults to cwd"),
		}, "pattern"),
		Execute: globTool,
	})

	r.Register(Definition{
		Name:               "Grep",
		Description:        "Search file contents using an external grep-compatible binary.",
		Kind:               permission.KindSearch,
		RequiresPermission: true,
		Schema: schema(map[string]any{
			"pattern":     strProp("Regular expression to search for"),
			"path":        strProp("File or directory to search; defaults to cwd"),
			"glob":        strProp("Restrict to files matching this glob"),
			"type":        strProp("Restrict to files of this type, e.g. go, py, js, rust"),
			"output_mode": strProp("content | files_with_matches | count"),
			"-C":          intProp("Lines of context around each match"),
			"offset":      intProp("1-indexed result to start from, for paging"),
			"head_limit":  intProp("Cap the number of results returned"),
		}, "pattern"),
		Execute: grepTool,
	})
}

func globTool(_ context.Context, input map[string]any, tctx *Context) Result {
	pattern, _ := input["pattern"].(string)
	if pattern == "" {
		return errResult("Glob requires a non-empty 'pattern'")
	}
	root, _ := input["path"].(string)
	if root == "" {
		root = tctx.Cwd
	}
	root = resolvePath(tctx.Cwd, root)

	matches, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return errResult(fmt.Sprintf("invalid pattern: %s", err))
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	var entries []entry
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil {
			entries = append(entries, entry{m, info.ModTime()})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.After(entries[j].modTime) })

	truncated := false
	if len(entries) > maxGlobEntries {
		entries = entries[:maxGlobEntries]
		truncated = true
	}

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.path)
		b.WriteByte('\n')
	}
	if truncated {
		b.WriteString("… (truncated)\n")
	}

	return Result{Status: StatusSuccess, Content: b.String()}
}

// grepTool delegates to the system's grep binary (spec §4.1: "delegates to
// an external search binary"), surfacing its exit code: 0 = matches, 1 =
// no matches, 2 = error.
func grepTool(ctx context.Context, input map[string]any, tctx *Context) Result {
	pattern, _ := input["pattern"].(string)
	if pattern == "" {
		return errResult("Grep requires a non-empty 'pattern'")
	}
	path, _ := input["path"].(string)
	if path == "" {
		path = tctx.Cwd
	}
	path = resolvePath(tctx.Cwd, path)

	args := []string{"-rE"}

	mode, _ := input["output_mode"].(string)
	switch mode {
	case "files_with_matches":
		args = append(args, "-l")
	case "count":
		args = append(args, "-c")
	}

	if glob, ok := input["glob"].(string); ok && glob != "" {
		args = append(args, "--include="+glob)
	}
	if typ, ok := input["type"].(string); ok && typ != "" {
		for _, ext := range extensionsForType(typ) {
			args = append(args, "--include=*."+ext)
		}
	}
	if ctxLines := intField(input, "-C"); ctxLines > 0 {
		args = append(args, "-C", strconv.Itoa(ctxLines))
	}

	args = append(args, pattern, path)

	cmd := exec.CommandContext(ctx, "grep", args...)
	out, err := cmd.CombinedOutput()

	content := string(out)
	// offset is 1-indexed (spec §4.1, matching Read's offset convention);
	// applied before head_limit so the two compose into simple paging.
	if offset := intField(input, "offset"); offset > 1 {
		lines := strings.Split(content, "\n")
		skip := offset - 1
		if skip > len(lines) {
			skip = len(lines)
		}
		content = strings.Join(lines[skip:], "\n")
	}
	if limit := intField(input, "head_limit"); limit > 0 {
		lines := strings.SplitN(content, "\n", limit+1)
		if len(lines) > limit {
			lines = lines[:limit]
		}
		content = strings.Join(lines, "\n")
	}

	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		return errResult(fmt.Sprintf("grep failed to run: %s", err))
	}

	switch exitCode {
	case 0:
		return Result{Status: StatusSuccess, Content: content}
	case 1:
		return Result{Status: StatusSuccess, Content: "No matches found"}
	default:
		return errResult(fmt.Sprintf("grep exited %d: %s", exitCode, content))
	}
}
