package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/brokerline/acpd/internal/permission"
)

// notebookCell mirrors the subset of the Jupyter notebook cell format the
// broker needs to round-trip: source is normalized to line-array form on
// write, preserving whatever shape it arrived in.
type notebookCell struct {
	ID       string          `json:"id,omitempty"`
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Outputs  json.RawMessage `json:"outputs,omitempty"`
}

type notebookDoc struct {
	Cells    []notebookCell  `json:"cells"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	NBFormat int             `json:"nbformat"`
	NBMinor  int             `json:"nbformat_minor"`
}

func registerNotebookTools(r *Registry) {
	r.Register(Definition{
		Name:               "NotebookRead",
		Description:        "Read a Jupyter notebook's cells.",
		Kind:               permission.KindRead,
		RequiresPermission: true,
		Schema:             schema(map[string]any{"notebook_path": strProp("Path to the .ipynb file")}, "notebook_path"),
		Execute:            notebookReadTool,
	})

	r.Register(Definition{
		Name:               "NotebookEdit",
		Description:        "Replace, insert, or delete a cell in a Jupyter notebook.",
		Kind:               permission.KindEdit,
		RequiresPermission: true,
		Schema: schema(map[string]any{
			"notebook_path": strProp("Path to the .ipynb file"),
			"new_source":    strProp("New cell source"),
			"cell_number":   intProp("0-indexed cell position"),
			"cell_id":       strProp("Cell id, alternative to cell_number"),
			"cell_type":     strProp("code | markdown, required when inserting"),
			"edit_mode":     strProp("replace | insert | delete"),
		}, "notebook_path", "edit_mode"),
		Execute: notebookEditTool,
	})
}

func notebookReadTool(_ context.Context, input map[string]any, tctx *Context) Result {
	path, _ := input["notebook_path"].(string)
	if path == "" {
		return errResult("NotebookRead requires a non-empty 'notebook_path'")
	}
	abs := resolvePath(tctx.Cwd, path)

	doc, err := loadNotebook(abs)
	if err != nil {
		return errResult(err.Error())
	}

	var b strings.Builder
	for i, cell := range doc.Cells {
		fmt.Fprintf(&b, "--- cell %d (%s, id=%s) ---\n%s\n", i, cell.CellType, cell.ID, sourceText(cell.Source))
	}
	return Result{Status: StatusSuccess, Content: b.String()}
}

func notebookEditTool(_ context.Context, input map[string]any, tctx *Context) Result {
	path, _ := input["notebook_path"].(string)
	if path == "" {
		return errResult("NotebookEdit requires a non-empty 'notebook_path'")
	}
	abs := resolvePath(tctx.Cwd, path)

	doc, err := loadNotebook(abs)
	if err != nil {
		return errResult(err.Error())
	}

	mode, _ := input["edit_mode"].(string)
	newSource, _ := input["new_source"].(string)
	cellID, _ := input["cell_id"].(string)
	hasNumber := false
	cellNumber := 0
	if v, ok := input["cell_number"]; ok {
		cellNumber = intField(map[string]any{"n": v}, "n")
		hasNumber = true
	}

	idx := -1
	if cellID != "" {
		for i, c := range doc.Cells {
			if c.ID == cellID {
				idx = i
				break
			}
		}
	} else if hasNumber {
		idx = cellNumber
	}

	switch mode {
	case "delete":
		if idx < 0 || idx >= len(doc.Cells) {
			return errResult("cell not found for delete")
		}
		doc.Cells = append(doc.Cells[:idx], doc.Cells[idx+1:]...)
	case "insert":
		cellType, _ := input["cell_type"].(string)
		if cellType == "" {
			cellType = "code"
		}
		newCell := notebookCell{CellType: cellType, Source: sourceJSON(newSource)}
		if idx < 0 || idx > len(doc.Cells) {
			idx = len(doc.Cells)
		}
		doc.Cells = append(doc.Cells[:idx], append([]notebookCell{newCell}, doc.Cells[idx:]...)...)
	case "replace":
		if idx < 0 || idx >= len(doc.Cells) {
			return errResult("cell not found for replace")
		}
		doc.Cells[idx].Source = sourceJSON(newSource)
	default:
		return errResult(fmt.Sprintf("unknown edit_mode %q", mode))
	}

	out, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return errResult(fmt.Sprintf("failed to serialize notebook: %s", err))
	}
	if err := os.WriteFile(abs, out, 0o644); err != nil {
		return errResult(fmt.Sprintf("failed to write notebook: %s", err))
	}

	return Result{Status: StatusSuccess, Content: fmt.Sprintf("%s applied to %s", mode, DisplayPath(tctx.Cwd, abs))}
}

func loadNotebook(path string) (*notebookDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening notebook: %w", err)
	}
	var doc notebookDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing notebook: %w", err)
	}
	return &doc, nil
}

// sourceText normalizes Jupyter's source field, which may be either a
// single string or an array of lines, into plain text for display.
func sourceText(raw json.RawMessage) string {
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "")
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}

// sourceJSON normalizes a plain string into the line-array form (spec
// §4.1 NotebookEdit: "normalizes source to line-array form").
func sourceJSON(text string) json.RawMessage {
	lines := strings.SplitAfter(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	out, _ := json.Marshal(lines)
	return out
}
