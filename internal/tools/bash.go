package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/brokerline/acpd/internal/permission"
	"github.com/brokerline/acpd/internal/shell"
)

func registerBashTools(r *Registry) {
	r.Register(Definition{
		Name:               "Bash",
		Description:        "Run a shell command, streaming its output.",
		Kind:               permission.KindExecute,
		RequiresPermission: true,
		Schema: schema(map[string]any{
			"command":          strProp("Shell command to run"),
			"description":      strProp("Short human-readable description of the command"),
			"run_in_background": boolProp("Run without blocking; poll with BashOutput"),
			"timeout_ms":       intProp("Timeout in milliseconds, default 120000, max 600000"),
		}, "command"),
		Execute: bashTool,
	})

	r.Register(Definition{
		Name:               "BashOutput",
		Description:        "Read incremental output from a background shell.",
		Kind:               permission.KindOther,
		RequiresPermission: false,
		Schema:             schema(map[string]any{"bash_id": strProp("Background shell id")}, "bash_id"),
		Execute:            bashOutputTool,
	})

	r.Register(Definition{
		Name:               "KillShell",
		Description:        "Terminate a background shell's process group.",
		Kind:               permission.KindOther,
		RequiresPermission: true,
		Schema:             schema(map[string]any{"shell_id": strProp("Background shell id")}, "shell_id"),
		Execute:            killShellTool,
	})
}

func bashTool(ctx context.Context, input map[string]any, tctx *Context) Result {
	command, _ := input["command"].(string)
	if command == "" {
		return errResult("Bash requires a non-empty 'command'")
	}

	timeoutMS := intField(input, "timeout_ms")
	timeout := shell.DefaultTimeout
	if timeoutMS > 0 {
		timeout = time.Duration(timeoutMS) * time.Millisecond
		if timeout > shell.MaxTimeout {
			timeout = shell.MaxTimeout
		}
	}

	runInBackground, _ := input["run_in_background"].(bool)
	cmd := shell.Command{Command: command, Cwd: tctx.Cwd, Timeout: timeout}

	if runInBackground {
		handle, err := shell.StartBackground(cmd)
		if err != nil {
			return errResult(fmt.Sprintf("failed to start background command: %s", err))
		}
		bgID := shell.NewID(tctx.ToolCallID)
		if reg, ok := tctx.Shell.(*shell.Registry); ok {
			reg.Register(bgID, handle)
		}
		return Result{
			Status:  StatusSuccess,
			Content: fmt.Sprintf("Started in background as %s; poll with BashOutput.", bgID),
			Metadata: map[string]any{
				"background_id": bgID,
			},
		}
	}

	res := shell.Run(ctx, cmd, shell.Callbacks{
		OnOutputChunk: func(line string) {
			if tctx.EmitUpdate != nil {
				tctx.EmitUpdate(map[string]any{"terminal_output": map[string]any{
					"terminal_id": tctx.ToolCallID,
					"data":        line,
				}})
			}
		},
	})

	if res.Err != nil {
		return Result{Status: StatusError, Content: res.Err.Error(), IsError: true,
			Metadata: map[string]any{
				"terminal_exit": map[string]any{"terminal_id": tctx.ToolCallID, "exit_code": res.ExitCode},
			}}
	}

	status := StatusSuccess
	isError := res.ExitCode != 0 || res.TimedOut
	if isError {
		status = StatusError
	}

	return Result{
		Status:  status,
		Content: res.Output,
		IsError: isError,
		Metadata: map[string]any{
			"terminal_exit": map[string]any{"terminal_id": tctx.ToolCallID, "exit_code": res.ExitCode},
			"timed_out":     res.TimedOut,
		},
	}
}

func bashOutputTool(_ context.Context, input map[string]any, tctx *Context) Result {
	id, _ := input["bash_id"].(string)
	if id == "" {
		return errResult("BashOutput requires a non-empty 'bash_id'")
	}
	chunk, finished, exitCode, err := tctx.Shell.Output(id)
	if err != nil {
		return errResult(err.Error())
	}
	status := "running"
	if finished {
		status = "exited"
	}
	return Result{
		Status:  StatusSuccess,
		Content: chunk,
		Metadata: map[string]any{
			"status": status, "exit_code": exitCode,
		},
	}
}

func killShellTool(_ context.Context, input map[string]any, tctx *Context) Result {
	id, _ := input["shell_id"].(string)
	if id == "" {
		return errResult("KillShell requires a non-empty 'shell_id'")
	}
	if err := tctx.Shell.Kill(id); err != nil {
		return errResult(err.Error())
	}
	full, exitCode, err := tctx.Shell.FullOutput(id)
	if err != nil {
		return errResult(err.Error())
	}
	return Result{
		Status:  StatusSuccess,
		Content: full,
		Metadata: map[string]any{
			"terminal_exit": map[string]any{"terminal_id": id, "exit_code": exitCode},
		},
	}
}
