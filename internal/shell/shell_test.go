package shell

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCmd_InheritsParentEnvironmentWhenUnset(t *testing.T) {
	require.NoError(t, os.Setenv("ACPD_TEST_MARKER", "present"))
	defer os.Unsetenv("ACPD_TEST_MARKER")

	c := buildCmd(Command{Command: "true"})

	found := false
	for _, kv := range c.Env {
		if kv == "ACPD_TEST_MARKER=present" {
			found = true
		}
	}
	assert.True(t, found, "buildCmd must inherit the parent environment when Command.Env is empty")
	assert.Contains(t, c.Env, "CLAUDECODE=1")
}

func TestBuildCmd_ExplicitEnvIsPreservedAndMarked(t *testing.T) {
	c := buildCmd(Command{Command: "true", Env: []string{"FOO=bar"}})
	assert.Contains(t, c.Env, "FOO=bar")
	assert.Contains(t, c.Env, "CLAUDECODE=1")
}

func TestHandle_FullOutputReturnsEntireBufferRegardlessOfReadOffset(t *testing.T) {
	h, err := StartBackground(Command{Command: "echo one; echo two", Timeout: 5 * time.Second})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		if _, finished, _ := h.Output(); finished {
			break
		}
		select {
		case <-deadline:
			t.Fatal("background command never finished")
		case <-time.After(10 * time.Millisecond):
		}
	}

	full, _ := h.FullOutput()
	assert.True(t, strings.Contains(full, "one") && strings.Contains(full, "two"))
}

func TestRun_ForegroundCommandSucceeds(t *testing.T) {
	res := Run(context.Background(), Command{Command: "echo hi", Timeout: 2 * time.Second}, Callbacks{})
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "hi")
}
