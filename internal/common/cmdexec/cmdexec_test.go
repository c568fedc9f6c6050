package cmdexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	r := OSRunner{Env: map[string]string{"MGMT_TEST_VALUE": "42"}}

	out, err := r.Run(context.Background(), "/bin/sh", "-c", "echo $MGMT_TEST_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "42\n", string(out))

	_, err = r.Run(context.Background(), "/bin/sh", "-c", "echo oops >&2; exit 3")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "oops", exitErr.Stderr)

	_, err = r.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.False(t, errors.As(err, &exitErr))
}

func TestExecutable(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(file, []byte("#!/bin/sh\n"), 0o755))

	assert.True(t, Executable(file))
	assert.False(t, Executable(dir))
	assert.False(t, Executable(filepath.Join(dir, "nope")))
	assert.False(t, Executable(""))
}

func TestFakeRunner(t *testing.T) {
	f := &FakeRunner{Results: map[string]Result{
		"tool -f json": {Output: []byte(`{}`)},
	}}
	out, err := f.Run(context.Background(), "tool", "-f", "json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out))

	_, err = f.Run(context.Background(), "other")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"tool -f json", "other"}, f.Calls)
}
