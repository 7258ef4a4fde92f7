package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Help(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "long flag", args: []string{"ems", "--help"}},
		{name: "short flag", args: []string{"ems", "-h"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer

			exitCode := Run("ems", &stdout, &stderr, tc.args, map[string]string{}, nil)

			assert.Equal(t, 0, exitCode)
			assert.Empty(t, stderr.String())
			assert.Contains(t, stdout.String(), "Usage: ems")
		})
	}
}

func TestRun_InvalidFlagFails(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Run("ems", &stdout, &stderr, []string{"ems", "--nope"}, map[string]string{}, nil)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "error:")
}

// TestRun_EndToEnd_ChildPath calls Run with the hidden child flag against a
// real job file - the same cli.Run code path a re-exec'd child process
// takes - without spawning a subprocess, and checks the resulting .out file.
func TestRun_EndToEnd_ChildPath(t *testing.T) {
	dir := t.TempDir()

	jobPath := filepath.Join(dir, "a.jobs")
	require.NoError(t, os.WriteFile(jobPath, []byte("CREATE 1 1 1\nRESERVE 1 (1,1)\nSHOW 1\n"), 0o600))

	var stdout, stderr bytes.Buffer

	exitCode := Run("ems", &stdout, &stderr, []string{"ems", "--" + childFlag, jobPath, "-t", "1"}, map[string]string{}, nil)

	require.Equal(t, 0, exitCode)
	assert.Empty(t, stderr.String())

	out, err := os.ReadFile(filepath.Join(dir, "a.out"))
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(out))
}

func TestRun_EndToEnd_ChildPath_MissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Run("ems", &stdout, &stderr, []string{"ems", "--" + childFlag, "/no/such/file.jobs"}, map[string]string{}, nil)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "error:")
}
