package sink

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlush_WritesBufferedContent(t *testing.T) {
	s := New()

	require.NoError(t, s.WriteBlock(func(w io.Writer) error {
		_, err := w.Write([]byte("Event: 1\n"))
		return err
	}))

	path := filepath.Join(t.TempDir(), "a.out")
	require.NoError(t, s.Flush(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Event: 1\n", string(data))
}

func TestFlush_PriorFileUntouchedUntilFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.out")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	s := New()
	require.NoError(t, s.WriteBlock(func(w io.Writer) error {
		_, err := w.Write([]byte("fresh\n"))
		return err
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "stale", string(data), "buffering must not touch the file before Flush")

	require.NoError(t, s.Flush(path))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh\n", string(data))
}
