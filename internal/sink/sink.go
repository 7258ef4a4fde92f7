// Package sink implements the per-job output sink: a buffer that serializes
// Show/List output and is flushed to the job's `.out` file once, atomically,
// when the job finishes.
//
// A `.jobs` stream is a short command script, not a data firehose, so
// buffering its whole output in memory and flushing once via
// natefinch/atomic.WriteFile (rather than writing in place) means a reader
// of `<job>.out` never observes a torn or partial file - it sees either the
// previous run's file or the complete new one.
package sink

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/natefinch/atomic"
)

// outputMode is the mode requested for `.out` files; Flush applies the
// process umask to it (0666 & ~umask).
const outputMode = 0o666

// Sink buffers Show/List output for one job and flushes it to disk once.
type Sink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// New returns an empty sink.
func New() *Sink {
	return &Sink{}
}

// WriteBlock runs fn with exclusive access to the sink's buffer, so every
// write fn performs appears contiguous against any other WriteBlock call:
// a single Show/List's output block is never interleaved with another's.
func (s *Sink) WriteBlock(fn func(w io.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(&s.buf)
}

// Flush atomically writes the buffered output to path and sets its mode to
// outputMode with the process umask applied.
func (s *Sink) Flush(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := atomic.WriteFile(path, strings.NewReader(s.buf.String())); err != nil {
		return err
	}

	umask := syscall.Umask(0)
	syscall.Umask(umask)

	return os.Chmod(path, os.FileMode(outputMode&^umask))
}
