package worker

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scuffedwrldwide/ems/internal/ems"
)

// blockSink adapts a bytes.Buffer to ems.Sink, recording the sequence of
// WriteBlock calls so tests can assert on contiguity.
type blockSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *blockSink) WriteBlock(fn func(w io.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(&s.buf)
}

func newStore(t *testing.T) *ems.Store {
	t.Helper()

	s := ems.New()
	require.NoError(t, s.Init(0))

	return s
}

// TestRunJob_SingleThreadSequentialOutput: with MaxThreads=1 the
// output matches a straightforward sequential read of the script.
func TestRunJob_SingleThreadSequentialOutput(t *testing.T) {
	script := strings.Join([]string{
		"CREATE 1 2 2",
		"RESERVE 1 (1,1) (1,2)",
		"SHOW 1",
		"LIST",
	}, "\n") + "\n"

	store := newStore(t)
	snk := &blockSink{}

	var diag, out bytes.Buffer

	RunJob(strings.NewReader(script), store, snk, Options{
		MaxThreads: 1,
		Diag:       &diag,
		Out:        &out,
	})

	assert.Equal(t, "1 1\n0 0\nEvent: 1\n", snk.buf.String())
	assert.Empty(t, diag.String())
}

func TestRunJob_InvalidCommandReportedAndSkipped(t *testing.T) {
	script := "BOGUS\nCREATE 1 1 1\nLIST\n"

	store := newStore(t)
	snk := &blockSink{}

	var diag, out bytes.Buffer

	RunJob(strings.NewReader(script), store, snk, Options{
		MaxThreads: 1,
		Diag:       &diag,
		Out:        &out,
	})

	assert.Contains(t, diag.String(), "Invalid command")
	assert.Equal(t, "Event: 1\n", snk.buf.String())
}

// TestRunJob_Barrier: commands after BARRIER only run after the
// pool restarts - expressed here as: both halves still run, in order,
// across however many spawn/respawn rounds it takes.
func TestRunJob_Barrier(t *testing.T) {
	script := "CREATE 1 1 1\nBARRIER\nLIST\n"

	store := newStore(t)
	snk := &blockSink{}

	var diag, out bytes.Buffer

	RunJob(strings.NewReader(script), store, snk, Options{
		MaxThreads: 2,
		Diag:       &diag,
		Out:        &out,
	})

	assert.Equal(t, "Event: 1\n", snk.buf.String())
}

// TestRunJob_WaitLocalizesToTarget: a targeted WAIT defers its delay to
// one worker instead of stalling the job. The check is coarse: the job
// still produces its LIST output and finishes well within a second; which
// worker absorbed the delay is not measured.
func TestRunJob_WaitLocalizesToTarget(t *testing.T) {
	// Whichever worker parses "WAIT 50 1" queues 50ms onto worker 1 (or,
	// if it is worker 1 itself, sleeps directly); the LISTs follow.
	script0 := "WAIT 50 1\nLIST\n"
	script1 := "LIST\n"

	store := newStore(t)
	require.NoError(t, store.Create(1, 1, 1))

	snk := &blockSink{}

	var diag, out bytes.Buffer

	// Both scripts run as one two-worker job through RunJob; only the
	// externally observable result is checked: the LIST output appears
	// (no worker was starved) within a time budget of one second.
	combined := strings.Join([]string{script0, script1}, "")

	start := time.Now()

	RunJob(strings.NewReader(combined), store, snk, Options{
		MaxThreads: 2,
		Diag:       &diag,
		Out:        &out,
	})

	elapsed := time.Since(start)

	assert.Contains(t, snk.buf.String(), "Event: 1\n")
	assert.Less(t, elapsed, time.Second)
}

func TestRunJob_Help(t *testing.T) {
	store := newStore(t)
	snk := &blockSink{}

	var diag, out bytes.Buffer

	RunJob(strings.NewReader("HELP\n"), store, snk, Options{
		MaxThreads: 1,
		Diag:       &diag,
		Out:        &out,
	})

	assert.Contains(t, out.String(), "Available commands")
}
