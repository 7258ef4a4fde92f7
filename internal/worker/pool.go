// Package worker implements the per-job worker pool: a fixed team of
// goroutines sharing one command stream, serialized at the parsing boundary
// by a single command mutex, coordinating through a per-worker wait queue
// and a cooperative barrier.
//
// Built around WaitGroup fan-out/join and sync.RWMutex/sync.Mutex rather
// than channels: the critical sections here are short pointer/flag
// mutations, not streaming data.
package worker

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/scuffedwrldwide/ems/internal/ems"
	"github.com/scuffedwrldwide/ems/internal/parser"
	"github.com/scuffedwrldwide/ems/internal/seat"
)

// DefaultMaxReservationSize bounds a single RESERVE command's coordinate
// list; anything longer is rejected as a malformed command (see DESIGN.md
// for the reasoning).
const DefaultMaxReservationSize = 1024

const helpText = `Available commands:
  CREATE <event_id> <num_rows> <num_columns>
  RESERVE <event_id> [(<x1>,<y1>) (<x2>,<y2>) ...]
  SHOW <event_id>
  LIST
  WAIT <delay_ms> [thread_id]
  BARRIER
  HELP
`

// exitReason reports why a single worker goroutine returned.
type exitReason int

const (
	exitEOC exitReason = iota
	exitBarrier
	exitLockFailure
)

// jobContext is the per-job-file shared state: the command mutex, the
// wait queue, and the barrier flag, explicitly passed to every worker
// instead of living as global mutables.
type jobContext struct {
	mu        sync.Mutex // command mutex: guards parser cursor, waitQueue, barrier
	parser    *parser.Parser
	barrier   bool
	waitQueue []time.Duration

	store              *ems.Store
	sink               ems.Sink
	diag               io.Writer
	out                io.Writer
	maxReservationSize int
}

// Options configures RunJob.
type Options struct {
	MaxThreads         int
	MaxReservationSize int // 0 means DefaultMaxReservationSize
	Diag               io.Writer // diagnostic channel (errors); required
	Out                io.Writer // HELP text destination; required
}

// RunJob drives the spawn -> join -> restart-if-barrier loop for one job
// file's command stream until every worker returns via the end-of-commands
// sentinel.
func RunJob(r io.Reader, store *ems.Store, snk ems.Sink, opts Options) {
	maxReservationSize := opts.MaxReservationSize
	if maxReservationSize <= 0 {
		maxReservationSize = DefaultMaxReservationSize
	}

	jc := &jobContext{
		parser:             parser.New(r),
		store:              store,
		sink:               snk,
		diag:               opts.Diag,
		out:                opts.Out,
		maxReservationSize: maxReservationSize,
		waitQueue:          make([]time.Duration, opts.MaxThreads),
	}

	for {
		jc.barrier = false
		for i := range jc.waitQueue {
			jc.waitQueue[i] = 0
		}

		reasons := make([]exitReason, opts.MaxThreads)

		var wg sync.WaitGroup

		for id := range opts.MaxThreads {
			wg.Add(1)

			go func(id int) {
				defer wg.Done()

				reasons[id] = jc.runWorker(id)
			}(id)
		}

		wg.Wait()

		if !anyBarrier(reasons) {
			return
		}
		// At least one worker exited via BARRIER: the controller respawns
		// the whole team, re-entering the stream from the next command.
	}
}

func anyBarrier(reasons []exitReason) bool {
	for _, r := range reasons {
		if r == exitBarrier {
			return true
		}
	}

	return false
}

// runWorker is one worker's command loop.
func (jc *jobContext) runWorker(id int) (reason exitReason) {
	defer func() {
		// A panic here stands in for a concurrency-primitive failure: Go's
		// sync.Mutex cannot itself fail to lock or unlock, so the nearest
		// real analogue is a panic escaping a critical section. The
		// affected worker exits; a barrier it was
		// mid-way through honoring is conservatively cleared so the rest
		// of the team does not wait on a sentinel this worker never set.
		if rec := recover(); rec != nil {
			fmt.Fprintln(jc.diag, "worker", id, "lock failure:", rec)

			jc.mu.Lock()
			jc.barrier = false
			jc.mu.Unlock()

			reason = exitLockFailure
		}
	}()

	for {
		pending := jc.consumeOwnWait(id)
		if pending > 0 {
			time.Sleep(pending)
		}

		jc.mu.Lock()

		if jc.barrier {
			jc.mu.Unlock()
			return exitBarrier
		}

		switch tag := jc.parser.Next(); tag {
		case parser.TagCreate:
			jc.handleCreate()
		case parser.TagReserve:
			jc.handleReserve()
		case parser.TagShow:
			jc.handleShow() // holds mu across the op; see handleShow.
		case parser.TagList:
			jc.mu.Unlock()
			jc.handleList()
		case parser.TagWait:
			jc.handleWait(id)
		case parser.TagBarrier:
			if !jc.barrier {
				jc.barrier = true
			}

			jc.mu.Unlock()

			return exitBarrier
		case parser.TagHelp:
			jc.mu.Unlock()
			fmt.Fprint(jc.out, helpText)
		case parser.TagInvalid:
			jc.mu.Unlock()
			fmt.Fprintln(jc.diag, "Invalid command. See HELP for usage")
		case parser.TagEmpty:
			jc.mu.Unlock()
		case parser.TagEOC:
			jc.mu.Unlock()
			return exitEOC
		}
	}
}

// consumeOwnWait reads and zeros this worker's wait-queue slot under the
// command mutex, then returns immediately so the caller can sleep without
// holding any lock - no lock is ever held while sleeping, the artificial
// per-seat delay being the sole exception.
func (jc *jobContext) consumeOwnWait(id int) time.Duration {
	jc.mu.Lock()
	defer jc.mu.Unlock()

	pending := jc.waitQueue[id]
	jc.waitQueue[id] = 0

	return pending
}

// handleCreate parses under mu, then releases it before invoking the
// Operations API so a slow delayed op never blocks other workers' parsing.
func (jc *jobContext) handleCreate() {
	id, rows, cols, err := jc.parser.ParseCreate()
	jc.mu.Unlock()

	if err != nil {
		fmt.Fprintln(jc.diag, "Invalid command. See HELP for usage")
		return
	}

	if err := jc.store.Create(id, rows, cols); err != nil {
		fmt.Fprintln(jc.diag, "Failed to create event:", err)
	}
}

func (jc *jobContext) handleReserve() {
	id, xs, ys, err := jc.parser.ParseReserve(jc.maxReservationSize)
	jc.mu.Unlock()

	if err != nil {
		fmt.Fprintln(jc.diag, "Invalid command. See HELP for usage")
		return
	}

	coords := make([]seat.Coord, len(xs))
	for i := range xs {
		coords[i] = seat.Coord{X: xs[i], Y: ys[i]}
	}

	if err := jc.store.Reserve(id, coords); err != nil {
		fmt.Fprintln(jc.diag, "Failed to reserve seats:", err)
	}
}

// handleShow is the one documented exception to "release before invoking
// the op": it keeps the command mutex held across the whole Show call so
// the multi-line output block stays serialized against any interleaved
// SHOW/LIST dispatch from another worker.
func (jc *jobContext) handleShow() {
	defer jc.mu.Unlock()

	id, err := jc.parser.ParseShow()
	if err != nil {
		fmt.Fprintln(jc.diag, "Invalid command. See HELP for usage")
		return
	}

	if err := jc.store.Show(id, jc.sink); err != nil {
		fmt.Fprintln(jc.diag, "Failed to show event:", err)
	}
}

// handleList has no arguments to parse, so the mutex is released before
// the call - contiguity of its output block comes from the sink's own
// lock (internal/sink), not the command mutex.
func (jc *jobContext) handleList() {
	if err := jc.store.List(jc.sink); err != nil {
		fmt.Fprintln(jc.diag, "Failed to list events:", err)
	}
}

// handleWait implements the three WAIT shapes: no target (stall self),
// target == self (equivalent to no target), and target != self (defer the
// delay to the target's next command boundary via the wait queue).
func (jc *jobContext) handleWait(self int) {
	delayMS, target, hasTarget, err := jc.parser.ParseWait()
	if err != nil {
		jc.mu.Unlock()
		fmt.Fprintln(jc.diag, "Invalid command. See HELP for usage")

		return
	}

	delay := time.Duration(delayMS) * time.Millisecond

	if hasTarget && target != self {
		if target >= 0 && target < len(jc.waitQueue) {
			jc.waitQueue[target] += delay
		}

		jc.mu.Unlock()

		return
	}

	jc.mu.Unlock()
	jc.store.Wait(delayMS)
}
