// Package seat implements a single fixed-shape seat grid: the unit of
// concurrency the rest of EMS builds on.
package seat

import (
	"sync"
	"time"
)

// Free marks a seat with no reservation.
const Free uint32 = 0

// Coord is a single seat coordinate, 0-indexed.
type Coord struct {
	X, Y int
}

// Event is a fixed rows x cols seat grid identified by ID.
//
// Locking architecture:
//
//  1. mu guards the seat buffer. Reserve takes Lock (exclusive, because it
//     mutates an arbitrary number of cells); Seat and Show take RLock.
//  2. The only sleep that happens while mu is held is the artificial
//     per-seat delay inside Reserve/Show.
//
// Event never shrinks or grows after New: rows and cols are immutable.
type Event struct {
	id   uint32
	rows int
	cols int

	mu    sync.RWMutex
	seats []uint32 // row-major, len == rows*cols

	// delay is applied between consecutive seat accesses inside Reserve and
	// Show, not before the first access or after the last. Exported via the
	// constructor so every Event in a process shares the same knob.
	delay time.Duration
}

// New allocates a rows x cols event, all seats Free.
func New(id uint32, rows, cols int, delay time.Duration) (*Event, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrInvalidShape
	}

	total := rows * cols
	if total/rows != cols { // overflow guard for the row*col product
		return nil, ErrInvalidShape
	}

	return &Event{
		id:    id,
		rows:  rows,
		cols:  cols,
		seats: make([]uint32, total),
		delay: delay,
	}, nil
}

// ID returns the event's id.
func (e *Event) ID() uint32 { return e.id }

// Dimensions returns (rows, cols).
func (e *Event) Dimensions() (int, int) { return e.rows, e.cols }

func (e *Event) index(c Coord) (int, bool) {
	if c.X < 0 || c.X >= e.rows || c.Y < 0 || c.Y >= e.cols {
		return 0, false
	}

	return c.X*e.cols + c.Y, true
}

// Seat reads one cell's state (Free or a reservation id).
func (e *Event) Seat(c Coord) (uint32, error) {
	idx, ok := e.index(c)
	if !ok {
		return 0, ErrOutOfBounds
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.seats[idx], nil
}

// sleepBetween applies the artificial state-access delay. Called between
// consecutive seat accesses, not before the first nor after the last - this
// is the observable pacing timing-sensitive tests rely on.
func (e *Event) sleepBetween() {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
}

// tentativeHold marks a cell claimed by an in-flight Reserve whose outcome
// isn't decided yet. Never observable outside Reserve: mu is held
// exclusively for the whole call, so Seat/Show can't see it, and every
// tentatively-held cell is overwritten (with Free or the drawn rid) before
// the lock is released.
const tentativeHold uint32 = ^uint32(0)

// Reserve atomically marks every coordinate in coords with a reservation id
// drawn from ridFn, or marks none of them. Coordinates are processed in
// input order. On the first OutOfBounds or AlreadyReserved failure, every
// cell tentatively held by this call reverts to Free (in reverse order)
// and ridFn is never called - a failed reservation must not consume an id.
// ridFn runs at most once, after every coordinate is confirmed free, so
// drawing the id costs no extra seat access and pays no extra delay beyond
// the validating pass already in progress.
func (e *Event) Reserve(coords []Coord, ridFn func() uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	marked := make([]int, 0, len(coords))

	var failErr error

	for i, c := range coords {
		if i > 0 {
			e.sleepBetween()
		}

		idx, ok := e.index(c)
		if !ok {
			failErr = ErrOutOfBounds
			break
		}

		if e.seats[idx] != Free {
			failErr = ErrAlreadyReserved
			break
		}

		e.seats[idx] = tentativeHold
		marked = append(marked, idx)
	}

	if failErr != nil {
		for i := len(marked) - 1; i >= 0; i-- {
			e.seats[marked[i]] = Free
		}

		return failErr
	}

	rid := ridFn()
	for _, idx := range marked {
		e.seats[idx] = rid
	}

	return nil
}

// Show renders the grid as rows lines of space-separated decimal seat
// values, applying the artificial delay between consecutive reads the same
// way Reserve does. w is called once per row with that row's formatted
// line, newline included.
func (e *Event) Show(w func(line []byte) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	line := make([]byte, 0, e.cols*4)

	first := true

	for r := 0; r < e.rows; r++ {
		line = line[:0]

		for c := 0; c < e.cols; c++ {
			if !first {
				e.sleepBetween()
			}

			first = false

			if c > 0 {
				line = append(line, ' ')
			}

			line = appendUint(line, e.seats[r*e.cols+c])
		}

		line = append(line, '\n')

		if err := w(line); err != nil {
			return err
		}
	}

	return nil
}

func appendUint(dst []byte, v uint32) []byte {
	if v == 0 {
		return append(dst, '0')
	}

	var buf [10]byte

	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}

	return append(dst, buf[i:]...)
}
