// Package ems implements the Operations API: the public verbs a job
// process calls against its own registry. One Store is constructed per
// child process - there is no cross-process sharing.
package ems

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/scuffedwrldwide/ems/internal/registry"
	"github.com/scuffedwrldwide/ems/internal/seat"
)

// Sink receives the bytes produced by Show/List. WriteBlock is called once
// per Show/List call and must make every write performed by fn appear
// contiguous against any other WriteBlock on the same Sink - a dedicated
// sink lock, used here instead of relying on whichever mutex the caller
// happens to be holding.
type Sink interface {
	WriteBlock(fn func(w io.Writer) error) error
}

// Store is the process-wide EMS singleton: a global init/terminate pair
// turned into an explicit value constructed per child process. New returns
// a not-yet-ready Store; Init must be called once before any other method.
type Store struct {
	delay    time.Duration
	registry *registry.Registry
	nextRID  atomic.Uint32
	ready    atomic.Bool
}

// New returns a Store that is not yet initialized.
func New() *Store {
	return &Store{}
}

// Init constructs a fresh registry and stores the per-seat-access delay.
// Calling Init on a Store that is already ready is an error: init must
// pair with a terminate before it can run again.
func (s *Store) Init(delayMS uint) error {
	if s.ready.Load() {
		return ErrAlreadyInitialized
	}

	s.delay = time.Duration(delayMS) * time.Millisecond
	s.registry = registry.New()
	s.ready.Store(true)

	return nil
}

// Terminate destroys the registry. After Terminate, every other method
// returns ErrNotInitialized until Init is called again.
func (s *Store) Terminate() error {
	if !s.ready.Load() {
		return ErrNotInitialized
	}

	s.ready.Store(false)
	s.registry = nil

	return nil
}

func (s *Store) checkReady() error {
	if !s.ready.Load() {
		return ErrNotInitialized
	}

	return nil
}

// Create constructs a new event and inserts it into the registry.
func (s *Store) Create(id uint32, rows, cols int) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	ev, err := seat.New(id, rows, cols, s.delay)
	if err != nil {
		return err
	}

	return s.registry.Insert(ev)
}

// Reserve looks the event up and delegates to Event.Reserve, handing it a
// closure over the process-wide monotonic reservation counter rather than
// a pre-drawn id: Event.Reserve only calls it once the reservation is
// guaranteed to succeed, so a failed Reserve never burns an id and the
// sequence stays gap-free. The counter wraps deterministically on
// overflow via atomic.Uint32.
func (s *Store) Reserve(id uint32, coords []seat.Coord) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	ev, ok := s.registry.Find(id)
	if !ok {
		return ErrNoSuchEvent
	}

	return ev.Reserve(coords, func() uint32 { return s.nextRID.Add(1) })
}

// Show looks the event up, read-locks it internally, and writes rows
// lines of space-separated seat values to sink as one contiguous payload.
func (s *Store) Show(id uint32, sink Sink) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	ev, ok := s.registry.Find(id)
	if !ok {
		return ErrNoSuchEvent
	}

	err := sink.WriteBlock(func(w io.Writer) error {
		return ev.Show(func(line []byte) error {
			_, writeErr := w.Write(line)
			return writeErr
		})
	})
	if err != nil {
		return ErrWriteFailed
	}

	return nil
}

// List writes "Event: <id>\n" for every event in registry insertion order,
// or "No events\n" if the registry is empty.
func (s *Store) List(sink Sink) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	err := sink.WriteBlock(func(w io.Writer) error {
		if s.registry.Len() == 0 {
			_, err := w.Write([]byte("No events\n"))
			return err
		}

		var writeErr error

		s.registry.Each(func(ev *seat.Event) {
			if writeErr != nil {
				return
			}

			line := append(append([]byte("Event: "), formatUint(ev.ID())...), '\n')
			if _, err := w.Write(line); err != nil {
				writeErr = err
			}
		})

		return writeErr
	})
	if err != nil {
		return ErrWriteFailed
	}

	return nil
}

// Wait sleeps for ms milliseconds. Pure delay; no lock of any kind is held
// while sleeping.
func (s *Store) Wait(ms uint) {
	if ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
}

func formatUint(v uint32) []byte {
	if v == 0 {
		return []byte{'0'}
	}

	var buf [10]byte

	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}

	return buf[i:]
}
