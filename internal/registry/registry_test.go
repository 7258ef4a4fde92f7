package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scuffedwrldwide/ems/internal/seat"
)

func mustEvent(t *testing.T, id uint32) *seat.Event {
	t.Helper()

	ev, err := seat.New(id, 1, 1, 0)
	require.NoError(t, err)

	return ev
}

func TestInsert_DuplicateRejected(t *testing.T) {
	r := New()

	require.NoError(t, r.Insert(mustEvent(t, 1)))
	require.ErrorIs(t, r.Insert(mustEvent(t, 1)), ErrDuplicateID)
}

func TestFind_MissingReturnsFalse(t *testing.T) {
	r := New()

	_, ok := r.Find(42)
	assert.False(t, ok)
}

func TestEach_InsertionOrder(t *testing.T) {
	r := New()

	require.NoError(t, r.Insert(mustEvent(t, 3)))
	require.NoError(t, r.Insert(mustEvent(t, 1)))
	require.NoError(t, r.Insert(mustEvent(t, 2)))

	var ids []uint32

	r.Each(func(ev *seat.Event) { ids = append(ids, ev.ID()) })

	assert.Equal(t, []uint32{3, 1, 2}, ids)
}

// TestInsert_ConcurrentDuplicate: two concurrent Creates with the
// same id, exactly one succeeds.
func TestInsert_ConcurrentDuplicate(t *testing.T) {
	r := New()

	const n = 16

	var wg sync.WaitGroup

	errs := make([]error, n)

	for i := range n {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			errs[i] = r.Insert(mustEvent(t, 7))
		}(i)
	}

	wg.Wait()

	succeeded := 0

	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, r.Len())
}
