package tracker

import (
	"sync"
)

// Table is the set of tracks produced by one detection cycle.  Tracks are
// indexed by identity and iterated in the order the detector reported them.
//
// A Table is handed between the detection scheduler and the tracking loop.
// Holders call Acquire before touching tracks and Release afterwards.  Both
// only count holders, so the scheduler and the tracking loop never wait on
// each other.  Once retired, Acquire fails and the track templates are
// released when the last holder lets go
type Table struct {
	// cycle is the detection cycle number the table was built from
	cycle  int64
	order  []int64
	tracks map[int64]*Track

	mu      sync.Mutex
	holders int
	retired bool
	freed   bool
}

// NewTable returns an empty table for the given detection cycle
func NewTable(cycle int64) *Table {
	return &Table{
		cycle:  cycle,
		tracks: make(map[int64]*Track),
	}
}

// Cycle returns the detection cycle number the table was built from
func (t *Table) Cycle() int64 {
	return t.cycle
}

// Len returns the number of tracks
func (t *Table) Len() int {
	return len(t.order)
}

// Get returns the track with the given identity
func (t *Table) Get(id int64) (*Track, bool) {
	trk, ok := t.tracks[id]
	return trk, ok
}

// Tracks returns the tracks in detection order
func (t *Table) Tracks() []*Track {

	out := make([]*Track, 0, len(t.order))

	for _, id := range t.order {
		out = append(out, t.tracks[id])
	}

	return out
}

// insert adds a track.  An existing track with the same identity is
// replaced and released
func (t *Table) insert(trk *Track) {

	if old, exists := t.tracks[trk.ID]; exists {
		old.Close()
	} else {
		t.order = append(t.order, trk.ID)
	}

	t.tracks[trk.ID] = trk
}

// Acquire registers a holder of the table.  It returns false if the table
// has been retired
func (t *Table) Acquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.retired {
		return false
	}

	t.holders++
	return true
}

// Release drops a holder registered with Acquire, freeing the tracks if the
// table was retired in the meantime
func (t *Table) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.holders--
	t.free()
}

// Retire marks the table unusable.  Track templates are released now if
// nobody holds the table, otherwise on the final Release
func (t *Table) Retire() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.retired = true
	t.free()
}

// free closes all track templates once the table is retired and unheld.
// The caller must hold mu
func (t *Table) free() {

	if !t.retired || t.holders > 0 || t.freed {
		return
	}

	for _, trk := range t.tracks {
		trk.Close()
	}

	t.freed = true
}

// Retired reports if the table has been retired
func (t *Table) Retired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.retired
}
