package coordinator

import (
	"context"
	"slices"
	"sync"
)

type running struct {
	coord  *Coordinator
	cancel context.CancelFunc
	done   chan struct{}
}

// Map holds the running coordinator of every configured entry.
type Map struct {
	mu      sync.Mutex
	entries map[string]*running
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{
		entries: make(map[string]*running),
	}
}

// Start runs coord in the background until Stop is called or ctx is done.
// A coordinator already running for the same entry is stopped first.
func (m *Map) Start(ctx context.Context, coord *Coordinator) {
	m.Stop(coord.EntryID())

	ctx, cancel := context.WithCancel(ctx)
	r := &running{
		coord:  coord,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		coord.Run(ctx)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[coord.EntryID()] = r
}

// Get returns the coordinator for entryID.
func (m *Map) Get(entryID string) (*Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entries[entryID]
	if !ok {
		return nil, false
	}
	return r.coord, true
}

// IDs returns the IDs of every running entry, sorted.
func (m *Map) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Stop stops the coordinator for entryID and waits for it to exit. It
// reports whether one was running.
func (m *Map) Stop(entryID string) bool {
	m.mu.Lock()
	r, ok := m.entries[entryID]
	delete(m.entries, entryID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	r.cancel()
	<-r.done
	return true
}

// StopAll stops every coordinator.
func (m *Map) StopAll() {
	for _, id := range m.IDs() {
		m.Stop(id)
	}
}
