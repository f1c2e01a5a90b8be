package journal

import (
	"context"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	ids     map[string]bool

	// FailAppend, when set, is returned by every Append. Tests use it to
	// exercise the service rollback path.
	FailAppend error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{ids: make(map[string]bool)}
}

// Append adds a single entry. Append-only.
func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAppend != nil {
		return m.FailAppend
	}
	if m.ids[e.ID] {
		return ErrDuplicateEntry
	}
	if err := CheckNext(m.latestLocked(), e); err != nil {
		return err
	}
	e.Snapshot = append([]byte(nil), e.Snapshot...)
	m.entries = append(m.entries, e)
	m.ids[e.ID] = true
	return nil
}

func (m *Memory) Latest(_ context.Context) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := m.latestLocked()
	if latest == nil {
		return nil, nil
	}
	e := *latest
	e.Snapshot = append([]byte(nil), latest.Snapshot...)
	return &e, nil
}

func (m *Memory) Entries(_ context.Context, f Filter) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Entry
	for _, e := range m.entries {
		if !f.Match(e) {
			continue
		}
		if f.WithSnapshots {
			e.Snapshot = append([]byte(nil), e.Snapshot...)
		} else {
			e.Snapshot = nil
		}
		result = append(result, e)
		if f.Limit > 0 && len(result) == f.Limit {
			break
		}
	}
	return result, nil
}

func (m *Memory) latestLocked() *Entry {
	if len(m.entries) == 0 {
		return nil
	}
	return &m.entries[len(m.entries)-1]
}

// Tamper overwrites the stored event at seq, bypassing the append-only
// contract. It exists so tests can prove that Verify notices.
func (m *Memory) Tamper(seq uint64, mutate func(*Entry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].Seq == seq {
			mutate(&m.entries[i])
			return
		}
	}
}
