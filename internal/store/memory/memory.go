// Package memory is an in-process store used by tests and the memory
// backend. Summary transactions serialize on the store mutex, which
// trivially satisfies the read-latest-committed obligation the
// aggregator relies on.
package memory

import (
	"context"
	"sort"
	"sync"

	"timesheet/internal/core"
	"timesheet/internal/store"
)

type Store struct {
	mu        sync.Mutex
	entries   map[string]core.Entry
	summaries map[core.SummaryKey]core.Hours
	users     map[string]core.User
}

func New() *Store {
	return &Store{
		entries:   make(map[string]core.Entry),
		summaries: make(map[core.SummaryKey]core.Hours),
		users:     make(map[string]core.User),
	}
}

func (s *Store) GetEntry(_ context.Context, id string) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return core.Entry{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) PutEntry(_ context.Context, e core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) QueryEntries(_ context.Context, f store.EntryFilter) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Entry
	for _, e := range s.entries {
		if f.Year != 0 && e.Year != f.Year {
			continue
		}
		if f.Month != 0 && e.Month != f.Month {
			continue
		}
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ReadSummary(_ context.Context, key core.SummaryKey) (core.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Summary{TotalHours: s.summaries[key]}, nil
}

func (s *Store) ListSummaries(_ context.Context, yearMonth string) ([]store.SummaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.SummaryRecord
	for key, total := range s.summaries {
		if key.YearMonth == yearMonth {
			out = append(out, store.SummaryRecord{Key: key, TotalHours: total})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.UserID < out[j].Key.UserID })
	return out, nil
}

// memoryTx stages writes so a failing fn leaves nothing applied.
type memoryTx struct {
	store  *Store
	staged map[core.SummaryKey]core.Hours
}

func (tx *memoryTx) Read(key core.SummaryKey) (core.Hours, error) {
	if total, ok := tx.staged[key]; ok {
		return total, nil
	}
	return tx.store.summaries[key], nil
}

func (tx *memoryTx) Write(key core.SummaryKey, total core.Hours) {
	tx.staged[key] = total
}

func (s *Store) UpdateSummaries(_ context.Context, _ []core.SummaryKey, fn func(tx store.SummaryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memoryTx{store: s, staged: make(map[core.SummaryKey]core.Hours)}
	if err := fn(tx); err != nil {
		return err
	}
	for key, total := range tx.staged {
		s.summaries[key] = total
	}
	return nil
}

func (s *Store) BatchWriteSummaries(_ context.Context, totals map[core.SummaryKey]core.Hours) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, total := range totals {
		s.summaries[key] = total
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, uid string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) PutUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UID] = u
	return nil
}

func (s *Store) Close() error { return nil }

// SetSummary overwrites one summary directly, bypassing transactions.
// Tests use it to simulate drift.
func (s *Store) SetSummary(key core.SummaryKey, total core.Hours) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[key] = total
}
