// Package store defines the document-store port the aggregation core is
// written against. Implementations must provide transactional
// read-modify-write over a bounded set of summary documents and atomic
// batch writes; the core never takes locks of its own.
package store

import (
	"context"
	"errors"

	"timesheet/internal/core"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// EntryFilter narrows an entry query. Zero Year/Month or empty UserID
// means "any".
type EntryFilter struct {
	Year   int
	Month  int
	UserID string
}

// SummaryRecord is one summary document together with its key.
type SummaryRecord struct {
	Key        core.SummaryKey
	TotalHours core.Hours
}

// EntryStore holds the authoritative time-entry documents.
type EntryStore interface {
	GetEntry(ctx context.Context, id string) (core.Entry, error)
	PutEntry(ctx context.Context, e core.Entry) error
	DeleteEntry(ctx context.Context, id string) error
	QueryEntries(ctx context.Context, f EntryFilter) ([]core.Entry, error)
}

// SummaryTx is the view inside a summary transaction. Read always
// returns the latest committed total (zero for a missing document);
// writes are staged and land atomically on commit.
type SummaryTx interface {
	Read(key core.SummaryKey) (core.Hours, error)
	Write(key core.SummaryKey, total core.Hours)
}

// SummaryStore holds the per-(month, user) aggregate documents. Only the
// aggregator and the recalculation service write to it.
type SummaryStore interface {
	ReadSummary(ctx context.Context, key core.SummaryKey) (core.Summary, error)
	ListSummaries(ctx context.Context, yearMonth string) ([]SummaryRecord, error)

	// UpdateSummaries runs fn inside a transaction scoped to keys. If fn
	// or the commit fails nothing is applied.
	UpdateSummaries(ctx context.Context, keys []core.SummaryKey, fn func(tx SummaryTx) error) error

	// BatchWriteSummaries replaces every listed summary in one atomic
	// batch. Values are full totals, not deltas.
	BatchWriteSummaries(ctx context.Context, totals map[core.SummaryKey]core.Hours) error
}

// UserStore holds the user directory records the role checks read.
type UserStore interface {
	GetUser(ctx context.Context, uid string) (core.User, error)
	PutUser(ctx context.Context, u core.User) error
}

// Store is the full port a backend implements.
type Store interface {
	EntryStore
	SummaryStore
	UserStore
	Close() error
}
