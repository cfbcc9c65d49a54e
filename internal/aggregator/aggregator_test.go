package aggregator

import (
	"context"
	"errors"
	"testing"

	"timesheet/internal/core"
	"timesheet/internal/store"
	"timesheet/internal/store/memory"
)

func entry(id, userID, date string, hours core.Hours) *core.Entry {
	return &core.Entry{ID: id, UserID: userID, Date: date, Hours: hours}
}

func key(yearMonth, userID string) core.SummaryKey {
	return core.SummaryKey{YearMonth: yearMonth, UserID: userID}
}

func TestComputeDeltas(t *testing.T) {
	tests := []struct {
		name   string
		before *core.Entry
		after  *core.Entry
		want   []Delta
	}{
		{
			name:  "creation",
			after: entry("e1", "u1", "2024-01-15", 500),
			want:  []Delta{{Key: key("2024-01", "u1"), Hours: 500}},
		},
		{
			name:   "deletion",
			before: entry("e1", "u1", "2024-03-10", 400),
			want:   []Delta{{Key: key("2024-03", "u1"), Hours: -400}},
		},
		{
			name:   "same month hours change",
			before: entry("e1", "u1", "2024-01-15", 500),
			after:  entry("e1", "u1", "2024-01-16", 800),
			want:   []Delta{{Key: key("2024-01", "u1"), Hours: 300}},
		},
		{
			name:   "same month no hours change",
			before: entry("e1", "u1", "2024-01-15", 500),
			after:  entry("e1", "u1", "2024-01-20", 500),
			want:   nil,
		},
		{
			name:   "month move",
			before: entry("e1", "u1", "2024-01-15", 500),
			after:  entry("e1", "u1", "2024-02-01", 300),
			want: []Delta{
				{Key: key("2024-01", "u1"), Hours: -500},
				{Key: key("2024-02", "u1"), Hours: 300},
			},
		},
		{
			name:   "month move with zero old hours skips decrement",
			before: entry("e1", "u1", "2024-01-15", 0),
			after:  entry("e1", "u1", "2024-02-01", 300),
			want:   []Delta{{Key: key("2024-02", "u1"), Hours: 300}},
		},
		{
			name:   "negative hours clamp to zero",
			before: entry("e1", "u1", "2024-01-15", -200),
			after:  entry("e1", "u1", "2024-01-15", 300),
			want:   []Delta{{Key: key("2024-01", "u1"), Hours: 300}},
		},
		{
			name:  "creation with unparsable date",
			after: entry("e1", "u1", "not-a-date", 500),
			want:  nil,
		},
		{
			name:   "unparsable date fixed by edit",
			before: entry("e1", "u1", "not-a-date", 500),
			after:  entry("e1", "u1", "2024-01-15", 500),
			want:   []Delta{{Key: key("2024-01", "u1"), Hours: 500}},
		},
		{
			name:  "missing user id",
			after: entry("e1", "", "2024-01-15", 500),
			want:  nil,
		},
		{
			name:   "user id resolved from before on deletion",
			before: entry("e1", "u2", "2024-05-01", 600),
			after:  nil,
			want:   []Delta{{Key: key("2024-05", "u2"), Hours: -600}},
		},
		{
			name: "both snapshots nil",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDeltas(tt.before, tt.after)
			if len(got) != len(tt.want) {
				t.Fatalf("ComputeDeltas() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("delta[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func readTotal(t *testing.T, st *memory.Store, k core.SummaryKey) core.Hours {
	t.Helper()
	sum, err := st.ReadSummary(context.Background(), k)
	if err != nil {
		t.Fatalf("read summary %v: %v", k, err)
	}
	return sum.TotalHours
}

// Replays a scripted create/update/delete sequence for one entry and
// checks the summary matches the live entry set after every step.
func TestProcessorReplaySequence(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	p := NewProcessor(st)

	v1 := entry("e1", "u1", "2024-01-15", 500)
	if err := p.Apply(ctx, nil, v1); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := readTotal(t, st, key("2024-01", "u1")); got != 500 {
		t.Fatalf("after create: total = %s, want 5.00", got)
	}

	v2 := entry("e1", "u1", "2024-01-15", 800)
	if err := p.Apply(ctx, v1, v2); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := readTotal(t, st, key("2024-01", "u1")); got != 800 {
		t.Fatalf("after update: total = %s, want 8.00", got)
	}

	if err := p.Apply(ctx, v2, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := readTotal(t, st, key("2024-01", "u1")); got != 0 {
		t.Fatalf("after delete: total = %s, want 0.00", got)
	}
}

func TestProcessorMonthMove(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	p := NewProcessor(st)

	before := entry("e1", "u1", "2024-01-15", 500)
	if err := p.Apply(ctx, nil, before); err != nil {
		t.Fatalf("create: %v", err)
	}

	after := entry("e1", "u1", "2024-02-01", 300)
	if err := p.Apply(ctx, before, after); err != nil {
		t.Fatalf("move: %v", err)
	}

	if got := readTotal(t, st, key("2024-01", "u1")); got != 0 {
		t.Errorf("january total = %s, want 0.00", got)
	}
	if got := readTotal(t, st, key("2024-02", "u1")); got != 300 {
		t.Errorf("february total = %s, want 3.00", got)
	}
}

func TestProcessorDeletion(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	st.SetSummary(key("2024-03", "u1"), 1000)
	p := NewProcessor(st)

	gone := entry("e1", "u1", "2024-03-10", 400)
	if err := p.Apply(ctx, gone, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := readTotal(t, st, key("2024-03", "u1")); got != 600 {
		t.Errorf("total after deletion = %s, want 6.00", got)
	}
}

// Two independent creations for the same user and month must commute.
func TestProcessorCommutativity(t *testing.T) {
	ctx := context.Background()
	a := entry("e1", "u1", "2024-01-10", 300)
	b := entry("e2", "u1", "2024-01-20", 450)

	orders := [][2]*core.Entry{{a, b}, {b, a}}
	for i, order := range orders {
		st := memory.New()
		p := NewProcessor(st)
		for _, e := range order {
			if err := p.Apply(ctx, nil, e); err != nil {
				t.Fatalf("order %d: %v", i, err)
			}
		}
		if got := readTotal(t, st, key("2024-01", "u1")); got != 750 {
			t.Errorf("order %d: total = %s, want 7.50", i, got)
		}
	}
}

func TestProcessorMalformedDateTolerated(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	p := NewProcessor(st)

	if err := p.Apply(ctx, nil, entry("e1", "u1", "31/01/2024", 500)); err != nil {
		t.Fatalf("apply with malformed date: %v", err)
	}
	records, err := st.ListSummaries(ctx, "2024-01")
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("malformed date produced summaries: %+v", records)
	}
}

// failingSummaries aborts every transaction, standing in for a store
// conflict.
type failingSummaries struct {
	*memory.Store
}

var errConflict = errors.New("transaction conflict")

func (f *failingSummaries) UpdateSummaries(context.Context, []core.SummaryKey, func(store.SummaryTx) error) error {
	return errConflict
}

func TestProcessorTransactionFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	p := NewProcessor(&failingSummaries{Store: mem})

	err := p.Apply(ctx, nil, entry("e1", "u1", "2024-01-15", 500))
	if !errors.Is(err, errConflict) {
		t.Fatalf("Apply error = %v, want wrapped conflict", err)
	}
	if got := readTotal(t, mem, key("2024-01", "u1")); got != 0 {
		t.Errorf("failed transaction applied a partial delta: %s", got)
	}
}
