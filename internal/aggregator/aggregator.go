// Package aggregator maintains the running per-user-per-month hour
// totals. It is invoked once per entry mutation with the before and
// after snapshots of the record and applies the net hours delta to one
// or two summary documents inside a single store transaction.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"

	"timesheet/internal/core"
	"timesheet/internal/store"
)

// Delta is the signed change in hours one entry mutation contributes to
// one summary document.
type Delta struct {
	Key   core.SummaryKey
	Hours core.Hours
}

// ComputeDeltas turns a (before, after) snapshot pair into the summary
// deltas it implies. A nil before means creation, a nil after deletion.
// The result is empty when the mutation has no aggregation effect:
// no resolvable user, unparsable dates, or a zero net change.
//
// Hours deltas commute, so applying deltas from concurrent mutations in
// any order yields the same totals as long as each transaction reads the
// latest committed value before writing.
func ComputeDeltas(before, after *core.Entry) []Delta {
	oldYM := ""
	if before != nil {
		oldYM = core.YearMonthOf(before.Date)
	}
	newYM := ""
	if after != nil {
		newYM = core.YearMonthOf(after.Date)
	}

	oldHours := clampHours(before)
	newHours := clampHours(after)

	userID := ""
	if after != nil {
		userID = after.UserID
	}
	if userID == "" && before != nil {
		userID = before.UserID
	}
	if userID == "" {
		return nil
	}

	if oldYM == newYM {
		// Same month covers in-place edits and the both-unparsable
		// no-op case.
		if oldYM == "" {
			return nil
		}
		diff := newHours - oldHours
		if diff == 0 {
			return nil
		}
		return []Delta{{Key: core.SummaryKey{YearMonth: newYM, UserID: userID}, Hours: diff}}
	}

	// Month changed, or exactly one side exists (create/delete). The two
	// sides touch different documents and must land in one transaction.
	var deltas []Delta
	if oldYM != "" && oldHours > 0 {
		deltas = append(deltas, Delta{Key: core.SummaryKey{YearMonth: oldYM, UserID: userID}, Hours: -oldHours})
	}
	if newYM != "" && newHours > 0 {
		deltas = append(deltas, Delta{Key: core.SummaryKey{YearMonth: newYM, UserID: userID}, Hours: newHours})
	}
	return deltas
}

// clampHours treats missing records and negative hours as zero.
func clampHours(e *core.Entry) core.Hours {
	if e == nil || e.Hours < 0 {
		return 0
	}
	return e.Hours
}

// Processor applies computed deltas to the summary store.
type Processor struct {
	summaries store.SummaryStore
}

func NewProcessor(summaries store.SummaryStore) *Processor {
	return &Processor{summaries: summaries}
}

// Apply computes and applies the deltas for one entry mutation. Every
// touched summary is read and rewritten inside the same transaction;
// documents are zero-initialized on first contribution. On store failure
// nothing is applied and the error is returned for the delivery layer to
// handle.
func (p *Processor) Apply(ctx context.Context, before, after *core.Entry) error {
	deltas := ComputeDeltas(before, after)
	if len(deltas) == 0 {
		slog.DebugContext(ctx, "No aggregation effect for entry mutation")
		return nil
	}

	keys := make([]core.SummaryKey, len(deltas))
	for i, d := range deltas {
		keys[i] = d.Key
	}

	err := p.summaries.UpdateSummaries(ctx, keys, func(tx store.SummaryTx) error {
		for _, d := range deltas {
			current, err := tx.Read(d.Key)
			if err != nil {
				return fmt.Errorf("read summary %s/%s: %w", d.Key.YearMonth, d.Key.UserID, err)
			}
			tx.Write(d.Key, current+d.Hours)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply summary deltas: %w", err)
	}

	for _, d := range deltas {
		slog.InfoContext(ctx, "Applied summary delta",
			"year_month", d.Key.YearMonth,
			"user_id", d.Key.UserID,
			"delta_hours", d.Hours.String())
	}
	return nil
}
