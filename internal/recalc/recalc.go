// Package recalc recomputes monthly summaries from scratch by scanning
// the authoritative entry set. It bypasses the incremental path entirely
// and writes full totals, so one run repairs any accumulated drift. The
// scan is O(entries in month) and admin-gated; it is a repair tool, not
// a hot path.
package recalc

import (
	"context"
	"fmt"
	"log/slog"

	"timesheet/internal/auth"
	"timesheet/internal/core"
	"timesheet/internal/store"
)

// Code classifies a rejected recalculation.
type Code string

const (
	CodeUnauthenticated  Code = "unauthenticated"
	CodePermissionDenied Code = "permission-denied"
	CodeInvalidArgument  Code = "invalid-argument"
	CodeInternal         Code = "internal"
)

// Error is a coded rejection. The message is safe to show callers;
// store-level detail stays in server logs.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Request asks for one month to be recomputed, for one user or, with an
// empty UserID, for every user with entries in that month.
type Request struct {
	YearMonth string `json:"yearMonth"`
	UserID    string `json:"userId,omitempty"`
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Service is the on-demand recalculation operation.
type Service struct {
	entries   store.EntryStore
	summaries store.SummaryStore
	directory *auth.Directory
}

func NewService(entries store.EntryStore, summaries store.SummaryStore, directory *auth.Directory) *Service {
	return &Service{entries: entries, summaries: summaries, directory: directory}
}

// Recalculate validates the caller and request, scans the month's
// entries and overwrites the affected summary documents with freshly
// computed totals. Authorization is checked before any store scan.
func (s *Service) Recalculate(ctx context.Context, caller *auth.Principal, req Request) (Result, error) {
	if caller == nil || caller.UID == "" {
		return Result{}, &Error{Code: CodeUnauthenticated, Message: "You must be logged in to perform this action."}
	}

	isAdmin, err := s.directory.IsAdmin(ctx, caller.UID)
	if err != nil {
		slog.ErrorContext(ctx, "Role lookup failed", "user_id", caller.UID, "error", err)
		return Result{}, &Error{Code: CodeInternal, Message: "An error occurred during recalculation.", cause: err}
	}
	if !isAdmin {
		return Result{}, &Error{Code: CodePermissionDenied, Message: "You must be an admin to perform this action."}
	}

	year, month, err := core.ParseYearMonth(req.YearMonth)
	if err != nil {
		return Result{}, &Error{Code: CodeInvalidArgument, Message: `A valid yearMonth string (e.g. "YYYY-MM") is required.`}
	}

	slog.InfoContext(ctx, "Recalculation triggered",
		"admin_uid", caller.UID,
		"year", year,
		"month", month,
		"user_id", orAllUsers(req.UserID))

	entries, err := s.entries.QueryEntries(ctx, store.EntryFilter{
		Year:   year,
		Month:  month,
		UserID: req.UserID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Recalculation entry scan failed", "year_month", req.YearMonth, "error", err)
		return Result{}, &Error{Code: CodeInternal, Message: "An error occurred during recalculation.", cause: err}
	}

	if req.UserID != "" {
		return s.recalculateUser(ctx, req.YearMonth, req.UserID, entries)
	}
	return s.recalculateAll(ctx, req.YearMonth, entries)
}

// recalculateUser overwrites one summary with the exact scanned total.
// A full replace, not a delta, so prior drift is erased even when the
// month has no remaining entries.
func (s *Service) recalculateUser(ctx context.Context, yearMonth, userID string, entries []core.Entry) (Result, error) {
	var total core.Hours
	for _, e := range entries {
		if e.Hours > 0 {
			total += e.Hours
		}
	}

	key := core.SummaryKey{YearMonth: yearMonth, UserID: userID}
	err := s.summaries.BatchWriteSummaries(ctx, map[core.SummaryKey]core.Hours{key: total})
	if err != nil {
		slog.ErrorContext(ctx, "Recalculation summary write failed",
			"year_month", yearMonth, "user_id", userID, "error", err)
		return Result{}, &Error{Code: CodeInternal, Message: "An error occurred during recalculation.", cause: err}
	}

	slog.InfoContext(ctx, "Recalculated user summary",
		"year_month", yearMonth, "user_id", userID, "total_hours", total.String())
	return Result{
		Success: true,
		Message: fmt.Sprintf("Recalculated hours for user %s. Total: %s", userID, total),
	}, nil
}

// recalculateAll accumulates per-user totals over the scan and replaces
// every touched summary in one atomic batch. No read-back is needed:
// each value is computed from the full scan.
func (s *Service) recalculateAll(ctx context.Context, yearMonth string, entries []core.Entry) (Result, error) {
	totals := make(map[core.SummaryKey]core.Hours)
	for _, e := range entries {
		if e.UserID == "" {
			continue
		}
		h := e.Hours
		if h < 0 {
			h = 0
		}
		totals[core.SummaryKey{YearMonth: yearMonth, UserID: e.UserID}] += h
	}

	if len(totals) == 0 {
		slog.InfoContext(ctx, "No entries found for month", "year_month", yearMonth)
		return Result{Success: true, Message: "No entries found for that month."}, nil
	}

	if err := s.summaries.BatchWriteSummaries(ctx, totals); err != nil {
		slog.ErrorContext(ctx, "Recalculation batch write failed",
			"year_month", yearMonth, "users", len(totals), "error", err)
		return Result{}, &Error{Code: CodeInternal, Message: "An error occurred during recalculation.", cause: err}
	}

	slog.InfoContext(ctx, "Recalculated summaries",
		"year_month", yearMonth, "users", len(totals))
	return Result{
		Success: true,
		Message: fmt.Sprintf("Recalculated hours for %d users.", len(totals)),
	}, nil
}

func orAllUsers(userID string) string {
	if userID == "" {
		return "all users"
	}
	return userID
}
