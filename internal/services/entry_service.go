package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"timesheet/internal/amqp"
	"timesheet/internal/auth"
	"timesheet/internal/core"
	"timesheet/internal/store"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidEntry = errors.New("invalid entry")
)

// ChangePublisher emits entry change events for the aggregation worker.
type ChangePublisher interface {
	PublishEntryChange(ctx context.Context, msg *amqp.EntryChangeMessage) error
}

// EntryInput is the user-editable part of an entry. Hours, year and
// month are always derived server-side.
type EntryInput struct {
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Notes       string `json:"notes"`
	IsOvernight bool   `json:"isOvernight"`
}

// EntryService orchestrates entry mutations: store write first, then a
// change event for the aggregator. A failed publish never fails the
// request; the entry is durable and recalculation repairs the summary.
type EntryService struct {
	store     store.Store
	publisher ChangePublisher
	directory *auth.Directory
}

func NewEntryService(st store.Store, publisher ChangePublisher, directory *auth.Directory) *EntryService {
	return &EntryService{store: st, publisher: publisher, directory: directory}
}

// CreateEntry logs a new work session owned by the caller.
func (s *EntryService) CreateEntry(ctx context.Context, caller auth.Principal, in EntryInput) (core.Entry, error) {
	now := time.Now().UTC()
	e := core.Entry{
		ID:          uuid.NewString(),
		UserID:      caller.UID,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Notes:       in.Notes,
		IsOvernight: in.IsOvernight,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Derive(); err != nil {
		return core.Entry{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	if err := e.Validate(); err != nil {
		return core.Entry{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}

	if err := s.store.PutEntry(ctx, e); err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	s.publishChange(ctx, e.ID, nil, &e)

	slog.InfoContext(ctx, "Entry created",
		"entry_id", e.ID,
		"user_id", e.UserID,
		"date", e.Date,
		"hours", e.Hours.String())
	return e, nil
}

// UpdateEntry edits an entry. Owners edit their own entries;
// administrators edit anyone's.
func (s *EntryService) UpdateEntry(ctx context.Context, caller auth.Principal, id string, in EntryInput) (core.Entry, error) {
	before, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry: %w", err)
	}

	if before.UserID != caller.UID {
		isAdmin, err := s.directory.IsAdmin(ctx, caller.UID)
		if err != nil {
			return core.Entry{}, fmt.Errorf("role lookup: %w", err)
		}
		if !isAdmin {
			return core.Entry{}, ErrForbidden
		}
	}

	after := before
	after.Date = in.Date
	after.StartTime = in.StartTime
	after.EndTime = in.EndTime
	after.Notes = in.Notes
	after.IsOvernight = in.IsOvernight
	after.UpdatedAt = time.Now().UTC()
	if err := after.Derive(); err != nil {
		return core.Entry{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	if err := after.Validate(); err != nil {
		return core.Entry{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}

	if err := s.store.PutEntry(ctx, after); err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	s.publishChange(ctx, id, &before, &after)

	slog.InfoContext(ctx, "Entry updated",
		"entry_id", id,
		"user_id", after.UserID,
		"date", after.Date,
		"hours", after.Hours.String())
	return after, nil
}

// DeleteEntry removes an entry. Administrators only.
func (s *EntryService) DeleteEntry(ctx context.Context, caller auth.Principal, id string) error {
	isAdmin, err := s.directory.IsAdmin(ctx, caller.UID)
	if err != nil {
		return fmt.Errorf("role lookup: %w", err)
	}
	if !isAdmin {
		return ErrForbidden
	}

	before, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("get entry: %w", err)
	}
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	s.publishChange(ctx, id, &before, nil)

	slog.InfoContext(ctx, "Entry deleted",
		"entry_id", id,
		"user_id", before.UserID,
		"date", before.Date)
	return nil
}

// ListEntries returns entries for a filter. Non-admin callers only see
// their own.
func (s *EntryService) ListEntries(ctx context.Context, caller auth.Principal, f store.EntryFilter) ([]core.Entry, error) {
	isAdmin, err := s.directory.IsAdmin(ctx, caller.UID)
	if err != nil {
		return nil, fmt.Errorf("role lookup: %w", err)
	}
	if !isAdmin {
		f.UserID = caller.UID
	}
	return s.store.QueryEntries(ctx, f)
}

// GetSummary reads one summary document; missing documents read as zero.
func (s *EntryService) GetSummary(ctx context.Context, key core.SummaryKey) (core.Summary, error) {
	return s.store.ReadSummary(ctx, key)
}

// MonthSummaries returns every user's total for one month.
func (s *EntryService) MonthSummaries(ctx context.Context, yearMonth string) ([]store.SummaryRecord, error) {
	return s.store.ListSummaries(ctx, yearMonth)
}

func (s *EntryService) publishChange(ctx context.Context, entryID string, before, after *core.Entry) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Change publisher not available, skipping change event", "entry_id", entryID)
		return
	}
	msg := amqp.NewEntryChangeMessage(entryID, before, after)
	if err := s.publisher.PublishEntryChange(ctx, msg); err != nil {
		// The entry write already succeeded; the summary will lag until
		// the next recalculation.
		slog.ErrorContext(ctx, "Failed to publish entry change",
			"entry_id", entryID, "error", err)
	}
}
