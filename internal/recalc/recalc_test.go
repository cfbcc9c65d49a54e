package recalc

import (
	"context"
	"errors"
	"testing"
	"time"

	"timesheet/internal/auth"
	"timesheet/internal/core"
	"timesheet/internal/store"
	"timesheet/internal/store/memory"
)

func newFixture(t *testing.T) (*memory.Store, *Service) {
	t.Helper()
	st := memory.New()
	if err := st.PutUser(context.Background(), core.User{UID: "admin", Role: core.RoleAdmin, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if err := st.PutUser(context.Background(), core.User{UID: "member", Role: core.RoleMember, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return st, NewService(st, st, auth.NewDirectory(st))
}

func seedEntry(t *testing.T, st *memory.Store, id, userID, date string, hours core.Hours) {
	t.Helper()
	e := core.Entry{ID: id, UserID: userID, Date: date, Hours: hours}
	ym := core.YearMonthOf(date)
	if ym == "" {
		t.Fatalf("bad seed date %q", date)
	}
	if year, month, err := core.ParseYearMonth(ym); err == nil {
		e.Year, e.Month = year, month
	}
	if err := st.PutEntry(context.Background(), e); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func admin() *auth.Principal  { return &auth.Principal{UID: "admin"} }
func member() *auth.Principal { return &auth.Principal{UID: "member"} }

func errCode(t *testing.T, err error) Code {
	t.Helper()
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error %v is not a coded rejection", err)
	}
	return rerr.Code
}

func TestRecalculateAuthorizationBoundary(t *testing.T) {
	ctx := context.Background()
	st, svc := newFixture(t)
	seedEntry(t, st, "e1", "u1", "2024-01-15", 500)

	_, err := svc.Recalculate(ctx, nil, Request{YearMonth: "2024-01"})
	if errCode(t, err) != CodeUnauthenticated {
		t.Errorf("nil caller code = %v, want unauthenticated", errCode(t, err))
	}

	_, err = svc.Recalculate(ctx, member(), Request{YearMonth: "2024-01"})
	if errCode(t, err) != CodePermissionDenied {
		t.Errorf("member code = %v, want permission-denied", errCode(t, err))
	}

	// Rejections must perform zero writes.
	records, err := st.ListSummaries(ctx, "2024-01")
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("rejected recalculation wrote summaries: %+v", records)
	}
}

func TestRecalculateInvalidYearMonth(t *testing.T) {
	ctx := context.Background()
	_, svc := newFixture(t)

	for _, bad := range []string{"", "2024-1", "2024/01", "january", "2024-13"} {
		_, err := svc.Recalculate(ctx, admin(), Request{YearMonth: bad})
		if errCode(t, err) != CodeInvalidArgument {
			t.Errorf("yearMonth %q code = %v, want invalid-argument", bad, errCode(t, err))
		}
	}
}

func TestRecalculateSingleUserHealsDrift(t *testing.T) {
	ctx := context.Background()
	st, svc := newFixture(t)
	seedEntry(t, st, "e1", "u1", "2024-01-05", 500)
	seedEntry(t, st, "e2", "u1", "2024-01-20", 250)
	seedEntry(t, st, "e3", "u2", "2024-01-10", 800) // other user, untouched
	seedEntry(t, st, "e4", "u1", "2024-02-01", 999) // other month, untouched

	// Simulate drift from a lost delta.
	st.SetSummary(core.SummaryKey{YearMonth: "2024-01", UserID: "u1"}, 9999)

	res, err := svc.Recalculate(ctx, admin(), Request{YearMonth: "2024-01", UserID: "u1"})
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if !res.Success {
		t.Errorf("result = %+v, want success", res)
	}

	sum, err := st.ReadSummary(ctx, core.SummaryKey{YearMonth: "2024-01", UserID: "u1"})
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if sum.TotalHours != 750 {
		t.Errorf("u1 total = %s, want 7.50", sum.TotalHours)
	}

	// u2 was not requested and must be untouched.
	sum, _ = st.ReadSummary(ctx, core.SummaryKey{YearMonth: "2024-01", UserID: "u2"})
	if sum.TotalHours != 0 {
		t.Errorf("u2 total = %s, want 0.00 (never aggregated)", sum.TotalHours)
	}
}

func TestRecalculateAllUsers(t *testing.T) {
	ctx := context.Background()
	st, svc := newFixture(t)
	seedEntry(t, st, "e1", "u1", "2024-01-05", 500)
	seedEntry(t, st, "e2", "u1", "2024-01-20", 250)
	seedEntry(t, st, "e3", "u2", "2024-01-10", 800)
	seedEntry(t, st, "e4", "u3", "2024-02-01", 300) // other month

	res, err := svc.Recalculate(ctx, admin(), Request{YearMonth: "2024-01"})
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if res.Message != "Recalculated hours for 2 users." {
		t.Errorf("message = %q", res.Message)
	}

	records, err := st.ListSummaries(ctx, "2024-01")
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	want := map[string]core.Hours{"u1": 750, "u2": 800}
	if len(records) != len(want) {
		t.Fatalf("summaries = %+v, want 2 users", records)
	}
	for _, rec := range records {
		if rec.TotalHours != want[rec.Key.UserID] {
			t.Errorf("%s total = %s, want %s", rec.Key.UserID, rec.TotalHours, want[rec.Key.UserID])
		}
	}
}

func TestRecalculateEmptyMonth(t *testing.T) {
	ctx := context.Background()
	st, svc := newFixture(t)

	res, err := svc.Recalculate(ctx, admin(), Request{YearMonth: "2031-07"})
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if !res.Success || res.Message != "No entries found for that month." {
		t.Errorf("result = %+v", res)
	}

	records, _ := st.ListSummaries(ctx, "2031-07")
	if len(records) != 0 {
		t.Errorf("empty month wrote summaries: %+v", records)
	}
}

func TestRecalculateIdempotent(t *testing.T) {
	ctx := context.Background()
	st, svc := newFixture(t)
	seedEntry(t, st, "e1", "u1", "2024-01-05", 500)
	seedEntry(t, st, "e2", "u2", "2024-01-06", 300)

	if _, err := svc.Recalculate(ctx, admin(), Request{YearMonth: "2024-01"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := st.ListSummaries(ctx, "2024-01")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if _, err := svc.Recalculate(ctx, admin(), Request{YearMonth: "2024-01"}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, err := st.ListSummaries(ctx, "2024-01")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("runs disagree: %+v vs %+v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("summary %d changed between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

// brokenEntries fails every scan, standing in for a store outage.
type brokenEntries struct {
	store.EntryStore
}

func (brokenEntries) QueryEntries(context.Context, store.EntryFilter) ([]core.Entry, error) {
	return nil, errors.New("store unavailable")
}

func TestRecalculateStoreFailure(t *testing.T) {
	ctx := context.Background()
	st, _ := newFixture(t)
	svc := NewService(brokenEntries{}, st, auth.NewDirectory(st))

	_, err := svc.Recalculate(ctx, admin(), Request{YearMonth: "2024-01"})
	if errCode(t, err) != CodeInternal {
		t.Errorf("code = %v, want internal", errCode(t, err))
	}
}
