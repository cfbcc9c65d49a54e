// Package sqlite is the durable store backend. Summary transactions run
// as immediate write transactions, so two aggregations touching the same
// document serialize at the database and each one reads the latest
// committed total before writing.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"timesheet/internal/core"
	"timesheet/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// _txlock=immediate makes write transactions take the write lock up
	// front instead of failing with SQLITE_BUSY mid-transaction.
	dsn := "file:" + dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const entryColumns = "id, user_id, date, start_time, end_time, hours_centi, year, month, notes, is_overnight, created_at, updated_at"

func (s *Store) GetEntry(ctx context.Context, id string) (core.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, store.ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (s *Store) PutEntry(ctx context.Context, e core.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			hours_centi = excluded.hours_centi,
			year = excluded.year,
			month = excluded.month,
			notes = excluded.notes,
			is_overnight = excluded.is_overnight,
			updated_at = excluded.updated_at`,
		e.ID, e.UserID, e.Date, e.StartTime, e.EndTime, int64(e.Hours),
		e.Year, e.Month, e.Notes, boolInt(e.IsOvernight),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) QueryEntries(ctx context.Context, f store.EntryFilter) ([]core.Entry, error) {
	query := "SELECT " + entryColumns + " FROM entries WHERE 1=1"
	var args []any
	if f.Year != 0 {
		query += " AND year = ?"
		args = append(args, f.Year)
	}
	if f.Month != 0 {
		query += " AND month = ?"
		args = append(args, f.Month)
	}
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	query += " ORDER BY date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return out, nil
}

func (s *Store) ReadSummary(ctx context.Context, key core.SummaryKey) (core.Summary, error) {
	var centi int64
	err := s.db.QueryRowContext(ctx,
		"SELECT total_hours_centi FROM summaries WHERE year_month = ? AND user_id = ?",
		key.YearMonth, key.UserID).Scan(&centi)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Summary{}, nil
	}
	if err != nil {
		return core.Summary{}, fmt.Errorf("read summary: %w", err)
	}
	return core.Summary{TotalHours: core.Hours(centi)}, nil
}

func (s *Store) ListSummaries(ctx context.Context, yearMonth string) ([]store.SummaryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, total_hours_centi FROM summaries WHERE year_month = ? ORDER BY user_id",
		yearMonth)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []store.SummaryRecord
	for rows.Next() {
		var userID string
		var centi int64
		if err := rows.Scan(&userID, &centi); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, store.SummaryRecord{
			Key:        core.SummaryKey{YearMonth: yearMonth, UserID: userID},
			TotalHours: core.Hours(centi),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return out, nil
}

// sqliteTx stages writes inside a database transaction; reads see the
// transaction's consistent snapshot of committed totals.
type sqliteTx struct {
	ctx    context.Context
	tx     *sql.Tx
	staged map[core.SummaryKey]core.Hours
}

func (t *sqliteTx) Read(key core.SummaryKey) (core.Hours, error) {
	if total, ok := t.staged[key]; ok {
		return total, nil
	}
	var centi int64
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT total_hours_centi FROM summaries WHERE year_month = ? AND user_id = ?",
		key.YearMonth, key.UserID).Scan(&centi)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return core.Hours(centi), nil
}

func (t *sqliteTx) Write(key core.SummaryKey, total core.Hours) {
	t.staged[key] = total
}

func (s *Store) UpdateSummaries(ctx context.Context, _ []core.SummaryKey, fn func(tx store.SummaryTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin summary transaction: %w", err)
	}

	st := &sqliteTx{ctx: ctx, tx: tx, staged: make(map[core.SummaryKey]core.Hours)}
	if err := fn(st); err != nil {
		tx.Rollback()
		return err
	}

	for key, total := range st.staged {
		if err := upsertSummary(ctx, tx, key, total); err != nil {
			tx.Rollback()
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summary transaction: %w", err)
	}
	return nil
}

func (s *Store) BatchWriteSummaries(ctx context.Context, totals map[core.SummaryKey]core.Hours) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	for key, total := range totals {
		if err := upsertSummary(ctx, tx, key, total); err != nil {
			tx.Rollback()
			return fmt.Errorf("batch write summary: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func upsertSummary(ctx context.Context, tx *sql.Tx, key core.SummaryKey, total core.Hours) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO summaries (year_month, user_id, total_hours_centi)
		VALUES (?, ?, ?)
		ON CONFLICT(year_month, user_id) DO UPDATE SET
			total_hours_centi = excluded.total_hours_centi`,
		key.YearMonth, key.UserID, int64(total))
	return err
}

func (s *Store) GetUser(ctx context.Context, uid string) (core.User, error) {
	var u core.User
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT uid, display_name, email, role, created_at FROM users WHERE uid = ?", uid).
		Scan(&u.UID, &u.DisplayName, &u.Email, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func (s *Store) PutUser(ctx context.Context, u core.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (uid, display_name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			role = excluded.role`,
		u.UID, u.DisplayName, u.Email, u.Role, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.Entry, error) {
	var e core.Entry
	var centi, overnight int64
	var createdAt, updatedAt string
	err := row.Scan(&e.ID, &e.UserID, &e.Date, &e.StartTime, &e.EndTime,
		&centi, &e.Year, &e.Month, &e.Notes, &overnight, &createdAt, &updatedAt)
	if err != nil {
		return core.Entry{}, err
	}
	e.Hours = core.Hours(centi)
	e.IsOvernight = overnight != 0
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
