package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	logx "remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the reminder persistence API used by the scheduler and the
// conversation engine.
type Store interface {
	Insert(ctx context.Context, d Draft) (Reminder, error)
	MarkSent(ctx context.Context, id string) error
	MarkCanceled(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error

	QueryDue(ctx context.Context, now time.Time) ([]Reminder, error)
	ActiveFor(ctx context.Context, recipient string) ([]Reminder, error)
	AllActiveFuture(ctx context.Context, now time.Time) ([]Reminder, error)

	PruneTerminal(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (creating if needed) the reminder database and runs migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Insert(ctx context.Context, d Draft) (Reminder, error) {
	if err := d.validate(); err != nil {
		return Reminder{}, err
	}
	if d.Kind == "" {
		d.Kind = KindSingle
	}
	r := Reminder{
		ID:        uuid.NewString(),
		Recipient: d.Recipient,
		Message:   d.Message,
		FireAt:    d.FireAt,
		Kind:      d.Kind,
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(id, recipient, message, fire_at, kind, status, created_at)
		 VALUES(?,?,?,?,?,?,?)`,
		r.ID, r.Recipient, r.Message, r.FireAt.UnixMilli(), string(r.Kind), string(r.Status), r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Reminder{}, fmt.Errorf("store: insert: %w", err)
	}
	return r, nil
}

// markFrom transitions a reminder from active to the target status.
// Already-terminal rows (including rows already in the target status) and
// unknown ids are a no-op, which makes the Mark* calls idempotent.
func (s *sqliteStore) markFrom(ctx context.Context, id string, to Status) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(StatusActive),
	)
	if err != nil {
		return fmt.Errorf("store: mark %s: %w", to, err)
	}
	return nil
}

func (s *sqliteStore) MarkSent(ctx context.Context, id string) error {
	return s.markFrom(ctx, id, StatusSent)
}

func (s *sqliteStore) MarkCanceled(ctx context.Context, id string) error {
	return s.markFrom(ctx, id, StatusCanceled)
}

func (s *sqliteStore) MarkFailed(ctx context.Context, id string) error {
	return s.markFrom(ctx, id, StatusFailed)
}

const selectCols = `id, recipient, message, fire_at, kind, status, created_at`

func (s *sqliteStore) QueryDue(ctx context.Context, now time.Time) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectCols+` FROM reminders
		 WHERE status = ? AND fire_at <= ?
		 ORDER BY fire_at ASC`,
		string(StatusActive), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: query due: %w", err)
	}
	return scanReminders(rows)
}

func (s *sqliteStore) ActiveFor(ctx context.Context, recipient string) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectCols+` FROM reminders
		 WHERE recipient = ? AND status = ?
		 ORDER BY fire_at ASC`,
		recipient, string(StatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("store: query active: %w", err)
	}
	return scanReminders(rows)
}

func (s *sqliteStore) AllActiveFuture(ctx context.Context, now time.Time) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectCols+` FROM reminders
		 WHERE status = ? AND fire_at > ?
		 ORDER BY fire_at ASC`,
		string(StatusActive), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: query future: %w", err)
	}
	return scanReminders(rows)
}

func (s *sqliteStore) PruneTerminal(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE status != ? AND fire_at < ?`,
		string(StatusActive), olderThan.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Debug("pruned terminal reminders", logx.Int64("rows", n))
	}
	return n, nil
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	defer rows.Close()
	var out []Reminder
	for rows.Next() {
		var (
			r                 Reminder
			fireMS, createdMS int64
			kind, status      string
		)
		if err := rows.Scan(&r.ID, &r.Recipient, &r.Message, &fireMS, &kind, &status, &createdMS); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		r.FireAt = time.UnixMilli(fireMS)
		r.CreatedAt = time.UnixMilli(createdMS)
		r.Kind = Kind(kind)
		r.Status = Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	return out, nil
}
