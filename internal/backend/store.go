package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"schedwidget/internal/model"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// ErrNotFound is returned when deleting an unknown id.
var ErrNotFound = errors.New("schedule item not found")

// Store persists schedule items.
type Store interface {
	List(ctx context.Context) ([]model.Item, error)
	Add(ctx context.Context, f model.Fields) (model.Item, error)
	Delete(ctx context.Context, id string) error
	// Between returns items dated in [from, to] (YYYY-MM-DD, inclusive).
	Between(ctx context.Context, from, to string) ([]model.Item, error)
	Close() error
}

type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and migrates) the database at path. ":memory:" is
// accepted for tests.
func OpenSQLite(path string) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, now: time.Now}
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

func (s *sqliteStore) List(ctx context.Context) ([]model.Item, error) {
	return s.query(ctx, `SELECT id, name, date, time, description FROM schedule ORDER BY date, time, created_at`)
}

func (s *sqliteStore) Between(ctx context.Context, from, to string) ([]model.Item, error) {
	return s.query(ctx,
		`SELECT id, name, date, time, description FROM schedule
		 WHERE date >= ? AND date <= ? ORDER BY date, time, created_at`, from, to)
}

func (s *sqliteStore) Add(ctx context.Context, f model.Fields) (model.Item, error) {
	it := model.Item{
		ID:          uuid.NewString(),
		Name:        f.Name,
		Date:        f.Date,
		Time:        f.Time,
		Description: f.Description,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedule(id, name, date, time, description, created_at) VALUES(?,?,?,?,?,?)`,
		it.ID, it.Name, it.Date, it.Time, it.Description, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return model.Item{}, err
	}
	return it, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedule WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) query(ctx context.Context, q string, args ...any) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Item, 0)
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Date, &it.Time, &it.Description); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
