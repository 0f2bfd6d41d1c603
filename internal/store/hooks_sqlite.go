//go:build sqlite
// +build sqlite

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

	logx "notifyd/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed hooks_migrations.sql
var hookMigrationsFS embed.FS

type sqliteHooks struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLiteHooks(cfg HookConfig, log logx.Logger) (HookStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteHooks{db: db, log: log}

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

func (s *sqliteHooks) migrate(ctx context.Context) error {
	b, err := hookMigrationsFS.ReadFile("hooks_migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteHooks) Add(ctx context.Context, h Hook) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO hooks(id, project_id, url, event_types, created_at) VALUES(?,?,?,?,?)`,
		h.ID, h.ProjectID, h.URL, strings.Join(h.EventTypes, ","), h.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteHooks) ByProject(ctx context.Context, projectID string) ([]Hook, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, url, event_types, created_at FROM hooks WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Hook
	for rows.Next() {
		var h Hook
		var types, created string
		if err := rows.Scan(&h.ID, &h.ProjectID, &h.URL, &types, &created); err != nil {
			return nil, err
		}
		if types != "" {
			h.EventTypes = strings.Split(types, ",")
		}
		if t, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			h.CreatedAt = t
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *sqliteHooks) DeleteByURL(ctx context.Context, url string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hooks WHERE url = ?`, url)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *sqliteHooks) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
