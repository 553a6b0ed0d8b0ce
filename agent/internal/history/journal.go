package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teamalert/teamalert/agent/internal/alert"
	"github.com/teamalert/teamalert/agent/internal/light"
)

// DefaultLimit is used by Recent and ForAlert when n is not positive.
const DefaultLimit = 20

// Journal is the transitions table of one SQLite database.
// It is safe for concurrent use.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the journal at path and applies pending
// migrations.
func Open(path string) (*Journal, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		path,
	)
	j, err := openDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", path, err)
	}
	j.path = path
	slog.Info("history: opened", "path", path)
	return j, nil
}

func openDSN(dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	// One writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Path returns the file the journal was opened from, or "" when it was
// opened from a bare DSN.
func (j *Journal) Path() string { return j.path }

// Close closes the database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}

// Record appends ev. Recording the same event ID twice is a no-op.
func (j *Journal) Record(ctx context.Context, ev alert.Event) error {
	const query = `INSERT OR IGNORE INTO transitions
		(id, alert, lights, ok, state, color, prev_color, flashed, unclaimed, at_unix_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	lights, err := encodeList(ev.Lights)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", ev.Alert, err)
	}
	unclaimed, err := encodeList(ev.Unclaimed)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", ev.Alert, err)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err = j.db.ExecContext(ctx, query,
		ev.ID, ev.Alert, lights, ev.OK, string(ev.State), string(ev.Color),
		string(ev.PrevColor), ev.Flashed, unclaimed, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", ev.Alert, err)
	}
	return nil
}

// Recent returns the last n transitions of all alerts, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]alert.Event, error) {
	const query = `SELECT id, alert, lights, ok, state, color, prev_color, flashed, unclaimed, at_unix_ns
		FROM transitions ORDER BY at_unix_ns DESC, rowid DESC LIMIT ?`
	return j.query(ctx, query, limit(n))
}

// ForAlert returns the last n transitions of the named alert, newest first.
func (j *Journal) ForAlert(ctx context.Context, name string, n int) ([]alert.Event, error) {
	const query = `SELECT id, alert, lights, ok, state, color, prev_color, flashed, unclaimed, at_unix_ns
		FROM transitions WHERE alert = ? ORDER BY at_unix_ns DESC, rowid DESC LIMIT ?`
	return j.query(ctx, query, name, limit(n))
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]alert.Event, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []alert.Event
	for rows.Next() {
		var (
			ev                      alert.Event
			lights, unclaimed       string
			state, color, prevColor string
			atNanos                 int64
		)
		if err := rows.Scan(&ev.ID, &ev.Alert, &lights, &ev.OK, &state, &color,
			&prevColor, &ev.Flashed, &unclaimed, &atNanos); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		ev.State = alert.State(state)
		ev.Color = light.Color(color)
		ev.PrevColor = light.Color(prevColor)
		ev.At = time.Unix(0, atNanos).UTC()
		if ev.Lights, err = decodeList(lights); err != nil {
			return nil, fmt.Errorf("history: %s lights: %w", ev.ID, err)
		}
		if ev.Unclaimed, err = decodeList(unclaimed); err != nil {
			return nil, fmt.Errorf("history: %s unclaimed: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}

func limit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeList returns nil for an empty list so events read back compare equal
// to events built by the alert package.
func decodeList(s string) ([]string, error) {
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}
