// Package sqliterepo persists the flow cache in a SQLite database file.
package sqliterepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jrsteele09/go-flume-client/cache"
	"github.com/jrsteele09/go-flume-client/internal/errors"
	"github.com/jrsteele09/go-flume-client/usage"
	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the cache directory.
const FileName = "cache.db"

const schema = `
CREATE TABLE IF NOT EXISTS flow_data (
	device_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	data      TEXT NOT NULL,
	PRIMARY KEY (device_id, timestamp)
)`

type flowRow struct {
	DeviceID  string `db:"device_id"`
	Timestamp string `db:"timestamp"`
	Data      string `db:"data"`
}

// SQLiteFlowRepo is a cache.FlowRepo backed by SQLite.
type SQLiteFlowRepo struct {
	db *sqlx.DB
}

var _ cache.FlowRepo = (*SQLiteFlowRepo)(nil)

// Open creates dir if needed and opens (or creates) the cache database in it.
func Open(ctx context.Context, dir string) (*SQLiteFlowRepo, error) {
	if dir == "" {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteFlowRepo{db: db}, nil
}

func (r *SQLiteFlowRepo) Store(ctx context.Context, reading usage.FlowReading) error {
	if reading.DeviceID == "" || reading.Datetime.IsZero() {
		return errors.Wrapf(errors.ErrInvalidArgument, "reading needs a device id and time")
	}
	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	row := flowRow{DeviceID: reading.DeviceID, Timestamp: cache.Key(reading.Datetime.Time), Data: string(data)}
	query := `INSERT OR REPLACE INTO flow_data (device_id, timestamp, data) VALUES (:device_id, :timestamp, :data)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to store reading: %w", err)
	}
	return nil
}

func (r *SQLiteFlowRepo) Get(ctx context.Context, deviceID string, at time.Time) (*usage.FlowReading, error) {
	var row flowRow
	err := r.db.GetContext(ctx, &row,
		`SELECT device_id, timestamp, data FROM flow_data WHERE device_id = ? AND timestamp = ?`,
		deviceID, cache.Key(at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "reading %s@%s", deviceID, cache.Key(at))
		}
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}
	return decode(row)
}

func (r *SQLiteFlowRepo) Range(ctx context.Context, deviceID string, since, until time.Time) ([]usage.FlowReading, error) {
	var rows []flowRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT device_id, timestamp, data FROM flow_data
		WHERE device_id = ? AND timestamp > ? AND timestamp <= ?
		ORDER BY timestamp DESC`,
		deviceID, cache.Key(since), cache.Key(until))
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}

	out := make([]usage.FlowReading, 0, len(rows))
	for _, row := range rows {
		reading, err := decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *reading)
	}
	return out, nil
}

func (r *SQLiteFlowRepo) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM flow_data WHERE timestamp < ?`, cache.Key(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge readings: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteFlowRepo) Close() error {
	return r.db.Close()
}

func decode(row flowRow) (*usage.FlowReading, error) {
	var reading usage.FlowReading
	if err := json.Unmarshal([]byte(row.Data), &reading); err != nil {
		return nil, fmt.Errorf("decode cached reading %s@%s: %w", row.DeviceID, row.Timestamp, err)
	}
	return &reading, nil
}
