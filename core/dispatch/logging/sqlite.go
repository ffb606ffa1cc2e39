package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Unit roles stored in decision_units.
const (
	roleShortlisted = "shortlisted"
	roleConflict    = "conflict"
	roleAssigned    = "assigned"
)

var sqliteSchema = []string{
	`PRAGMA journal_mode = WAL`,
	`PRAGMA busy_timeout = 5000`,
	`CREATE TABLE IF NOT EXISTS decisions (
		dispatch_id TEXT PRIMARY KEY,
		ts          INTEGER NOT NULL,
		caller_id   TEXT NOT NULL,
		unit_id     TEXT,
		kind        TEXT NOT NULL,
		total_ms    REAL,
		record      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS decisions_ts ON decisions (ts)`,
	`CREATE TABLE IF NOT EXISTS decision_units (
		dispatch_id TEXT NOT NULL REFERENCES decisions (dispatch_id),
		unit_id     TEXT NOT NULL,
		role        TEXT NOT NULL,
		PRIMARY KEY (dispatch_id, unit_id, role)
	)`,
	`CREATE INDEX IF NOT EXISTS decision_units_unit ON decision_units (unit_id)`,
}

// SQLiteStore keeps decision records in SQLite. Every unit a decision
// touched is indexed so unit queries stay in SQL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps the pragmas and serializes writers.
	db.SetMaxOpenConns(1)
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, errors.Join(fmt.Errorf("sqlite schema: %w", err), db.Close())
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Record stores rec and its unit index in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, rec DecisionRecord) (err error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var unit sql.NullString
	if rec.UnitID != "" {
		unit = sql.NullString{String: rec.UnitID, Valid: true}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO decisions (dispatch_id, ts, caller_id, unit_id, kind, total_ms, record) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.DispatchID, rec.Timestamp.UnixNano(), rec.Request.CallerID, unit, rec.kind(), rec.Timing.TotalMs, string(b)); err != nil {
		return fmt.Errorf("insert decision %s: %w", rec.DispatchID, err)
	}
	for _, u := range unitRoles(rec) {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO decision_units (dispatch_id, unit_id, role) VALUES (?, ?, ?)`,
			rec.DispatchID, u[0], u[1]); err != nil {
			return fmt.Errorf("index unit %s: %w", u[0], err)
		}
	}
	return tx.Commit()
}

func unitRoles(rec DecisionRecord) [][2]string {
	out := make([][2]string, 0, len(rec.Shortlist)+len(rec.Conflicts)+1)
	for _, c := range rec.Shortlist {
		out = append(out, [2]string{c.UnitID, roleShortlisted})
	}
	for _, id := range rec.Conflicts {
		out = append(out, [2]string{id, roleConflict})
	}
	if rec.UnitID != "" {
		out = append(out, [2]string{rec.UnitID, roleAssigned})
	}
	return out
}

// Query returns records matching q in timestamp order.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]DecisionRecord, error) {
	var args []any
	query := `SELECT record FROM decisions WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.CallerID != "" {
		query += ` AND caller_id = ?`
		args = append(args, q.CallerID)
	}
	if q.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, q.Kind)
	}
	if q.UnitID != "" {
		query += ` AND dispatch_id IN (SELECT dispatch_id FROM decision_units WHERE unit_id = ?)`
		args = append(args, q.UnitID)
	}
	query += ` ORDER BY ts, dispatch_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []DecisionRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r DecisionRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
