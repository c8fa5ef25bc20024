// Package catalog indexes processed sessions in a SQLite database so they
// can be listed and ranked without reopening every export.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/laptrace/internal/timeutil"
)

// Session is one processed session.
type Session struct {
	SessionID        string
	ExportID         string
	TrackID          int
	TrackName        string
	SessionName      string
	SourceFile       string
	ExportPath       string
	StartTime        float64
	DurationSec      float64
	LapCount         int
	BestLapTime      *float64
	TBLTotal         *float64
	ConsistencyScore *float64
	Calibrated       bool
	ProcessedAt      string

	Laps []Lap
}

// Lap is one lap of a catalogued session. A nil sector time is a missed
// gate.
type Lap struct {
	SessionID   string
	LapNumber   int
	LapTime     *float64
	SectorTimes []*float64
}

// Catalog wraps the SQLite database.
type Catalog struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the catalog at path and migrates it to
// the latest schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps in-memory databases and pragmas consistent.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	c := &Catalog{db: db, clock: timeutil.RealClock{}}
	if err := c.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// SetClock sets the clock used for processed_at stamps.
func (c *Catalog) SetClock(clock timeutil.Clock) { c.clock = clock }

// Close closes the database.
func (c *Catalog) Close() error { return c.db.Close() }

// Insert records s and its laps in one transaction. An empty SessionID is
// replaced by a new UUID; an existing row with the same id is replaced.
func (c *Catalog) Insert(ctx context.Context, s *Session) error {
	if s.SessionID == "" {
		s.SessionID = uuid.NewString()
	}
	if s.ProcessedAt == "" {
		s.ProcessedAt = timeutil.ISO8601(c.clock.Now())
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, s.SessionID); err != nil {
		return fmt.Errorf("failed to replace session %s: %w", s.SessionID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, export_id, track_id, track_name, session_name, source_file,
			export_path, start_time, duration_sec, lap_count, best_lap_time,
			tbl_total, consistency_score, calibrated, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.ExportID, s.TrackID, s.TrackName, s.SessionName, s.SourceFile,
		s.ExportPath, s.StartTime, s.DurationSec, s.LapCount, s.BestLapTime,
		s.TBLTotal, s.ConsistencyScore, s.Calibrated, s.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.SessionID, err)
	}

	for _, lap := range s.Laps {
		sectors, err := json.Marshal(lap.SectorTimes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO laps (session_id, lap_number, lap_time, sector_times) VALUES (?, ?, ?, ?)`,
			s.SessionID, lap.LapNumber, lap.LapTime, string(sectors),
		); err != nil {
			return fmt.Errorf("failed to insert lap %d of %s: %w", lap.LapNumber, s.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	opsf("catalogued session %s (track %d, %d laps)", s.SessionName, s.TrackID, len(s.Laps))
	return nil
}

// Sessions lists sessions, newest first. A trackID of zero lists every
// track. Laps are not loaded.
func (c *Catalog) Sessions(ctx context.Context, trackID int) ([]Session, error) {
	query := `
		SELECT session_id, export_id, track_id, track_name, session_name, source_file,
		       export_path, start_time, duration_sec, lap_count, best_lap_time,
		       tbl_total, consistency_score, calibrated, processed_at
		FROM sessions`
	var args []interface{}
	if trackID > 0 {
		query += ` WHERE track_id = ?`
		args = append(args, trackID)
	}
	query += ` ORDER BY processed_at DESC, start_time DESC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s                                        Session
			exportID, trackName, source, exportPath sql.NullString
			best, tblTotal, consistency              sql.NullFloat64
		)
		if err := rows.Scan(
			&s.SessionID, &exportID, &s.TrackID, &trackName, &s.SessionName, &source,
			&exportPath, &s.StartTime, &s.DurationSec, &s.LapCount, &best,
			&tblTotal, &consistency, &s.Calibrated, &s.ProcessedAt,
		); err != nil {
			return nil, err
		}
		s.ExportID, s.TrackName = exportID.String, trackName.String
		s.SourceFile, s.ExportPath = source.String, exportPath.String
		s.BestLapTime = nullFloat(best)
		s.TBLTotal = nullFloat(tblTotal)
		s.ConsistencyScore = nullFloat(consistency)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Laps returns the laps of one session in lap order.
func (c *Catalog) Laps(ctx context.Context, sessionID string) ([]Lap, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT session_id, lap_number, lap_time, sector_times FROM laps WHERE session_id = ? ORDER BY lap_number`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLaps(rows)
}

// FastestLaps returns the quickest timed laps recorded for a track.
func (c *Catalog) FastestLaps(ctx context.Context, trackID, limit int) ([]Lap, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT l.session_id, l.lap_number, l.lap_time, l.sector_times
		FROM laps l JOIN sessions s ON s.session_id = l.session_id
		WHERE s.track_id = ? AND l.lap_time IS NOT NULL
		ORDER BY l.lap_time ASC
		LIMIT ?`, trackID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLaps(rows)
}

// Delete removes a session and its laps. It reports whether a row existed.
func (c *Catalog) Delete(ctx context.Context, sessionID string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func scanLaps(rows *sql.Rows) ([]Lap, error) {
	var out []Lap
	for rows.Next() {
		var (
			lap     Lap
			lapTime sql.NullFloat64
			sectors sql.NullString
		)
		if err := rows.Scan(&lap.SessionID, &lap.LapNumber, &lapTime, &sectors); err != nil {
			return nil, err
		}
		lap.LapTime = nullFloat(lapTime)
		if sectors.Valid && sectors.String != "" {
			if err := json.Unmarshal([]byte(sectors.String), &lap.SectorTimes); err != nil {
				return nil, fmt.Errorf("bad sector times for %s lap %d: %w", lap.SessionID, lap.LapNumber, err)
			}
		}
		out = append(out, lap)
	}
	return out, rows.Err()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
