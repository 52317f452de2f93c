// Package recorder persists tracking results to a SQLite database for
// offline analysis.
package recorder

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	visionforge "github.com/swdee/go-visionforge"
	"github.com/swdee/go-visionforge/geometry"
	_ "modernc.org/sqlite"
)

// schema.sql defines the sessions and per frame track observation tables
//
//go:embed schema.sql
var schemaSQL string

// Recorder writes TrackResults to SQLite
type Recorder struct {
	*sql.DB
}

// Observation is a stored TrackResult
type Observation struct {
	Frame              int64
	TrackID            int64
	Label              string
	Box                geometry.Box
	DetectionBox       geometry.Box
	SearchBox          geometry.Box
	Correlation        float64
	HistogramDistance  float64
	DetectorConfidence float32
}

// Open opens or creates the database at path and applies the schema
func Open(path string) (*Recorder, error) {

	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Recorder{db}, nil
}

// StartSession creates a session record for a tracking run and returns its
// identifier
func (r *Recorder) StartSession(instanceID, source string) (string, error) {

	id := uuid.NewString()

	_, err := r.Exec(`INSERT INTO sessions (id, instance_id, source) VALUES (?, ?, ?)`,
		id, instanceID, source)

	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}

	return id, nil
}

// EndSession marks the session finished with the number of frames processed
func (r *Recorder) EndSession(session string, frames int64) error {

	res, err := r.Exec(`
		UPDATE sessions
		SET end_timestamp = UNIXEPOCH('subsec'), frame_count = ?
		WHERE id = ?`, frames, session)

	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unknown session %s", session)
	}

	return nil
}

// Record stores the results of one frame in a single transaction
func (r *Recorder) Record(session string, frame int64, results []visionforge.TrackResult) error {

	if len(results) == 0 {
		return nil
	}

	tx, err := r.Begin()

	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO track_observations (
			session_id, frame, track_id, label,
			x_min, y_min, x_max, y_max,
			det_x_min, det_y_min, det_x_max, det_y_max,
			search_x_min, search_y_min, search_x_max, search_y_max,
			correlation, histogram_distance, detector_confidence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}

	defer stmt.Close()

	for _, res := range results {
		_, err := stmt.Exec(session, frame, res.ID, res.Label,
			res.Box.XMin, res.Box.YMin, res.Box.XMax, res.Box.YMax,
			res.DetectionBox.XMin, res.DetectionBox.YMin,
			res.DetectionBox.XMax, res.DetectionBox.YMax,
			res.SearchBox.XMin, res.SearchBox.YMin,
			res.SearchBox.XMax, res.SearchBox.YMax,
			res.Correlation, res.HistogramDistance, res.DetectorConfidence)

		if err != nil {
			return fmt.Errorf("failed to insert track %d: %w", res.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frame %d: %w", frame, err)
	}

	return nil
}

// Track returns the stored observations of a track in frame order
func (r *Recorder) Track(session string, trackID int64) ([]Observation, error) {

	rows, err := r.Query(`
		SELECT frame, track_id, label,
			x_min, y_min, x_max, y_max,
			det_x_min, det_y_min, det_x_max, det_y_max,
			search_x_min, search_y_min, search_x_max, search_y_max,
			correlation, histogram_distance, detector_confidence
		FROM track_observations
		WHERE session_id = ? AND track_id = ?
		ORDER BY frame`, session, trackID)

	if err != nil {
		return nil, fmt.Errorf("failed to query track %d: %w", trackID, err)
	}

	defer rows.Close()

	var out []Observation

	for rows.Next() {
		var o Observation
		var conf float64

		err := rows.Scan(&o.Frame, &o.TrackID, &o.Label,
			&o.Box.XMin, &o.Box.YMin, &o.Box.XMax, &o.Box.YMax,
			&o.DetectionBox.XMin, &o.DetectionBox.YMin,
			&o.DetectionBox.XMax, &o.DetectionBox.YMax,
			&o.SearchBox.XMin, &o.SearchBox.YMin,
			&o.SearchBox.XMax, &o.SearchBox.YMax,
			&o.Correlation, &o.HistogramDistance, &conf)

		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}

		o.DetectorConfidence = float32(conf)
		out = append(out, o)
	}

	return out, rows.Err()
}

// FrameCount returns the frame count stored for a finished session
func (r *Recorder) FrameCount(session string) (int64, error) {

	var n int64

	err := r.QueryRow(`SELECT frame_count FROM sessions WHERE id = ?`, session).Scan(&n)

	if err != nil {
		return 0, fmt.Errorf("failed to read session %s: %w", session, err)
	}

	return n, nil
}
