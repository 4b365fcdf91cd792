// Package storage persists analysis results to a local sqlite crash
// history. Results are written once and never updated, except for the
// AI analysis text which may be attached after the fact.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bsod-cli/internal/engine"
)

// InitDB opens the crash history database in the data directory.
// BSOD_CLI_DATA_DIR overrides the default ~/.bsodcli.
func InitDB() (*sql.DB, error) {
	var dir string
	if envDir := os.Getenv("BSOD_CLI_DATA_DIR"); envDir != "" {
		dir = envDir
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get user home dir: %w", err)
		}
		dir = filepath.Join(home, ".bsodcli")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return OpenDB(filepath.Join(dir, "crash_history.db"))
}

func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS crash_history (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id      TEXT NOT NULL,
		dump_path        TEXT,
		crash_time       INTEGER,
		format           TEXT,
		bugcheck_code    INTEGER NOT NULL,
		bugcheck_name    TEXT,
		suspected_driver TEXT,
		strategy         TEXT,
		confidence       REAL NOT NULL,
		cause            TEXT,
		analysis_json    TEXT,
		ai_analysis      TEXT,
		created_at       INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crash_history_time ON crash_history(crash_time);
	CREATE INDEX IF NOT EXISTS idx_crash_history_code ON crash_history(bugcheck_code);
	CREATE INDEX IF NOT EXISTS idx_crash_history_created ON crash_history(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// CrashRecord is one persisted analysis, the unit both the history
// views and the pattern aggregator consume.
type CrashRecord struct {
	ID           int64
	AnalysisID   string
	DumpPath     string
	CrashTime    time.Time
	Format       string
	BugcheckCode uint32
	BugcheckName string
	Driver       string
	Strategy     string
	Confidence   float64
	Cause        string
	AnalysisJSON string
	AIAnalysis   string
	CreatedAt    time.Time
}

// HistoryEntry maps the record into the aggregator's input shape.
func (r CrashRecord) HistoryEntry() engine.HistoryEntry {
	ts := r.CrashTime
	if ts.IsZero() {
		ts = r.CreatedAt
	}
	return engine.HistoryEntry{
		Driver:       r.Driver,
		BugcheckCode: r.BugcheckCode,
		BugcheckName: r.BugcheckName,
		Confidence:   r.Confidence,
		Timestamp:    ts,
	}
}

// SaveAnalysis persists a result and returns the new row id.
func SaveAnalysis(db *sql.DB, result *engine.Result) (int64, error) {
	full, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("marshal analysis: %w", err)
	}

	var driverName, strategy string
	if result.Suspect != nil {
		driverName = result.Suspect.Module.Name
		strategy = string(result.Suspect.Strategy)
	}
	var crashTime int64
	if !result.Summary.CaptureTime.IsZero() {
		crashTime = result.Summary.CaptureTime.Unix()
	}

	res, err := db.Exec(`INSERT INTO crash_history
		(analysis_id, dump_path, crash_time, format, bugcheck_code, bugcheck_name,
		 suspected_driver, strategy, confidence, cause, analysis_json, ai_analysis, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.DumpPath, crashTime, string(result.Summary.Format),
		result.Crash.Code, result.Bugcheck.Name, driverName, strategy,
		result.Confidence, result.Cause, string(full), result.AIAnalysis,
		result.AnalyzedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert crash: %w", err)
	}
	return res.LastInsertId()
}

const recordColumns = `id, analysis_id, COALESCE(dump_path, ''), crash_time, COALESCE(format, ''),
	bugcheck_code, COALESCE(bugcheck_name, ''), COALESCE(suspected_driver, ''),
	COALESCE(strategy, ''), confidence, COALESCE(cause, ''),
	COALESCE(analysis_json, ''), COALESCE(ai_analysis, ''), created_at`

func scanRecord(row interface{ Scan(...any) error }) (CrashRecord, error) {
	var r CrashRecord
	var crashTS, createdTS int64
	err := row.Scan(&r.ID, &r.AnalysisID, &r.DumpPath, &crashTS, &r.Format,
		&r.BugcheckCode, &r.BugcheckName, &r.Driver, &r.Strategy,
		&r.Confidence, &r.Cause, &r.AnalysisJSON, &r.AIAnalysis, &createdTS)
	if err != nil {
		return r, err
	}
	if crashTS != 0 {
		r.CrashTime = time.Unix(crashTS, 0).UTC()
	}
	r.CreatedAt = time.Unix(createdTS, 0).UTC()
	return r, nil
}

// QueryOpts filters history reads.
type QueryOpts struct {
	Limit  int
	Since  time.Duration
	Driver string
}

// RecentCrashes lists saved analyses newest-first.
func RecentCrashes(db *sql.DB, opts QueryOpts) ([]CrashRecord, error) {
	query := "SELECT " + recordColumns + " FROM crash_history"
	var args []any
	var where []string

	if opts.Since > 0 {
		where = append(where, "created_at >= ?")
		args = append(args, time.Now().Add(-opts.Since).Unix())
	}
	if opts.Driver != "" {
		where = append(where, "suspected_driver LIKE ?")
		args = append(args, "%"+opts.Driver+"%")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CrashRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CrashByID fetches one record, or nil when absent.
func CrashByID(db *sql.DB, id int64) (*CrashRecord, error) {
	row := db.QueryRow("SELECT "+recordColumns+" FROM crash_history WHERE id = ?", id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AttachAIAnalysis stores enrichment text produced after the initial
// save.
func AttachAIAnalysis(db *sql.DB, id int64, text string) error {
	res, err := db.Exec("UPDATE crash_history SET ai_analysis = ? WHERE id = ?", text, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("crash record not found: %d", id)
	}
	return nil
}

// PurgeOlderThan deletes records older than the retention window and
// reports how many were removed.
func PurgeOlderThan(db *sql.DB, age time.Duration) (int64, error) {
	res, err := db.Exec("DELETE FROM crash_history WHERE created_at < ?",
		time.Now().Add(-age).Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
