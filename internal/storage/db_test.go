package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"bsod-cli/internal/bugcheck"
	"bsod-cli/internal/dump"
	"bsod-cli/internal/engine"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "crash_history.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleResult() *engine.Result {
	return &engine.Result{
		ID:         "11111111-2222-3333-4444-555555555555",
		DumpPath:   `C:\Windows\Minidump\012026-1234-01.dmp`,
		AnalyzedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		Summary: dump.Summary{
			Format:      dump.FormatMinidump,
			CaptureTime: time.Date(2026, 1, 31, 23, 45, 0, 0, time.UTC),
		},
		Crash:    dump.CrashInfo{Code: 0x3B},
		Bugcheck: bugcheck.Lookup(0x3B),
		Suspect: &engine.Suspect{
			Module:   dump.Module{Name: "nvlddmkm.sys", Base: 0x1000, Size: 0x1000},
			Strategy: engine.StrategyTopOfStack,
		},
		Cause:      "SYSTEM_SERVICE_EXCEPTION caused by nvlddmkm.sys",
		Confidence: 0.9,
	}
}

func TestSaveAndFetchAnalysis(t *testing.T) {
	db := testDB(t)

	id, err := SaveAnalysis(db, sampleResult())
	if err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	rec, err := CrashByID(db, id)
	if err != nil {
		t.Fatalf("CrashByID: %v", err)
	}
	if rec == nil {
		t.Fatal("saved record not found")
	}
	if rec.BugcheckCode != 0x3B || rec.BugcheckName != "SYSTEM_SERVICE_EXCEPTION" {
		t.Errorf("bugcheck = 0x%X %q", rec.BugcheckCode, rec.BugcheckName)
	}
	if rec.Driver != "nvlddmkm.sys" || rec.Strategy != "top_of_stack" {
		t.Errorf("suspect = %q via %q", rec.Driver, rec.Strategy)
	}
	if rec.Confidence != 0.9 {
		t.Errorf("confidence = %v", rec.Confidence)
	}
	if rec.AnalysisJSON == "" {
		t.Error("full analysis JSON not stored")
	}
	if got := rec.CrashTime; !got.Equal(time.Date(2026, 1, 31, 23, 45, 0, 0, time.UTC)) {
		t.Errorf("crash time = %v", got)
	}
}

func TestCrashByIDMissing(t *testing.T) {
	db := testDB(t)
	rec, err := CrashByID(db, 42)
	if err != nil {
		t.Fatalf("CrashByID: %v", err)
	}
	if rec != nil {
		t.Errorf("got %+v for a missing id", rec)
	}
}

func TestRecentCrashesNewestFirstWithFilters(t *testing.T) {
	db := testDB(t)

	first := sampleResult()
	second := sampleResult()
	second.ID = "second"
	second.Suspect.Module.Name = "rtwlanu.sys"
	if _, err := SaveAnalysis(db, first); err != nil {
		t.Fatal(err)
	}
	if _, err := SaveAnalysis(db, second); err != nil {
		t.Fatal(err)
	}

	records, err := RecentCrashes(db, QueryOpts{Limit: 10})
	if err != nil {
		t.Fatalf("RecentCrashes: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].AnalysisID != "second" {
		t.Errorf("newest record first, got %q", records[0].AnalysisID)
	}

	filtered, err := RecentCrashes(db, QueryOpts{Driver: "rtwlanu"})
	if err != nil {
		t.Fatalf("RecentCrashes filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Driver != "rtwlanu.sys" {
		t.Errorf("driver filter returned %+v", filtered)
	}

	limited, err := RecentCrashes(db, QueryOpts{Limit: 1})
	if err != nil {
		t.Fatalf("RecentCrashes limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored, got %d records", len(limited))
	}
}

func TestAttachAIAnalysis(t *testing.T) {
	db := testDB(t)
	id, err := SaveAnalysis(db, sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	if err := AttachAIAnalysis(db, id, "model says: update the GPU driver"); err != nil {
		t.Fatalf("AttachAIAnalysis: %v", err)
	}
	rec, err := CrashByID(db, id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.AIAnalysis != "model says: update the GPU driver" {
		t.Errorf("ai analysis = %q", rec.AIAnalysis)
	}

	if err := AttachAIAnalysis(db, 9999, "x"); err == nil {
		t.Error("expected error for a missing record")
	}
}

func TestHistoryEntryPrefersCrashTime(t *testing.T) {
	rec := CrashRecord{
		Driver:       "x.sys",
		BugcheckCode: 0xD1,
		BugcheckName: "DRIVER_IRQL_NOT_LESS_OR_EQUAL",
		Confidence:   0.8,
		CrashTime:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if got := rec.HistoryEntry().Timestamp; !got.Equal(rec.CrashTime) {
		t.Errorf("timestamp = %v, want crash time", got)
	}
	rec.CrashTime = time.Time{}
	if got := rec.HistoryEntry().Timestamp; !got.Equal(rec.CreatedAt) {
		t.Errorf("timestamp = %v, want created time fallback", got)
	}
}
