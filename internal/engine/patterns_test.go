package engine

import (
	"testing"
	"time"
)

func entriesFixture(base time.Time) []HistoryEntry {
	return []HistoryEntry{
		{Driver: "nvlddmkm.sys", BugcheckCode: 0x3B, BugcheckName: "SYSTEM_SERVICE_EXCEPTION", Confidence: 0.9, Timestamp: base},
		{Driver: "nvlddmkm.sys", BugcheckCode: 0xD1, BugcheckName: "DRIVER_IRQL_NOT_LESS_OR_EQUAL", Confidence: 0.8, Timestamp: base.Add(-time.Hour)},
		{Driver: "rtwlanu.sys", BugcheckCode: 0x3B, BugcheckName: "SYSTEM_SERVICE_EXCEPTION", Confidence: 0.7, Timestamp: base.Add(-2 * time.Hour)},
		{Driver: "", BugcheckCode: 0x9C, BugcheckName: "MACHINE_CHECK_EXCEPTION", Confidence: 0.5, Timestamp: base.Add(-3 * time.Hour)},
	}
}

func TestAggregatePatterns(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := AggregatePatterns(entriesFixture(now), 0, now)

	if report.TotalCrashes != 4 {
		t.Errorf("TotalCrashes = %d, want 4", report.TotalCrashes)
	}
	if len(report.Drivers) != 2 {
		t.Fatalf("driver rows = %d, want 2 (empty suspect excluded)", len(report.Drivers))
	}
	if report.Drivers[0].Key != "nvlddmkm.sys" || report.Drivers[0].Count != 2 {
		t.Errorf("top driver = %+v", report.Drivers[0])
	}
	if !report.Drivers[0].LastSeen.Equal(now) {
		t.Errorf("LastSeen = %v, want most recent occurrence", report.Drivers[0].LastSeen)
	}
	if report.Bugchecks[0].Key != "SYSTEM_SERVICE_EXCEPTION" || report.Bugchecks[0].Count != 2 {
		t.Errorf("top bugcheck = %+v", report.Bugchecks[0])
	}
	want := (0.9 + 0.8 + 0.7 + 0.5) / 4
	if diff := report.AverageConfidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AverageConfidence = %v, want %v", report.AverageConfidence, want)
	}
}

func TestAggregatePatternsOrderIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := entriesFixture(now)
	reversed := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}

	a := AggregatePatterns(entries, 0, now)
	b := AggregatePatterns(reversed, 0, now)

	if len(a.Drivers) != len(b.Drivers) {
		t.Fatalf("row counts differ: %d vs %d", len(a.Drivers), len(b.Drivers))
	}
	for i := range a.Drivers {
		if a.Drivers[i] != b.Drivers[i] {
			t.Errorf("driver row %d differs: %+v vs %+v", i, a.Drivers[i], b.Drivers[i])
		}
	}
	for i := range a.Bugchecks {
		if a.Bugchecks[i] != b.Bugchecks[i] {
			t.Errorf("bugcheck row %d differs: %+v vs %+v", i, a.Bugchecks[i], b.Bugchecks[i])
		}
	}
}

func TestAggregatePatternsWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []HistoryEntry{
		{Driver: "fresh.sys", BugcheckName: "A", Timestamp: now.Add(-time.Hour)},
		{Driver: "stale.sys", BugcheckName: "B", Timestamp: now.Add(-48 * time.Hour)},
	}
	report := AggregatePatterns(entries, 24*time.Hour, now)
	if report.TotalCrashes != 1 {
		t.Fatalf("TotalCrashes = %d, want 1 inside the window", report.TotalCrashes)
	}
	if report.Drivers[0].Key != "fresh.sys" {
		t.Errorf("kept %q, want fresh.sys", report.Drivers[0].Key)
	}
}

func TestAggregatePatternsTieBreakByRecency(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []HistoryEntry{
		{Driver: "older.sys", BugcheckName: "X", Timestamp: now.Add(-2 * time.Hour)},
		{Driver: "newer.sys", BugcheckName: "X", Timestamp: now.Add(-time.Hour)},
	}
	report := AggregatePatterns(entries, 0, now)
	if report.Drivers[0].Key != "newer.sys" {
		t.Errorf("tie broken to %q, want newer.sys first", report.Drivers[0].Key)
	}
}

func TestAggregatePatternsEmpty(t *testing.T) {
	report := AggregatePatterns(nil, time.Hour, time.Now())
	if report.TotalCrashes != 0 || report.Drivers != nil || report.AverageConfidence != 0 {
		t.Errorf("empty input produced %+v", report)
	}
}
