package engine

import (
	"sort"
	"time"
)

// HistoryEntry is the slice of a persisted analysis the aggregator
// needs. The storage layer maps its records into this shape.
type HistoryEntry struct {
	Driver       string
	BugcheckCode uint32
	BugcheckName string
	Confidence   float64
	Timestamp    time.Time
}

// PatternRow is one aggregated frequency-table row.
type PatternRow struct {
	Key      string    `json:"key"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// PatternReport summarizes recurring suspects and bugchecks across a
// run of past analyses.
type PatternReport struct {
	TotalCrashes      int          `json:"total_crashes"`
	WindowStart       time.Time    `json:"window_start,omitzero"`
	Drivers           []PatternRow `json:"drivers,omitempty"`
	Bugchecks         []PatternRow `json:"bugchecks,omitempty"`
	AverageConfidence float64      `json:"average_confidence"`
}

// AggregatePatterns builds frequency tables over past analyses within
// [now-window, now]. A window of zero or less disables the time
// filter. Pure aggregation: input order never changes the counts, only
// the LastSeen timestamps break count ties.
func AggregatePatterns(entries []HistoryEntry, window time.Duration, now time.Time) PatternReport {
	report := PatternReport{}
	var cutoff time.Time
	if window > 0 {
		cutoff = now.Add(-window)
		report.WindowStart = cutoff
	}

	drivers := make(map[string]*PatternRow)
	bugchecks := make(map[string]*PatternRow)
	var confidenceSum float64

	for _, e := range entries {
		if window > 0 && (e.Timestamp.Before(cutoff) || e.Timestamp.After(now)) {
			continue
		}
		report.TotalCrashes++
		confidenceSum += e.Confidence

		if e.Driver != "" {
			bump(drivers, e.Driver, e.Timestamp)
		}
		if e.BugcheckName != "" {
			bump(bugchecks, e.BugcheckName, e.Timestamp)
		}
	}

	if report.TotalCrashes > 0 {
		report.AverageConfidence = confidenceSum / float64(report.TotalCrashes)
	}
	report.Drivers = sortRows(drivers)
	report.Bugchecks = sortRows(bugchecks)
	return report
}

func bump(rows map[string]*PatternRow, key string, ts time.Time) {
	row, ok := rows[key]
	if !ok {
		row = &PatternRow{Key: key}
		rows[key] = row
	}
	row.Count++
	if ts.After(row.LastSeen) {
		row.LastSeen = ts
	}
}

// sortRows orders by count descending, then most recent LastSeen, then
// key for a stable final order.
func sortRows(rows map[string]*PatternRow) []PatternRow {
	out := make([]PatternRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].Key < out[j].Key
	})
	if len(out) == 0 {
		return nil
	}
	return out
}
