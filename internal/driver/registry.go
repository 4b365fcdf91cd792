package driver

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// KnownIssue describes a documented problem with a driver.
type KnownIssue struct {
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
}

// Registry maps driver names to known issues. It merges the built-in
// table with optional user-supplied JSON files; later loads win on key
// collision. Matching is a case-insensitive substring test so full
// module paths still hit.
type Registry struct {
	entries map[string]KnownIssue
	keys    []string
}

// NewRegistry returns a registry holding only the built-in table.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]KnownIssue, len(knownBadDrivers))}
	for name, issue := range knownBadDrivers {
		r.entries[normalizeKey(name)] = issue
	}
	r.rebuildKeys()
	return r
}

// LoadFile merges a JSON object of {"driver.sys": {"issue": ...,
// "recommendation": ...}} into the registry. Entries override existing
// keys.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read driver registry: %w", err)
	}
	var custom map[string]KnownIssue
	if err := json.Unmarshal(data, &custom); err != nil {
		return fmt.Errorf("parse driver registry %s: %w", path, err)
	}
	for name, issue := range custom {
		r.entries[normalizeKey(name)] = issue
	}
	r.rebuildKeys()
	log.WithFields(log.Fields{"path": path, "entries": len(custom)}).Debug("merged driver registry")
	return nil
}

// Lookup returns the known issue for a module name, or nil. With
// several matching keys the lexicographically first wins, keeping
// results deterministic.
func (r *Registry) Lookup(name string) *KnownIssue {
	n := strings.ToLower(name)
	for _, key := range r.keys {
		if strings.Contains(n, key) {
			issue := r.entries[key]
			return &issue
		}
	}
	return nil
}

// Len reports the number of registered drivers.
func (r *Registry) Len() int { return len(r.entries) }

// Entry pairs a registry key with its issue, for listings.
type Entry struct {
	Driver string
	KnownIssue
}

// Entries returns every registered driver sorted by name.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, 0, len(r.keys))
	for _, key := range r.keys {
		entries = append(entries, Entry{Driver: key, KnownIssue: r.entries[key]})
	}
	return entries
}

func (r *Registry) rebuildKeys() {
	r.keys = r.keys[:0]
	for key := range r.entries {
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)
}

// normalizeKey lowercases and trims registry keys; hand-maintained
// lists tend to grow stray whitespace.
func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
