// Package ledger persists the set of item identifiers that have already been
// surfaced, so repeat runs never re-deliver an item. State is one JSON
// snapshot rewritten synchronously after every mutation: a crash mid-run
// loses at most the in-flight batch, never prior runs' history.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/models"
)

// snapshot is the on-disk ledger format: identifier strings plus an ISO-8601
// last-updated timestamp.
type snapshot struct {
	PostedIDs   []string `json:"posted_ids"`
	LastUpdated string   `json:"last_updated"`
}

// Ledger is the in-memory posted-item set backed by a JSON snapshot file.
// Single-writer: mutations happen strictly after the enrichment stage, never
// interleaved with reads from the same run.
type Ledger struct {
	path   string
	logger arbor.ILogger

	mu     sync.Mutex
	posted map[string]struct{}
}

// Open loads the ledger from path. A missing file yields an empty ledger; a
// corrupt file yields an empty ledger with a warning. Load is never fatal:
// the pipeline must not crash solely because history was unavailable.
func Open(path string, logger arbor.ILogger) *Ledger {
	l := &Ledger{
		path:   path,
		logger: logger,
		posted: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Could not read posted-item ledger, starting empty")
		}
		return l
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Could not parse posted-item ledger, starting empty")
		return l
	}

	for _, id := range snap.PostedIDs {
		l.posted[id] = struct{}{}
	}

	logger.Debug().Int("count", len(l.posted)).Str("path", path).Msg("Loaded posted-item ledger")
	return l
}

// FilterUnposted returns the items whose ID is absent from the ledger,
// preserving input order. Items without an ID are never filtered.
func (l *Ledger) FilterUnposted(items []models.Item) []models.Item {
	l.mu.Lock()
	defer l.mu.Unlock()

	unposted := make([]models.Item, 0, len(items))
	for _, item := range items {
		if item.ID != "" {
			if _, seen := l.posted[item.ID]; seen {
				continue
			}
		}
		unposted = append(unposted, item)
	}
	return unposted
}

// IsPosted reports whether id is already in the ledger.
func (l *Ledger) IsPosted(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, seen := l.posted[id]
	return seen
}

// MarkPosted adds id to the ledger and persists the snapshot.
func (l *Ledger) MarkPosted(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.posted[id] = struct{}{}
	return l.save()
}

// MarkBatchPosted adds all ids to the ledger and persists once.
func (l *Ledger) MarkBatchPosted(ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range ids {
		l.posted[id] = struct{}{}
	}
	return l.save()
}

// Clear empties the ledger and persists.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.posted = make(map[string]struct{})
	return l.save()
}

// Size returns the number of ledger entries.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.posted)
}

// save writes the full snapshot to a temp file and renames it into place, so
// the last successful write wins even if the process dies mid-write.
// Callers hold l.mu.
func (l *Ledger) save() error {
	ids := make([]string, 0, len(l.posted))
	for id := range l.posted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.MarshalIndent(snapshot{
		PostedIDs:   ids,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("failed to create ledger temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close ledger temp file: %w", err)
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}

	return nil
}
