package state

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consorcioops/boleto-batch/internal/models"
)

// Tracker persists completed group/quota combinations so later runs can skip
// redundant work. Tracking is a resumability optimization, not a correctness
// requirement: load failures degrade to an empty store and never abort a run.
type Tracker struct {
	path      string
	retention time.Duration
	logger    *logrus.Logger

	mu      sync.Mutex
	records map[string]models.ProcessedEntry
}

// NewTracker creates a tracker backed by the JSON store at path. A zero
// retention keeps entries forever.
func NewTracker(path string, retention time.Duration, logger *logrus.Logger) *Tracker {
	t := &Tracker{
		path:      path,
		retention: retention,
		logger:    logger,
		records:   make(map[string]models.ProcessedEntry),
	}
	t.load()
	if t.purgeExpired() {
		t.save()
	}
	return t
}

func makeKey(group, quota string) string {
	return strings.TrimSpace(group) + "|" + strings.TrimSpace(quota)
}

// IsProcessed reports whether the pair was already completed in a prior run
func (t *Tracker) IsProcessed(group, quota string) bool {
	if group == "" || quota == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.records[makeKey(group, quota)]
	return ok
}

// MarkProcessed upserts the entry for the pair and persists synchronously
func (t *Tracker) MarkProcessed(group, quota string, entry models.ProcessedEntry) {
	if group == "" || quota == "" {
		return
	}

	entry.Group = group
	entry.Quota = quota
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().Format(time.RFC3339)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[makeKey(group, quota)] = entry
	t.save()
}

// PurgeExpired removes entries older than the retention window and persists
// when anything changed.
func (t *Tracker) PurgeExpired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.purgeExpired() {
		return false
	}
	t.save()
	return true
}

// Len returns the number of tracked entries
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func (t *Tracker) load() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.WithError(err).WithField("path", t.path).Warn("Failed to load processed state, starting fresh")
		}
		return
	}

	records := make(map[string]models.ProcessedEntry)
	if err := json.Unmarshal(data, &records); err != nil {
		t.logger.WithError(err).WithField("path", t.path).Warn("Processed state file is invalid, starting fresh")
		return
	}
	t.records = records
}

func (t *Tracker) save() {
	if err := writeJSONAtomic(t.path, t.records); err != nil {
		t.logger.WithError(err).WithField("path", t.path).Error("Failed to persist processed state")
	}
}

func (t *Tracker) purgeExpired() bool {
	if t.retention <= 0 {
		return false
	}

	threshold := time.Now().Add(-t.retention)
	purged := false
	for key, entry := range t.records {
		if entry.Timestamp == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil {
			continue
		}
		if ts.Before(threshold) {
			delete(t.records, key)
			purged = true
		}
	}

	if purged {
		t.logger.WithField("retention", t.retention).Info("Purged expired processed records")
	}
	return purged
}
