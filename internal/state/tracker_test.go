package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consorcioops/boleto-batch/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestTrackerMarkAndCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")
	tracker := NewTracker(path, 0, testLogger())

	assert.False(t, tracker.IsProcessed("10", "20"))
	tracker.MarkProcessed("10", "20", models.ProcessedEntry{Status: models.StatusSuccess})
	assert.True(t, tracker.IsProcessed("10", "20"))
	assert.False(t, tracker.IsProcessed("10", "21"))
}

func TestTrackerSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")

	tracker := NewTracker(path, 0, testLogger())
	tracker.MarkProcessed("10", "20", models.ProcessedEntry{
		Status:          models.StatusSuccess,
		DownloadedFiles: []string{"a.pdf"},
	})

	reloaded := NewTracker(path, 0, testLogger())
	assert.True(t, reloaded.IsProcessed("10", "20"))
	assert.Equal(t, 1, reloaded.Len())
}

func TestTrackerEmptyKeysIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")
	tracker := NewTracker(path, 0, testLogger())

	tracker.MarkProcessed("", "20", models.ProcessedEntry{})
	tracker.MarkProcessed("10", "", models.ProcessedEntry{})
	assert.Equal(t, 0, tracker.Len())
	assert.False(t, tracker.IsProcessed("", "20"))
}

func TestTrackerRetentionPurge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")

	tracker := NewTracker(path, 0, testLogger())
	tracker.MarkProcessed("old", "1", models.ProcessedEntry{
		Timestamp: time.Now().Add(-72 * time.Hour).Format(time.RFC3339),
	})
	tracker.MarkProcessed("fresh", "1", models.ProcessedEntry{
		Timestamp: time.Now().Format(time.RFC3339),
	})

	// Reload with a 24h retention window: the stale entry is purged on load.
	reloaded := NewTracker(path, 24*time.Hour, testLogger())
	assert.False(t, reloaded.IsProcessed("old", "1"))
	assert.True(t, reloaded.IsProcessed("fresh", "1"))

	// The purge was persisted.
	again := NewTracker(path, 0, testLogger())
	assert.Equal(t, 1, again.Len())
}

func TestTrackerCorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	tracker := NewTracker(path, 0, testLogger())
	assert.Equal(t, 0, tracker.Len())

	// The store still works after the failed load.
	tracker.MarkProcessed("10", "20", models.ProcessedEntry{})
	assert.True(t, tracker.IsProcessed("10", "20"))
}

func TestTrackerNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed.json")

	tracker := NewTracker(path, 0, testLogger())
	tracker.MarkProcessed("10", "20", models.ProcessedEntry{})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "processed.json", entries[0].Name())
}
