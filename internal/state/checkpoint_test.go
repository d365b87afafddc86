package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointPendingSurvivesCrash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.json")

	cp := NewCheckpoint(path, testLogger())
	cp.MarkPending("10", "20")

	// Simulated crash: a fresh checkpoint instance reads the same file.
	restarted := NewCheckpoint(path, testLogger())
	st := restarted.Load()
	require.NotNil(t, st.Pending)
	assert.Equal(t, "10", st.Pending.Group)
	assert.Equal(t, "20", st.Pending.Quota)
	assert.Nil(t, st.LastProcessed)
	assert.NotEmpty(t, st.Timestamp)
}

func TestCheckpointCompletedClearsMatchingPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.json")

	cp := NewCheckpoint(path, testLogger())
	cp.MarkPending("10", "20")
	cp.MarkCompleted("10", "20")

	st := cp.Load()
	assert.Nil(t, st.Pending)
	require.NotNil(t, st.LastProcessed)
	assert.Equal(t, "10", st.LastProcessed.Group)
	assert.Equal(t, "20", st.LastProcessed.Quota)
}

func TestCheckpointCompletedKeepsForeignPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.json")

	cp := NewCheckpoint(path, testLogger())
	cp.MarkPending("30", "40")
	cp.MarkCompleted("10", "20")

	st := cp.Load()
	require.NotNil(t, st.Pending)
	assert.Equal(t, "30", st.Pending.Group)
	require.NotNil(t, st.LastProcessed)
	assert.Equal(t, "10", st.LastProcessed.Group)
}

func TestCheckpointClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.json")

	cp := NewCheckpoint(path, testLogger())
	cp.MarkPending("10", "20")
	cp.Clear()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Nil(t, cp.Load().Pending)

	// Clearing an already-missing file is not an error.
	cp.Clear()
}

func TestCheckpointCorruptFileIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	cp := NewCheckpoint(path, testLogger())
	st := cp.Load()
	assert.Nil(t, st.Pending)
	assert.Nil(t, st.LastProcessed)

	// The store recovers on the next write.
	cp.MarkPending("1", "2")
	require.NotNil(t, cp.Load().Pending)
}
