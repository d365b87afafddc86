package state

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consorcioops/boleto-batch/internal/models"
)

// Checkpoint persists the pending / last-processed markers that let a
// restarted run resume at (not after) an interrupted record.
type Checkpoint struct {
	path   string
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewCheckpoint creates a checkpoint backed by the JSON store at path
func NewCheckpoint(path string, logger *logrus.Logger) *Checkpoint {
	return &Checkpoint{path: path, logger: logger}
}

// Load reads the current checkpoint state; a missing or corrupt file yields
// an empty state with a logged warning.
func (c *Checkpoint) Load() models.CheckpointState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

// MarkPending records the pair as currently being attempted. Called before
// the record's risky step (authentication) begins.
func (c *Checkpoint) MarkPending(group, quota string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.loadLocked()
	st.Pending = &models.CheckpointKey{Group: group, Quota: quota}
	st.Timestamp = time.Now().Format(time.RFC3339)
	c.writeLocked(st)
}

// MarkCompleted records the pair as confirmed complete, clearing a matching
// pending marker.
func (c *Checkpoint) MarkCompleted(group, quota string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.loadLocked()
	st.LastProcessed = &models.CheckpointKey{Group: group, Quota: quota}
	if st.Pending.Matches(group, quota) {
		st.Pending = nil
	}
	st.Timestamp = time.Now().Format(time.RFC3339)
	c.writeLocked(st)
}

// Clear deletes the checkpoint store entirely. Called on a fully successful
// run.
func (c *Checkpoint) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		c.logger.WithError(err).WithField("path", c.path).Error("Failed to clear resume state")
	}
}

func (c *Checkpoint) loadLocked() models.CheckpointState {
	var st models.CheckpointState

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.WithError(err).WithField("path", c.path).Warn("Failed to load resume state, ignoring")
		}
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		c.logger.WithError(err).WithField("path", c.path).Warn("Resume state file is invalid, ignoring")
		return models.CheckpointState{}
	}
	return st
}

func (c *Checkpoint) writeLocked(st models.CheckpointState) {
	if err := writeJSONAtomic(c.path, st); err != nil {
		c.logger.WithError(err).WithField("path", c.path).Error("Failed to persist resume state")
	}
}
