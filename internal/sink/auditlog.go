package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// AuditLog appends one row per processed document to a durable audit trail
type AuditLog interface {
	AppendRow(values []string) error
}

// CSVAuditLog appends rows to a local CSV file
type CSVAuditLog struct {
	path   string
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewCSVAuditLog creates a new CSV audit log
func NewCSVAuditLog(path string, logger *logrus.Logger) *CSVAuditLog {
	return &CSVAuditLog{path: path, logger: logger}
}

// AppendRow appends one row and flushes it to disk
func (a *CSVAuditLog) AppendRow(values []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("sink: create audit log directory: %w", err)
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open audit log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(values); err != nil {
		return fmt.Errorf("sink: write audit row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("sink: flush audit row: %w", err)
	}

	a.logger.WithField("columns", len(values)).Debug("Audit row appended")
	return nil
}
