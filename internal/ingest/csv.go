package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/consorcioops/boleto-batch/internal/config"
	"github.com/consorcioops/boleto-batch/internal/models"
)

// Source yields a sequence of sanitized records to process
type Source interface {
	Load(ctx context.Context) ([]models.Record, error)
}

// CSVSource reads records from a local CSV file or a remote CSV URL
type CSVSource struct {
	path      string
	url       string
	delimiter rune
	client    *resty.Client
	logger    *logrus.Logger
}

// NewCSVSource creates a CSV record source from configuration
func NewCSVSource(cfg config.DataSourceConfig, logger *logrus.Logger) *CSVSource {
	delimiter := ','
	if cfg.CSVDelimiter != "" {
		delimiter = rune(cfg.CSVDelimiter[0])
	}
	return &CSVSource{
		path:      cfg.CSVPath,
		url:       cfg.CSVURL,
		delimiter: delimiter,
		client:    resty.New(),
		logger:    logger,
	}
}

// Load reads and sanitizes all records from the configured source
func (s *CSVSource) Load(ctx context.Context) ([]models.Record, error) {
	var reader io.Reader

	switch {
	case s.path != "":
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("open CSV file: %w", err)
		}
		defer f.Close()
		reader = f
	case s.url != "":
		resp, err := s.client.R().SetContext(ctx).Get(s.url)
		if err != nil {
			return nil, fmt.Errorf("fetch CSV URL: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("fetch CSV URL: HTTP %d", resp.StatusCode())
		}
		reader = strings.NewReader(resp.String())
	default:
		return nil, fmt.Errorf("no CSV path or URL configured")
	}

	records, err := s.parse(reader)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("records", len(records)).Info("Loaded records from CSV source")
	return records, nil
}

func (s *CSVSource) parse(reader io.Reader) ([]models.Record, error) {
	cr := csv.NewReader(reader)
	cr.Comma = s.delimiter
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToUpper(strings.TrimSpace(h))
	}

	var records []models.Record
	for _, row := range rows[1:] {
		cells := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(row) {
				cells[header] = row[i]
			}
		}

		phoneRaw := cleanNumericCell(firstNonEmpty(cells["WHATS"], cells["TELEFONE"]))
		record := models.Record{
			GroupID:  SanitizeGroup(cleanNumericCell(cells["GRUPO"])),
			QuotaID:  SanitizeQuota(cleanNumericCell(cells["COTA"])),
			Name:     strings.TrimSpace(cells["NOME"]),
			PhoneRaw: phoneRaw,
			Phone:    NormalizePhone(phoneRaw),
		}
		if record.PhoneRaw != "" && record.Phone == "" {
			s.logger.WithFields(logrus.Fields{
				"grupo": record.GroupID,
				"cota":  record.QuotaID,
				"phone": record.PhoneRaw,
			}).Warn("Invalid contact number, notifications will be skipped")
		}
		records = append(records, record)
	}
	return records, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Window applies the start-from / max-records slicing used by partial runs.
// startFrom is 1-based; zero or one starts at the beginning.
func Window(records []models.Record, startFrom, maxRecords int) []models.Record {
	start := startFrom - 1
	if start < 0 {
		start = 0
	}
	if start >= len(records) {
		return nil
	}
	records = records[start:]
	if maxRecords > 0 && maxRecords < len(records) {
		records = records[:maxRecords]
	}
	return records
}
