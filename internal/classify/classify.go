package classify

import (
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/consorcioops/boleto-batch/internal/config"
	"github.com/consorcioops/boleto-batch/internal/models"
)

// Classifier decides whether fetched bytes are a usable document and whether
// a record's page text marks it as contemplated. Keyword and marker lists are
// configuration, not code: the portal's wording changes between agents.
type Classifier struct {
	errorMarkers            []string
	contemplatedKeywords    []string
	notContemplatedKeywords []string
}

// New creates a new classifier from configuration
func New(cfg config.ClassifyConfig) *Classifier {
	return &Classifier{
		errorMarkers:            cfg.ErrorMarkers,
		contemplatedKeywords:    cfg.ContemplatedKeywords,
		notContemplatedKeywords: cfg.NotContemplatedKeywords,
	}
}

// DecodeLegacy decodes the portal's single-byte legacy encoding (ISO-8859-1).
func DecodeLegacy(body []byte) string {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		// Every byte maps in ISO-8859-1; fall back to the raw bytes anyway.
		return string(body)
	}
	return string(decoded)
}

// ClassifyDocument validates fetched bytes. A known server-error marker in
// the decoded text wins over the size check: the portal answers HTTP 200
// with a small error page on internal failures.
func (c *Classifier) ClassifyDocument(body []byte, minSize int) models.DocumentClass {
	text := DecodeLegacy(body)
	for _, marker := range c.errorMarkers {
		if strings.Contains(text, marker) {
			return models.DocumentServerError
		}
	}
	if len(body) < minSize {
		return models.DocumentTooSmall
	}
	return models.DocumentValid
}

// ClassifyEligibility derives the contemplation status from page text. The
// not-contemplated keywords are scanned first: "NÃO CONTEMPLADO" contains
// "CONTEMPLADO" as a substring, so the reverse order would misclassify.
func (c *Classifier) ClassifyEligibility(pageText string) models.EligibilityStatus {
	upper := strings.ToUpper(pageText)

	for _, keyword := range c.notContemplatedKeywords {
		if strings.Contains(upper, strings.ToUpper(keyword)) {
			return models.NotContemplated
		}
	}
	for _, keyword := range c.contemplatedKeywords {
		if strings.Contains(upper, strings.ToUpper(keyword)) {
			return models.Contemplated
		}
	}
	return models.UnknownStatus
}
