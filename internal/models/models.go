package models

import "time"

// Record identifies one group/quota unit of work
type Record struct {
	GroupID  string `json:"grupo"`
	QuotaID  string `json:"cota"`
	Name     string `json:"nome"`
	PhoneRaw string `json:"whats_raw,omitempty"`
	Phone    string `json:"whats_formatted,omitempty"`
}

// Actionable reports whether the record carries enough data to be processed
func (r Record) Actionable() bool {
	return r.GroupID != "" && r.QuotaID != ""
}

// Key returns the composite key used by the durable stores
func (r Record) Key() string {
	return r.GroupID + "|" + r.QuotaID
}

// FetchResult is the raw outcome of one document POST
type FetchResult struct {
	Body       []byte        `json:"-"`
	StatusCode int           `json:"status_code"`
	Elapsed    time.Duration `json:"elapsed"`
}

// DocumentClass classifies fetched bytes
type DocumentClass string

const (
	DocumentValid       DocumentClass = "valid"
	DocumentServerError DocumentClass = "server_error"
	DocumentTooSmall    DocumentClass = "too_small"
)

// EligibilityStatus classifies a record from page text
type EligibilityStatus string

const (
	Contemplated    EligibilityStatus = "CONTEMPLADO"
	NotContemplated EligibilityStatus = "NÃO CONTEMPLADO"
	UnknownStatus   EligibilityStatus = "UNKNOWN"
)

// ProcessedEntry is the persisted memo of a completed record
type ProcessedEntry struct {
	Group           string   `json:"grupo"`
	Quota           string   `json:"cota"`
	Timestamp       string   `json:"timestamp"`
	Status          string   `json:"status,omitempty"`
	TaxID           string   `json:"cpf_cnpj,omitempty"`
	DownloadedFiles []string `json:"downloaded_files,omitempty"`
	ArtifactIDs     []string `json:"artifact_ids,omitempty"`
}

// CheckpointKey identifies the record a checkpoint marker points at
type CheckpointKey struct {
	Group string `json:"grupo"`
	Quota string `json:"cota"`
}

// Matches reports whether the key identifies the given group/quota pair
func (k *CheckpointKey) Matches(group, quota string) bool {
	return k != nil && k.Group == group && k.Quota == quota
}

// CheckpointState is the durable resume marker pair
type CheckpointState struct {
	Pending       *CheckpointKey `json:"pending,omitempty"`
	LastProcessed *CheckpointKey `json:"last_processed,omitempty"`
	Timestamp     string         `json:"timestamp,omitempty"`
}

// Record processing statuses
const (
	StatusSuccess      = "success"
	StatusNoDownloads  = "no_downloads"
	StatusLoginFailed  = "login_failed"
	StatusSearchFailed = "search_failed"
	StatusError        = "error"
)

// RecordResult is the per-record outcome collected during a run
type RecordResult struct {
	Group           string            `json:"grupo"`
	Quota           string            `json:"cota"`
	Name            string            `json:"nome"`
	Status          string            `json:"status"`
	Error           string            `json:"error,omitempty"`
	TaxID           string            `json:"cpf_cnpj,omitempty"`
	Eligibility     EligibilityStatus `json:"contemplado_status,omitempty"`
	DownloadedFiles []string          `json:"downloaded_files"`
	DownloadedCount int               `json:"downloaded_count"`
	ArtifactIDs     []string          `json:"artifact_ids,omitempty"`
	Timestamp       string            `json:"timestamp"`
}

// RunSummary aggregates a completed run
type RunSummary struct {
	TotalRecords   int     `json:"total_records"`
	Successful     int     `json:"successful"`
	Failed         int     `json:"failed"`
	NoDownloads    int     `json:"no_downloads"`
	TotalDownloads int     `json:"total_downloads"`
	SuccessRate    float64 `json:"success_rate"`
}

// RunReport is the JSON report written at the end of a run
type RunReport struct {
	RunID     string         `json:"run_id"`
	Summary   RunSummary     `json:"summary"`
	Results   []RecordResult `json:"results"`
	Timestamp string         `json:"timestamp"`
}
