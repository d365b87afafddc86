package orchestrator

import (
	"github.com/consorcioops/boleto-batch/internal/models"
)

// SelectionPolicy decides which document triggers to fetch for a record
// based on its eligibility status. The portal lists documents most recent
// first.
type SelectionPolicy interface {
	Select(status models.EligibilityStatus, triggers []string) []string
}

// EligibilityPolicy fetches only the most recent document for contemplated
// records and every listed document otherwise.
type EligibilityPolicy struct{}

// Select implements SelectionPolicy
func (EligibilityPolicy) Select(status models.EligibilityStatus, triggers []string) []string {
	if status == models.Contemplated && len(triggers) > 1 {
		return triggers[:1]
	}
	return triggers
}

// MostRecentOnlyPolicy always fetches a single document regardless of status
type MostRecentOnlyPolicy struct{}

// Select implements SelectionPolicy
func (MostRecentOnlyPolicy) Select(_ models.EligibilityStatus, triggers []string) []string {
	if len(triggers) > 1 {
		return triggers[:1]
	}
	return triggers
}
