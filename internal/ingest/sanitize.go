package ingest

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// SanitizeGroup reduces a raw group value to digits only
func SanitizeGroup(raw string) string {
	return nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
}

// SanitizeQuota reduces a raw quota value to digits. Quotas are often
// exported with a hyphenated suffix ("1234-01"); only the segment before the
// first hyphen counts, falling back to all digits when that segment has none.
func SanitizeQuota(raw string) string {
	raw = strings.TrimSpace(raw)
	primary := nonDigits.ReplaceAllString(strings.SplitN(raw, "-", 2)[0], "")
	if primary != "" {
		return primary
	}
	return nonDigits.ReplaceAllString(raw, "")
}

// NormalizePhone reduces a raw contact number to digits and validates it has
// a country code. Numbers shorter than 12 digits cannot carry one and come
// back empty.
func NormalizePhone(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) >= 12 {
		return digits
	}
	return ""
}

// cleanNumericCell strips the ".0" suffix spreadsheet exports add to
// numeric-typed cells.
func cleanNumericCell(raw string) string {
	raw = strings.TrimSpace(raw)
	return strings.TrimSuffix(raw, ".0")
}
