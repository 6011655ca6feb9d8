// Package lot finds, validates and normalizes supplier lot identifiers in
// file names and cell values. Normalized form is LOT<digits> with an optional
// _YYMMDD suffix. Absence of a match is a normal result, never an error.
package lot

import (
	"regexp"
	"strconv"
	"strings"

	"deliverydesk/internal"
)

// Patterns are tried in order; the first one that yields an acceptable digit
// run wins. A digit run outside [6,10] rejects the candidate and moves on to
// the next pattern.
var lotPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)lot[u\s_]*(?:pl)?[_\s]*(\d{6,10})(?:_(\d{6}))?`), // LOTPL10021410_240506, LOT10021410
	regexp.MustCompile(`(?i)pl[_\s]*lot[_\s]*(\d{6,10})(?:_(\d{6}))?`),       // PLLOT10021410_240506
}

var (
	plainLotPattern = regexp.MustCompile(`^LOT\d{6,10}$`)
	datedLotPattern = regexp.MustCompile(`^LOT\d{6,10}_\d{6}$`)
)

var lotColumnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|\s)lot(?:\s|$)`),
	regexp.MustCompile(`(?i)numer.*partii`),
	regexp.MustCompile(`(?i)(?:^|\s)partia(?:\s|$)`),
	regexp.MustCompile(`(?i)nr.*partii`),
	regexp.MustCompile(`(?i)batch.*number`),
	regexp.MustCompile(`(?i)lot.*number`),
}

// AnalyzeFilename scans a file name for a lot identifier. A trailing date
// suffix that fails date validation is dropped while the lot number is kept.
func AnalyzeFilename(name string) *internal.LotMatch {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	for _, pattern := range lotPatterns {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		number := m[1]
		if len(number) < 6 || len(number) > 10 {
			continue
		}

		date := m[2]
		if date != "" && !validDate(date) {
			date = ""
		}

		formatted := "LOT" + number
		if date != "" {
			formatted += "_" + date
		}
		return &internal.LotMatch{Original: m[0], Formatted: formatted}
	}

	return nil
}

// ValidateLotFormat reports whether text is exactly LOT<6-10 digits> with an
// optional _YYMMDD suffix that passes date validation.
func ValidateLotFormat(text string) bool {
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return false
	}

	if !plainLotPattern.MatchString(text) && !datedLotPattern.MatchString(text) {
		return false
	}
	if idx := strings.Index(text, "_"); idx >= 0 {
		return validDate(text[idx+1:])
	}
	return true
}

// FormatLotNumber returns the upper-cased text when it is already valid,
// otherwise re-applies the extraction patterns to rebuild a normalized lot
// code. Nil when no valid structure is present.
func FormatLotNumber(text string) *string {
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	if ValidateLotFormat(text) {
		return internal.StringPtr(text)
	}

	for _, pattern := range lotPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		number := m[1]
		if len(number) < 6 || len(number) > 10 {
			continue
		}

		date := m[2]
		if date != "" && !validDate(date) {
			date = ""
		}

		formatted := "LOT" + number
		if date != "" {
			formatted += "_" + date
		}
		return internal.StringPtr(formatted)
	}

	return nil
}

// AnalyzeFileContent reports whether any header looks like a lot column.
func AnalyzeFileContent(headers []string) bool {
	if len(headers) == 0 {
		return false
	}

	parts := make([]string, 0, len(headers))
	for _, h := range headers {
		if strings.TrimSpace(h) != "" {
			parts = append(parts, strings.ToLower(h))
		}
	}
	joined := strings.Join(parts, " ")

	for _, pattern := range lotColumnPatterns {
		if pattern.MatchString(joined) {
			return true
		}
	}
	return false
}

// AnalyzeLotValues classifies a column of lot values. Empty strings, "nan"
// and "none" (any case) count as empty.
func AnalyzeLotValues(values []string) internal.LotValuesAnalysis {
	allEmpty := true
	valid := []string{}
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if !isEmptyLotValue(v) {
			allEmpty = false
		}
		if v != "" && ValidateLotFormat(v) {
			valid = append(valid, v)
		}
	}

	return internal.LotValuesAnalysis{
		HasValidLots: len(valid) > 0,
		ValidLots:    valid,
		AllEmpty:     allEmpty,
	}
}

func isEmptyLotValue(v string) bool {
	switch strings.ToLower(v) {
	case "", "nan", "none":
		return true
	}
	return false
}

func validDate(s string) bool {
	if len(s) != 6 {
		return false
	}
	yy, err1 := strconv.Atoi(s[:2])
	mm, err2 := strconv.Atoi(s[2:4])
	dd, err3 := strconv.Atoi(s[4:])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	return yy >= 0 && yy <= 99 && mm >= 1 && mm <= 12 && dd >= 1 && dd <= 31
}
