package corpus

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
)

var (
	akaPattern  = regexp.MustCompile(`\s*\(a\.k\.a\.[^)]*\)`)
	yearPattern = regexp.MustCompile(`\s*\(\d{4}\)\s*$`)
)

// ExtractTitle returns the raw title column of a movieId,title,genres row.
// Quoted fields may contain commas.
func ExtractTitle(line string) (string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	record, err := r.Read()
	if err != nil {
		return "", fmt.Errorf("failed to parse row: %w", err)
	}
	if len(record) < 2 {
		return "", fmt.Errorf("row has %d columns, want at least 2", len(record))
	}
	return record[1], nil
}

// CleanTitle strips a trailing "(YYYY)" and any "(a.k.a. ...)" annotation
func CleanTitle(raw string) string {
	title := akaPattern.ReplaceAllString(raw, "")
	title = yearPattern.ReplaceAllString(strings.TrimSpace(title), "")
	return strings.TrimSpace(title)
}
