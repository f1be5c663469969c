package ledger

import (
	"math"
	"strconv"
	"strings"
)

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "", "\u00a0", "", "\ufeff", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}

// findColumn returns the index of the first header matching any alias, or -1.
func findColumn(header []string, aliases ...string) int {
	targets := make(map[string]struct{}, len(aliases))
	for _, name := range aliases {
		targets[normalizeColumnName(name)] = struct{}{}
	}
	for i, h := range header {
		if _, ok := targets[normalizeColumnName(h)]; ok {
			return i
		}
	}
	return -1
}

// ParseQuantity reads a quantity cell. Thousands separators are stripped.
// Blank, unparseable and non-finite cells yield zero with Defaulted set.
func ParseQuantity(raw string) QuantityResult {
	v := strings.TrimSpace(raw)
	if v == "" {
		return QuantityResult{Defaulted: true, Reason: "blank quantity"}
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		return QuantityResult{Defaulted: true, Reason: "quantity is not a number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return QuantityResult{Defaulted: true, Reason: "quantity is not a finite number"}
	}
	return QuantityResult{Value: f}
}

// isSequenceNumber reports whether a sequence cell holds a row number.
// Footer and summary rows carry labels there instead.
func isSequenceNumber(raw string) bool {
	return isDigits(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func isBlankRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
