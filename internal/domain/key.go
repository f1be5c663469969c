package domain

import (
	"math"
	"strconv"
	"strings"
)

// keySeparator joins name and code in the flat key format used by the needs store.
const keySeparator = "::"

// ProductKey identifies a drug SKU after normalization.
type ProductKey struct {
	Name string `json:"name" db:"name"`
	Code string `json:"code" db:"code"`
}

// NewProductKey trims the name and normalizes the code.
func NewProductKey(name, code string) ProductKey {
	return ProductKey{
		Name: NormalizeName(name),
		Code: NormalizeCode(code),
	}
}

// ParseProductKey splits a "name::code" string. A missing separator yields a name-only key.
func ParseProductKey(raw string) ProductKey {
	name, code, _ := strings.Cut(raw, keySeparator)
	return NewProductKey(name, code)
}

func (k ProductKey) String() string {
	return k.Name + keySeparator + k.Code
}

// Less orders keys by name, then code.
func (k ProductKey) Less(other ProductKey) bool {
	if k.Name != other.Name {
		return k.Name < other.Name
	}
	return k.Code < other.Code
}

// NormalizeName trims surrounding whitespace. Case is preserved.
func NormalizeName(raw string) string {
	return strings.TrimSpace(raw)
}

// NormalizeCode collapses numeric representations ("1234", "1234.0", "1,234", "01234.00")
// to their truncated integer form. Non-numeric codes are returned trimmed.
func NormalizeCode(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	t := math.Trunc(f)
	if t == 0 {
		return "0"
	}
	return strconv.FormatFloat(t, 'f', -1, 64)
}
