package domain

import "strings"

// ShortageTier is the coarse replenishment urgency of a product.
type ShortageTier string

const (
	TierCritical   ShortageTier = "critical"
	TierWarning    ShortageTier = "warning"
	TierSufficient ShortageTier = "sufficient"
)

var shortageTierLabels = map[ShortageTier]string{
	TierCritical:   "심각",
	TierWarning:    "주의",
	TierSufficient: "충분",
}

var shortageTierCodes = map[string]ShortageTier{
	"critical":   TierCritical,
	"warning":    TierWarning,
	"sufficient": TierSufficient,
	"심각":         TierCritical,
	"주의":         TierWarning,
	"충분":         TierSufficient,
}

// Label returns the label shown on the pharmacy dashboard.
func (t ShortageTier) Label() string {
	if label, ok := shortageTierLabels[t]; ok {
		return label
	}
	return string(t)
}

// IsShort reports whether the tier belongs in the low-stock listing.
func (t ShortageTier) IsShort() bool {
	return t == TierCritical || t == TierWarning
}

// ParseShortageTier accepts English codes or dashboard labels (case-insensitive).
func ParseShortageTier(label string) (ShortageTier, bool) {
	tier, ok := shortageTierCodes[strings.ToLower(strings.TrimSpace(label))]
	return tier, ok
}
