package engine

import (
	"sort"

	"crm-alerts/internal/alerting"
)

// Retain merges freshly generated alerts into the retained set: newest
// first, duplicate IDs dropped keeping the newest copy, then trimmed to
// limit entries evicting the oldest. The merge is stable and idempotent.
func Retain(existing, incoming []alerting.Alert, limit int) []alerting.Alert {
	merged := make([]alerting.Alert, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	seen := make(map[string]struct{}, len(merged))
	result := make([]alerting.Alert, 0, len(merged))
	for _, alert := range merged {
		if _, dup := seen[alert.ID]; dup {
			continue
		}
		seen[alert.ID] = struct{}{}
		result = append(result, alert)
	}

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
