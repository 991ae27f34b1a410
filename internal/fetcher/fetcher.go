package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"crm-alerts/internal/crm"
)

// OpportunityFetcher retrieves the current opportunity set from a CRM feed.
type OpportunityFetcher interface {
	FetchOpportunities(ctx context.Context) ([]crm.Opportunity, error)
}

type feedEnvelope struct {
	Opportunities []crm.Opportunity `json:"opportunities"`
}

// decodeOpportunities accepts both feed shapes: a bare JSON array and an
// object wrapping the array under "opportunities".
func decodeOpportunities(payload []byte) ([]crm.Opportunity, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var opps []crm.Opportunity
		if err := json.Unmarshal(trimmed, &opps); err != nil {
			return nil, fmt.Errorf("decode opportunity list: %w", err)
		}
		return opps, nil
	}

	var envelope feedEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode opportunity feed: %w", err)
	}
	return envelope.Opportunities, nil
}
