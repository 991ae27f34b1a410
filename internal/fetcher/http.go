package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crm-alerts/internal/crm"
)

// HTTPOptions parameterise the CRM feed fetcher.
type HTTPOptions struct {
	FeedURL   string
	APIToken  string
	Timeout   time.Duration
	UserAgent string
}

// HTTP pulls opportunities from a CRM REST endpoint.
type HTTP struct {
	opts   HTTPOptions
	logger zerolog.Logger
	client *http.Client
}

// NewHTTP constructs an HTTP feed fetcher.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTP{
		opts:   opts,
		logger: logger.With().Str("component", "crm_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchOpportunities retrieves and decodes the opportunity feed.
func (h *HTTP) FetchOpportunities(ctx context.Context) ([]crm.Opportunity, error) {
	if h.opts.FeedURL == "" {
		return nil, errors.New("crm feed url required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "crmwatcher/1.0")
	}
	if h.opts.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.opts.APIToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch opportunity feed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	opps, err := decodeOpportunities(payload)
	if err != nil {
		return nil, err
	}

	h.logger.Debug().Int("count", len(opps)).Msg("opportunity feed fetched")
	return opps, nil
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("crm feed error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("crm feed error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("crm feed error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("crm feed error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("crm feed error (%d)", status)
}

var _ OpportunityFetcher = (*HTTP)(nil)
