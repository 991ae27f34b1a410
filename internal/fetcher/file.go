package fetcher

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"crm-alerts/internal/crm"
)

// File reads opportunities from a local JSON export. Used by the check
// command and for air-gapped runs.
type File struct {
	path   string
	logger zerolog.Logger
}

// NewFile constructs a file-backed fetcher.
func NewFile(path string, logger zerolog.Logger) *File {
	return &File{path: path, logger: logger.With().Str("component", "file_fetcher").Logger()}
}

// FetchOpportunities reads and decodes the export on every call, so a
// long-running watcher picks up file changes between passes.
func (f *File) FetchOpportunities(ctx context.Context) ([]crm.Opportunity, error) {
	payload, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read opportunities file: %w", err)
	}
	return decodeOpportunities(payload)
}

// Static serves a fixed opportunity set. Test and simulation helper.
type Static struct {
	Opportunities []crm.Opportunity
}

func (s Static) FetchOpportunities(ctx context.Context) ([]crm.Opportunity, error) {
	return s.Opportunities, nil
}

var (
	_ OpportunityFetcher = (*File)(nil)
	_ OpportunityFetcher = Static{}
)
