// Package stub ships a deterministic zero-result Fetcher+Parser pair,
// grounded on the teacher's NoOpCircuitBreaker pattern of shipping a
// no-op alongside a real interface. It is the "google_maps" engine's
// implementation until a browser-backed engine replaces it: spec.md §9
// requires that such an engine "return empty results" and "terminate
// cleanly", never hang.
package stub

import (
	"context"

	"github.com/pynara/geogrid/pkg/geoengine"
)

// Fetcher returns an empty 200 response for every request.
type Fetcher struct{}

func (Fetcher) Fetch(ctx context.Context, req geoengine.Request) ([]byte, int, error) {
	return []byte(""), 200, nil
}

// Parser returns zero businesses and zero organic results for any body.
type Parser struct{}

func (Parser) Parse(body []byte) ([]geoengine.ParsedListing, []geoengine.OrganicResult, string, error) {
	return nil, nil, "stub-v1", nil
}
