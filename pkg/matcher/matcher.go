// Package matcher implements BusinessMatcher: the deduplication /
// entity-resolution cascade over parsed listings (spec.md §4.3).
package matcher

import (
	"strings"
	"time"

	"github.com/agext/levenshtein"
	"github.com/pynara/geogrid/db"
	"github.com/rs/zerolog/log"
)

// MatchType names which tier resolved a parsed business, or "new" when
// none did.
type MatchType string

const (
	MatchTypePlaceID     MatchType = "place_id"
	MatchTypePhone        MatchType = "phone"
	MatchTypeNameCoords   MatchType = "name_coords"
	MatchTypePhoneFuzzy   MatchType = "phone_fuzzy_name"
	MatchTypeDomainCity   MatchType = "domain_city"
	MatchTypeNew          MatchType = "new"
)

// ParsedBusiness is the subset of an engine's parsed listing BusinessMatcher
// needs to resolve and merge (spec.md §4.2 "a parsed business carries...").
type ParsedBusiness struct {
	Name        string
	Address     string
	City        string
	State       string
	Phone       string
	Website     string
	Lat         *float64
	Lng         *float64
	Rating      *float64
	ReviewCount *int
	PlaceID     string
}

// Result is what Resolve returns for a parsed business.
type Result struct {
	BusinessID uint
	Confidence int
	MatchType  MatchType
	CreatedNew bool
}

const (
	fuzzyNameMaxLevenshtein = 3
	tier3Confidence         = 95
	tier2Confidence         = 90
	tier1Confidence         = 100
	tier35Confidence        = 85
	tier4Confidence         = 80
)

// Matcher resolves parsed listings against the deduplicated Business
// table.
type Matcher struct {
	dbConn *db.DatabaseConnection
}

func New(dbConn *db.DatabaseConnection) *Matcher {
	return &Matcher{dbConn: dbConn}
}

// Resolve runs the tier cascade from spec.md §4.3 and returns the
// winning business id, creating a new Business record if no tier hits.
func (m *Matcher) Resolve(parsed ParsedBusiness, engineID string, categoryID *uint) (Result, error) {
	normalizedName := NormalizeName(parsed.Name)
	normalizedPhone := NormalizePhone(parsed.Phone)
	normalizedDomain := ""
	if parsed.Website != "" {
		normalizedDomain = NormalizeDomain(parsed.Website)
	}

	// Tier 1: exact googlePlaceId equality.
	if parsed.PlaceID != "" {
		if existing, err := m.dbConn.GetBusinessByGooglePlaceID(parsed.PlaceID); err == nil {
			return m.hit(existing, tier1Confidence, MatchTypePlaceID, parsed, engineID, normalizedPhone)
		}
	}

	// Tier 2: normalized phone equality.
	if normalizedPhone != nil {
		if existing, err := m.dbConn.GetBusinessByNormalizedPhone(*normalizedPhone); err == nil {
			return m.hit(existing, tier2Confidence, MatchTypePhone, parsed, engineID, normalizedPhone)
		}
	}

	// Tier 3: same normalized name, both coordinates known, haversine < 50m.
	if parsed.Lat != nil && parsed.Lng != nil {
		candidates, err := m.dbConn.GetBusinessesByNormalizedName(normalizedName)
		if err == nil {
			for _, candidate := range candidates {
				if candidate.Lat == nil || candidate.Lng == nil {
					continue
				}
				if HaversineMiles(*parsed.Lat, *parsed.Lng, *candidate.Lat, *candidate.Lng) < tier3DistanceMiles {
					return m.hit(candidate, tier3Confidence, MatchTypeNameCoords, parsed, engineID, normalizedPhone)
				}
			}
		}
	}

	// Tier 3.5: same normalized phone AND Levenshtein(names) <= 3.
	if normalizedPhone != nil {
		candidates, err := m.dbConn.GetBusinessesByNormalizedPhone(*normalizedPhone)
		if err == nil {
			for _, candidate := range candidates {
				if levenshtein.Distance(normalizedName, candidate.NormalizedName, nil) <= fuzzyNameMaxLevenshtein {
					return m.hit(candidate, tier35Confidence, MatchTypePhoneFuzzy, parsed, engineID, normalizedPhone)
				}
			}
		}
	}

	// Tier 4: same normalized domain AND same city (case-insensitive).
	if normalizedDomain != "" && parsed.City != "" {
		candidates, err := m.dbConn.GetBusinessesByDomainAndCity(normalizedDomain, parsed.City)
		if err == nil && len(candidates) > 0 {
			return m.hit(candidates[0], tier4Confidence, MatchTypeDomainCity, parsed, engineID, normalizedPhone)
		}
	}

	// Tier 5: no match, create a new business.
	return m.createNew(parsed, engineID, categoryID, normalizedName, normalizedPhone, normalizedDomain)
}

// hit finishes a tier match: touches LastSeenAt and merges selected
// fields onto the existing record (spec.md §4.3 "On hit...").
func (m *Matcher) hit(existing *db.Business, confidence int, matchType MatchType, parsed ParsedBusiness, engineID string, normalizedPhone *string) (Result, error) {
	now := time.Now()
	m.mergeFields(existing, parsed, engineID, normalizedPhone)
	if _, err := m.dbConn.UpdateBusiness(existing); err != nil {
		log.Error().Err(err).Uint("business_id", existing.ID).Msg("Failed to merge matched business")
		return Result{}, err
	}
	if err := m.dbConn.TouchLastSeen(existing.ID, now); err != nil {
		log.Warn().Err(err).Uint("business_id", existing.ID).Msg("Failed to touch last_seen_at")
	}
	return Result{BusinessID: existing.ID, Confidence: confidence, MatchType: matchType, CreatedNew: false}, nil
}

// mergeFields applies spec.md §4.3's merge rule: phone only for
// non-Bing engines; website/place ids/coordinates only when previously
// null; per-engine rating/review count always refreshed.
func (m *Matcher) mergeFields(existing *db.Business, parsed ParsedBusiness, engineID string, normalizedPhone *string) {
	if !isBingEngine(engineID) && normalizedPhone != nil && existing.NormalizedPhone == nil {
		existing.NormalizedPhone = normalizedPhone
	}
	if parsed.Website != "" && existing.Website == nil {
		website := parsed.Website
		domain := NormalizeDomain(website)
		existing.Website = &website
		existing.NormalizedDomain = &domain
	}
	if parsed.PlaceID != "" && existing.GooglePlaceID == nil {
		placeID := parsed.PlaceID
		existing.GooglePlaceID = &placeID
	}
	if parsed.Lat != nil && existing.Lat == nil {
		existing.Lat = parsed.Lat
	}
	if parsed.Lng != nil && existing.Lng == nil {
		existing.Lng = parsed.Lng
	}
	applyRatings(existing, parsed, engineID)
}

func applyRatings(existing *db.Business, parsed ParsedBusiness, engineID string) {
	if parsed.Rating == nil && parsed.ReviewCount == nil {
		return
	}
	if isBingEngine(engineID) {
		existing.BingRating = parsed.Rating
		existing.BingReviewCount = parsed.ReviewCount
	} else {
		existing.GoogleRating = parsed.Rating
		existing.GoogleReviewCount = parsed.ReviewCount
	}
}

func (m *Matcher) createNew(parsed ParsedBusiness, engineID string, categoryID *uint, normalizedName string, normalizedPhone *string, normalizedDomain string) (Result, error) {
	now := time.Now()
	business := &db.Business{
		Name:            parsed.Name,
		NormalizedName:  normalizedName,
		NormalizedPhone: normalizedPhone,
		Address:         parsed.Address,
		City:            parsed.City,
		State:           parsed.State,
		Lat:             parsed.Lat,
		Lng:             parsed.Lng,
		CategoryID:      categoryID,
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}
	if parsed.Website != "" {
		website := parsed.Website
		business.Website = &website
		domain := normalizedDomain
		business.NormalizedDomain = &domain
	}
	if parsed.PlaceID != "" {
		placeID := parsed.PlaceID
		business.GooglePlaceID = &placeID
	}
	applyRatings(business, parsed, engineID)

	created, err := m.dbConn.CreateBusiness(business)
	if err != nil {
		return Result{}, err
	}
	return Result{BusinessID: created.ID, Confidence: 0, MatchType: MatchTypeNew, CreatedNew: true}, nil
}

func isBingEngine(engineID string) bool {
	return strings.HasPrefix(engineID, "bing")
}
