package matcher

import (
	"testing"

	"github.com/pynara/geogrid/db"
	"github.com/stretchr/testify/require"
)

func newTestMatcher(t *testing.T) (*Matcher, *db.DatabaseConnection) {
	t.Helper()
	conn, err := db.NewTestConnection()
	require.NoError(t, err)
	return New(conn), conn
}

func TestResolveCreatesNewBusiness(t *testing.T) {
	m, _ := newTestMatcher(t)
	result, err := m.Resolve(ParsedBusiness{Name: "Joe's Pizza", Phone: "(561) 555-1234"}, "bing_api", nil)
	require.NoError(t, err)
	require.True(t, result.CreatedNew)
	require.Equal(t, MatchTypeNew, result.MatchType)
}

func TestResolveStability(t *testing.T) {
	m, _ := newTestMatcher(t)
	parsed := ParsedBusiness{Name: "Joe's Pizza", Phone: "(561) 555-1234"}

	first, err := m.Resolve(parsed, "bing_api", nil)
	require.NoError(t, err)
	require.True(t, first.CreatedNew)

	second, err := m.Resolve(parsed, "bing_api", nil)
	require.NoError(t, err)
	require.False(t, second.CreatedNew)
	require.Equal(t, first.BusinessID, second.BusinessID)
}

func TestResolveTier1BeatsTier2(t *testing.T) {
	m, conn := newTestMatcher(t)

	placeBiz, err := conn.CreateBusiness(&db.Business{
		Name: "Joe's Pizza, LLC", NormalizedName: "joe s pizza",
		GooglePlaceID: strPtr("PX"),
	})
	require.NoError(t, err)

	otherPhone := "+15555550000"
	_, err = conn.CreateBusiness(&db.Business{
		Name: "Unrelated", NormalizedName: "unrelated",
		NormalizedPhone: &otherPhone,
	})
	require.NoError(t, err)

	result, err := m.Resolve(ParsedBusiness{
		Name:    "Joe's Pizza",
		PlaceID: "PX",
		Phone:   "555-555-0000",
	}, "google_search", nil)
	require.NoError(t, err)
	require.Equal(t, MatchTypePlaceID, result.MatchType)
	require.Equal(t, placeBiz.ID, result.BusinessID)
}

func TestResolveTier3NameAndCoords(t *testing.T) {
	m, conn := newTestMatcher(t)
	lat, lng := 26.4615, -80.0728
	biz, err := conn.CreateBusiness(&db.Business{
		Name: "Pete's", NormalizedName: NormalizeName("Pete's"),
		Lat: &lat, Lng: &lng,
	})
	require.NoError(t, err)

	nearLat, nearLng := 26.46151, -80.07281
	result, err := m.Resolve(ParsedBusiness{
		Name: "Pete's", Lat: &nearLat, Lng: &nearLng,
	}, "google_search", nil)
	require.NoError(t, err)
	require.Equal(t, MatchTypeNameCoords, result.MatchType)
	require.Equal(t, biz.ID, result.BusinessID)
}

func strPtr(s string) *string { return &s }
