package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/pkg/geoengine"
	"github.com/pynara/geogrid/pkg/geoengine/stub"
	"github.com/pynara/geogrid/pkg/grid"
	"github.com/pynara/geogrid/pkg/matcher"
	"github.com/pynara/geogrid/pkg/stealth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *db.DatabaseConnection {
	t.Helper()
	conn, err := db.NewTestConnection()
	require.NoError(t, err)
	return conn
}

func seedAreaAndCategory(t *testing.T, conn *db.DatabaseConnection) (*db.ServiceArea, *db.Category) {
	t.Helper()
	area, err := conn.CreateServiceArea(&db.ServiceArea{
		Name: "Boca Raton", State: "FL", CenterLat: 26.3683, CenterLng: -80.1289,
		RadiusMiles: 5, IsActive: true,
	})
	require.NoError(t, err)
	category, err := conn.CreateCategory(&db.Category{Name: "Plumbers", Slug: "plumbers", IsActive: true})
	require.NoError(t, err)
	return area, category
}

type fakeListingParser struct {
	name string
}

func (f fakeListingParser) Parse(body []byte) ([]geoengine.ParsedListing, []geoengine.OrganicResult, string, error) {
	rating := 4.5
	count := 10
	return []geoengine.ParsedListing{
		{Name: f.name, City: "Boca Raton", State: "FL", Rating: &rating, ReviewCount: &count, ResultType: geoengine.ResultTypeLocalPack, RankPosition: 1},
	}, nil, "fake-v1", nil
}

type okFetcher struct{}

func (okFetcher) Fetch(ctx context.Context, req geoengine.Request) ([]byte, int, error) {
	return []byte("<html>ok</html>"), 200, nil
}

func newBingEngine(name string) *geoengine.Engine {
	return geoengine.New(geoengine.Config{
		EngineID: "bing_api",
		Throttle: geoengine.ThrottleConfig{MinDelayMs: 1, MaxDelayMs: 2, MaxPerHour: 1000, MaxPerDay: 1000},
	}, okFetcher{}, fakeListingParser{name: name}, nil, nil, stealth.NewProfilePool())
}

// TestCreateScanHappyPath covers Scenario S1: a one-engine scan runs its
// grid to completion and produces a ranking + review snapshot.
func TestCreateScanHappyPath(t *testing.T) {
	conn := newTestDB(t)
	area, category := seedAreaAndCategory(t, conn)

	registry := geoengine.NewRegistry()
	registry.Register(newBingEngine("Joe's Plumbing"))

	o := New(conn, registry, matcher.New(conn))

	scan, err := o.CreateScan(CreateScanRequest{
		ServiceAreaID: area.ID,
		CategoryID:    category.ID,
		Keyword:       "plumber",
		EngineID:      "bing_api",
		GridSize:      3,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, scan.PointsTotal)

	require.Eventually(t, func() bool {
		got, err := conn.GetScanByID(scan.ID)
		require.NoError(t, err)
		return got.PointsCompleted >= got.PointsTotal
	}, 2*time.Second, 20*time.Millisecond)

	var rankingCount int64
	require.NoError(t, conn.DB().Model(&db.ScanRanking{}).Count(&rankingCount).Error)
	assert.Equal(t, int64(9), rankingCount)

	var reviewCount int64
	require.NoError(t, conn.DB().Model(&db.ReviewSnapshot{}).Count(&reviewCount).Error)
	assert.Equal(t, int64(9), reviewCount)

	o.Stop()
}

// TestCreateScanValidatesInputs covers spec.md §7's ValidationError path:
// nothing is persisted when the request references a bad grid size.
func TestCreateScanValidatesInputs(t *testing.T) {
	conn := newTestDB(t)
	area, category := seedAreaAndCategory(t, conn)

	registry := geoengine.NewRegistry()
	registry.Register(newBingEngine("Irrelevant"))
	o := New(conn, registry, matcher.New(conn))

	_, err := o.CreateScan(CreateScanRequest{
		ServiceAreaID: area.ID, CategoryID: category.ID, EngineID: "bing_api", GridSize: 4,
	})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "gridSize", ve.Field)

	_, err = o.CreateScan(CreateScanRequest{
		ServiceAreaID: 999999, CategoryID: category.ID, EngineID: "bing_api", GridSize: 3,
	})
	require.Error(t, err)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "serviceAreaId", ve.Field)

	o.Stop()
}

// TestCreateFullScanDefaultsAndStubEngine exercises the google_maps stub
// engine (Open Question #2): it must terminate with zero rankings rather
// than hang or error.
func TestCreateFullScanDefaultsAndStubEngine(t *testing.T) {
	conn := newTestDB(t)
	area, category := seedAreaAndCategory(t, conn)
	_, err := conn.CreateKeyword(&db.Keyword{CategoryID: category.ID, Text: "emergency plumber", IsActive: true})
	require.NoError(t, err)

	registry := geoengine.NewRegistry()
	registry.Register(geoengine.New(geoengine.Config{EngineID: "google_maps", ReputationGroup: "google"}, stub.Fetcher{}, stub.Parser{}, nil, nil, stealth.NewProfilePool()))

	o := New(conn, registry, matcher.New(conn))
	scans, err := o.CreateFullScan(CreateFullScanRequest{
		ServiceAreaIDs: []uint{area.ID},
		CategoryIDs:    []uint{category.ID},
		GridSize:       3,
	})
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "emergency plumber", scans[0].Keyword)

	require.Eventually(t, func() bool {
		got, err := conn.GetScanByID(scans[0].ID)
		require.NoError(t, err)
		return got.PointsCompleted >= got.PointsTotal
	}, 2*time.Second, 20*time.Millisecond)

	var rankingCount int64
	require.NoError(t, conn.DB().Model(&db.ScanRanking{}).Count(&rankingCount).Error)
	assert.Equal(t, int64(0), rankingCount)

	o.Stop()
}

// TestRecoverOrphanedScans covers Scenario S5: a scan left running with
// unfinished points gets its points re-queued and runs to completion.
func TestRecoverOrphanedScans(t *testing.T) {
	conn := newTestDB(t)
	area, category := seedAreaAndCategory(t, conn)

	scan, err := conn.CreateScan(&db.Scan{
		ServiceAreaID: area.ID, CategoryID: category.ID, Keyword: "plumber",
		EngineID: "bing_api", GridSize: 3, RadiusMiles: area.RadiusMiles,
		Status: db.ScanStatusRunning, PointsTotal: 9, PointsCompleted: 3,
	})
	require.NoError(t, err)

	cells := grid.Generate(area.CenterLat, area.CenterLng, area.RadiusMiles, 3)
	points := make([]*db.ScanPoint, 0, len(cells))
	for i, c := range cells {
		status := db.ScanPointStatusPending
		if i < 3 {
			status = db.ScanPointStatusCompleted
		}
		points = append(points, &db.ScanPoint{ScanID: scan.ID, GridRow: c.Row, GridCol: c.Col, Lat: c.Lat, Lng: c.Lng, Status: status})
	}
	require.NoError(t, conn.CreateScanPoints(points))

	registry := geoengine.NewRegistry()
	registry.Register(newBingEngine("Joe's Plumbing"))
	o := New(conn, registry, matcher.New(conn))

	require.NoError(t, o.RecoverOrphanedScans())

	require.Eventually(t, func() bool {
		got, err := conn.GetScanByID(scan.ID)
		require.NoError(t, err)
		return got.PointsCompleted >= got.PointsTotal
	}, 2*time.Second, 20*time.Millisecond)

	o.Stop()
}
