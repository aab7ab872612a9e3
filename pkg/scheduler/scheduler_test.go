package scheduler

import (
	"testing"
	"time"

	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/pkg/geoengine"
	"github.com/pynara/geogrid/pkg/geoengine/stub"
	"github.com/pynara/geogrid/pkg/matcher"
	"github.com/pynara/geogrid/pkg/orchestrator"
	"github.com/pynara/geogrid/pkg/stealth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSetup(t *testing.T) (*db.DatabaseConnection, *orchestrator.Orchestrator, *db.ServiceArea, *db.Category) {
	t.Helper()
	conn, err := db.NewTestConnection()
	require.NoError(t, err)

	area, err := conn.CreateServiceArea(&db.ServiceArea{Name: "Tampa", State: "FL", CenterLat: 27.95, CenterLng: -82.46, RadiusMiles: 5, IsActive: true})
	require.NoError(t, err)
	category, err := conn.CreateCategory(&db.Category{Name: "Electricians", Slug: "electricians", IsActive: true})
	require.NoError(t, err)

	registry := geoengine.NewRegistry()
	registry.Register(geoengine.New(geoengine.Config{EngineID: "google_maps", ReputationGroup: "google"}, stub.Fetcher{}, stub.Parser{}, nil, nil, stealth.NewProfilePool()))

	o := orchestrator.New(conn, registry, matcher.New(conn))
	return conn, o, area, category
}

// TestScheduleFiresAndRecordsRunTimes covers Scenario S6: a schedule due
// "now" (every-second cron expression) fires within a few seconds and
// records LastRunAt.
func TestScheduleFiresAndRecordsRunTimes(t *testing.T) {
	conn, o, area, category := newTestSetup(t)
	defer o.Stop()

	schedule, err := conn.CreateScanSchedule(&db.ScanSchedule{
		Name:           "nightly",
		CronExpression: "@every 1s",
		ServiceAreaIDs: db.UintSliceJSON{area.ID},
		CategoryIDs:    db.UintSliceJSON{category.ID},
		EngineIDs:      db.StringSliceJSON{"google_maps"},
		GridSize:       3,
		IsActive:       true,
	})
	require.NoError(t, err)

	s := New(conn, o)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool {
		got, err := conn.GetScanScheduleByID(schedule.ID)
		require.NoError(t, err)
		return got.LastRunAt != nil
	}, 3*time.Second, 50*time.Millisecond)
}

// TestInvalidCronExpressionSkipped covers spec.md §4.6's "invalid cron
// expressions are logged and skipped, not fatal": Start must still
// succeed and leave the schedule unregistered.
func TestInvalidCronExpressionSkipped(t *testing.T) {
	conn, o, area, category := newTestSetup(t)
	defer o.Stop()

	_, err := conn.CreateScanSchedule(&db.ScanSchedule{
		Name:           "broken",
		CronExpression: "not a cron expression",
		ServiceAreaIDs: db.UintSliceJSON{area.ID},
		CategoryIDs:    db.UintSliceJSON{category.ID},
		EngineIDs:      db.StringSliceJSON{"google_maps"},
		GridSize:       3,
		IsActive:       true,
	})
	require.NoError(t, err)

	s := New(conn, o)
	err = s.Start()
	require.NoError(t, err)
	defer s.Stop()

	assert.Empty(t, s.entries)
}

// TestReloadSchedulePicksUpChange covers ReloadSchedule re-registering an
// updated cron expression.
func TestReloadSchedulePicksUpChange(t *testing.T) {
	conn, o, area, category := newTestSetup(t)
	defer o.Stop()

	schedule, err := conn.CreateScanSchedule(&db.ScanSchedule{
		Name:           "weekly",
		CronExpression: "0 0 * * 0",
		ServiceAreaIDs: db.UintSliceJSON{area.ID},
		CategoryIDs:    db.UintSliceJSON{category.ID},
		EngineIDs:      db.StringSliceJSON{"google_maps"},
		GridSize:       3,
		IsActive:       true,
	})
	require.NoError(t, err)

	s := New(conn, o)
	require.NoError(t, s.Start())
	defer s.Stop()
	require.Len(t, s.entries, 1)

	require.NoError(t, conn.DB().Model(&db.ScanSchedule{}).Where("id = ?", schedule.ID).
		Update("cron_expression", "@every 1s").Error)

	require.NoError(t, s.ReloadSchedule(schedule.ID))
	require.Eventually(t, func() bool {
		got, err := conn.GetScanScheduleByID(schedule.ID)
		require.NoError(t, err)
		return got.LastRunAt != nil
	}, 3*time.Second, 50*time.Millisecond)
}
