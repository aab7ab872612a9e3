package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/pkg/geoengine"
	"github.com/pynara/geogrid/pkg/geoengine/stub"
	"github.com/pynara/geogrid/pkg/matcher"
	"github.com/pynara/geogrid/pkg/orchestrator"
	"github.com/pynara/geogrid/pkg/scheduler"
	"github.com/pynara/geogrid/pkg/stealth"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd wires the enclosing application exactly as spec.md §6
// describes it: build the engine registry, install the group-daily-
// total callback into the queue, recover orphaned scans, start the
// scheduler, and on signal shut down Scheduler -> Queue -> database in
// that order.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and recover orphaned scans",
	Long: `serve wires the ScanOrchestrator, ScanQueue and ScanScheduler, recovers
any scans left running or queued by a previous process, starts the
cron scheduler, and blocks until interrupted.

Concrete engine HTTP fetching and response parsing are out of scope for
this core (spec.md §1); every registered engine here runs the
deterministic zero-result stub until a real Fetcher/Parser pair is
substituted for its EngineID.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	dbConn := db.Connection

	registry := buildEngineRegistry(dbConn)
	m := matcher.New(dbConn)
	orch := orchestrator.New(dbConn, registry, m)
	sched := scheduler.New(dbConn, orch)

	if err := orch.RecoverOrphanedScans(); err != nil {
		log.Error().Err(err).Msg("Orphan recovery failed, continuing to accept new scans")
	}

	if err := sched.Start(); err != nil {
		return err
	}

	log.Info().Int("engines", len(registry.EngineIDs())).Msg("geogrid serve started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down: stopping scheduler")
	sched.Stop()
	log.Info().Msg("Shutting down: stopping queue")
	orch.Stop()
	log.Info().Msg("Shutting down: closing database")
	if err := dbConn.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing database connection")
	}
	return nil
}

// buildEngineRegistry constructs one geoengine.Engine per configured
// engine id, grouping the three Google-surfaced engines into the
// "google" reputation group per spec.md §4.2, and sharing one
// ProxyRotator and one ProfilePool across every engine the way
// spec.md §5 requires ("the proxy rotator is the only truly shared
// mutable object").
func buildEngineRegistry(dbConn *db.DatabaseConnection) *geoengine.Registry {
	registry := geoengine.NewRegistry()
	proxyRotator := stealth.NewProxyRotator(time.Duration(viper.GetInt("proxy.cooldown_minutes")) * time.Minute)
	profilePool := stealth.NewProfilePool()

	for _, id := range viper.GetStringSlice("engines.enabled") {
		cfg := geoengine.Config{
			EngineID:        id,
			ReputationGroup: reputationGroupFor(id),
			Referer:         refererFor(id),
			IsLegitimateAPI: isAPIEngine(id),
			RequiresAPIKey:  isAPIEngine(id),
			Throttle: geoengine.ThrottleConfig{
				MinDelayMs:          viper.GetInt("throttle.min_delay_ms"),
				MaxDelayMs:          viper.GetInt("throttle.max_delay_ms"),
				MaxPerHour:          viper.GetInt("throttle.max_per_hour"),
				MaxPerDay:           viper.GetInt("throttle.max_per_day"),
				JitterMs:            viper.GetInt("throttle.jitter_ms"),
				BackoffOnError:      true,
				PauseOnCaptchaHours: viper.GetFloat64("throttle.pause_on_captcha_hours"),
			},
		}
		jar := db.NewEngineCookieJar(dbConn, id)
		engine := geoengine.New(cfg, stub.Fetcher{}, stub.Parser{}, jar, proxyRotator, profilePool)
		registry.Register(engine)
	}

	return registry
}

func reputationGroupFor(engineID string) string {
	switch engineID {
	case "google_search", "google_maps", "google_local_finder":
		return "google"
	default:
		return ""
	}
}

func refererFor(engineID string) string {
	switch {
	case engineID == "google_search" || engineID == "google_maps" || engineID == "google_local_finder":
		return "google.com"
	case engineID == "bing_api" || engineID == "bing_local":
		return "bing.com"
	default:
		return ""
	}
}

func isAPIEngine(engineID string) bool {
	return engineID == "bing_api"
}
