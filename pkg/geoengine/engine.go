// Package geoengine implements the Engine abstraction every concrete
// search-engine scraper satisfies: CAPTCHA/stealth discipline, throttle
// counters, and graduated block response (spec.md §4.2).
package geoengine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pynara/geogrid/pkg/grid"
	"github.com/pynara/geogrid/pkg/stealth"
	"github.com/rs/zerolog/log"
)

// Status is the derived health of an engine, read order blocked ->
// throttled -> healthy (spec.md §4.2).
type Status string

const (
	StatusHealthy    Status = "healthy"
	StatusThrottled  Status = "throttled"
	StatusBlocked    Status = "blocked"
	StatusDisabled   Status = "disabled"
)

// ThrottleConfig is the per-engine rate-limiting configuration
// (spec.md §4.2).
type ThrottleConfig struct {
	MinDelayMs          int
	MaxDelayMs          int
	MaxPerHour          int
	MaxPerDay           int
	JitterMs            int
	BackoffOnError      bool
	PauseOnCaptchaHours float64
}

// Config is an engine's immutable construction-time configuration.
type Config struct {
	EngineID        string
	ReputationGroup string
	Throttle        ThrottleConfig
	IsLegitimateAPI bool
	RequiresAPIKey  bool
	Referer         string
	Disabled        bool
}

// ResultType enumerates the SERP section a parsed listing came from
// (spec.md §4.2).
type ResultType string

const (
	ResultTypeLocalPack        ResultType = "local_pack"
	ResultTypeOrganic          ResultType = "organic"
	ResultTypeMaps             ResultType = "maps"
	ResultTypeLocalFinder      ResultType = "local_finder"
	ResultTypeKnowledgePanel   ResultType = "knowledge_panel"
	ResultTypePeopleAlsoAsk    ResultType = "people_also_ask"
	ResultTypeRelatedSearches  ResultType = "related_searches"
	ResultTypeAds              ResultType = "ads"
)

// ParsedListing is one business listing parsed out of a SERP response.
type ParsedListing struct {
	Name         string
	Address      string
	City         string
	State        string
	Phone        string
	Website      string
	Lat          *float64
	Lng          *float64
	Rating       *float64
	ReviewCount  *int
	PlaceID      string
	ResultType   ResultType
	RankPosition int
	Snippet      string
}

// OrganicResult is a plain organic SERP entry without business identity.
type OrganicResult struct {
	Title        string
	URL          string
	Snippet      string
	RankPosition int
}

// Metadata carries response-shape diagnostics every SearchResult returns.
type Metadata struct {
	CaptchaDetected bool
	ResponseTimeMs  int64
	ParserVersion   string
	HTTPStatus      int
}

// SearchResult is the common output contract every engine produces
// (spec.md §4.2).
type SearchResult struct {
	EngineID      string
	Query         string
	Location      grid.Point
	Timestamp     time.Time
	Businesses    []ParsedListing
	OrganicResults []OrganicResult
	Metadata      Metadata
}

// Fetcher performs the actual network call. It is the seam the core
// depends on only through its return shape (spec.md §1/§6): the request
// routing, TLS, and wire format live in the concrete fetcher
// implementation, not in this package.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (body []byte, statusCode int, err error)
}

// Parser turns a raw response body into the common output contract.
// Engine-specific HTML/JSON parsing is explicitly out of scope
// (spec.md §1); the core only depends on this interface's shape.
type Parser interface {
	Parse(body []byte) (businesses []ParsedListing, organic []OrganicResult, parserVersion string, err error)
}

// Request is everything a Fetcher needs to issue one query.
type Request struct {
	Query     string
	Point     grid.Point
	City      string
	State     string
	UserAgent string
	Headers   map[string]string
	Cookie    string
	ProxyURL  string
}

var captchaIndicators = []string{
	"unusual traffic", "captcha", "our systems have detected",
	"sorry/index", "recaptcha",
}

// DetectCaptcha reports whether a response body carries one of the
// case-insensitive CAPTCHA indicator phrases from spec.md §4.2.
func DetectCaptcha(body string) bool {
	lower := strings.ToLower(body)
	for _, indicator := range captchaIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// Engine is the base behavior every concrete engine inherits: throttle
// counters, block state, cookie jar, and profile rotation, wrapping a
// caller-supplied Fetcher+Parser pair.
type Engine struct {
	mu sync.Mutex

	config Config
	fetch  Fetcher
	parse  Parser
	jar    CookieJar
	proxy  *stealth.ProxyRotator
	pool   *stealth.ProfilePool

	hourCount        int
	hourResetAt      time.Time
	dayCount         int
	dayResetAt       time.Time
	lastRequestAt    time.Time
	blockedUntil     time.Time
	errorStreak      int
	captchaEvents    []time.Time
	sessionRequests  int
}

// CookieJar is the subset of db.EngineCookieJar's behavior the engine
// needs; kept as an interface so tests can use an in-memory fake.
type CookieJar interface {
	Header(host string) string
}

// New constructs an engine in the healthy state with its hour/day
// buckets freshly reset.
func New(config Config, fetch Fetcher, parse Parser, jar CookieJar, proxy *stealth.ProxyRotator, pool *stealth.ProfilePool) *Engine {
	now := time.Now()
	return &Engine{
		config:      config,
		fetch:       fetch,
		parse:       parse,
		jar:         jar,
		proxy:       proxy,
		pool:        pool,
		hourResetAt: now.Add(time.Hour),
		dayResetAt:  nextUTCMidnight(now),
	}
}

func nextUTCMidnight(from time.Time) time.Time {
	utc := from.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return midnight
}

// Config returns the engine's immutable configuration.
func (e *Engine) Config() Config {
	return e.config
}

// RequestsToday returns the day counter, used by the orchestrator's
// group-daily-total callback (spec.md §4.5).
func (e *Engine) RequestsToday() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshBuckets(time.Now())
	return e.dayCount
}

func (e *Engine) refreshBuckets(now time.Time) {
	if !e.hourResetAt.IsZero() && now.After(e.hourResetAt) {
		e.hourCount = 0
		e.hourResetAt = now.Add(time.Hour)
	}
	if !e.dayResetAt.IsZero() && now.After(e.dayResetAt) {
		e.dayCount = 0
		e.dayResetAt = nextUTCMidnight(now)
	}
}

// Status derives the engine's health in read order blocked -> throttled
// -> healthy, silently clearing an expired block (spec.md §4.2).
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked(time.Now())
}

func (e *Engine) statusLocked(now time.Time) Status {
	if e.config.Disabled {
		return StatusDisabled
	}
	if !e.blockedUntil.IsZero() {
		if now.Before(e.blockedUntil) {
			return StatusBlocked
		}
		e.blockedUntil = time.Time{}
	}
	e.refreshBuckets(now)
	if e.config.Throttle.MaxPerHour > 0 && e.hourCount >= e.config.Throttle.MaxPerHour {
		return StatusThrottled
	}
	if e.config.Throttle.MaxPerDay > 0 && e.dayCount >= e.config.Throttle.MaxPerDay {
		return StatusThrottled
	}
	return StatusHealthy
}

// CanMakeRequest reports whether status is healthy.
func (e *Engine) CanMakeRequest() bool {
	return e.Status() == StatusHealthy
}

// waitForThrottle computes and sleeps the pre-request delay described in
// spec.md §4.2 steps 2-5.
func (e *Engine) waitForThrottle(ctx context.Context) {
	e.mu.Lock()
	t := e.config.Throttle
	errorStreak := e.errorStreak
	e.mu.Unlock()

	minDelay := time.Duration(t.MinDelayMs) * time.Millisecond
	maxDelay := time.Duration(t.MaxDelayMs) * time.Millisecond
	jitter := time.Duration(t.JitterMs) * time.Millisecond

	delay := stealth.HumanDelay(minDelay, maxDelay, jitter)
	if errorStreak > 0 {
		delay = stealth.ErrorStreakMultiplier(delay, errorStreak)
	}
	delay = time.Duration(float64(delay) * stealth.AntiPeriodicityFactor())

	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

// buildRequest assembles the headers/cookie/proxy a real browser profile
// would send (spec.md §4.2 "Request construction").
func (e *Engine) buildRequest(query string, point grid.Point, city, state string) Request {
	profile := e.pool.Current()
	headers := map[string]string{}
	if profile.SendsClientHints {
		headers["Sec-CH-UA"] = profile.SecCHUA
		headers["Sec-CH-UA-Platform"] = profile.SecCHUAPlatform
		headers["Sec-CH-UA-Mobile"] = profile.SecCHUAMobile
	}
	if e.config.Referer != "" {
		headers["Referer"] = e.config.Referer
		headers["Sec-Fetch-Site"] = "same-origin"
	} else {
		headers["Sec-Fetch-Site"] = "none"
	}

	host := e.config.Referer
	if host == "" {
		host = e.config.EngineID
	}
	cookie := ""
	if e.jar != nil {
		cookie = e.jar.Header(host)
	}

	var proxyURL string
	if e.proxy != nil {
		if p := e.proxy.Next(); p != nil {
			proxyURL = p.String()
		}
	}

	return Request{
		Query:     query,
		Point:     point,
		City:      city,
		State:     state,
		UserAgent: profile.UserAgent,
		Headers:   headers,
		Cookie:    cookie,
		ProxyURL:  proxyURL,
	}
}

// Search issues one query at one grid point, applying the full
// pre-request and post-response discipline from spec.md §4.2.
func (e *Engine) Search(ctx context.Context, query string, point grid.Point, city, state string) (SearchResult, error) {
	e.waitForThrottle(ctx)

	req := e.buildRequest(query, point, city, state)
	start := time.Now()
	body, statusCode, err := e.fetch.Fetch(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		e.recordError()
		return SearchResult{}, fmt.Errorf("engine %s: fetch failed: %w", e.config.EngineID, err)
	}

	if DetectCaptcha(string(body)) || (strings.HasPrefix(e.config.EngineID, "google") && statusCode == 429) {
		e.recordBlockEvent()
		return SearchResult{
			EngineID:  e.config.EngineID,
			Query:     query,
			Location:  point,
			Timestamp: time.Now(),
			Metadata:  Metadata{CaptchaDetected: true, ResponseTimeMs: elapsed.Milliseconds(), HTTPStatus: statusCode},
		}, nil
	}

	businesses, organic, parserVersion, err := e.parse.Parse(body)
	if err != nil {
		e.recordError()
		return SearchResult{}, fmt.Errorf("engine %s: parse failed: %w", e.config.EngineID, err)
	}

	e.recordSuccess()

	return SearchResult{
		EngineID:       e.config.EngineID,
		Query:          query,
		Location:       point,
		Timestamp:      time.Now(),
		Businesses:     businesses,
		OrganicResults: organic,
		Metadata: Metadata{
			ResponseTimeMs: elapsed.Milliseconds(),
			ParserVersion:  parserVersion,
			HTTPStatus:     statusCode,
		},
	}, nil
}

func (e *Engine) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	e.refreshBuckets(now)
	e.hourCount++
	e.dayCount++
	e.lastRequestAt = now
	e.errorStreak = 0
	e.sessionRequests++
	if e.sessionRequests%20 == 0 {
		e.pool.Rotate()
	}
}

func (e *Engine) recordError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errorStreak++
}

// recordBlockEvent applies the graduated CAPTCHA block policy
// (spec.md §4.2 "Block policy"): 1st event in the trailing 24h -> 15m,
// 2nd -> 2h, 3rd+ -> 24h, capped/defaulted by PauseOnCaptchaHours.
func (e *Engine) recordBlockEvent() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-24 * time.Hour)
	pruned := e.captchaEvents[:0]
	for _, t := range e.captchaEvents {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	e.captchaEvents = append(pruned, now)

	var duration time.Duration
	switch len(e.captchaEvents) {
	case 1:
		duration = 15 * time.Minute
	case 2:
		duration = 2 * time.Hour
	default:
		duration = 24 * time.Hour
	}

	ceiling := e.config.Throttle.PauseOnCaptchaHours
	if ceiling <= 0 {
		ceiling = 24
	}
	ceilingDuration := time.Duration(ceiling * float64(time.Hour))
	if duration > ceilingDuration {
		duration = ceilingDuration
	}

	e.blockedUntil = now.Add(duration)
	log.Warn().
		Str("engine_id", e.config.EngineID).
		Time("blocked_until", e.blockedUntil).
		Int("captcha_events_24h", len(e.captchaEvents)).
		Msg("Engine blocked after CAPTCHA/429 event")

	e.pool.Rotate()
}

// ClearBlock performs a manual reset of blockedUntil, the error streak,
// and the CAPTCHA window (spec.md §4.2 "A manual clear resets...").
func (e *Engine) ClearBlock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blockedUntil = time.Time{}
	e.errorStreak = 0
	e.captchaEvents = nil
}

// BlockedUntil exposes the current block deadline for diagnostics.
func (e *Engine) BlockedUntil() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blockedUntil
}
