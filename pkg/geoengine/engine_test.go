package geoengine

import (
	"context"
	"testing"
	"time"

	"github.com/pynara/geogrid/pkg/grid"
	"github.com/pynara/geogrid/pkg/stealth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	body       []byte
	statusCode int
	err        error
}

func (f fakeFetcher) Fetch(ctx context.Context, req Request) ([]byte, int, error) {
	return f.body, f.statusCode, f.err
}

type fakeParser struct {
	businesses []ParsedListing
}

func (f fakeParser) Parse(body []byte) ([]ParsedListing, []OrganicResult, string, error) {
	return f.businesses, nil, "fake-v1", nil
}

type noCookieJar struct{}

func (noCookieJar) Header(host string) string { return "" }

func newTestEngine(fetch Fetcher, parse Parser) *Engine {
	cfg := Config{
		EngineID: "bing_api",
		Throttle: ThrottleConfig{MinDelayMs: 1, MaxDelayMs: 2, JitterMs: 0, MaxPerHour: 60, MaxPerDay: 400, PauseOnCaptchaHours: 24},
	}
	return New(cfg, fetch, parse, noCookieJar{}, nil, stealth.NewProfilePool())
}

func TestSearchHappyPath(t *testing.T) {
	e := newTestEngine(fakeFetcher{body: []byte("<html>ok</html>"), statusCode: 200}, fakeParser{businesses: []ParsedListing{{Name: "Joe's Pizza"}}})
	result, err := e.Search(context.Background(), "pizza", grid.Point{}, "Boca Raton", "FL")
	require.NoError(t, err)
	assert.Len(t, result.Businesses, 1)
	assert.False(t, result.Metadata.CaptchaDetected)
	assert.Equal(t, StatusHealthy, e.Status())
}

func TestCaptchaDetectionBlocksEngine(t *testing.T) {
	e := newTestEngine(fakeFetcher{body: []byte("Our systems have detected unusual traffic"), statusCode: 200}, fakeParser{})
	result, err := e.Search(context.Background(), "pizza", grid.Point{}, "", "")
	require.NoError(t, err)
	assert.True(t, result.Metadata.CaptchaDetected)
	assert.Equal(t, StatusBlocked, e.Status())

	until := e.BlockedUntil()
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), until, 2*time.Second)
}

func TestGraduatedBlockEscalation(t *testing.T) {
	e := newTestEngine(fakeFetcher{body: []byte("captcha"), statusCode: 200}, fakeParser{})

	e.recordBlockEvent()
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), e.BlockedUntil(), 2*time.Second)

	e.captchaEvents[0] = time.Now().Add(-30 * time.Minute)
	e.recordBlockEvent()
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), e.BlockedUntil(), 2*time.Second)

	e.recordBlockEvent()
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), e.BlockedUntil(), 2*time.Second)
}

func TestThrottledWhenHourCapReached(t *testing.T) {
	e := newTestEngine(fakeFetcher{body: []byte("ok"), statusCode: 200}, fakeParser{})
	e.config.Throttle.MaxPerHour = 1
	e.recordSuccess()
	assert.Equal(t, StatusThrottled, e.Status())
}

func TestManualClearResetsState(t *testing.T) {
	e := newTestEngine(fakeFetcher{body: []byte("captcha"), statusCode: 200}, fakeParser{})
	e.recordBlockEvent()
	require.Equal(t, StatusBlocked, e.Status())
	e.ClearBlock()
	assert.Equal(t, StatusHealthy, e.Status())
}

func TestDetectCaptchaCaseInsensitive(t *testing.T) {
	assert.True(t, DetectCaptcha("Please solve this CAPTCHA to continue"))
	assert.True(t, DetectCaptcha("unusual Traffic detected from your network"))
	assert.False(t, DetectCaptcha("<html>normal results</html>"))
}
