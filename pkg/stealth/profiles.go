// Package stealth provides the shared anti-detection helpers every engine
// draws on: browser fingerprint rotation, proxy rotation, human-like
// delay jitter, and Google's UULE location encoding (spec.md §4.7). The
// per-engine cookie jar lives in package db (db.EngineCookieJar).
package stealth

import (
	"math/rand"
	"sync"
)

// Profile is one internally-consistent browser fingerprint: User-Agent
// plus the client-hint headers a real browser of that kind would send.
// Firefox omits client hints entirely, matching real browser behavior.
type Profile struct {
	Name              string
	UserAgent         string
	SecCHUA           string
	SecCHUAPlatform   string
	SecCHUAMobile     string
	SendsClientHints  bool
}

// defaultProfiles is the set ProfilePool rotates through. At least 9 entries mixing
// Chrome, Firefox, Edge across Windows/macOS/Linux per spec.md §4.7.
var defaultProfiles = []Profile{
	{Name: "chrome-windows", UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", SecCHUA: `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`, SecCHUAPlatform: `"Windows"`, SecCHUAMobile: "?0", SendsClientHints: true},
	{Name: "chrome-macos", UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", SecCHUA: `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`, SecCHUAPlatform: `"macOS"`, SecCHUAMobile: "?0", SendsClientHints: true},
	{Name: "chrome-linux", UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", SecCHUA: `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`, SecCHUAPlatform: `"Linux"`, SecCHUAMobile: "?0", SendsClientHints: true},
	{Name: "edge-windows", UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0", SecCHUA: `"Chromium";v="124", "Microsoft Edge";v="124", "Not-A.Brand";v="99"`, SecCHUAPlatform: `"Windows"`, SecCHUAMobile: "?0", SendsClientHints: true},
	{Name: "edge-macos", UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0", SecCHUA: `"Chromium";v="123", "Microsoft Edge";v="123", "Not-A.Brand";v="99"`, SecCHUAPlatform: `"macOS"`, SecCHUAMobile: "?0", SendsClientHints: true},
	{Name: "firefox-windows", UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0", SendsClientHints: false},
	{Name: "firefox-macos", UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:125.0) Gecko/20100101 Firefox/125.0", SendsClientHints: false},
	{Name: "firefox-linux", UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0", SendsClientHints: false},
	{Name: "chrome-windows-older", UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36", SecCHUA: `"Chromium";v="122", "Google Chrome";v="122", "Not-A.Brand";v="99"`, SecCHUAPlatform: `"Windows"`, SecCHUAMobile: "?0", SendsClientHints: true},
	{Name: "chrome-linux-older", UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36", SecCHUA: `"Chromium";v="121", "Google Chrome";v="121", "Not-A.Brand";v="99"`, SecCHUAPlatform: `"Linux"`, SecCHUAMobile: "?0", SendsClientHints: true},
}

// ProfilePool hands out a uniformly random profile and rotates to a
// different one on demand.
type ProfilePool struct {
	mu       sync.Mutex
	profiles []Profile
	current  int
}

func NewProfilePool() *ProfilePool {
	return &ProfilePool{profiles: defaultProfiles, current: rand.Intn(len(defaultProfiles))}
}

// Current returns the pool's active profile.
func (p *ProfilePool) Current() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profiles[p.current]
}

// Rotate selects a different profile than the current one and returns
// it (spec.md §4.7: "rotate chooses a different profile than the current one").
func (p *ProfilePool) Rotate() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.profiles) <= 1 {
		return p.profiles[p.current]
	}
	next := p.current
	for next == p.current {
		next = rand.Intn(len(p.profiles))
	}
	p.current = next
	return p.profiles[p.current]
}
