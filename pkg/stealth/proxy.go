package stealth

import (
	"bufio"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ProxyRotator is the single shared mutable object stealth helpers use
// across every engine (spec.md §5): round-robin allocation over a list
// loaded from env or file, skipping entries in a 30-minute failure
// cooldown. SOCKS proxies are not supported by the core (spec.md §4.7).
type ProxyRotator struct {
	mu              sync.Mutex
	proxies         []*url.URL
	next            int
	cooldownUntil   map[string]time.Time
	cooldownPeriod  time.Duration
}

// NewProxyRotator loads PROXY_LIST (comma-separated) or PROXY_FILE (one
// per line, "#" comments skipped) per spec.md §6.
func NewProxyRotator(cooldown time.Duration) *ProxyRotator {
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	r := &ProxyRotator{
		cooldownUntil:  make(map[string]time.Time),
		cooldownPeriod: cooldown,
	}

	list := viper.GetString("proxy.list")
	if list == "" {
		list = os.Getenv("PROXY_LIST")
	}
	file := viper.GetString("proxy.file")
	if file == "" {
		file = os.Getenv("PROXY_FILE")
	}
	if list != "" {
		r.loadFromList(list)
	} else if file != "" {
		r.loadFromFile(file)
	}
	return r
}

func (r *ProxyRotator) loadFromList(list string) {
	for _, raw := range strings.Split(list, ",") {
		r.addProxy(raw)
	}
}

func (r *ProxyRotator) loadFromFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to open proxy file")
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r.addProxy(line)
	}
}

func (r *ProxyRotator) addProxy(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		log.Warn().Err(err).Str("proxy", raw).Msg("Skipping invalid proxy URL")
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		log.Warn().Str("proxy", raw).Str("scheme", u.Scheme).Msg("Skipping unsupported proxy scheme (SOCKS not supported by the core)")
		return
	}
	r.proxies = append(r.proxies, u)
}

// Next returns the next non-cooled-down proxy in round-robin order, or
// nil if proxying is disabled or every proxy is cooling down.
func (r *ProxyRotator) Next() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.proxies) == 0 {
		return nil
	}

	now := time.Now()
	for i := 0; i < len(r.proxies); i++ {
		idx := (r.next + i) % len(r.proxies)
		candidate := r.proxies[idx]
		if until, cooling := r.cooldownUntil[candidate.String()]; cooling && now.Before(until) {
			continue
		}
		r.next = (idx + 1) % len(r.proxies)
		return candidate
	}
	return nil
}

// MarkFailed puts a proxy into a 30-minute cooldown shared across every
// engine (spec.md §4.2 "a proxy that fails (any engine) enters a
// 30-minute cooldown").
func (r *ProxyRotator) MarkFailed(proxy *url.URL) {
	if proxy == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cooldownUntil[proxy.String()] = time.Now().Add(r.cooldownPeriod)
}

// Count returns the number of configured proxies, for diagnostics/tests.
func (r *ProxyRotator) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies)
}
