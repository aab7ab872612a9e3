package db

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EngineCookie is a single cookie persisted for one engine's jar,
// adapted from the teacher's WorkspaceCookie (spec.md §4.7 cookie jar).
type EngineCookie struct {
	BaseModel
	EngineID string    `json:"engine_id" gorm:"index;not null"`
	Name     string    `json:"name" gorm:"index"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain" gorm:"index"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	MaxAge   int       `json:"max_age"`
	Secure   bool      `json:"secure"`
	HttpOnly bool      `json:"http_only"`
}

func (c EngineCookie) isExpired(now time.Time) bool {
	if c.MaxAge < 0 {
		return true
	}
	if c.MaxAge > 0 {
		return now.After(c.BaseModel.CreatedAt.Add(time.Duration(c.MaxAge) * time.Second))
	}
	if !c.Expires.IsZero() {
		return now.After(c.Expires)
	}
	return false
}

func (d *DatabaseConnection) UpsertEngineCookie(c *EngineCookie) error {
	var existing EngineCookie
	err := d.db.Where("engine_id = ? AND name = ? AND domain = ?", c.EngineID, c.Name, c.Domain).First(&existing).Error
	if err == nil {
		existing.Value = c.Value
		existing.Path = c.Path
		existing.Expires = c.Expires
		existing.MaxAge = c.MaxAge
		existing.Secure = c.Secure
		existing.HttpOnly = c.HttpOnly
		return d.db.Save(&existing).Error
	}
	result := d.db.Create(c)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to persist engine cookie")
	}
	return result.Error
}

// GetEngineCookiesForDomain returns the non-expired cookies stored for an
// engine whose domain suffix-matches the given host, pruning expired
// rows as it reads them (spec.md §4.7 "prunes expired entries on read").
func (d *DatabaseConnection) GetEngineCookiesForDomain(engineID, host string) ([]*EngineCookie, error) {
	var all []*EngineCookie
	if err := d.db.Where("engine_id = ?", engineID).Find(&all).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	matched := make([]*EngineCookie, 0, len(all))
	var expiredIDs []uint
	for _, c := range all {
		if c.isExpired(now) {
			expiredIDs = append(expiredIDs, c.ID)
			continue
		}
		if strings.HasSuffix(host, c.Domain) || strings.HasSuffix(c.Domain, host) {
			matched = append(matched, c)
		}
	}
	if len(expiredIDs) > 0 {
		d.db.Where("id IN ?", expiredIDs).Delete(&EngineCookie{})
	}
	return matched, nil
}

// EngineCookieJar is an http.CookieJar backed by EngineCookie rows, one
// jar per engine, serialized through a mutex the way the teacher's
// WorkspaceCookieJar guards its in-memory cache.
type EngineCookieJar struct {
	mu       sync.Mutex
	engineID string
	dbConn   *DatabaseConnection
}

func NewEngineCookieJar(dbConn *DatabaseConnection, engineID string) *EngineCookieJar {
	return &EngineCookieJar{engineID: engineID, dbConn: dbConn}
}

func (j *EngineCookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			domain = u.Hostname()
		}
		rec := &EngineCookie{
			EngineID: j.engineID,
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     c.Path,
			Expires:  c.Expires,
			MaxAge:   c.MaxAge,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if err := j.dbConn.UpsertEngineCookie(rec); err != nil {
			log.Warn().Err(err).Str("engine_id", j.engineID).Msg("Failed to persist cookie")
		}
	}
}

func (j *EngineCookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	stored, err := j.dbConn.GetEngineCookiesForDomain(j.engineID, u.Hostname())
	if err != nil {
		log.Warn().Err(err).Str("engine_id", j.engineID).Msg("Failed to read cookies")
		return nil
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return cookies
}

// Header renders the jar's cookies for host as a single "Cookie" header
// value (spec.md §4.7: "concatenates into one Cookie header").
func (j *EngineCookieJar) Header(host string) string {
	u := &url.URL{Host: host}
	cookies := j.Cookies(u)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, fmt.Sprintf("%s=%s", c.Name, c.Value))
	}
	return strings.Join(parts, "; ")
}
