package matcher

import (
	"regexp"
	"strings"

	"github.com/gosimple/slug"
)

// legalSuffixes are stripped (as whole trailing words) when deriving a
// normalized name, per spec.md §3.
var legalSuffixes = []string{
	"llc", "inc", "incorporated", "corp", "corporation", "ltd", "limited",
	"co", "company", "pllc", "pc", "lp", "llp",
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]`)
var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeName applies: unicode-to-ASCII folding, lowercase, strip
// legal suffixes, remove non-alphanumeric, collapse whitespace. It is
// idempotent: NormalizeName(NormalizeName(s)) == NormalizeName(s).
// Folding through slug.Make first means "Jose's Plumbing" and "José's
// Plumbing" normalize to the same key, which matters for tier-3/tier-3.5
// matching against listings scraped from engines with inconsistent
// unicode handling (spec.md §3).
func NormalizeName(name string) string {
	folded := strings.ReplaceAll(slug.Make(strings.TrimSpace(name)), "-", " ")
	s := strings.ToLower(strings.TrimSpace(folded))
	s = nonAlphanumeric.ReplaceAllString(s, " ")
	s = multiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	words := strings.Fields(s)
	for len(words) > 0 {
		last := words[len(words)-1]
		if isLegalSuffix(last) {
			words = words[:len(words)-1]
			continue
		}
		break
	}
	return strings.Join(words, " ")
}

func isLegalSuffix(word string) bool {
	for _, suffix := range legalSuffixes {
		if word == suffix {
			return true
		}
	}
	return false
}

var digitsOnly = regexp.MustCompile(`\D`)

// NormalizePhone reduces a phone number to digits-only with a US +1
// country prefix. A 10-digit US number becomes "+1" plus the 10 digits,
// an 11-digit number starting with 1 becomes "+" plus the 11 digits;
// any other shape returns nil (spec.md §3, §8).
func NormalizePhone(phone string) *string {
	digits := digitsOnly.ReplaceAllString(phone, "")
	switch len(digits) {
	case 10:
		normalized := "+1" + digits
		return &normalized
	case 11:
		if digits[0] == '1' {
			normalized := "+" + digits
			return &normalized
		}
	}
	return nil
}

// NormalizeDomain lowercases a URL's host and strips a leading "www.".
func NormalizeDomain(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	s = strings.ToLower(s)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, "@"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimPrefix(s, "www.")
	return s
}
