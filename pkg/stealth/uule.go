package stealth

import (
	"encoding/base64"
	"fmt"
)

// uuleAlphabet is the fixed alphabet spec.md §4.7 indexes into by
// len(canonicalName); index overflow falls back to 'A'.
const uuleAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// BuildCanonicalName joins a city and state into the canonical location
// name UULE encodes, e.g. "Boca Raton,Florida,United States".
func BuildCanonicalName(city, state string) string {
	if city == "" && state == "" {
		return ""
	}
	if state == "" {
		return fmt.Sprintf("%s,United States", city)
	}
	if city == "" {
		return fmt.Sprintf("%s,United States", state)
	}
	return fmt.Sprintf("%s,%s,United States", city, state)
}

// EncodeUULE encodes a canonical location name as
// "w+CAIQICI<len-char><base64(canonicalName)>" (spec.md §4.7). It is
// deterministic and depends only on its input.
func EncodeUULE(canonicalName string) string {
	lengthChar := lengthCharFor(len(canonicalName))
	encoded := base64.StdEncoding.EncodeToString([]byte(canonicalName))
	return fmt.Sprintf("w+CAIQICI%c%s", lengthChar, encoded)
}

func lengthCharFor(n int) byte {
	if n < 0 || n >= len(uuleAlphabet) {
		return 'A'
	}
	return uuleAlphabet[n]
}
