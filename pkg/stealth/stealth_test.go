package stealth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilePoolHasAtLeastNine(t *testing.T) {
	require.GreaterOrEqual(t, len(defaultProfiles), 9)
}

func TestProfilePoolRotateChangesProfile(t *testing.T) {
	pool := NewProfilePool()
	before := pool.Current()
	after := pool.Rotate()
	assert.NotEqual(t, before.Name, after.Name)
}

func TestFirefoxProfilesOmitClientHints(t *testing.T) {
	for _, p := range defaultProfiles {
		if p.Name[:7] == "firefox" {
			assert.False(t, p.SendsClientHints)
		}
	}
}

func TestHumanDelayClampsToMinimum(t *testing.T) {
	d := HumanDelay(100*time.Millisecond, 100*time.Millisecond, 0)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
}

func TestEncodeUULEDeterministic(t *testing.T) {
	name := BuildCanonicalName("Boca Raton", "Florida")
	a := EncodeUULE(name)
	b := EncodeUULE(name)
	assert.Equal(t, a, b)
	assert.Regexp(t, `^w\+CAIQICI.`, a)
}

func TestProxyRotatorCooldown(t *testing.T) {
	r := &ProxyRotator{cooldownUntil: make(map[string]time.Time), cooldownPeriod: 30 * time.Minute}
	r.addProxy("http://proxy-a:8080")
	r.addProxy("http://proxy-b:8080")

	first := r.Next()
	require.NotNil(t, first)
	r.MarkFailed(first)

	second := r.Next()
	require.NotNil(t, second)
	assert.NotEqual(t, first.String(), second.String())
}
