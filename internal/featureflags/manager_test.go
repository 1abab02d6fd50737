package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_Switches(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_Rollout(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,over=250%")

	assert.True(t, m.Enabled("always", 1))
	assert.True(t, m.Enabled("always", 0))
	assert.False(t, m.Enabled("never", 1))
	assert.True(t, m.Enabled("over", 7))

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42), "rollout must be deterministic per user")
	}
	assert.False(t, m.Enabled("canary", 0), "anonymous callers are never in a partial rollout")
}

func TestNewManager_IgnoresMalformedPairs(t *testing.T) {
	m := NewManager(" bad ,x=on, Y = 20% ,z=off,w=maybe,=on,v=")

	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, m.Raw())
	assert.Len(t, m.Snapshot(123), 3)
}

func TestRequireVerifiedEmail(t *testing.T) {
	assert.True(t, NewManager("REQUIRE_VERIFIED_EMAIL=on").Enabled(RequireVerifiedEmail, 9))
	assert.False(t, NewManager("").Enabled(RequireVerifiedEmail, 9))

	var m *Manager
	assert.False(t, m.Enabled(RequireVerifiedEmail, 9))
	assert.Empty(t, m.Snapshot(9))
}
