package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaybbs/bbskit/capability"
)

func TestLimiterAllowsUpToBurstCap(t *testing.T) {
	l := capability.NewLimiter("app1")
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(capability.OpKVDelete), "attempt %d should be allowed", i)
	}
	assert.False(t, l.Allow(capability.OpKVDelete), "6th attempt within the burst window should be refused")
}

func TestLimiterUnknownOpAlwaysAllowed(t *testing.T) {
	l := capability.NewLimiter("app1")
	assert.True(t, l.Allow(capability.Op("nonexistent")))
}

func TestLimiterIsPerInstance(t *testing.T) {
	a := capability.NewLimiter("app-a")
	b := capability.NewLimiter("app-b")
	for i := 0; i < 5; i++ {
		a.Allow(capability.OpKVDelete)
	}
	assert.False(t, a.Allow(capability.OpKVDelete))
	assert.True(t, b.Allow(capability.OpKVDelete))
}
