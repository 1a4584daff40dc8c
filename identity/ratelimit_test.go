package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaybbs/bbskit/identity"
)

func TestLoginLimiterLocksOutAfterMaxAttempts(t *testing.T) {
	l := identity.NewLoginLimiter()
	for i := 0; i < 4; i++ {
		assert.True(t, l.Allow("alice"))
		l.RecordFailure("alice")
	}
	assert.True(t, l.Allow("alice"))
	l.RecordFailure("alice")
	assert.False(t, l.Allow("alice"))
}

func TestLoginLimiterSuccessClearsFailures(t *testing.T) {
	l := identity.NewLoginLimiter()
	l.RecordFailure("bob")
	l.RecordFailure("bob")
	l.RecordSuccess("bob")
	assert.True(t, l.Allow("bob"))
}

func TestLoginLimiterScopedPerUsername(t *testing.T) {
	l := identity.NewLoginLimiter()
	for i := 0; i < 5; i++ {
		l.RecordFailure("carol")
	}
	assert.False(t, l.Allow("carol"))
	assert.True(t, l.Allow("dave"))
}
