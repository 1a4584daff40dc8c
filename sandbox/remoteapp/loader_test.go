package remoteapp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybbs/bbskit/session"
	"github.com/relaybbs/bbskit/store"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	st := store.NewMemoryStore()
	return NewLoader([]string{"github.com"}, st, session.New(st))
}

func TestInstallRejectsDisallowedHost(t *testing.T) {
	l := newTestLoader(t)
	_, err := l.Install(context.Background(), "https://evil.example.com/acme/widget")
	assert.Error(t, err)
}

func TestInstallRejectsMalformedURL(t *testing.T) {
	l := newTestLoader(t)
	_, err := l.Install(context.Background(), "github.com/acme")
	assert.Error(t, err)
}

func TestCacheServesSameAppWithinTTL(t *testing.T) {
	l := newTestLoader(t)
	ra := newTestRemoteApp(t, `module.exports.handle_command = function() { return {}; };`)
	l.store("https://github.com/acme/widget", ra)

	cached, ok := l.cached("https://github.com/acme/widget")
	require.True(t, ok)
	assert.Same(t, ra, cached)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	l := newTestLoader(t)
	ra := newTestRemoteApp(t, `module.exports.handle_command = function() { return {}; };`)
	l.mu.Lock()
	l.cache["https://github.com/acme/widget"] = &cacheEntry{app: ra, expiresAt: time.Now().Add(-time.Second)}
	l.mu.Unlock()

	_, ok := l.cached("https://github.com/acme/widget")
	assert.False(t, ok)
}
