package capability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybbs/bbskit/capability"
	"github.com/relaybbs/bbskit/session"
	"github.com/relaybbs/bbskit/store"
)

func TestSanitizeStripsDisallowedCharacters(t *testing.T) {
	assert.Equal(t, "abc123_-", capability.Sanitize("abc!123@_-#"))
}

func TestScopedStorageGetSetDelete(t *testing.T) {
	st := store.NewMemoryStore()
	f := capability.New("app1", st, session.New(st))
	ctx := context.Background()

	require.NoError(t, f.Storage().Set(ctx, "score", 10.0))
	v, ok := f.Storage().Get(ctx, "score")
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	require.NoError(t, f.Storage().Delete(ctx, "score"))
	_, ok = f.Storage().Get(ctx, "score")
	assert.False(t, ok)
}

func TestScopedStorageRefusesCodeLikeValues(t *testing.T) {
	st := store.NewMemoryStore()
	f := capability.New("app1", st, session.New(st))
	ctx := context.Background()

	err := f.Storage().Set(ctx, "payload", "function() { eval('x') }")
	assert.Error(t, err)
}

func TestScopedStorageRefusesFunctionTypedValues(t *testing.T) {
	st := store.NewMemoryStore()
	f := capability.New("app1", st, session.New(st))
	ctx := context.Background()

	err := f.Storage().Set(ctx, "payload", func() {})
	assert.Error(t, err)
}

func TestUserStorageIsIsolatedPerUser(t *testing.T) {
	st := store.NewMemoryStore()
	f := capability.New("app1", st, session.New(st))
	ctx := context.Background()

	require.NoError(t, f.UserStorage("alice").Set(ctx, "k", "a"))
	require.NoError(t, f.UserStorage("bob").Set(ctx, "k", "b"))

	av, ok := f.UserStorage("alice").Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "a", av)

	bv, ok := f.UserStorage("bob").Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "b", bv)
}

func TestCurrentUserUnauthenticatedReturnsFalse(t *testing.T) {
	st := store.NewMemoryStore()
	f := capability.New("app1", st, session.New(st))
	_, ok := f.CurrentUser(context.Background(), store.Session{})
	assert.False(t, ok)
}

func TestAllowCommandExecutionRateLimits(t *testing.T) {
	st := store.NewMemoryStore()
	f := capability.New("app1", st, session.New(st))
	allowed := 0
	for i := 0; i < 40; i++ {
		if f.AllowCommandExecution() {
			allowed++
		}
	}
	assert.LessOrEqual(t, allowed, 30)
}
