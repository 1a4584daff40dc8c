package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybbs/bbskit/session"
	"github.com/relaybbs/bbskit/store"
)

func TestCreateWithoutKeyGeneratesOne(t *testing.T) {
	svc := session.New(store.NewMemoryStore())
	sess, err := svc.Create(context.Background(), "", store.SessionInit{})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Key)
}

func TestCreateWithExistingKeyReusesIt(t *testing.T) {
	svc := session.New(store.NewMemoryStore())
	first, err := svc.Create(context.Background(), "fixed-key", store.SessionInit{})
	require.NoError(t, err)
	assert.Equal(t, "fixed-key", first.Key)

	second, err := svc.Create(context.Background(), "fixed-key", store.SessionInit{})
	require.NoError(t, err)
	assert.Equal(t, first.Key, second.Key)
}

func TestAppendHistory(t *testing.T) {
	svc := session.New(store.NewMemoryStore())
	sess, err := svc.Create(context.Background(), "k1", store.SessionInit{})
	require.NoError(t, err)

	updated, err := svc.AppendHistory(context.Background(), sess.Key, "HELP")
	require.NoError(t, err)
	assert.Equal(t, []string{"HELP"}, updated.CommandHistory)
}

func TestSetCurrentArea(t *testing.T) {
	svc := session.New(store.NewMemoryStore())
	sess, err := svc.Create(context.Background(), "k1", store.SessionInit{})
	require.NoError(t, err)

	updated, err := svc.SetCurrentArea(context.Background(), sess.Key, "library")
	require.NoError(t, err)
	assert.Equal(t, "library", updated.CurrentArea)
}

func TestReapRemovesStaleSessions(t *testing.T) {
	svc := session.New(store.NewMemoryStore())
	_, err := svc.Create(context.Background(), "stale", store.SessionInit{})
	require.NoError(t, err)

	n, err := svc.Reap(context.Background(), -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewKeyIsUnique(t *testing.T) {
	a, err := session.NewKey()
	require.NoError(t, err)
	b, err := session.NewKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 48)
}
