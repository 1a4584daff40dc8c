package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybbs/bbskit/identity"
	"github.com/relaybbs/bbskit/store"
)

func TestSessionUpsertCreatesWithDefaults(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	sess, err := st.SessionUpsert(context.Background(), "key-1", store.SessionInit{ClientAddr: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "key-1", sess.Key)
	assert.Equal(t, "main", sess.CurrentArea)
	assert.Empty(t, sess.UserID)
	assert.WithinDuration(t, time.Now(), sess.CreatedAt, time.Minute)
}

func TestSessionUpsertReturnsExistingOnSecondCall(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	first, err := st.SessionUpsert(context.Background(), "key-1", store.SessionInit{})
	require.NoError(t, err)

	area := "library"
	_, err = st.SessionUpdate(context.Background(), "key-1", store.SessionPartial{CurrentArea: &area})
	require.NoError(t, err)

	second, err := st.SessionUpsert(context.Background(), "key-1", store.SessionInit{})
	require.NoError(t, err)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, "library", second.CurrentArea)
}

func TestSessionUpdateAppendsHistoryAndTruncates(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	_, err := st.SessionUpsert(context.Background(), "key-1", store.SessionInit{})
	require.NoError(t, err)

	for i := 0; i < store.MaxHistory+10; i++ {
		cmd := "CMD"
		_, err := st.SessionUpdate(context.Background(), "key-1", store.SessionPartial{HistoryAppend: &cmd})
		require.NoError(t, err)
	}

	sess, err := st.SessionGet(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Len(t, sess.CommandHistory, store.MaxHistory)
}

func TestSessionGetMissingReturnsErrNotFound(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	_, err := st.SessionGet(context.Background(), "nonexistent")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSessionReapRemovesSessionsBeforeCutoff(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	_, err := st.SessionUpsert(context.Background(), "fresh", store.SessionInit{})
	require.NoError(t, err)
	_, err = st.SessionUpsert(context.Background(), "stale", store.SessionInit{})
	require.NoError(t, err)

	n, err := st.SessionReap(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = st.SessionGet(context.Background(), "fresh")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestUserCreateRejectsDuplicateUsername(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	u1 := &identity.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, st.UserCreate(context.Background(), u1))
	assert.NotEmpty(t, u1.ID)

	u2 := &identity.User{Username: "alice", Email: "alice2@example.com", PasswordHash: "x"}
	err := st.UserCreate(context.Background(), u2)
	assert.True(t, errors.Is(err, store.ErrConflict))
}

func TestUserCreateRejectsDuplicateEmail(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	u1 := &identity.User{Username: "alice", Email: "dup@example.com", PasswordHash: "x"}
	require.NoError(t, st.UserCreate(context.Background(), u1))

	u2 := &identity.User{Username: "bob", Email: "dup@example.com", PasswordHash: "x"}
	err := st.UserCreate(context.Background(), u2)
	assert.True(t, errors.Is(err, store.ErrConflict))
}

func TestUserFindByUsernameAndID(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	u := &identity.User{Username: "carol", Email: "carol@example.com", PasswordHash: "x"}
	require.NoError(t, st.UserCreate(context.Background(), u))

	byName, err := st.UserFindByUsername(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byID, err := st.UserFindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", byID.Username)
}

func TestKVRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	ctx := context.Background()

	err := st.KVUpsert(ctx, "app1", "score", 42.0, "", "", nil)
	require.NoError(t, err)

	kv, err := st.KVGet(ctx, "app1", "score", "", "")
	require.NoError(t, err)
	assert.Equal(t, 42.0, kv.Value)

	require.NoError(t, st.KVDelete(ctx, "app1", "score", "", ""))
	_, err = st.KVGet(ctx, "app1", "score", "", "")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestKVExpiredKeyIsTreatedAsAbsent(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	err := st.KVUpsert(ctx, "app1", "temp", "x", "", "", &past)
	require.NoError(t, err)

	_, err = st.KVGet(ctx, "app1", "temp", "", "")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
