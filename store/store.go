// Package store is the persistence abstraction (spec.md §4.1, C1). It
// exposes sessions, users, and app-scoped key/values behind typed
// operations; callers never see SQL, a schema, or a driver. Every write
// stamps its own timestamps and every failure comes back as a Go error
// rather than a panic — storage faults never escape as anything else.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/relaybbs/bbskit/identity"
)

// ErrNotFound is returned by lookups that find nothing. Callers that want
// the "absent" half of spec.md's two-valued outcome test for this with
// errors.Is.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a uniqueness constraint would be violated
// (duplicate username/email, or a compound key collision).
var ErrConflict = errors.New("store: conflict")

// Session is the durable record behind spec.md §3's Session. Ownership is
// exclusive to store and its sole writer, session.Service.
type Session struct {
	Key            string
	UserID         string // empty if unauthenticated
	Username       string // cached display name at bind time
	Role           string // cached role at bind time ("user" | "admin")
	CurrentArea    string
	CommandHistory []string
	Data           map[string]map[string]any // appId -> per-app scratch map
	CreatedAt      time.Time
	LastActivity   time.Time
	ClientAddr     string
	ClientAgent    string
}

// MaxHistory is the cap on CommandHistory length (spec.md §3 invariant).
const MaxHistory = 100

// SessionInit seeds the fields session.Service.Create may set explicitly;
// everything else (CurrentArea defaulting to "main", timestamps) is filled
// in by the Store implementation.
type SessionInit struct {
	ClientAddr  string
	ClientAgent string
}

// SessionPartial is a sparse update; nil/zero fields are left untouched.
// HistoryAppend, when set, is pushed and the result truncated to
// MaxHistory — it is never a full replacement.
type SessionPartial struct {
	CurrentArea   *string
	UserID        *string
	Username      *string
	Role          *string
	DataMerge     map[string]map[string]any // merged key-by-key, not replaced
	HistoryAppend *string
}

// KeyValue is the durable record behind an app's scoped storage (spec.md
// §3). The compound (AppID, Key, UserID, Namespace) is unique.
type KeyValue struct {
	AppID     string
	Key       string
	Value     any // JSON-compatible: string, float64, bool, []any, map[string]any, nil
	UserID    string // empty = not user-scoped
	Namespace string // empty = no namespace
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the full persistence contract. Implementations: SQLStore (backed
// by database/sql, e.g. sqlite3) and MemoryStore (tests, Redis/DB-less dev).
type Store interface {
	SessionGet(ctx context.Context, key string) (*Session, error)
	SessionUpsert(ctx context.Context, key string, init SessionInit) (*Session, error)
	SessionUpdate(ctx context.Context, key string, patch SessionPartial) (*Session, error)
	SessionDelete(ctx context.Context, key string) error
	// SessionReap deletes sessions whose LastActivity precedes olderThan and
	// returns the count removed.
	SessionReap(ctx context.Context, olderThan time.Time) (int, error)

	UserCreate(ctx context.Context, u *identity.User) error
	UserFindByUsername(ctx context.Context, username string) (*identity.User, error)
	UserFindByID(ctx context.Context, id string) (*identity.User, error)
	UserFindByEmail(ctx context.Context, email string) (*identity.User, error)
	UserUpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UserUpdatePassword(ctx context.Context, id string, newHash string) error

	KVGet(ctx context.Context, appID, key, userID, namespace string) (*KeyValue, error)
	KVUpsert(ctx context.Context, appID, key string, value any, userID, namespace string, expiresAt *time.Time) error
	KVDelete(ctx context.Context, appID, key, userID, namespace string) error

	// Debug exposes a free-form introspection dump (record counts); it is
	// read-only and never used by normal flow, including the Shell's DEBUG
	// verb, which dumps the app registry instead.
	Debug(ctx context.Context) (map[string]any, error)

	Close() error
}
