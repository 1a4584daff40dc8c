// Package session implements SessionSvc (spec.md §4.3, C3): the only writer
// of store.Session records. It carries no policy of its own — Shell decides
// when an area transition happens; session.Service just persists it.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/relaybbs/bbskit/store"
)

// Service fans out every session operation to a store.Store. It holds no
// state of its own, so it is safe to share across goroutines; serialization
// of concurrent commands against the same key is the caller's job (the
// Shell takes a per-session lock before calling in, per spec.md §5).
type Service struct {
	store store.Store
}

// New wraps a store.Store as a Service.
func New(s store.Store) *Service {
	return &Service{store: s}
}

// NewKey generates a collision-resistant opaque session key. 24 random bytes
// hex-encoded gives 192 bits of entropy — comfortably enough that two
// concurrent sessions never collide in practice.
func NewKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create returns the session for existingKey if one exists; otherwise it
// creates one, using existingKey verbatim if supplied or a fresh key
// otherwise.
func (svc *Service) Create(ctx context.Context, existingKey string, init store.SessionInit) (*store.Session, error) {
	key := existingKey
	if key == "" {
		k, err := NewKey()
		if err != nil {
			return nil, err
		}
		key = k
	}
	return svc.store.SessionUpsert(ctx, key, init)
}

// Get fetches a session, bumping its last-activity timestamp on hit.
func (svc *Service) Get(ctx context.Context, key string) (*store.Session, error) {
	return svc.store.SessionGet(ctx, key)
}

// Update applies a sparse patch; DataMerge is merged field-by-field rather
// than replacing the session's whole data bag (spec.md §4.3).
func (svc *Service) Update(ctx context.Context, key string, patch store.SessionPartial) (*store.Session, error) {
	return svc.store.SessionUpdate(ctx, key, patch)
}

// AppendHistory pushes command onto the session's history, truncating to
// store.MaxHistory from the front (oldest dropped).
func (svc *Service) AppendHistory(ctx context.Context, key, command string) (*store.Session, error) {
	return svc.store.SessionUpdate(ctx, key, store.SessionPartial{HistoryAppend: &command})
}

// SetCurrentArea is split out from Update because area changes dominate
// write traffic (spec.md §4.3) and callers shouldn't need to build a full
// SessionPartial just to move the cursor.
func (svc *Service) SetCurrentArea(ctx context.Context, key, area string) (*store.Session, error) {
	return svc.store.SessionUpdate(ctx, key, store.SessionPartial{CurrentArea: &area})
}

// Delete removes a session outright.
func (svc *Service) Delete(ctx context.Context, key string) error {
	return svc.store.SessionDelete(ctx, key)
}

// Check returns a session's full record for debug introspection. The
// Shell's DEBUG verb does not call it; that verb dumps the app registry.
func (svc *Service) Check(ctx context.Context, key string) (*store.Session, error) {
	return svc.store.SessionGet(ctx, key)
}

// Reap deletes sessions inactive for longer than maxAge, returning the
// count removed. The Open Question in spec.md §9 ("not invoked automatically
// anywhere") is resolved in this repo by jobs.Runtime scheduling this on a
// periodic asynq task.
func (svc *Service) Reap(ctx context.Context, maxAge time.Duration) (int, error) {
	return svc.store.SessionReap(ctx, time.Now().Add(-maxAge))
}
