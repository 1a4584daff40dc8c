package capability

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/relaybbs/bbskit/identity"
	"github.com/relaybbs/bbskit/session"
	"github.com/relaybbs/bbskit/store"
)

// ErrRateLimited is returned by storage operations refused by the limiter.
var ErrRateLimited = errors.New("capability: rate limit exceeded")

var sanitizePattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Sanitize strips every character outside [A-Za-z0-9_-], the bound spec.md
// §4.7(h)/§4.8 impose on screen ids, user ids, and namespaces crossing the
// capability boundary.
func Sanitize(s string) string {
	return sanitizePattern.ReplaceAllString(s, "")
}

// codeLikeMarkers heuristically flags values that look like smuggled code
// rather than data (spec.md §4.8: storage.set rejects "code-like strings").
var codeLikeMarkers = []string{"function", "=>", "eval", "new Function"}

func looksCodeLike(v any) bool {
	if v == nil {
		return false
	}
	if isFunctionValue(v) {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, marker := range codeLikeMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// isFunctionValue reports whether v is a Go function, which is what a JS
// function argument exports as once it crosses the goja boundary into a
// Go-typed parameter (spec.md §4.8: storage.set "rejects any function-typed
// value", not just string literals that look like code).
func isFunctionValue(v any) bool {
	return reflect.ValueOf(v).Kind() == reflect.Func
}

// Facade is CapabilityFacade, constructed once per app id. It is the only
// path a sandboxed app has to persisted storage, user identity, or safe
// utilities.
type Facade struct {
	AppID   string
	store   store.Store
	session *session.Service
	limiter *Limiter
}

// New constructs a Facade for appID.
func New(appID string, st store.Store, sess *session.Service) *Facade {
	return &Facade{AppID: appID, store: st, session: sess, limiter: NewLimiter(appID)}
}

// prefixedKey applies the cross-app collision prefix from spec.md §3:
// app_<appId>_[<namespace>_]<key>.
func (f *Facade) prefixedKey(key, namespace string) string {
	if namespace != "" {
		return fmt.Sprintf("app_%s_%s_%s", f.AppID, namespace, key)
	}
	return fmt.Sprintf("app_%s_%s", f.AppID, key)
}

// Storage is the unscoped (no userId, no namespace) key/value surface.
func (f *Facade) Storage() *ScopedStorage {
	return &ScopedStorage{f: f}
}

// UserStorage scopes storage to one sanitized user id.
func (f *Facade) UserStorage(userID string) *ScopedStorage {
	return &ScopedStorage{f: f, userID: Sanitize(userID)}
}

// NamespacedStorage scopes storage to one sanitized namespace.
func (f *Facade) NamespacedStorage(namespace string) *ScopedStorage {
	return &ScopedStorage{f: f, namespace: Sanitize(namespace)}
}

// ScopedStorage is the get/set/delete surface handed to an app, already
// bound to a (userId?, namespace?) scope.
type ScopedStorage struct {
	f         *Facade
	userID    string
	namespace string
}

// Get reads a value. On rate-limit breach it returns (nil, false) — spec.md
// §5: reads return "absent" rather than an error.
func (s *ScopedStorage) Get(ctx context.Context, key string) (any, bool) {
	if !s.f.limiter.Allow(OpKVGet) {
		return nil, false
	}
	kv, err := s.f.store.KVGet(ctx, s.f.AppID, s.f.prefixedKey(key, s.namespace), s.userID, s.namespace)
	if err != nil {
		return nil, false
	}
	return kv.Value, true
}

// Set writes a value. Breach, or a code-like/function value, refuses the
// write (spec.md §4.8/§5) without touching storage.
func (s *ScopedStorage) Set(ctx context.Context, key string, value any) error {
	if looksCodeLike(value) {
		return fmt.Errorf("capability: refused: value looks like code")
	}
	if !s.f.limiter.Allow(OpKVSet) {
		return ErrRateLimited
	}
	return s.f.store.KVUpsert(ctx, s.f.AppID, s.f.prefixedKey(key, s.namespace), value, s.userID, s.namespace, nil)
}

// SetWithTTL is Set with an expiry.
func (s *ScopedStorage) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	if looksCodeLike(value) {
		return fmt.Errorf("capability: refused: value looks like code")
	}
	if !s.f.limiter.Allow(OpKVSet) {
		return ErrRateLimited
	}
	expiry := time.Now().Add(ttl)
	return s.f.store.KVUpsert(ctx, s.f.AppID, s.f.prefixedKey(key, s.namespace), value, s.userID, s.namespace, &expiry)
}

// Delete removes a value.
func (s *ScopedStorage) Delete(ctx context.Context, key string) error {
	if !s.f.limiter.Allow(OpKVDelete) {
		return ErrRateLimited
	}
	return s.f.store.KVDelete(ctx, s.f.AppID, s.f.prefixedKey(key, s.namespace), s.userID, s.namespace)
}

// CurrentUser returns the public view of the session's bound user, or
// (nil, false) if unauthenticated or rate-limited.
func (f *Facade) CurrentUser(ctx context.Context, sess store.Session) (*identity.PublicUser, bool) {
	if !f.limiter.Allow(OpCurrentUser) {
		return nil, false
	}
	if sess.UserID == "" {
		return nil, false
	}
	// The session caches username/role at bind time (spec.md §3), but
	// current_user consults the canonical store record rather than trust
	// that cache, falling back to it only if the user has since vanished.
	u, err := f.store.UserFindByID(ctx, sess.UserID)
	if err != nil {
		return &identity.PublicUser{ID: sess.UserID, Username: sess.Username, Role: identity.Role(sess.Role)}, true
	}
	view := identity.PublicView(u)
	return &view, true
}

// AllowCommandExecution checks (and records) the command_execution cap used
// by the remote-app wrapper before every handle_command call.
func (f *Facade) AllowCommandExecution() bool {
	return f.limiter.Allow(OpCommandExecution)
}
