package remoteapp

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/relaybbs/bbskit/app"
	"github.com/relaybbs/bbskit/capability"
	"github.com/relaybbs/bbskit/store"
)

const (
	maxCommandLen  = 1_000
	maxResponseLen = 10_000
)

// RemoteApp adapts one loaded isolate's module.exports into app.Contract.
// Its capability facade (injected as the "bbs" global at construction time)
// is the only path the sandboxed code has to host state; every exported
// method here additionally guards inputs and sanitizes outputs before they
// cross back out of the isolate (spec.md §4.8).
type RemoteApp struct {
	id, name, version, description, author, source string

	mu      sync.Mutex
	iso     *Isolate
	exports *goja.Object
	facade  *capability.Facade
	ctx     context.Context // valid only while mu is held during a call
}

// NewRemoteApp builds a RemoteApp from a loaded isolate, reading its
// metadata off module.exports with safe fallbacks to the ref-derived
// identity when a field is missing.
func NewRemoteApp(ref Ref, iso *Isolate, exportsVal goja.Value, facade *capability.Facade) (*RemoteApp, error) {
	exports, ok := exportsVal.(*goja.Object)
	if exports == nil || !ok {
		return nil, fmt.Errorf("remoteapp: module.exports must be an object")
	}

	r := &RemoteApp{
		id:          ref.AppID(),
		name:        stringProp(exports, "name", ref.Repo),
		version:     stringProp(exports, "version", "0.0.0"),
		description: stringProp(exports, "description", ""),
		author:      stringProp(exports, "author", ref.Owner),
		source:      fmt.Sprintf("https://%s/%s/%s", ref.Host, ref.Owner, ref.Repo),
		iso:         iso,
		exports:     exports,
		facade:      facade,
	}
	r.injectCapabilities()
	return r, nil
}

func stringProp(obj *goja.Object, name, fallback string) string {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return fallback
	}
	return v.String()
}

// injectCapabilities installs the "bbs" global (spec.md §4.8): storage,
// user_storage, namespaced_storage, current_user, utils. Every method
// closes over r so it can read r.ctx, set synchronously for the duration of
// whatever exported call triggered it.
func (r *RemoteApp) injectCapabilities() {
	rt := r.iso.rt
	bbs := rt.NewObject()

	_ = bbs.Set("storage", r.scopedStorageObject(r.facade.Storage()))
	_ = bbs.Set("user_storage", func(userID string) *goja.Object {
		return r.scopedStorageObject(r.facade.UserStorage(userID))
	})
	_ = bbs.Set("namespaced_storage", func(namespace string) *goja.Object {
		return r.scopedStorageObject(r.facade.NamespacedStorage(namespace))
	})
	_ = bbs.Set("current_user", func(sess map[string]any) goja.Value {
		view, ok := r.facade.CurrentUser(r.ctx, sessionFromJS(sess))
		if !ok {
			return goja.Null()
		}
		return rt.ToValue(view)
	})

	utils := rt.NewObject()
	u := capability.Utils{}
	_ = utils.Set("ascii_boxed_title", u.AsciiBoxedTitle)
	_ = utils.Set("separator", func(char string, width int) string {
		r := ' '
		if len(char) > 0 {
			r = rune(char[0])
		}
		return u.Separator(r, width)
	})
	_ = bbs.Set("utils", utils)

	rt.Set("bbs", bbs)
}

func (r *RemoteApp) scopedStorageObject(s *capability.ScopedStorage) *goja.Object {
	rt := r.iso.rt
	obj := rt.NewObject()
	_ = obj.Set("get", func(key string) goja.Value {
		v, ok := s.Get(r.ctx, key)
		if !ok {
			return goja.Null()
		}
		return rt.ToValue(v)
	})
	_ = obj.Set("set", func(key string, value any) bool {
		return s.Set(r.ctx, key, value) == nil
	})
	_ = obj.Set("delete", func(key string) bool {
		return s.Delete(r.ctx, key) == nil
	})
	return obj
}

// sessionFromJS rebuilds the subset of store.Session that
// capability.Facade.CurrentUser reads (UserID, cached Username/Role) from
// the plain object the isolate passed in.
func sessionFromJS(m map[string]any) store.Session {
	sess := store.Session{}
	if v, ok := m["userId"].(string); ok {
		sess.UserID = v
	}
	if v, ok := m["username"].(string); ok {
		sess.Username = v
	}
	if v, ok := m["role"].(string); ok {
		sess.Role = v
	}
	return sess
}

func (r *RemoteApp) ID() string          { return r.id }
func (r *RemoteApp) Name() string        { return r.name }
func (r *RemoteApp) Version() string     { return r.version }
func (r *RemoteApp) Description() string { return r.description }
func (r *RemoteApp) Author() string      { return r.author }
func (r *RemoteApp) Source() string      { return r.source }

// withCall serializes access to the isolate (goja runtimes aren't
// goroutine-safe) and pins r.ctx for the duration of fn so capability calls
// triggered from inside the isolate can see the caller's context.
func (r *RemoteApp) withCall(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
	defer func() { r.ctx = nil }()
	return fn()
}

func (r *RemoteApp) exportedFunc(name string) (goja.Callable, bool) {
	v := r.exports.Get(name)
	if v == nil {
		return nil, false
	}
	return goja.AssertFunction(v)
}

// GetWelcomeScreen calls exports.get_welcome_screen(), truncating the
// result to the same bound app.Validate enforces so a misbehaving app can't
// flood a session's first screen.
func (r *RemoteApp) GetWelcomeScreen(ctx context.Context) (string, error) {
	fn, ok := r.exportedFunc("get_welcome_screen")
	if !ok {
		return "", fmt.Errorf("remoteapp: app %s has no get_welcome_screen", r.id)
	}
	out, err := r.withCall(ctx, func() (goja.Value, error) { return r.iso.Call(fn, goja.Undefined()) })
	if err != nil {
		return "", err
	}
	return truncate(valueToString(out), app.MaxWelcomeLen), nil
}

// GetHelp calls exports.get_help(screenId).
func (r *RemoteApp) GetHelp(ctx context.Context, screenID string) (string, error) {
	fn, ok := r.exportedFunc("get_help")
	if !ok {
		return "", fmt.Errorf("remoteapp: app %s has no get_help", r.id)
	}
	arg := screenIDArg(r.iso, screenID)
	out, err := r.withCall(ctx, func() (goja.Value, error) { return r.iso.Call(fn, goja.Undefined(), arg) })
	if err != nil {
		return "", err
	}
	return truncate(valueToString(out), app.MaxWelcomeLen), nil
}

// HandleCommand is the hot path: every call is rate-limited through
// AllowCommandExecution, inputs are sanitized before the isolate ever sees
// them, and the isolate's return value is sanitized again before it becomes
// a CommandResult (spec.md §4.7h).
func (r *RemoteApp) HandleCommand(ctx context.Context, screenID string, command string, sess app.SessionView) (app.CommandResult, error) {
	if !r.facade.AllowCommandExecution() {
		return app.CommandResult{}, fmt.Errorf("remoteapp: app %s rate-limited", r.id)
	}

	screenID = capability.Sanitize(screenID)
	command = truncate(command, maxCommandLen)

	fn, ok := r.exportedFunc("handle_command")
	if !ok {
		return app.CommandResult{}, fmt.Errorf("remoteapp: app %s has no handle_command", r.id)
	}

	rt := r.iso.rt
	screenArg := screenIDArg(r.iso, screenID)
	sessArg := rt.ToValue(map[string]any{
		"sessionKey":  sess.SessionKey,
		"userId":      sess.UserID,
		"username":    sess.Username,
		"role":        sess.Role,
		"currentArea": sess.CurrentArea,
	})

	out, err := r.withCall(ctx, func() (goja.Value, error) {
		return r.iso.Call(fn, goja.Undefined(), screenArg, rt.ToValue(command), sessArg)
	})
	if err != nil {
		return app.CommandResult{}, err
	}
	return sanitizeCommandResult(out), nil
}

func screenIDArg(iso *Isolate, screenID string) goja.Value {
	if screenID == "" {
		return goja.Null()
	}
	return iso.rt.ToValue(screenID)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func valueToString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// sanitizeCommandResult enforces the result shape spec.md §9 requires:
// screen is a string or null, response is truncated, refresh defaults true
// when the app doesn't say otherwise.
func sanitizeCommandResult(v goja.Value) app.CommandResult {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil {
		return app.CommandResult{Refresh: true}
	}

	result := app.CommandResult{Refresh: true}
	if screen := obj.Get("screen"); screen != nil && !goja.IsUndefined(screen) && !goja.IsNull(screen) {
		result.Screen = capability.Sanitize(screen.String())
	}
	if resp := obj.Get("response"); resp != nil && !goja.IsUndefined(resp) && !goja.IsNull(resp) {
		result.Response = truncate(resp.String(), maxResponseLen)
	}
	if refresh := obj.Get("refresh"); refresh != nil && !goja.IsUndefined(refresh) {
		result.Refresh = refresh.ToBoolean()
	}
	return result
}
