package remoteapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relaybbs/bbskit/app"
	"github.com/relaybbs/bbskit/capability"
	"github.com/relaybbs/bbskit/session"
	"github.com/relaybbs/bbskit/store"
)

// cacheTTL is how long a loaded remote app is trusted before a subsequent
// install of the same URL re-runs the full pipeline (spec.md §4.7i).
const cacheTTL = time.Hour

type cacheEntry struct {
	app       app.Contract
	expiresAt time.Time
}

// Loader drives the full (a)-(i) remote-app pipeline described in spec.md
// §4.7 and implements registry.RemoteRefresher so the registry's periodic
// refresh job can drive it without an import back into this package.
type Loader struct {
	AllowedHosts []string
	Store        store.Store
	Session      *session.Service

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

// NewLoader constructs a Loader bound to store/session services and a
// fixed host allow-list.
func NewLoader(allowedHosts []string, st store.Store, sess *session.Service) *Loader {
	return &Loader{
		AllowedHosts: allowedHosts,
		Store:        st,
		Session:      sess,
		cache:        make(map[string]*cacheEntry),
	}
}

// Install runs the full pipeline for rawURL, serving a cached result when
// one is still fresh (spec.md §4.7i). Use Refresh to force a reload.
func (l *Loader) Install(ctx context.Context, rawURL string) (app.Contract, error) {
	if cached, ok := l.cached(rawURL); ok {
		return cached, nil
	}
	return l.load(ctx, rawURL)
}

// Refresh re-runs the pipeline unconditionally, satisfying
// registry.RemoteRefresher. A failed refresh must leave the registry's
// existing entry untouched; this method simply returns the error, and it's
// the registry's job (RefreshRemoteAll) not to apply a failed result.
func (l *Loader) Refresh(ctx context.Context, rawURL string) (app.Contract, error) {
	return l.load(ctx, rawURL)
}

func (l *Loader) cached(rawURL string) (app.Contract, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.cache[rawURL]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.app, true
}

func (l *Loader) store(rawURL string, a app.Contract) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache[rawURL] = &cacheEntry{app: a, expiresAt: time.Now().Add(cacheTTL)}
}

// load executes steps (a)-(h): parse, fetch manifest (with fallback),
// fetch source, static analysis, isolate load, capability wrapping,
// contract validation. Any failure at any step aborts with the precise
// reason and nothing is cached or registered.
func (l *Loader) load(ctx context.Context, rawURL string) (app.Contract, error) {
	ref, err := ParseURL(rawURL, l.AllowedHosts)
	if err != nil {
		return nil, err
	}

	main := defaultMain()
	var declaredDeps []string
	if manifest, mErr := FetchManifest(ref); mErr == nil {
		main = manifest.Main
		declaredDeps = manifest.Dependencies
	}

	src, err := FetchSource(ref, main)
	if err != nil {
		return nil, err
	}

	if err := cheapChecks(src); err != nil {
		return nil, err
	}
	if err := regexChecks(src); err != nil {
		return nil, err
	}
	if err := astChecks(src); err != nil {
		return nil, err
	}

	appID := ref.AppID()
	iso, exports, err := NewIsolate(appID, src, declaredDeps)
	if err != nil {
		return nil, err
	}

	facade := capability.New(appID, l.Store, l.Session)
	remoteApp, err := NewRemoteApp(ref, iso, exports, facade)
	if err != nil {
		return nil, fmt.Errorf("remoteapp: %s: %w", appID, err)
	}

	if err := app.Validate(ctx, remoteApp); err != nil {
		return nil, fmt.Errorf("remoteapp: %s: %w", appID, err)
	}

	l.store(rawURL, remoteApp)
	return remoteApp, nil
}
