// Package registry is the in-memory index of loaded BBS apps (spec.md §4.5,
// C5). It plays the same role here that components.Registry plays for
// server-side components in the teacher: a name -> handler map guarded so
// that reads (every command dispatch) never block on each other, and a
// write (install/uninstall) is never observed half-applied.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relaybbs/bbskit/app"
)

// LoadedApp is an entry in the registry (spec.md §3).
type LoadedApp struct {
	ID              string
	App             app.Contract
	Origin          app.Origin
	LastRefreshedAt time.Time // zero for builtin/local
}

// RemoteRefresher re-runs a remote app's full load pipeline ((a)-(h) in
// spec.md §4.7) for a tracked URL and returns the freshly loaded app.
// Implemented by sandbox/remoteapp.Loader; kept as an interface here so
// registry has no import-time dependency on the sandbox.
type RemoteRefresher interface {
	Refresh(ctx context.Context, url string) (app.Contract, error)
}

// Registry is the AppRegistry. Reads are frequent (every command); writes
// are rare (install/uninstall/refresh). A single RWMutex is sufficient: it
// guarantees a reader never observes a partially-installed app, and a write
// either precedes or follows a read in progress, never interleaves with it.
type Registry struct {
	mu sync.RWMutex

	apps       map[string]*LoadedApp
	order      []string          // insertion order, for numeric menu selection (spec.md §4.9)
	remoteURLs map[string]string // url -> synthesized app id
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		apps:       make(map[string]*LoadedApp),
		remoteURLs: make(map[string]string),
	}
}

// Register adds or replaces an app under its id. On first registration (not
// a replace) the app's OnInit hook, if any, is invoked once with caps.
// Installing a new app with the same id replaces the previous entry
// (spec.md §3).
func (r *Registry) Register(ctx context.Context, entry *LoadedApp, caps any) error {
	r.mu.Lock()
	_, replacing := r.apps[entry.ID]
	r.apps[entry.ID] = entry
	if !replacing {
		r.order = append(r.order, entry.ID)
	}
	if entry.Origin != "" && len(entry.Origin) > 7 && entry.Origin[:7] == "remote:" {
		r.remoteURLs[string(entry.Origin[7:])] = entry.ID
	}
	r.mu.Unlock()

	if init, ok := entry.App.(app.Initializer); ok && !replacing {
		if err := init.OnInit(ctx, caps); err != nil {
			return fmt.Errorf("registry: on_init for %s: %w", entry.ID, err)
		}
	}
	return nil
}

// Unregister removes an app by id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return
	}
	delete(r.apps, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if len(app.Origin) > 7 && string(app.Origin[:7]) == "remote:" {
		delete(r.remoteURLs, string(app.Origin[7:]))
	}
}

// Get looks up an app by id.
func (r *Registry) Get(id string) (*LoadedApp, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[id]
	return a, ok
}

// ListAll returns loaded apps in installation order (the order spec.md
// §4.9's numeric menu selection indexes into).
func (r *Registry) ListAll() []*LoadedApp {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*LoadedApp, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.apps[id])
	}
	return out
}

// IDForRemoteURL looks up the synthesized app id registered for a tracked
// remote source URL, used by the Shell's UNINSTALL verb.
func (r *Registry) IDForRemoteURL(url string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.remoteURLs[url]
	return id, ok
}

// ListRemoteURLs returns every tracked remote source URL.
func (r *Registry) ListRemoteURLs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.remoteURLs))
	for url := range r.remoteURLs {
		out = append(out, url)
	}
	return out
}

// RefreshRemoteAll re-resolves every tracked remote URL via refresher and
// replaces its registry entry. A failed refresh leaves the existing entry
// in place (no partial registry state) and is reported in the returned map.
func (r *Registry) RefreshRemoteAll(ctx context.Context, refresher RemoteRefresher) map[string]error {
	urls := r.ListRemoteURLs()
	errs := make(map[string]error)
	for _, url := range urls {
		newApp, err := refresher.Refresh(ctx, url)
		if err != nil {
			errs[url] = err
			continue
		}
		r.mu.RLock()
		id := r.remoteURLs[url]
		r.mu.RUnlock()
		if id == "" {
			id = newApp.ID()
		}
		if err := r.Register(ctx, &LoadedApp{
			ID:              id,
			App:             newApp,
			Origin:          app.RemoteOrigin(url),
			LastRefreshedAt: time.Now(),
		}, nil); err != nil {
			errs[url] = err
		}
	}
	return errs
}
