// Package bbskit wires together every component of the BBS server — Store,
// SessionSvc, AppRegistry, LocalLoader, RemoteLoader, Shell, and the JSON
// HTTP endpoints — into one running Buffalo application. The entry point is
// Wire(), the same one-call integration shape buffkit.Wire used for its own
// stack.
package bbskit

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobuffalo/buffalo"

	"github.com/relaybbs/bbskit/builtinapps/infodesk"
	"github.com/relaybbs/bbskit/config"
	"github.com/relaybbs/bbskit/httpapi"
	"github.com/relaybbs/bbskit/jobs"
	"github.com/relaybbs/bbskit/localapp"
	"github.com/relaybbs/bbskit/registry"
	"github.com/relaybbs/bbskit/sandbox/remoteapp"
	"github.com/relaybbs/bbskit/session"
	"github.com/relaybbs/bbskit/shell"
	"github.com/relaybbs/bbskit/store"
)

// Kit holds references to every wired subsystem, returned from Wire so
// callers (tests, grift tasks, admin tooling) can reach in directly instead
// of re-deriving any of it.
type Kit struct {
	Store    store.Store
	Sessions *session.Service
	Registry *registry.Registry
	Loader   *remoteapp.Loader
	Shell    *shell.Shell
	HTTP     *httpapi.Handlers
	Jobs     *jobs.Runtime
	Config   config.Config
}

// Wire builds the Store, SessionSvc, AppRegistry, RemoteLoader, and Shell,
// registers the builtin and local apps, mounts the JSON HTTP endpoints onto
// app, and starts the background job runtime. The order mirrors
// buffkit.Wire: storage and services first, then apps, then routes, then
// background workers.
func Wire(a *buffalo.App, cfg config.Config) (*Kit, error) {
	st, err := openStore(cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("bbskit: open store: %w", err)
	}

	sessions := session.New(st)
	reg := registry.New()
	loader := remoteapp.NewLoader(cfg.AllowedRemoteHosts, st, sessions)
	sh := shell.New(sessions, reg, loader)
	httpHandlers := httpapi.New(sessions, st, sh)

	jobsRuntime, err := jobs.NewRuntime(cfg.RedisURL, sessions, reg, loader)
	if err != nil {
		return nil, fmt.Errorf("bbskit: jobs: %w", err)
	}
	if err := jobsRuntime.RegisterDefaults(); err != nil {
		return nil, fmt.Errorf("bbskit: jobs: %w", err)
	}

	ctx := context.Background()
	for _, candidate := range localapp.Builtin(infodesk.New()) {
		if err := reg.Register(ctx, &registry.LoadedApp{ID: candidate.ID(), App: candidate, Origin: "builtin"}, nil); err != nil {
			return nil, fmt.Errorf("bbskit: register builtin app %s: %w", candidate.ID(), err)
		}
	}

	localLoader := localapp.New(cfg.LocalAppsDir)
	for _, candidate := range localLoader.LoadAll(ctx) {
		if err := reg.Register(ctx, &registry.LoadedApp{ID: candidate.ID(), App: candidate, Origin: "local"}, nil); err != nil {
			return nil, fmt.Errorf("bbskit: register local app %s: %w", candidate.ID(), err)
		}
	}

	httpHandlers.Mount(a)

	if err := jobsRuntime.Start(); err != nil {
		return nil, fmt.Errorf("bbskit: start jobs: %w", err)
	}

	kit := &Kit{
		Store:    st,
		Sessions: sessions,
		Registry: reg,
		Loader:   loader,
		Shell:    sh,
		HTTP:     httpHandlers,
		Jobs:     jobsRuntime,
		Config:   cfg,
	}
	SetGlobalKit(kit)
	return kit, nil
}

// openStore rejects an empty DSN, picks the SQL-backed store for a
// "sqlite://" DSN and falls back to the in-memory store otherwise, per
// spec.md §6's DSN-driven storage selection.
func openStore(dsn string) (store.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("bbskit: store DSN is required")
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		return store.Open(strings.TrimPrefix(dsn, "sqlite://"))
	}
	return store.NewMemoryStore(), nil
}

// Version reports the current bbskit release.
func Version() string {
	return "0.1.0-alpha"
}
