// Package config centralizes bbskit's environment-driven configuration,
// falling back to envy the way the teacher's Wire() doc comment does for
// AuthSecret/RedisURL.
package config

import (
	"fmt"
	"strings"

	"github.com/gobuffalo/envy"
)

// Config holds every environment-derived setting bbskit.Wire needs. Per
// spec.md §6: one required value (the store connection string) and an
// optional remote-source host whitelist.
type Config struct {
	// StoreDSN is the store connection string (spec.md §6's one required
	// environment value). A "sqlite://" prefix selects the SQL-backed
	// store; any other non-empty value selects the in-memory store, useful
	// for tests and local development. Wire rejects an empty value.
	StoreDSN string

	// AllowedRemoteHosts is the optional remote-source host whitelist
	// RemoteLoader consults before fetching any URL (spec.md §4.7a).
	AllowedRemoteHosts []string

	// RedisURL configures the background job runtime (session reaper,
	// remote-app refresher). Empty disables scheduling.
	RedisURL string

	// LocalAppsDir is scanned for *.so plugin modules (spec.md §4.6).
	LocalAppsDir string
}

// FromEnv reads Config from the process environment, using envy so a
// missing .env file is never fatal in development.
func FromEnv() (Config, error) {
	cfg := Config{
		StoreDSN:     envy.Get("BBSKIT_STORE_DSN", ""),
		RedisURL:     envy.Get("REDIS_URL", ""),
		LocalAppsDir: envy.Get("BBSKIT_LOCAL_APPS_DIR", "./localapps"),
	}

	hosts := envy.Get("BBSKIT_ALLOWED_REMOTE_HOSTS", "")
	if hosts != "" {
		for _, h := range strings.Split(hosts, ",") {
			h = strings.TrimSpace(h)
			if h != "" {
				cfg.AllowedRemoteHosts = append(cfg.AllowedRemoteHosts, h)
			}
		}
	}

	if cfg.StoreDSN == "" {
		return cfg, fmt.Errorf("config: BBSKIT_STORE_DSN is required")
	}
	return cfg, nil
}
