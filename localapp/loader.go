// Package localapp implements LocalLoader (spec.md §4.6, C6): discovery and
// loading of locally installed app modules.
//
// The source repo's LocalLoader scans a directory of dynamically-loadable
// modules and inspects their metadata for a "bbs-app" tag. Go has no
// runtime import of arbitrary source, so the equivalent here is Go's
// plugin package: a directory of *.so files, each built with
// `go build -buildmode=plugin`, each exporting a package-level symbol named
// BBSApp of type func() app.Contract. A plugin with no such symbol, or
// whose constructed value fails app.Validate, is skipped and logged — never
// partially admitted.
package localapp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"plugin"
	"strings"

	"github.com/relaybbs/bbskit/app"
)

// ConstructorSymbol is the exported plugin symbol every local app module
// must define: `var BBSApp = func() app.Contract { ... }`.
const ConstructorSymbol = "BBSApp"

// Loader scans Dir for plugin modules tagged as BBS apps.
type Loader struct {
	Dir string
}

// New creates a Loader rooted at dir.
func New(dir string) *Loader {
	return &Loader{Dir: dir}
}

// Discover returns every *.so file under Dir, non-recursively — the same
// flat-directory convention the source scans for "bbs-app"-tagged packages.
func (l *Loader) Discover() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("localapp: read dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".so") {
			continue
		}
		out = append(out, filepath.Join(l.Dir, e.Name()))
	}
	return out, nil
}

// Load opens a plugin module, looks up its BBSApp constructor, constructs
// the app, and validates it against app.Contract (spec.md §4.4) before
// returning it. Any failure at any step is returned with the path for
// context; nothing is partially admitted.
func (l *Loader) Load(ctx context.Context, path string) (app.Contract, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("localapp: open %s: %w", path, err)
	}
	sym, err := p.Lookup(ConstructorSymbol)
	if err != nil {
		return nil, fmt.Errorf("localapp: %s missing %s symbol: %w", path, ConstructorSymbol, err)
	}
	ctor, ok := sym.(func() app.Contract)
	if !ok {
		ctorPtr, ok2 := sym.(*func() app.Contract)
		if !ok2 {
			return nil, fmt.Errorf("localapp: %s symbol %s has wrong type", path, ConstructorSymbol)
		}
		ctor = *ctorPtr
	}
	candidate := ctor()
	if err := app.Validate(ctx, candidate); err != nil {
		return nil, fmt.Errorf("localapp: %s failed validation: %w", path, err)
	}
	return candidate, nil
}

// LoadAll discovers and loads every module under Dir, skipping (and
// logging) any that fail to load or validate rather than aborting the
// whole scan.
func (l *Loader) LoadAll(ctx context.Context) []app.Contract {
	paths, err := l.Discover()
	if err != nil {
		log.Printf("bbskit/localapp: discover: %v", err)
		return nil
	}
	var out []app.Contract
	for _, path := range paths {
		a, err := l.Load(ctx, path)
		if err != nil {
			log.Printf("bbskit/localapp: %v", err)
			continue
		}
		out = append(out, a)
	}
	return out
}

// Builtin registers an in-process app.Contract directly, bypassing the
// plugin machinery entirely — this is how apps bundled into the binary
// itself (spec.md §3's "origin: builtin") are loaded; they need no
// discovery step because they're already linked in.
func Builtin(candidates ...app.Contract) []app.Contract {
	return candidates
}
