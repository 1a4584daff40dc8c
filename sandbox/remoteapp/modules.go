package remoteapp

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// AllowedModules is the require() allow-list (spec.md §4.7f). Every entry
// maps to a registerer that installs the module's exports into a fresh
// runtime; nothing an app requires can reach outside this set, since
// isolate.go's require implementation only ever consults this map.
var AllowedModules = map[string]func(rt *goja.Runtime) goja.Value{
	"bbs-utils": registerUtilsModule,
	"bbs-dates": registerDatesModule,
}

// registerUtilsModule installs a small, dependency-free object-helpers
// library: deepEqual, pick, merge, get. These are host-written stand-ins for
// the kind of utility package a real app would otherwise pull from npm,
// exposed here so apps never need network access to get them.
func registerUtilsModule(rt *goja.Runtime) goja.Value {
	exports := rt.NewObject()

	exports.Set("deepEqual", func(a, b goja.Value) bool {
		return deepEqual(a.Export(), b.Export())
	})

	exports.Set("pick", func(obj map[string]any, keys []string) map[string]any {
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			if v, ok := obj[k]; ok {
				out[k] = v
			}
		}
		return out
	})

	exports.Set("merge", func(a, b map[string]any) map[string]any {
		out := make(map[string]any, len(a)+len(b))
		for k, v := range a {
			out[k] = v
		}
		for k, v := range b {
			out[k] = v
		}
		return out
	})

	exports.Set("get", func(obj map[string]any, path string, fallback any) any {
		cur := any(obj)
		for _, part := range strings.Split(path, ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				return fallback
			}
			v, ok := m[part]
			if !ok {
				return fallback
			}
			cur = v
		}
		return cur
	})

	return exports
}

func deepEqual(a, b any) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}

// registerDatesModule installs a minimal date-formatting library: format and
// relative-time rendering, mirroring the shape of a day.js/moment-style
// module without pulling in one of those dependencies.
func registerDatesModule(rt *goja.Runtime) goja.Value {
	exports := rt.NewObject()

	exports.Set("format", func(unixSeconds int64, layout string) string {
		t := time.Unix(unixSeconds, 0).UTC()
		switch layout {
		case "date":
			return t.Format("2006-01-02")
		case "time":
			return t.Format("15:04:05")
		default:
			return t.Format("2006-01-02 15:04:05")
		}
	})

	exports.Set("relative", func(unixSeconds int64) string {
		d := time.Since(time.Unix(unixSeconds, 0))
		switch {
		case d < time.Minute:
			return "just now"
		case d < time.Hour:
			return fmt.Sprintf("%d minutes ago", int(d/time.Minute))
		case d < 24*time.Hour:
			return fmt.Sprintf("%d hours ago", int(d/time.Hour))
		default:
			return fmt.Sprintf("%d days ago", int(d/(24*time.Hour)))
		}
	})

	return exports
}

// sortedAllowedNames is used by isolate.go's require error message so an app
// author sees the exact allow-list (global or per-app-narrowed) when a
// require() target is rejected.
func sortedAllowedNames(allowed map[string]func(rt *goja.Runtime) goja.Value) []string {
	names := make([]string, 0, len(allowed))
	for name := range allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
