package remoteapp

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dop251/goja"
)

const (
	// loadTimeout bounds how long evaluating an app's top-level module body
	// may run before it's interrupted (spec.md §4.7e).
	loadTimeout = 5 * time.Second
	// callTimeout bounds a single handle_command/on_enter/on_exit
	// invocation. goja executes single-threaded, so wall-clock and CPU time
	// coincide inside the isolate goroutine: one interrupt timer covers
	// both the wall-clock budget and the approximated CPU budget spec.md
	// §4.7e calls out, since there's no separate CPU-accounting hook to tie
	// into without shelling out to a subprocess.
	callTimeout = 3 * time.Second
	// memoryLimitBytes is handed to the runtime only when it exposes a
	// SetMemoryLimit(int) method; goja.Runtime has no such method, so with
	// goja the isolate runs without a memory ceiling. It is not a hard
	// cgroup-style isolation boundary either way.
	memoryLimitBytes = 128 * 1024 * 1024

	maxConcurrentTimers = 10
	minTimerDelay       = 100 * time.Millisecond
	maxTimerDelay       = 30 * time.Second
)

// Isolate wraps a single goja.Runtime configured for one untrusted app:
// a stripped global scope, an app-id-prefixed console, a budgeted
// setTimeout, and a whitelisted require. One Isolate is created per loaded
// remote app and is not shared across apps.
type Isolate struct {
	appID   string
	rt      *goja.Runtime
	allowed map[string]func(rt *goja.Runtime) goja.Value

	mu     sync.Mutex
	timers int
}

// NewIsolate parses and loads src under quota, returning the isolate and the
// value of module.exports once the top-level body has finished running.
// Any parse failure, runtime panic, or timeout is reported as an error —
// nothing from a failed load is ever handed to the caller.
//
// declaredDeps narrows require() to this app's own manifest dependencies,
// intersected against AllowedModules (spec.md §4.7b/f); a nil/empty
// declaredDeps (no manifest, or a manifest without a dependencies field)
// falls back to the full AllowedModules table.
func NewIsolate(appID string, src string, declaredDeps []string) (isolate *Isolate, exports goja.Value, err error) {
	program, perr := parseForExecution(src)
	if perr != nil {
		return nil, nil, fmt.Errorf("remoteapp: compile: %w", perr)
	}

	iso := &Isolate{appID: appID, rt: goja.New(), allowed: allowedModulesFor(declaredDeps)}
	iso.rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if limiter, ok := any(iso.rt).(interface{ SetMemoryLimit(int) }); ok {
		limiter.SetMemoryLimit(memoryLimitBytes)
	}

	iso.installConsole()
	iso.installTimers()
	iso.installRequire()

	module := iso.rt.NewObject()
	moduleExports := iso.rt.NewObject()
	_ = module.Set("exports", moduleExports)
	iso.rt.Set("module", module)
	iso.rt.Set("exports", moduleExports)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remoteapp: app %s panicked during load: %v", appID, r)
		}
	}()

	done := make(chan struct{})
	timer := time.AfterFunc(loadTimeout, func() { iso.rt.Interrupt("load timed out") })
	defer timer.Stop()

	var runErr error
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		_, runErr = iso.rt.RunProgram(program)
	}()
	<-done

	if runErr != nil {
		return nil, nil, fmt.Errorf("remoteapp: app %s failed to load: %w", appID, runErr)
	}

	finalExports := module.Get("exports")
	return iso, finalExports, nil
}

// parseForExecution compiles src to a *goja.Program, reusing the same
// parser astChecks already validated the source against.
func parseForExecution(src string) (*goja.Program, error) {
	return goja.Compile("app.js", src, false)
}

// Call invokes fn with args under the per-call timeout, recovering from any
// panic so a misbehaving app can never bring down the host process.
func (iso *Isolate) Call(fn goja.Callable, this goja.Value, args ...goja.Value) (result goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remoteapp: app %s panicked: %v", iso.appID, r)
		}
	}()

	done := make(chan struct{})
	timer := time.AfterFunc(callTimeout, func() { iso.rt.Interrupt("call timed out") })
	defer timer.Stop()

	var callErr error
	var out goja.Value
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				callErr = fmt.Errorf("panic: %v", r)
			}
		}()
		out, callErr = fn(this, args...)
	}()
	<-done

	if callErr != nil {
		return nil, fmt.Errorf("remoteapp: app %s call failed: %w", iso.appID, callErr)
	}
	return out, nil
}

// installConsole gives the app a console.log/warn/error that's indistinguishable
// from the real thing but always tags output with the app id, the way the
// host's own structured logging tags every line with its source.
func (iso *Isolate) installConsole() {
	console := iso.rt.NewObject()
	logFn := func(level string) func(args ...goja.Value) {
		return func(args ...goja.Value) {
			parts := make([]any, 0, len(args))
			for _, a := range args {
				parts = append(parts, a.String())
			}
			log.Printf("remoteapp[%s] console.%s: %v", iso.appID, level, parts)
		}
	}
	_ = console.Set("log", logFn("log"))
	_ = console.Set("warn", logFn("warn"))
	_ = console.Set("error", logFn("error"))
	iso.rt.Set("console", console)
}

// installTimers installs a budgeted setTimeout: delay is clamped into
// [minTimerDelay, maxTimerDelay], and no more than maxConcurrentTimers may
// be outstanding at once for this isolate (spec.md §4.7e). setInterval is
// deliberately not installed — astChecks already rejects any call to it,
// so an app that somehow got this far still has nothing to call.
func (iso *Isolate) installTimers() {
	iso.rt.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		if delay < minTimerDelay {
			delay = minTimerDelay
		}
		if delay > maxTimerDelay {
			delay = maxTimerDelay
		}

		iso.mu.Lock()
		if iso.timers >= maxConcurrentTimers {
			iso.mu.Unlock()
			return goja.Undefined()
		}
		iso.timers++
		iso.mu.Unlock()

		time.AfterFunc(delay, func() {
			iso.mu.Lock()
			iso.timers--
			iso.mu.Unlock()
			func() {
				defer func() { recover() }()
				_, _ = fn(goja.Undefined())
			}()
		})
		return goja.Undefined()
	})
	iso.rt.Set("clearTimeout", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
}

// installRequire gives apps a require() limited to this isolate's allowed
// set; any other target raises a JS exception naming the allow-list, which
// is the JS-side mirror of astChecks' forbiddenModules rejection for apps
// that construct a module name dynamically rather than as a string literal.
func (iso *Isolate) installRequire() {
	iso.rt.Set("require", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		register, ok := iso.allowed[name]
		if !ok {
			panic(iso.rt.NewTypeError("module %q is not available; allowed modules: %v", name, sortedAllowedNames(iso.allowed)))
		}
		return register(iso.rt)
	})
}

// allowedModulesFor narrows AllowedModules to declaredDeps, when the app
// declared any; a manifest-less app (or one with no dependencies field)
// keeps the full table, since there's nothing to narrow against.
func allowedModulesFor(declaredDeps []string) map[string]func(rt *goja.Runtime) goja.Value {
	if len(declaredDeps) == 0 {
		return AllowedModules
	}
	names := IntersectAllowedDeps(declaredDeps)
	out := make(map[string]func(rt *goja.Runtime) goja.Value, len(names))
	for _, n := range names {
		out[n] = AllowedModules[n]
	}
	return out
}
