package remoteapp

import (
	"reflect"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// forbiddenGlobals maps an identifier name an app must never reference to
// the human reason it's forbidden (spec.md §4.7d).
var forbiddenGlobals = map[string]string{
	"localStorage":      "local storage",
	"sessionStorage":    "local storage",
	"process":           "process",
	"global":            "global object",
	"globalThis":        "global object",
	"Deno":              "process",
	"fetch":             "network primitive",
	"XMLHttpRequest":    "network primitive",
	"WebSocket":         "network primitive",
	"ArrayBuffer":       "raw buffer",
	"SharedArrayBuffer": "raw buffer",
	"Proxy":             "introspection primitive",
	"Reflect":           "introspection primitive",
}

// dangerousCalls maps a callee identifier name to the reason calling (or
// `new`-ing) it is forbidden. setTimeout is deliberately absent: the host
// injects its own wrapped version (spec.md §4.7e) and that's the only timer
// an app may use.
var dangerousCalls = map[string]string{
	"eval":           "eval",
	"Function":       "dynamic function constructor",
	"WebSocket":      "network constructor",
	"XMLHttpRequest": "network constructor",
	"Worker":         "worker constructor",
	"setInterval":    "unwrapped timer",
	"setImmediate":   "unwrapped timer",
}

// forbiddenModules maps a require() target to the reason it's disallowed
// (spec.md §4.7d).
var forbiddenModules = map[string]string{
	"fs":            "filesystem",
	"node:fs":       "filesystem",
	"net":           "network",
	"http":          "network",
	"https":         "network",
	"dgram":         "network",
	"child_process": "subprocess",
	"crypto":        "crypto primitives",
	"vm":            "vm",
	"goja":          "the sandbox host itself",
	"@babel/parser": "AST tools",
	"esprima":       "AST tools",
	"acorn":         "AST tools",
}

const (
	maxParams        = 20
	maxNestingDepth  = 20
	maxFunctionDecls = 200
)

// astChecks parses src and walks the resulting tree, rejecting on the first
// violation of spec.md §4.7d's AST-level rules. Programs that fail to parse
// at all are rejected outright — a BBS app's source must be valid
// JavaScript before it's trusted with anything further.
func astChecks(src string) error {
	program, err := parser.ParseFile(nil, "app.js", src, 0)
	if err != nil {
		return reject("source does not parse: %v", err)
	}

	w := &walker{}
	w.walk(reflect.ValueOf(program), 0)
	if w.err != nil {
		return w.err
	}
	if w.funcDecls > maxFunctionDecls {
		return reject("more than %d function declarations", maxFunctionDecls)
	}
	return nil
}

// walker performs a generic reflective descent through the goja AST,
// looking only for the handful of node kinds the validation policy cares
// about. Using reflection for the traversal (rather than a hand-written
// visitor for every node type goja defines) means the walk never misses a
// child field merely because this package didn't enumerate it.
type walker struct {
	err          error
	funcDecls    int
	nestingDepth int
}

func (w *walker) walk(v reflect.Value, depth int) {
	if w.err != nil {
		return
	}
	if !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return
		}
		node := v.Interface()
		w.inspect(node, depth)
		w.walk(v.Elem(), depth)
		if _, ok := node.(*ast.FunctionLiteral); ok {
			w.nestingDepth--
		}
		return
	case reflect.Interface:
		if v.IsNil() {
			return
		}
		w.walk(v.Elem(), depth)
		return
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if !f.CanInterface() {
				continue
			}
			w.walk(f, depth)
		}
		return
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			w.walk(v.Index(i), depth)
		}
		return
	default:
		return
	}
}

// inspect applies the semantic checks for node kinds we recognize by
// concrete type, then lets walk's generic struct-field recursion continue
// into (and past) this node for everything else.
func (w *walker) inspect(node any, depth int) {
	switch n := node.(type) {
	case *ast.Identifier:
		if reason, bad := forbiddenGlobals[string(n.Name)]; bad {
			w.err = reject("reference to forbidden global: %s (%s)", n.Name, reason)
		}

	case *ast.CallExpression:
		if id, ok := n.Callee.(*ast.Identifier); ok {
			if string(id.Name) == "require" {
				w.checkRequire(n)
			} else if string(id.Name) == "eval" {
				w.err = reject("dangerous method: eval")
			} else if reason, bad := dangerousCalls[string(id.Name)]; bad {
				w.err = reject("call to dangerous builtin: %s (%s)", id.Name, reason)
			}
		}

	case *ast.NewExpression:
		if id, ok := n.Callee.(*ast.Identifier); ok {
			if reason, bad := dangerousCalls[string(id.Name)]; bad {
				w.err = reject("construction of dangerous builtin: %s (%s)", id.Name, reason)
			}
		}

	case *ast.WithStatement:
		w.err = reject("with-statement")

	case *ast.FunctionLiteral:
		w.funcDecls++
		if n.ParameterList != nil {
			if n := len(n.ParameterList.List); n > maxParams {
				w.err = reject("function with more than %d parameters", maxParams)
				return
			}
		}
		w.nestingDepth++
		if w.nestingDepth > maxNestingDepth {
			w.err = reject("nesting depth exceeds %d", maxNestingDepth)
		}
		// FunctionLiteral's body is reached by the caller's ordinary struct
		// recursion; we only track the depth counter here, and walk
		// decrements it once it is done with this subtree.
	}
}

// checkRequire inspects a require(...) call's first argument, rejecting if
// it names a module on the forbidden list. Anything not a literal string is
// let through here — dynamic-module-name construction is already caught by
// the broader eval/Function/string-assembly checks.
func (w *walker) checkRequire(call *ast.CallExpression) {
	if len(call.ArgumentList) == 0 {
		return
	}
	lit, ok := call.ArgumentList[0].(*ast.StringLiteral)
	if !ok {
		return
	}
	name := string(lit.Value)
	if reason, bad := forbiddenModules[name]; bad {
		w.err = reject("import of forbidden module: %s (%s)", name, reason)
	}
}
