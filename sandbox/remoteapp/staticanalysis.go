package remoteapp

import (
	"fmt"
	"regexp"
	"strings"
)

// Rejection is returned by the static-analysis pass with the precise
// violation (spec.md §4.7d: "any single violation rejects the app with the
// precise reason").
type Rejection struct {
	Reason string
}

func (e *Rejection) Error() string { return "remoteapp: static analysis rejected: " + e.Reason }

func reject(format string, args ...any) error {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

const (
	maxLines       = 10_000
	maxNestedBrace = 1_000
)

// cheapChecks runs the size/shape checks that are cheap enough to do before
// ever invoking a parser (spec.md §4.7d "Cheap checks").
func cheapChecks(src string) error {
	if len(src) > MaxSourceBytes {
		return reject("source exceeds %d bytes", MaxSourceBytes)
	}
	lines := strings.Count(src, "\n") + 1
	if lines > maxLines {
		return reject("source exceeds %d lines", maxLines)
	}

	depth, maxDepth, balance := 0, 0, 0
	for _, r := range src {
		switch r {
		case '{':
			depth++
			balance++
			if depth > maxDepth {
				maxDepth = depth
			}
		case '}':
			depth--
			balance--
			if depth < 0 {
				return reject("unbalanced closing brace")
			}
		}
	}
	if balance != 0 {
		return reject("severe bracket imbalance")
	}
	if maxDepth > maxNestedBrace {
		return reject("brace nesting exceeds %d", maxNestedBrace)
	}
	return nil
}

// regexRejections pair a compiled pattern with the human reason reported
// when it matches (spec.md §4.7d "Regex checks").
var regexRejections = []struct {
	pattern *regexp.Regexp
	reason  string
}{
	{regexp.MustCompile(`__proto__|\.constructor\s*\(|Object\.setPrototypeOf`), "prototype/constructor chain access"},
	{regexp.MustCompile(`\\u00[0-9a-fA-F]{2}\\u00[0-9a-fA-F]{2}\\u00[0-9a-fA-F]{2}`), "obfuscated escape sequence chain"},
	{regexp.MustCompile(`String\.fromCharCode\s*\([^)]{40,}\)`), "string assembly resembling dynamic eval"},
	{regexp.MustCompile(`(^|\W)with\s*\(`), "with-statement"},
	{regexp.MustCompile(`new\s+Function\s*\(`), "dynamic function construction"},
}

// regexChecks runs the pattern-based heuristics that catch obfuscation
// tricks a parser alone wouldn't flag.
func regexChecks(src string) error {
	for _, rr := range regexRejections {
		if rr.pattern.MatchString(src) {
			return reject("dangerous pattern: %s", rr.reason)
		}
	}
	return nil
}
