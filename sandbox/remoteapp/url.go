// Package remoteapp implements RemoteLoader (spec.md §4.7, C7): fetching an
// untrusted app's source from a remote repository, statically analyzing it,
// executing it in a quota-bound isolate, and wrapping the result so every
// call is capability-checked before it reaches the host.
package remoteapp

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnknownHost is returned when a remote URL doesn't point at one of the
// configured allow-listed hosting services.
var ErrUnknownHost = errors.New("remoteapp: host is not on the allow-list")

// Ref is the parsed form of a remote-repository URL (spec.md §4.7a).
type Ref struct {
	Host    string
	Owner   string
	Repo    string
	Branch  string // defaults to "main" when not specified in the URL
	Subpath string
}

// AppID synthesizes the registry id for a ref: remote_<owner>_<repo>[_<subpath>]
// (spec.md §4.7i).
func (r Ref) AppID() string {
	id := fmt.Sprintf("remote_%s_%s", sanitizeIDPart(r.Owner), sanitizeIDPart(r.Repo))
	if r.Subpath != "" {
		id += "_" + sanitizeIDPart(r.Subpath)
	}
	return id
}

func sanitizeIDPart(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	return s
}

// ParseURL accepts a remote-repository URL of the shape
// https://<host>/<owner>/<repo>[/tree/<branch>[/<subpath>]] and validates
// host against allowedHosts. Unknown hosts or malformed URLs fail fast with
// a precise error, never a panic.
func ParseURL(raw string, allowedHosts []string) (Ref, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("remoteapp: malformed URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Ref{}, fmt.Errorf("remoteapp: unsupported scheme %q", u.Scheme)
	}
	if !hostAllowed(u.Host, allowedHosts) {
		return Ref{}, fmt.Errorf("%w: %s", ErrUnknownHost, u.Host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("remoteapp: URL must be https://<host>/<owner>/<repo>[...]")
	}

	ref := Ref{Host: u.Host, Owner: parts[0], Repo: parts[1], Branch: "main"}
	rest := parts[2:]
	if len(rest) >= 2 && rest[0] == "tree" {
		ref.Branch = rest[1]
		rest = rest[2:]
	}
	ref.Subpath = strings.Join(rest, "/")
	return ref, nil
}

func hostAllowed(host string, allowed []string) bool {
	for _, h := range allowed {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}
