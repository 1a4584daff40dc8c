// Package app defines the contract every BBS app must satisfy (spec.md
// §4.4, C4) — builtin, locally loaded, or loaded from a remote source
// repository — and the validation pipeline that runs before any candidate
// is admitted to the registry.
package app

import (
	"context"
	"fmt"
	"regexp"
)

// Bound lengths from spec.md §4.4.
const (
	MaxIDLen          = 50
	MaxNameLen        = 100
	MaxDescriptionLen = 500
	MaxWelcomeLen     = 10_000
	MaxResponseLen    = 10_000
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// Origin records where a LoadedApp came from.
type Origin string

const (
	OriginBuiltin Origin = "builtin"
	OriginLocal   Origin = "local"
)

// RemoteOrigin formats the origin tag for a remote app (spec.md §3:
// "remote:<url>").
func RemoteOrigin(url string) Origin {
	return Origin("remote:" + url)
}

// SessionView is the defensive, read-only projection of a session handed to
// an app's entry points. A mutating write by the app is simply discarded —
// apps reach persisted session state only through the capability facade.
type SessionView struct {
	SessionKey  string
	UserID      string
	Username    string
	Role        string
	CurrentArea string
	History     []string
}

// CommandResult is what handle_command returns.
type CommandResult struct {
	Screen   string // empty string is normalized to "no screen" (exit app) per spec.md §9
	Response string
	Refresh  bool
	Data     any
}

// ScreenIsExit reports whether a CommandResult signals "return to main" per
// the normalization spec.md §9 calls for: the original sometimes returns ""
// to mean this; we treat both "" and explicit absence as canonical null.
func (r CommandResult) ScreenIsExit() bool {
	return r.Screen == ""
}

// Contract is the interface every app — builtin, local, or remote —
// implements. Remote apps are fronted by a generated proxy (sandbox/remoteapp)
// whose methods are thin calls into an isolate handle; callers never know
// the difference.
type Contract interface {
	ID() string
	Name() string
	Version() string
	Description() string
	Author() string
	// Source returns the origin URL for a remote app, or "" for
	// builtin/local apps.
	Source() string

	GetWelcomeScreen(ctx context.Context) (string, error)
	HandleCommand(ctx context.Context, screenID string, command string, sess SessionView) (CommandResult, error)
	GetHelp(ctx context.Context, screenID string) (string, error)
}

// Initializer is implemented by apps that want a one-time hook when they're
// registered, receiving their capability facade. Optional per spec.md §4.4.
type Initializer interface {
	OnInit(ctx context.Context, caps any) error
}

// UserEnterExit is implemented by apps that want to observe a user arriving
// at / leaving their area. Optional per spec.md §4.4.
type UserEnterExit interface {
	OnUserEnter(ctx context.Context, userID string, sess SessionView) error
	OnUserExit(ctx context.Context, userID string, sess SessionView) error
}

// ValidationError reports precisely which check failed, so the loader can
// log (and, for remote apps, surface to the installer) the exact reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "app: validation failed: " + e.Reason }

func fail(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate runs every check in spec.md §4.4's validation policy, in order,
// rejecting on the first failure with the precise reason. Partial admission
// is forbidden: a candidate either passes every check or is rejected
// outright.
func Validate(ctx context.Context, candidate Contract) error {
	if candidate == nil {
		return fail("nil app")
	}

	id := candidate.ID()
	if id == "" || len(id) > MaxIDLen || !idPattern.MatchString(id) {
		return fail("id %q must be 1-%d chars of [A-Za-z0-9_-]", id, MaxIDLen)
	}
	if name := candidate.Name(); name == "" || len(name) > MaxNameLen {
		return fail("name must be 1-%d chars", MaxNameLen)
	}
	if desc := candidate.Description(); len(desc) > MaxDescriptionLen {
		return fail("description exceeds %d chars", MaxDescriptionLen)
	}
	if candidate.Version() == "" {
		return fail("version is required")
	}

	welcome, err := candidate.GetWelcomeScreen(ctx)
	if err != nil {
		return fail("get_welcome_screen error: %v", err)
	}
	if len(welcome) > MaxWelcomeLen {
		return fail("welcome screen exceeds %d chars", MaxWelcomeLen)
	}

	help, err := candidate.GetHelp(ctx, "")
	if err != nil {
		return fail("get_help(null) error: %v", err)
	}
	if len(help) > MaxWelcomeLen {
		return fail("help text exceeds %d chars", MaxWelcomeLen)
	}

	probe := SessionView{SessionKey: "probe", CurrentArea: "main"}
	result, err := candidate.HandleCommand(ctx, "", "HELP", probe)
	if err != nil {
		return fail("probe handle_command(null, HELP) error: %v", err)
	}
	if len(result.Response) > MaxResponseLen {
		return fail("probe response exceeds %d chars", MaxResponseLen)
	}

	return nil
}
