// Package shell implements Shell (spec.md §4.9, C9): the session's state
// machine. It owns command dispatch order — universal verbs, then area
// dispatch, then persistence — and nothing else; every app call crosses
// through the registry's wrapped Contract, never the isolate directly.
package shell

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/relaybbs/bbskit/app"
	"github.com/relaybbs/bbskit/registry"
	"github.com/relaybbs/bbskit/sandbox/remoteapp"
	"github.com/relaybbs/bbskit/session"
	"github.com/relaybbs/bbskit/store"
)

const mainArea = "main"

// Result is what Dispatch returns to the calling endpoint (spec.md §4.9
// step 5).
type Result struct {
	Area     string
	Response string
	Refresh  bool
	Screen   string // "" means no app screen (main menu or logoff)
}

// Shell dispatches commands against one session at a time, per-session,
// serially (spec.md §5): a per-key mutex stands in for "a second command on
// the same session must not begin until the previous one has persisted."
type Shell struct {
	sessions *session.Service
	registry *registry.Registry
	loader   *remoteapp.Loader

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds a Shell bound to the session service, app registry, and remote
// loader (for INSTALL/UNINSTALL/LIST admin verbs).
func New(sessions *session.Service, reg *registry.Registry, loader *remoteapp.Loader) *Shell {
	return &Shell{
		sessions: sessions,
		registry: reg,
		loader:   loader,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Shell) lockFor(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Dispatch runs the full order from spec.md §4.9 against sess, returning the
// final {area, response, refresh, screen}. The per-session lock is held for
// the entire call, including the trailing persist step, so a second command
// on the same key truly waits for the first to land.
func (s *Shell) Dispatch(ctx context.Context, sess *store.Session, raw string) Result {
	lock := s.lockFor(sess.Key)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock so this command sees what the previous command
	// on the same key persisted.
	if fresh, err := s.sessions.Get(ctx, sess.Key); err == nil {
		sess = fresh
	}

	cmd := strings.ToUpper(strings.TrimSpace(raw))
	area := sess.CurrentArea
	if area == "" {
		area = mainArea
	}

	result := s.universalVerb(ctx, sess, area, cmd, raw)
	if result == nil {
		result = s.areaDispatch(ctx, sess, area, cmd, raw)
	}

	s.persist(ctx, sess.Key, raw, area, result.Area)
	return *result
}

// universalVerb handles the verbs that take precedence in every state
// (spec.md §4.9 step 2). Returns nil if cmd isn't a universal verb, so the
// caller falls through to area dispatch.
func (s *Shell) universalVerb(ctx context.Context, sess *store.Session, area, cmd, raw string) *Result {
	switch {
	case cmd == "HELP":
		return &Result{Area: area, Response: s.helpFor(ctx, area), Refresh: false}

	case cmd == "MAIN" || cmd == "MENU":
		return &Result{Area: mainArea, Response: s.mainMenu(), Refresh: true}

	case cmd == "EXIT" || cmd == "QUIT" || cmd == "X" || cmd == "LOGOFF":
		return &Result{Area: area, Response: "Goodbye.", Refresh: true}

	case cmd == "DEBUG":
		return &Result{Area: area, Response: s.debugDump(), Refresh: false}

	case strings.HasPrefix(cmd, "INSTALL "), strings.HasPrefix(cmd, "UNINSTALL "), strings.HasPrefix(cmd, "LIST "):
		return s.adminVerb(ctx, sess, area, cmd, raw)
	}
	return nil
}

func (s *Shell) helpFor(ctx context.Context, area string) string {
	appID, screenID, inApp := splitArea(area)
	if !inApp {
		return "Commands: HELP, MAIN, EXIT, DEBUG, or a number to enter an app."
	}
	entry, ok := s.registry.Get(appID)
	if !ok {
		return "App no longer installed. Type MAIN to return."
	}
	help, err := entry.App.GetHelp(ctx, screenID)
	if err != nil {
		return "Help unavailable. Type B to go back."
	}
	return help
}

// MainMenuText exposes the main-menu rendering for httpapi's terminal/init
// endpoint, which needs the same text the shell itself emits on MAIN/MENU.
func (s *Shell) MainMenuText() string { return s.mainMenu() }

// MenuOptions lists installed app names in menu order, for terminal/init's
// menuOptions field.
func (s *Shell) MenuOptions() []string {
	entries := s.registry.ListAll()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.App.Name()
	}
	return out
}

func (s *Shell) mainMenu() string {
	entries := s.registry.ListAll()
	var b strings.Builder
	b.WriteString("MAIN MENU\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d) %s\n", i+1, e.App.Name())
	}
	if len(entries) == 0 {
		b.WriteString("(no apps installed)\n")
	}
	return b.String()
}

// listRemoteApps renders every tracked remote source URL (spec.md §4.9's
// "LIST <HOST> APPS", exercised as "LIST REMOTE APPS"), so INSTALL/UNINSTALL
// effects on the registry are observable without DEBUG.
func (s *Shell) listRemoteApps() string {
	urls := s.registry.ListRemoteURLs()
	var b strings.Builder
	b.WriteString("Remote apps:\n")
	if len(urls) == 0 {
		b.WriteString("(none installed)\n")
		return b.String()
	}
	sort.Strings(urls)
	for _, url := range urls {
		fmt.Fprintf(&b, "- %s\n", url)
	}
	return b.String()
}

func (s *Shell) debugDump() string {
	entries := s.registry.ListAll()
	var b strings.Builder
	b.WriteString("Registry:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s (%s) origin=%s\n", e.ID, e.App.Version(), e.Origin)
	}
	return b.String()
}

// adminVerb handles INSTALL/UNINSTALL/LIST. Role gating ("admin verbs") is
// enforced here rather than at the HTTP layer, since the Shell is the one
// place that sees both the session's role and the verb together.
func (s *Shell) adminVerb(ctx context.Context, sess *store.Session, area, cmd, raw string) *Result {
	if sess.Role != "admin" {
		return &Result{Area: area, Response: "Admin privileges required.", Refresh: false}
	}

	fields := strings.Fields(raw)
	switch {
	case strings.HasPrefix(cmd, "LIST "):
		return &Result{Area: area, Response: s.listRemoteApps(), Refresh: false}

	case strings.HasPrefix(cmd, "INSTALL ") && len(fields) >= 2:
		url := fields[len(fields)-1]
		loaded, err := s.loader.Install(ctx, url)
		if err != nil {
			return &Result{Area: area, Response: fmt.Sprintf("Install failed: %v", err), Refresh: false}
		}
		if err := s.registry.Register(ctx, &registry.LoadedApp{
			ID:     loaded.ID(),
			App:    loaded,
			Origin: app.RemoteOrigin(url),
		}, nil); err != nil {
			return &Result{Area: area, Response: fmt.Sprintf("Install failed: %v", err), Refresh: false}
		}
		return &Result{Area: area, Response: fmt.Sprintf("Installed %s.", loaded.Name()), Refresh: false}

	case strings.HasPrefix(cmd, "UNINSTALL ") && len(fields) >= 2:
		url := fields[len(fields)-1]
		if id, ok := s.registry.IDForRemoteURL(url); ok {
			s.registry.Unregister(id)
		}
		return &Result{Area: area, Response: "Uninstalled (if present).", Refresh: false}
	}
	return &Result{Area: area, Response: "Usage: INSTALL <host> <url> | UNINSTALL <host> <url> | LIST <host> APPS", Refresh: false}
}

// areaDispatch handles spec.md §4.9 step 3: numeric selection from main, or
// forwarding into an app's wrapped handle_command.
func (s *Shell) areaDispatch(ctx context.Context, sess *store.Session, area, cmd, raw string) *Result {
	appID, screenID, inApp := splitArea(area)

	if !inApp {
		return s.selectApp(ctx, sess, cmd)
	}

	if cmd == "B" || cmd == "BACK" {
		return &Result{Area: mainArea, Response: s.mainMenu(), Refresh: true}
	}

	entry, ok := s.registry.Get(appID)
	if !ok {
		return &Result{Area: mainArea, Response: "App no longer installed.\n" + s.mainMenu(), Refresh: true}
	}

	view := sessionView(sess)
	result, err := func() (res app.CommandResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("app panicked: %v", r)
			}
		}()
		return entry.App.HandleCommand(ctx, screenID, raw, view)
	}()
	if err != nil {
		return &Result{Area: area, Response: fmt.Sprintf("App error: %v. Type B to go back.", err), Refresh: false, Screen: screenID}
	}

	switch {
	case result.ScreenIsExit():
		return &Result{Area: mainArea, Response: s.mainMenu(), Refresh: true}
	case result.Screen == screenID:
		return &Result{Area: area, Response: result.Response, Refresh: result.Refresh, Screen: screenID}
	default:
		newArea := appID + ":" + result.Screen
		return &Result{Area: newArea, Response: result.Response, Refresh: result.Refresh, Screen: result.Screen}
	}
}

// selectApp handles a numeric token from the main menu: "select 1..K" for
// anything else (spec.md §4.9 edge cases).
func (s *Shell) selectApp(ctx context.Context, sess *store.Session, cmd string) *Result {
	entries := s.registry.ListAll()
	n, err := strconv.Atoi(cmd)
	if err != nil || n < 1 || n > len(entries) {
		guidance := "Select 1..0"
		if len(entries) > 0 {
			guidance = fmt.Sprintf("Select 1..%d", len(entries))
		}
		return &Result{Area: mainArea, Response: guidance, Refresh: false}
	}

	entry := entries[n-1]
	if enter, ok := entry.App.(app.UserEnterExit); ok && sess.UserID != "" {
		_ = enter.OnUserEnter(ctx, sess.UserID, sessionView(sess))
	}

	welcome, err := entry.App.GetWelcomeScreen(ctx)
	if err != nil {
		welcome = "Welcome screen unavailable."
	}
	return &Result{Area: entry.ID + ":home", Response: welcome, Refresh: true, Screen: "home"}
}

// persist applies spec.md §4.9 step 4: always append history, and only
// touch current_area when it actually changed.
func (s *Shell) persist(ctx context.Context, key, raw, oldArea, newArea string) {
	if _, err := s.sessions.AppendHistory(ctx, key, raw); err != nil {
		return
	}
	if newArea != oldArea {
		_, _ = s.sessions.SetCurrentArea(ctx, key, newArea)
	}
}

// splitArea parses "main" or "<appId>:<screenId>", tolerant of absent/empty
// values (spec.md §4.9 edge cases: treated as main).
func splitArea(area string) (appID, screenID string, inApp bool) {
	if area == "" || area == mainArea {
		return "", "", false
	}
	idx := strings.Index(area, ":")
	if idx < 0 {
		return "", "", false
	}
	return area[:idx], area[idx+1:], true
}

func sessionView(sess *store.Session) app.SessionView {
	return app.SessionView{
		SessionKey:  sess.Key,
		UserID:      sess.UserID,
		Username:    sess.Username,
		Role:        sess.Role,
		CurrentArea: sess.CurrentArea,
		History:     sess.CommandHistory,
	}
}
