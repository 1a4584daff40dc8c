package httpapi

import (
	"net/http"

	"github.com/gobuffalo/buffalo"

	"github.com/relaybbs/bbskit/store"
)

type sessionSnapshot struct {
	ID             string   `json:"id"`
	CurrentArea    string   `json:"currentArea"`
	CommandHistory []string `json:"commandHistory"`
}

func snapshotOf(sess *store.Session) sessionSnapshot {
	return sessionSnapshot{ID: sess.Key, CurrentArea: sess.CurrentArea, CommandHistory: sess.CommandHistory}
}

type terminalInitResponse struct {
	SessionID          string   `json:"sessionId"`
	CurrentArea        string   `json:"currentArea"`
	DefaultWelcomeText string   `json:"defaultWelcomeText"`
	FullWelcomeText    string   `json:"fullWelcomeText"`
	SimpleWelcomeText  string   `json:"simpleWelcomeText"`
	MenuOptions        []string `json:"menuOptions"`
}

// TerminalInit implements `GET /terminal/init?sessionId?&simplified?`
// (spec.md §6/§4.11): returns or creates a session and the welcome text plus
// menu catalog. An absent sessionId creates a new session; a present but
// unknown one is created with that id verbatim.
func (h *Handlers) TerminalInit(c buffalo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("sessionId")
	simplified := c.Param("simplified") == "true"

	sess, err := h.Sessions.Create(ctx, sessionID, store.SessionInit{
		ClientAddr:  c.Request().RemoteAddr,
		ClientAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return c.Render(http.StatusInternalServerError, r.JSON(map[string]any{"success": false, "error": err.Error()}))
	}

	full := h.Shell.MainMenuText()
	simple := "Type HELP, MAIN, or a number to select an app."
	def := full
	if simplified {
		def = simple
	}

	return c.Render(http.StatusOK, r.JSON(terminalInitResponse{
		SessionID:          sess.Key,
		CurrentArea:        sess.CurrentArea,
		DefaultWelcomeText: def,
		FullWelcomeText:    full,
		SimpleWelcomeText:  simple,
		MenuOptions:        h.Shell.MenuOptions(),
	}))
}

type terminalCommandRequest struct {
	SessionID string `json:"sessionId"`
	Command   string `json:"command"`
}

// TerminalCommand implements `POST /terminal/command` (spec.md §6/§4.11):
// dispatches through the Shell and reports the post-execution session
// snapshot. 400 when required fields are missing, 500 on internal errors.
func (h *Handlers) TerminalCommand(c buffalo.Context) error {
	var req terminalCommandRequest
	if err := c.Bind(&req); err != nil || req.SessionID == "" || req.Command == "" {
		return c.Render(http.StatusBadRequest, r.JSON(map[string]any{"success": false, "error": "sessionId and command are required"}))
	}

	ctx := c.Request().Context()
	sess, err := h.Sessions.Get(ctx, req.SessionID)
	if err != nil {
		return c.Render(http.StatusBadRequest, r.JSON(map[string]any{"success": false, "error": "unknown session"}))
	}

	result := h.Shell.Dispatch(ctx, sess, req.Command)

	updated, err := h.Sessions.Get(ctx, req.SessionID)
	if err != nil {
		return c.Render(http.StatusInternalServerError, r.JSON(map[string]any{"success": false, "error": err.Error()}))
	}

	return c.Render(http.StatusOK, r.JSON(map[string]any{
		"success": true,
		"message": "ok",
		"data": map[string]any{
			"screen":   result.Screen,
			"area":     result.Area,
			"response": result.Response,
			"refresh":  result.Refresh,
			"session":  snapshotOf(updated),
		},
	}))
}

// TerminalSession implements `GET /terminal/session?sessionId`.
func (h *Handlers) TerminalSession(c buffalo.Context) error {
	sessionID := c.Param("sessionId")
	sess, err := h.Sessions.Get(c.Request().Context(), sessionID)
	if err != nil {
		return c.Render(http.StatusOK, r.JSON(map[string]any{"exists": false}))
	}
	return c.Render(http.StatusOK, r.JSON(map[string]any{
		"exists":        true,
		"currentArea":   sess.CurrentArea,
		"historyLength": len(sess.CommandHistory),
	}))
}
