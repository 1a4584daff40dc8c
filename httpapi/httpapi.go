// Package httpapi implements AuthEndpoints and TerminalEndpoints (spec.md
// §4.10-4.11, §6, C10/C11): the JSON HTTP boundary, built on Buffalo the
// same way the teacher wires its own routes.
package httpapi

import (
	"github.com/gobuffalo/buffalo"
	"github.com/gobuffalo/buffalo/render"

	"github.com/relaybbs/bbskit/identity"
	"github.com/relaybbs/bbskit/session"
	"github.com/relaybbs/bbskit/shell"
	"github.com/relaybbs/bbskit/store"
)

var r = render.New(render.Options{})

// Handlers groups the services the JSON endpoints depend on.
type Handlers struct {
	Sessions *session.Service
	Store    store.Store
	Shell    *shell.Shell

	logins *identity.LoginLimiter
}

// New builds a Handlers bound to the given services.
func New(sessions *session.Service, st store.Store, sh *shell.Shell) *Handlers {
	return &Handlers{Sessions: sessions, Store: st, Shell: sh, logins: identity.NewLoginLimiter()}
}

// Mount registers every route in spec.md §6 onto app.
func (h *Handlers) Mount(a *buffalo.App) {
	a.Use(securityHeaders)

	a.GET("/terminal/init", h.TerminalInit)
	a.POST("/terminal/command", h.TerminalCommand)
	a.GET("/terminal/session", h.TerminalSession)

	a.POST("/auth/register", h.AuthRegister)
	a.POST("/auth/login", h.AuthLogin)
	a.POST("/auth/logout", h.AuthLogout)
	a.GET("/auth/me", h.AuthMe)
}
