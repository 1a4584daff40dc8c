// Package infodesk is a minimal builtin app.Contract implementation (spec.md
// §3's "origin: builtin"): a single welcome screen and an about screen, with
// no persisted state of its own. It exists mainly to give a freshly wired
// server something to show on the main menu before any remote or local app
// is installed.
package infodesk

import (
	"context"
	"fmt"

	"github.com/relaybbs/bbskit/app"
)

const (
	screenHome  = "home"
	screenAbout = "about"
)

// App is the infodesk builtin.
type App struct{}

// New constructs the infodesk app.
func New() *App { return &App{} }

func (a *App) ID() string          { return "infodesk" }
func (a *App) Name() string        { return "Info Desk" }
func (a *App) Version() string     { return "1.0.0" }
func (a *App) Description() string { return "Server information and help desk" }
func (a *App) Author() string      { return "bbskit" }
func (a *App) Source() string      { return "" }

func (a *App) GetWelcomeScreen(ctx context.Context) (string, error) {
	return "Welcome to the Info Desk.\nType ABOUT for server information, or B to go back.", nil
}

func (a *App) GetHelp(ctx context.Context, screenID string) (string, error) {
	switch screenID {
	case screenAbout:
		return "ABOUT shows server info. B returns to the Info Desk home screen.", nil
	default:
		return "ABOUT shows server information. B returns to the main menu.", nil
	}
}

func (a *App) HandleCommand(ctx context.Context, screenID string, command string, sess app.SessionView) (app.CommandResult, error) {
	switch screenID {
	case screenAbout:
		if command == "B" || command == "BACK" {
			welcome, _ := a.GetWelcomeScreen(ctx)
			return app.CommandResult{Screen: screenHome, Response: welcome, Refresh: true}, nil
		}
		return app.CommandResult{Screen: screenAbout, Response: "Type B to go back.", Refresh: false}, nil

	default: // home
		switch command {
		case "ABOUT":
			return app.CommandResult{
				Screen:   screenAbout,
				Response: fmt.Sprintf("bbskit BBS server, user %s, area %s.", displayName(sess), sess.CurrentArea),
				Refresh:  true,
			}, nil
		case "HELP":
			help, _ := a.GetHelp(ctx, screenHome)
			return app.CommandResult{Screen: screenHome, Response: help, Refresh: false}, nil
		default:
			welcome, _ := a.GetWelcomeScreen(ctx)
			return app.CommandResult{Screen: screenHome, Response: welcome, Refresh: false}, nil
		}
	}
}

func displayName(sess app.SessionView) string {
	if sess.Username != "" {
		return sess.Username
	}
	return "guest"
}
