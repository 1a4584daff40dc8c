package app_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaybbs/bbskit/app"
)

type stubApp struct {
	id, name, version, desc, welcome, help string
	handleErr                              error
}

func (s stubApp) ID() string          { return s.id }
func (s stubApp) Name() string        { return s.name }
func (s stubApp) Version() string     { return s.version }
func (s stubApp) Description() string { return s.desc }
func (s stubApp) Author() string      { return "tester" }
func (s stubApp) Source() string      { return "" }

func (s stubApp) GetWelcomeScreen(ctx context.Context) (string, error) { return s.welcome, nil }
func (s stubApp) GetHelp(ctx context.Context, screenID string) (string, error) {
	return s.help, nil
}
func (s stubApp) HandleCommand(ctx context.Context, screenID, command string, sess app.SessionView) (app.CommandResult, error) {
	if s.handleErr != nil {
		return app.CommandResult{}, s.handleErr
	}
	return app.CommandResult{Screen: "home", Response: "ok", Refresh: true}, nil
}

func validStub() stubApp {
	return stubApp{id: "testapp", name: "Test App", version: "1.0.0", desc: "a test app", welcome: "hi", help: "help text"}
}

func TestValidatePassesForWellFormedApp(t *testing.T) {
	err := app.Validate(context.Background(), validStub())
	assert.NoError(t, err)
}

func TestValidateRejectsNil(t *testing.T) {
	err := app.Validate(context.Background(), nil)
	assert.Error(t, err)
}

func TestValidateRejectsBadID(t *testing.T) {
	s := validStub()
	s.id = "has spaces!"
	err := app.Validate(context.Background(), s)
	assert.Error(t, err)
}

func TestValidateRejectsEmptyName(t *testing.T) {
	s := validStub()
	s.name = ""
	err := app.Validate(context.Background(), s)
	assert.Error(t, err)
}

func TestValidateRejectsOversizedWelcome(t *testing.T) {
	s := validStub()
	s.welcome = strings.Repeat("x", app.MaxWelcomeLen+1)
	err := app.Validate(context.Background(), s)
	assert.Error(t, err)
}

func TestScreenIsExit(t *testing.T) {
	assert.True(t, app.CommandResult{Screen: ""}.ScreenIsExit())
	assert.False(t, app.CommandResult{Screen: "home"}.ScreenIsExit())
}
