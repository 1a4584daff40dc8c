package infodesk_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybbs/bbskit/app"
	"github.com/relaybbs/bbskit/builtinapps/infodesk"
)

func TestValidatesAgainstContract(t *testing.T) {
	a := infodesk.New()
	require.NoError(t, app.Validate(context.Background(), a))
}

func TestAboutShowsUsernameAndArea(t *testing.T) {
	a := infodesk.New()
	sess := app.SessionView{Username: "alice", CurrentArea: "infodesk:home"}
	res, err := a.HandleCommand(context.Background(), "home", "ABOUT", sess)
	require.NoError(t, err)
	assert.Equal(t, "about", res.Screen)
	assert.Contains(t, res.Response, "alice")
	assert.Contains(t, res.Response, "infodesk:home")
}

func TestAboutDefaultsToGuestWhenUnauthenticated(t *testing.T) {
	a := infodesk.New()
	res, err := a.HandleCommand(context.Background(), "home", "ABOUT", app.SessionView{})
	require.NoError(t, err)
	assert.Contains(t, res.Response, "guest")
}

func TestBackFromAboutReturnsHome(t *testing.T) {
	a := infodesk.New()
	res, err := a.HandleCommand(context.Background(), "about", "B", app.SessionView{})
	require.NoError(t, err)
	assert.Equal(t, "home", res.Screen)
	assert.Contains(t, res.Response, "Welcome")
}

func TestUnknownHomeCommandRepeatsWelcome(t *testing.T) {
	a := infodesk.New()
	res, err := a.HandleCommand(context.Background(), "home", "XYZ", app.SessionView{})
	require.NoError(t, err)
	assert.Equal(t, "home", res.Screen)
	assert.False(t, res.Refresh)
}
