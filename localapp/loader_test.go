package localapp_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybbs/bbskit/app"
	"github.com/relaybbs/bbskit/localapp"
)

func TestDiscoverMissingDirReturnsEmpty(t *testing.T) {
	l := localapp.New(filepath.Join(t.TempDir(), "does-not-exist"))
	paths, err := l.Discover()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestDiscoverFindsOnlySharedObjects(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.so"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.so"), 0o755))

	l := localapp.New(dir)
	paths, err := l.Discover()
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "app.so"), paths[0])
}

func TestLoadRejectsNonPluginFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.so")
	require.NoError(t, os.WriteFile(bad, []byte("not a real plugin"), 0o644))

	l := localapp.New(dir)
	_, err := l.Load(context.Background(), bad)
	assert.Error(t, err)
}

type stubApp struct{}

func (stubApp) ID() string                                                   { return "stub" }
func (stubApp) Name() string                                                 { return "Stub" }
func (stubApp) Version() string                                              { return "1.0.0" }
func (stubApp) Description() string                                          { return "" }
func (stubApp) Author() string                                               { return "" }
func (stubApp) Source() string                                               { return "" }
func (stubApp) GetWelcomeScreen(ctx context.Context) (string, error)         { return "hi", nil }
func (stubApp) GetHelp(ctx context.Context, screenID string) (string, error) { return "help", nil }
func (stubApp) HandleCommand(ctx context.Context, screenID, command string, sess app.SessionView) (app.CommandResult, error) {
	return app.CommandResult{}, nil
}

func TestBuiltinReturnsCandidatesVerbatim(t *testing.T) {
	a := stubApp{}
	out := localapp.Builtin(a)
	require.Len(t, out, 1)
	assert.Equal(t, "stub", out[0].ID())
}
