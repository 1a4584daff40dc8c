package remoteapp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLBasic(t *testing.T) {
	ref, err := ParseURL("https://github.com/acme/widget", []string{"github.com"})
	require.NoError(t, err)
	assert.Equal(t, "github.com", ref.Host)
	assert.Equal(t, "acme", ref.Owner)
	assert.Equal(t, "widget", ref.Repo)
	assert.Equal(t, "main", ref.Branch)
	assert.Empty(t, ref.Subpath)
}

func TestParseURLWithBranchAndSubpath(t *testing.T) {
	ref, err := ParseURL("https://github.com/acme/widget/tree/dev/apps/one", []string{"github.com"})
	require.NoError(t, err)
	assert.Equal(t, "dev", ref.Branch)
	assert.Equal(t, "apps/one", ref.Subpath)
}

func TestParseURLRejectsUnknownHost(t *testing.T) {
	_, err := ParseURL("https://evil.example.com/acme/widget", []string{"github.com"})
	assert.True(t, errors.Is(err, ErrUnknownHost))
}

func TestParseURLRejectsMalformedPath(t *testing.T) {
	_, err := ParseURL("https://github.com/acme", []string{"github.com"})
	assert.Error(t, err)
}

func TestParseURLRejectsUnsupportedScheme(t *testing.T) {
	_, err := ParseURL("ftp://github.com/acme/widget", []string{"github.com"})
	assert.Error(t, err)
}

func TestAppIDSanitizesAndJoinsParts(t *testing.T) {
	ref := Ref{Owner: "ac me", Repo: "wid.get", Subpath: "sub/path"}
	assert.Equal(t, "remote_ac_me_wid_get_sub_path", ref.AppID())
}
