package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gobuffalo/buffalo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybbs/bbskit/httpapi"
	"github.com/relaybbs/bbskit/registry"
	"github.com/relaybbs/bbskit/session"
	"github.com/relaybbs/bbskit/shell"
	"github.com/relaybbs/bbskit/store"
)

func newTestApp(t *testing.T) *buffalo.App {
	t.Helper()
	st := store.NewMemoryStore()
	sessions := session.New(st)
	reg := registry.New()
	sh := shell.New(sessions, reg, nil)
	h := httpapi.New(sessions, st, sh)

	a := buffalo.New(buffalo.Options{Env: "test"})
	h.Mount(a)
	return a
}

func doJSON(t *testing.T, a *buffalo.App, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	a.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

func TestSecurityHeadersAreSet(t *testing.T) {
	a := newTestApp(t)
	res := doJSON(t, a, http.MethodGet, "/terminal/init", nil)
	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
}

func TestTerminalInitCreatesSession(t *testing.T) {
	a := newTestApp(t)
	res := doJSON(t, a, http.MethodGet, "/terminal/init", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := decode(t, res)
	assert.NotEmpty(t, body["sessionId"])
	assert.Equal(t, "main", body["currentArea"])
}

func TestRegisterThenLoginThenMe(t *testing.T) {
	a := newTestApp(t)

	res := doJSON(t, a, http.MethodPost, "/auth/register", map[string]any{
		"username":    "alice",
		"password":    "correct-horse",
		"displayName": "Alice",
		"email":       "alice@example.com",
	})
	require.Equal(t, http.StatusOK, res.Code)
	reg := decode(t, res)
	sessionID, _ := reg["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	res = doJSON(t, a, http.MethodGet, "/auth/me?sessionId="+sessionID, nil)
	require.Equal(t, http.StatusOK, res.Code)
	me := decode(t, res)
	assert.Equal(t, true, me["isLoggedIn"])

	res = doJSON(t, a, http.MethodPost, "/auth/logout", map[string]any{"sessionId": sessionID})
	require.Equal(t, http.StatusOK, res.Code)

	res = doJSON(t, a, http.MethodGet, "/auth/me?sessionId="+sessionID, nil)
	me = decode(t, res)
	assert.Equal(t, false, me["isLoggedIn"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newTestApp(t)
	doJSON(t, a, http.MethodPost, "/auth/register", map[string]any{
		"username":    "bob",
		"password":    "correct-horse",
		"displayName": "Bob",
		"email":       "bob@example.com",
	})

	res := doJSON(t, a, http.MethodPost, "/auth/login", map[string]any{
		"username": "bob",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestTerminalCommandDispatchesThroughShell(t *testing.T) {
	a := newTestApp(t)
	init := decode(t, doJSON(t, a, http.MethodGet, "/terminal/init", nil))
	sessionID, _ := init["sessionId"].(string)

	res := doJSON(t, a, http.MethodPost, "/terminal/command", map[string]any{
		"sessionId": sessionID,
		"command":   "HELP",
	})
	require.Equal(t, http.StatusOK, res.Code)
	body := decode(t, res)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data["response"], "HELP")
}

func TestTerminalCommandRequiresSessionID(t *testing.T) {
	a := newTestApp(t)
	res := doJSON(t, a, http.MethodPost, "/terminal/command", map[string]any{"command": "HELP"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}
