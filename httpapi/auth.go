package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gobuffalo/buffalo"
	"github.com/gobuffalo/validate/v3"

	"github.com/relaybbs/bbskit/identity"
	"github.com/relaybbs/bbskit/store"
)

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	SessionID   string `json:"sessionId"`
}

func failJSON(c buffalo.Context, status int, err error) error {
	return c.Render(status, r.JSON(map[string]any{"success": false, "error": err.Error()}))
}

// AuthRegister implements `POST /auth/register` (spec.md §6/§4.10):
// validates username/password/display/email, rejects duplicates, hashes the
// password, creates the user, and binds the session.
func (h *Handlers) AuthRegister(c buffalo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return failJSON(c, http.StatusBadRequest, err)
	}

	errs := validate.NewErrors()
	username, err := identity.NormalizeUsername(req.Username)
	if err != nil {
		errs.Add("username", err.Error())
	}
	email, err := identity.NormalizeEmail(req.Email)
	if err != nil {
		errs.Add("email", err.Error())
	}
	if req.DisplayName == "" {
		errs.Add("displayName", "display name is required")
	}
	if len(req.Password) < 8 {
		errs.Add("password", "password must be at least 8 characters")
	}
	if errs.HasAny() {
		return failJSON(c, http.StatusBadRequest, errors.New(errs.Error()))
	}

	ctx := c.Request().Context()
	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		return failJSON(c, http.StatusInternalServerError, err)
	}

	user := &identity.User{
		Username:     username,
		DisplayName:  req.DisplayName,
		Email:        email,
		PasswordHash: hash,
		Role:         identity.RoleUser,
		JoinDate:     time.Now(),
	}
	if err := h.Store.UserCreate(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return failJSON(c, http.StatusBadRequest, errors.New("username or email already registered"))
		}
		return failJSON(c, http.StatusInternalServerError, err)
	}

	sess, err := h.bindSession(ctx, req.SessionID, user)
	if err != nil {
		return failJSON(c, http.StatusInternalServerError, err)
	}

	return c.Render(http.StatusOK, r.JSON(map[string]any{
		"success":        true,
		"sessionId":      sess.Key,
		"currentArea":    sess.CurrentArea,
		"commandHistory": sess.CommandHistory,
		"user":           identity.PublicView(user),
	}))
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	SessionID string `json:"sessionId"`
}

// AuthLogin implements `POST /auth/login`: looks up by username, verifies
// the hash, updates last_login, and binds the session.
func (h *Handlers) AuthLogin(c buffalo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return failJSON(c, http.StatusBadRequest, err)
	}

	ctx := c.Request().Context()
	username, err := identity.NormalizeUsername(req.Username)
	if err != nil {
		return failJSON(c, http.StatusBadRequest, errors.New("invalid credentials"))
	}

	if !h.logins.Allow(username) {
		return failJSON(c, http.StatusTooManyRequests, errors.New("too many failed attempts, try again later"))
	}

	user, err := h.Store.UserFindByUsername(ctx, username)
	if err != nil || !identity.VerifyPassword(req.Password, user.PasswordHash) {
		h.logins.RecordFailure(username)
		return failJSON(c, http.StatusBadRequest, errors.New("invalid credentials"))
	}
	h.logins.RecordSuccess(username)

	_ = h.Store.UserUpdateLastLogin(ctx, user.ID, time.Now())

	sess, err := h.bindSession(ctx, req.SessionID, user)
	if err != nil {
		return failJSON(c, http.StatusInternalServerError, err)
	}

	return c.Render(http.StatusOK, r.JSON(map[string]any{
		"success":        true,
		"sessionId":      sess.Key,
		"currentArea":    sess.CurrentArea,
		"commandHistory": sess.CommandHistory,
		"user":           identity.PublicView(user),
	}))
}

// bindSession creates or reuses the session at sessionID and stamps it with
// the authenticated user's cached display fields (spec.md §3: a session
// caches username/role at bind time).
func (h *Handlers) bindSession(ctx context.Context, sessionID string, user *identity.User) (*store.Session, error) {
	sess, err := h.Sessions.Create(ctx, sessionID, store.SessionInit{})
	if err != nil {
		return nil, err
	}
	userID, username, role := user.ID, user.Username, string(user.Role)
	return h.Sessions.Update(ctx, sess.Key, store.SessionPartial{
		UserID:   &userID,
		Username: &username,
		Role:     &role,
	})
}

type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

// AuthLogout implements `POST /auth/logout`: clears userId/username on the
// session without deleting it.
func (h *Handlers) AuthLogout(c buffalo.Context) error {
	var req logoutRequest
	if err := c.Bind(&req); err != nil || req.SessionID == "" {
		return failJSON(c, http.StatusBadRequest, errors.New("sessionId is required"))
	}

	empty := ""
	_, err := h.Sessions.Update(c.Request().Context(), req.SessionID, store.SessionPartial{
		UserID:   &empty,
		Username: &empty,
		Role:     &empty,
	})
	if err != nil {
		return failJSON(c, http.StatusInternalServerError, err)
	}
	return c.Render(http.StatusOK, r.JSON(map[string]any{"success": true, "message": "logged out"}))
}

// AuthMe implements `GET /auth/me?sessionId`: returns the session's current
// area, command history, and (if authenticated) the public user view.
func (h *Handlers) AuthMe(c buffalo.Context) error {
	sessionID := c.Param("sessionId")
	ctx := c.Request().Context()
	sess, err := h.Sessions.Get(ctx, sessionID)
	if err != nil {
		return failJSON(c, http.StatusBadRequest, errors.New("unknown session"))
	}

	resp := map[string]any{
		"success":        true,
		"isLoggedIn":     sess.UserID != "",
		"sessionId":      sess.Key,
		"currentArea":    sess.CurrentArea,
		"commandHistory": sess.CommandHistory,
	}
	if sess.UserID != "" {
		if user, err := h.Store.UserFindByID(ctx, sess.UserID); err == nil {
			resp["user"] = identity.PublicView(user)
		}
	}
	return c.Render(http.StatusOK, r.JSON(resp))
}
