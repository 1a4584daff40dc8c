// Package identity owns the durable user record and the password hashing
// rules every auth path must follow. It never touches persistence itself —
// that's store's job — it only knows how to shape and verify a User.
package identity

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt work factor used for every stored password. It must
// stay at or above 10 per the contract; bcrypt.DefaultCost (10) satisfies
// that floor without making logins sluggish on modest hardware.
const HashCost = bcrypt.DefaultCost

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

var (
	// ErrInvalidUsername is returned when a username fails the shape check.
	ErrInvalidUsername = errors.New("identity: username must be 3-20 chars of letters, digits, underscore")
	// ErrInvalidEmail is returned when an email fails normalization.
	ErrInvalidEmail = errors.New("identity: invalid email address")
)

// Role distinguishes ordinary users from operators who may install and
// uninstall remote apps.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the durable identity record. PasswordHash is never serialized to
// clients; PublicView strips it entirely rather than relying on a json tag.
type User struct {
	ID           string
	Username     string
	DisplayName  string
	Email        string // empty if not provided
	PasswordHash string
	Role         Role
	JoinDate     time.Time
	LastLogin    *time.Time
	Settings     map[string]any
}

// PublicUser is the client-safe projection of User (spec.md §4.2).
type PublicUser struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	Email       string     `json:"email,omitempty"`
	Role        Role       `json:"role"`
	JoinDate    time.Time  `json:"joinDate"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
}

// PublicView projects a User down to the fields safe to hand a client. The
// password hash is never copied anywhere near this struct.
func PublicView(u *User) PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        u.Role,
		JoinDate:    u.JoinDate,
		LastLogin:   u.LastLogin,
	}
}

// NormalizeUsername lowercases and validates a candidate username.
func NormalizeUsername(raw string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(raw))
	if !usernamePattern.MatchString(u) {
		return "", ErrInvalidUsername
	}
	return u, nil
}

// NormalizeEmail lowercases an optional email; an empty string stays empty
// (email is optional per the data model) and is never rejected.
func NormalizeEmail(raw string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(raw))
	if e == "" {
		return "", nil
	}
	if !strings.Contains(e, "@") || strings.HasPrefix(e, "@") || strings.HasSuffix(e, "@") {
		return "", ErrInvalidEmail
	}
	return e, nil
}

// HashPassword produces a salted, adaptive hash suitable for long-term
// storage. Cost is fixed at HashCost so every stored hash is comparable.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), HashCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash. bcrypt's comparison is
// constant-time by construction, so callers never need their own
// timing-safe compare.
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
