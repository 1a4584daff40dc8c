package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/relaybbs/bbskit/identity"
)

// SQLStore is a database/sql-backed Store in the manner of auth.SQLStore.
// The SQL here targets sqlite3 (the teacher's embedded option, spec.md
// §4.1); queries use $N placeholders and an ON CONFLICT upsert, so another
// dialect would need changes to migrate() and to those queries.
type SQLStore struct {
	db *sql.DB
}

// Open creates (or attaches to) a sqlite3 database at dsn and ensures the
// schema exists.
func Open(dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			key TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			current_area TEXT NOT NULL DEFAULT 'main',
			command_history TEXT NOT NULL DEFAULT '[]',
			data TEXT NOT NULL DEFAULT '{}',
			client_addr TEXT NOT NULL DEFAULT '',
			client_agent TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			last_activity DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions(last_activity)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			email TEXT,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			join_date DATETIME NOT NULL,
			last_login DATETIME,
			settings TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE TABLE IF NOT EXISTS key_values (
			app_id TEXT NOT NULL,
			key TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			namespace TEXT NOT NULL DEFAULT '',
			value TEXT NOT NULL,
			expires_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (app_id, key, user_id, namespace)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_kv_app_namespace ON key_values(app_id, namespace)`,
		`CREATE INDEX IF NOT EXISTS idx_kv_app_user ON key_values(app_id, user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// --- sessions ---

func (s *SQLStore) SessionGet(ctx context.Context, key string) (*Session, error) {
	sess, err := s.scanSession(ctx, `SELECT key, user_id, username, role, current_area, command_history, data, client_addr, client_agent, created_at, last_activity FROM sessions WHERE key = $1`, key)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_activity = $1 WHERE key = $2`, now, key); err != nil {
		return nil, fmt.Errorf("store: bump last_activity: %w", err)
	}
	sess.LastActivity = now
	return sess, nil
}

func (s *SQLStore) scanSession(ctx context.Context, query string, args ...any) (*Session, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var (
		sess                  Session
		historyJSON, dataJSON string
	)
	err := row.Scan(&sess.Key, &sess.UserID, &sess.Username, &sess.Role, &sess.CurrentArea,
		&historyJSON, &dataJSON, &sess.ClientAddr, &sess.ClientAgent, &sess.CreatedAt, &sess.LastActivity)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan session: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &sess.CommandHistory); err != nil {
		return nil, fmt.Errorf("store: decode history: %w", err)
	}
	if err := json.Unmarshal([]byte(dataJSON), &sess.Data); err != nil {
		return nil, fmt.Errorf("store: decode data: %w", err)
	}
	if sess.Data == nil {
		sess.Data = make(map[string]map[string]any)
	}
	return &sess, nil
}

func (s *SQLStore) SessionUpsert(ctx context.Context, key string, init SessionInit) (*Session, error) {
	if existing, err := s.SessionGet(ctx, key); err == nil {
		return existing, nil
	} else if err != ErrNotFound {
		return nil, err
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (key, current_area, command_history, data, client_addr, client_agent, created_at, last_activity)
		 VALUES ($1, 'main', '[]', '{}', $2, $3, $4, $4)`,
		key, init.ClientAddr, init.ClientAgent, now)
	if err != nil {
		return nil, fmt.Errorf("store: insert session: %w", err)
	}
	return s.SessionGet(ctx, key)
}

func (s *SQLStore) SessionUpdate(ctx context.Context, key string, patch SessionPartial) (*Session, error) {
	sess, err := s.scanSession(ctx, `SELECT key, user_id, username, role, current_area, command_history, data, client_addr, client_agent, created_at, last_activity FROM sessions WHERE key = $1`, key)
	if err != nil {
		return nil, err
	}
	if patch.CurrentArea != nil {
		sess.CurrentArea = *patch.CurrentArea
	}
	if patch.UserID != nil {
		sess.UserID = *patch.UserID
	}
	if patch.Username != nil {
		sess.Username = *patch.Username
	}
	if patch.Role != nil {
		sess.Role = *patch.Role
	}
	for app, bag := range patch.DataMerge {
		if sess.Data[app] == nil {
			sess.Data[app] = make(map[string]any)
		}
		for k, v := range bag {
			sess.Data[app][k] = v
		}
	}
	if patch.HistoryAppend != nil {
		sess.CommandHistory = append(sess.CommandHistory, *patch.HistoryAppend)
		if len(sess.CommandHistory) > MaxHistory {
			sess.CommandHistory = sess.CommandHistory[len(sess.CommandHistory)-MaxHistory:]
		}
	}
	sess.LastActivity = time.Now()

	historyJSON, err := json.Marshal(sess.CommandHistory)
	if err != nil {
		return nil, err
	}
	dataJSON, err := json.Marshal(sess.Data)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET user_id=$1, username=$2, role=$3, current_area=$4, command_history=$5, data=$6, last_activity=$7 WHERE key=$8`,
		sess.UserID, sess.Username, sess.Role, sess.CurrentArea, string(historyJSON), string(dataJSON), sess.LastActivity, key)
	if err != nil {
		return nil, fmt.Errorf("store: update session: %w", err)
	}
	return sess, nil
}

func (s *SQLStore) SessionDelete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = $1`, key)
	return err
}

func (s *SQLStore) SessionReap(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_activity < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("store: reap sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// --- users ---

func (s *SQLStore) UserCreate(ctx context.Context, u *identity.User) error {
	if u.Email != "" {
		if _, err := s.UserFindByEmail(ctx, u.Email); err == nil {
			return ErrConflict
		} else if err != ErrNotFound {
			return err
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	settingsJSON, err := json.Marshal(u.Settings)
	if err != nil {
		return err
	}
	var email any
	if u.Email != "" {
		email = u.Email
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, email, password_hash, role, join_date, settings)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Username, u.DisplayName, email, u.PasswordHash, string(u.Role), u.JoinDate, string(settingsJSON))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("store: create user: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

func (s *SQLStore) scanUser(ctx context.Context, query string, args ...any) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var (
		u            identity.User
		role         string
		email        sql.NullString
		lastLogin    sql.NullTime
		settingsJSON string
	)
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &email, &u.PasswordHash, &role, &u.JoinDate, &lastLogin, &settingsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan user: %w", err)
	}
	u.Role = identity.Role(role)
	if email.Valid {
		u.Email = email.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	_ = json.Unmarshal([]byte(settingsJSON), &u.Settings)
	return &u, nil
}

const userSelect = `SELECT id, username, display_name, email, password_hash, role, join_date, last_login, settings FROM users WHERE `

func (s *SQLStore) UserFindByUsername(ctx context.Context, username string) (*identity.User, error) {
	return s.scanUser(ctx, userSelect+"username = $1", username)
}

func (s *SQLStore) UserFindByID(ctx context.Context, id string) (*identity.User, error) {
	return s.scanUser(ctx, userSelect+"id = $1", id)
}

func (s *SQLStore) UserFindByEmail(ctx context.Context, email string) (*identity.User, error) {
	return s.scanUser(ctx, userSelect+"email = $1", email)
}

func (s *SQLStore) UserUpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

func (s *SQLStore) UserUpdatePassword(ctx context.Context, id string, newHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, newHash, id)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

func rowsAffectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- key/values ---

func (s *SQLStore) KVGet(ctx context.Context, appID, key, userID, namespace string) (*KeyValue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at, created_at, updated_at FROM key_values
		 WHERE app_id=$1 AND key=$2 AND user_id=$3 AND namespace=$4`,
		appID, key, userID, namespace)
	var (
		valueJSON string
		expires   sql.NullTime
		kv        KeyValue
	)
	err := row.Scan(&valueJSON, &expires, &kv.CreatedAt, &kv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan kv: %w", err)
	}
	if expires.Valid {
		if expires.Time.Before(time.Now()) {
			_ = s.KVDelete(ctx, appID, key, userID, namespace)
			return nil, ErrNotFound
		}
		t := expires.Time
		kv.ExpiresAt = &t
	}
	if err := json.Unmarshal([]byte(valueJSON), &kv.Value); err != nil {
		return nil, fmt.Errorf("store: decode kv value: %w", err)
	}
	kv.AppID, kv.Key, kv.UserID, kv.Namespace = appID, key, userID, namespace
	return &kv, nil
}

func (s *SQLStore) KVUpsert(ctx context.Context, appID, key string, value any, userID, namespace string, expiresAt *time.Time) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode kv value: %w", err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO key_values (app_id, key, user_id, namespace, value, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (app_id, key, user_id, namespace)
		 DO UPDATE SET value=excluded.value, expires_at=excluded.expires_at, updated_at=excluded.updated_at`,
		appID, key, userID, namespace, string(valueJSON), expiresAt, now)
	if err != nil {
		return fmt.Errorf("store: upsert kv: %w", err)
	}
	return nil
}

func (s *SQLStore) KVDelete(ctx context.Context, appID, key, userID, namespace string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM key_values WHERE app_id=$1 AND key=$2 AND user_id=$3 AND namespace=$4`,
		appID, key, userID, namespace)
	return err
}

func (s *SQLStore) Debug(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	for name, table := range map[string]string{"sessions": "sessions", "users": "users", "kvs": "key_values"} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, nil
}
