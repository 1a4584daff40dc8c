package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relaybbs/bbskit/identity"
)

// MemoryStore is an in-process Store used by tests and by deployments that
// haven't configured a database yet. It plays the same role here that
// auth.MemoryStore plays for auth.SQLStore in the teacher: a drop-in stand-in
// with identical semantics, no persistence across restarts.
type MemoryStore struct {
	mu sync.RWMutex

	sessions map[string]*Session
	users    map[string]*identity.User // by id
	byName   map[string]string         // username -> id
	byEmail  map[string]string         // email -> id
	kvs      map[kvKey]*KeyValue
}

type kvKey struct {
	appID, key, userID, namespace string
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		users:    make(map[string]*identity.User),
		byName:   make(map[string]string),
		byEmail:  make(map[string]string),
		kvs:      make(map[kvKey]*KeyValue),
	}
}

func cloneSession(s *Session) *Session {
	cp := *s
	cp.CommandHistory = append([]string(nil), s.CommandHistory...)
	cp.Data = make(map[string]map[string]any, len(s.Data))
	for app, bag := range s.Data {
		inner := make(map[string]any, len(bag))
		for k, v := range bag {
			inner[k] = v
		}
		cp.Data[app] = inner
	}
	return &cp
}

func (m *MemoryStore) SessionGet(ctx context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	s.LastActivity = time.Now()
	return cloneSession(s), nil
}

func (m *MemoryStore) SessionUpsert(ctx context.Context, key string, init SessionInit) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return cloneSession(s), nil
	}
	now := time.Now()
	s := &Session{
		Key:            key,
		CurrentArea:    "main",
		CommandHistory: []string{},
		Data:           make(map[string]map[string]any),
		CreatedAt:      now,
		LastActivity:   now,
		ClientAddr:     init.ClientAddr,
		ClientAgent:    init.ClientAgent,
	}
	m.sessions[key] = s
	return cloneSession(s), nil
}

func (m *MemoryStore) SessionUpdate(ctx context.Context, key string, patch SessionPartial) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.CurrentArea != nil {
		s.CurrentArea = *patch.CurrentArea
	}
	if patch.UserID != nil {
		s.UserID = *patch.UserID
	}
	if patch.Username != nil {
		s.Username = *patch.Username
	}
	if patch.Role != nil {
		s.Role = *patch.Role
	}
	for app, bag := range patch.DataMerge {
		if s.Data[app] == nil {
			s.Data[app] = make(map[string]any)
		}
		for k, v := range bag {
			s.Data[app][k] = v
		}
	}
	if patch.HistoryAppend != nil {
		s.CommandHistory = append(s.CommandHistory, *patch.HistoryAppend)
		if len(s.CommandHistory) > MaxHistory {
			s.CommandHistory = s.CommandHistory[len(s.CommandHistory)-MaxHistory:]
		}
	}
	s.LastActivity = time.Now()
	return cloneSession(s), nil
}

func (m *MemoryStore) SessionDelete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

func (m *MemoryStore) SessionReap(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, s := range m.sessions {
		if s.LastActivity.Before(olderThan) {
			delete(m.sessions, key)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) UserCreate(ctx context.Context, u *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[u.Username]; exists {
		return ErrConflict
	}
	if u.Email != "" {
		if _, exists := m.byEmail[u.Email]; exists {
			return ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	m.users[u.ID] = &cp
	m.byName[u.Username] = u.ID
	if u.Email != "" {
		m.byEmail[u.Email] = u.ID
	}
	return nil
}

func (m *MemoryStore) UserFindByUsername(ctx context.Context, username string) (*identity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryStore) UserFindByID(ctx context.Context, id string) (*identity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) UserFindByEmail(ctx context.Context, email string) (*identity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryStore) UserUpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

func (m *MemoryStore) UserUpdatePassword(ctx context.Context, id string, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = newHash
	return nil
}

func (m *MemoryStore) KVGet(ctx context.Context, appID, key, userID, namespace string) (*KeyValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kv, ok := m.kvs[kvKey{appID, key, userID, namespace}]
	if !ok {
		return nil, ErrNotFound
	}
	if kv.ExpiresAt != nil && kv.ExpiresAt.Before(time.Now()) {
		delete(m.kvs, kvKey{appID, key, userID, namespace})
		return nil, ErrNotFound
	}
	cp := *kv
	return &cp, nil
}

func (m *MemoryStore) KVUpsert(ctx context.Context, appID, key string, value any, userID, namespace string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := kvKey{appID, key, userID, namespace}
	now := time.Now()
	if existing, ok := m.kvs[k]; ok {
		existing.Value = value
		existing.ExpiresAt = expiresAt
		existing.UpdatedAt = now
		return nil
	}
	m.kvs[k] = &KeyValue{
		AppID: appID, Key: key, Value: value,
		UserID: userID, Namespace: namespace,
		ExpiresAt: expiresAt, CreatedAt: now, UpdatedAt: now,
	}
	return nil
}

func (m *MemoryStore) KVDelete(ctx context.Context, appID, key, userID, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kvs, kvKey{appID, key, userID, namespace})
	return nil
}

func (m *MemoryStore) Debug(ctx context.Context) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]any{
		"sessions": len(m.sessions),
		"users":    len(m.users),
		"kvs":      len(m.kvs),
	}, nil
}

func (m *MemoryStore) Close() error { return nil }
