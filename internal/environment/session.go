package environment

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ilexum-group/supportkit/internal/utils"
)

// SessionKey is the store key holding the session identifier
const SessionKey = "logger_session_id"

// SessionStore is a key/value store scoped to one session
type SessionStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// MemoryStore keeps session values for the lifetime of the process
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements SessionStore
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements SessionStore
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

const sessionSchema = `CREATE TABLE IF NOT EXISTS session_values (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps session values in a SQLite file so a session can outlive one process
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the session database at path
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sessionSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements SessionStore
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM session_values WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session value: %w", err)
	}
	return value, true, nil
}

// Set implements SessionStore
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO session_values (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write session value: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sessionID returns the stored session id, creating and storing one when absent.
// Without a working store every call gets a fresh, unpersisted id.
func sessionID(store SessionStore) (id string) {
	defer func() {
		if r := recover(); r != nil {
			id = utils.GenerateSessionID()
		}
	}()

	if store == nil {
		return utils.GenerateSessionID()
	}
	existing, ok, err := store.Get(SessionKey)
	if err != nil {
		utils.LogDebug("Session store unavailable", map[string]string{"error": err.Error()})
		return utils.GenerateSessionID()
	}
	if ok && existing != "" {
		return existing
	}

	fresh := utils.GenerateSessionID()
	if err := store.Set(SessionKey, fresh); err != nil {
		utils.LogDebug("Session id not persisted", map[string]string{"error": err.Error()})
	}
	return fresh
}
