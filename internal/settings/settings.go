package settings

import (
	"database/sql"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Keys used by the playback API
const (
	KeyPlaybackAPI     = "playbackAPI"
	KeyPlaybackAPIPort = "playbackAPIPort"
)

// Manager is a key/value settings store with SQLite persistence
type Manager struct {
	db     *sql.DB
	values map[string]string // In-memory cache
	mu     sync.RWMutex
}

// NewManager opens (or creates) the settings database at dbPath
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	m := &Manager{
		db:     db,
		values: make(map[string]string),
	}

	if err := m.loadSettings(); err != nil {
		db.Close()
		return nil, err
	}

	return m, nil
}

// loadSettings loads all settings from SQLite into memory
func (m *Manager) loadSettings() error {
	rows, err := m.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		m.values[key] = value
	}
	return rows.Err()
}

// Get returns the stored value for key, or def when unset
func (m *Manager) Get(key, def string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v
	}
	return def
}

// Set stores value under key
func (m *Manager) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return err
	}
	m.values[key] = value
	return nil
}

// GetBool returns key parsed as a bool, or def when unset or unparsable
func (m *Manager) GetBool(key string, def bool) bool {
	v, err := strconv.ParseBool(m.Get(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}

// SetBool stores a bool under key
func (m *Manager) SetBool(key string, value bool) error {
	return m.Set(key, strconv.FormatBool(value))
}

// GetInt returns key parsed as an int, or def when unset or unparsable
func (m *Manager) GetInt(key string, def int) int {
	v, err := strconv.Atoi(m.Get(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

// SetInt stores an int under key
func (m *Manager) SetInt(key string, value int) error {
	return m.Set(key, strconv.Itoa(value))
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
