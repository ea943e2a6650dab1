package controllers

import (
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

// Manager keeps the remote controllers that registered through the connect command
type Manager struct {
	db          *sql.DB
	controllers map[string]*models.RemoteController // keyed by name
	mu          sync.RWMutex
}

// NewManager creates a new controller manager with SQLite persistence
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS controllers (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE,
			registered_at DATETIME,
			last_seen_at DATETIME
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	m := &Manager{
		db:          db,
		controllers: make(map[string]*models.RemoteController),
	}

	if err := m.loadControllers(); err != nil {
		db.Close()
		return nil, err
	}

	return m, nil
}

// loadControllers loads all controllers from SQLite into memory
func (m *Manager) loadControllers() error {
	rows, err := m.db.Query(`SELECT id, name, registered_at, last_seen_at FROM controllers`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c models.RemoteController
		var registeredAt, lastSeenAt string
		if err := rows.Scan(&c.ID, &c.Name, &registeredAt, &lastSeenAt); err != nil {
			continue
		}
		c.RegisteredAt, _ = time.Parse(time.RFC3339, registeredAt)
		c.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeenAt)
		m.controllers[c.Name] = &c
	}

	return rows.Err()
}

// Register records a controller by display name. A known name only has its
// last-seen time refreshed.
func (m *Manager) Register(name string) (models.RemoteController, error) {
	name = strings.TrimSpace(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Second)
	if c, ok := m.controllers[name]; ok {
		c.LastSeenAt = now
		return *c, m.saveController(c)
	}

	c := &models.RemoteController{
		ID:           uuid.New().String(),
		Name:         name,
		RegisteredAt: now,
		LastSeenAt:   now,
	}
	if err := m.saveController(c); err != nil {
		return models.RemoteController{}, err
	}
	m.controllers[name] = c
	return *c, nil
}

// Get returns the controller registered under name
func (m *Manager) Get(name string) (models.RemoteController, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.controllers[name]
	if !ok {
		return models.RemoteController{}, false
	}
	return *c, true
}

// List returns all controllers, most recently seen first
func (m *Manager) List() []models.RemoteController {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]models.RemoteController, 0, len(m.controllers))
	for _, c := range m.controllers {
		list = append(list, *c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].LastSeenAt.Equal(list[j].LastSeenAt) {
			return list[i].Name < list[j].Name
		}
		return list[i].LastSeenAt.After(list[j].LastSeenAt)
	})
	return list
}

// saveController persists a controller to SQLite
func (m *Manager) saveController(c *models.RemoteController) error {
	_, err := m.db.Exec(`
		INSERT OR REPLACE INTO controllers (id, name, registered_at, last_seen_at)
		VALUES (?, ?, ?, ?)
	`,
		c.ID,
		c.Name,
		c.RegisteredAt.Format(time.RFC3339),
		c.LastSeenAt.Format(time.RFC3339),
	)
	return err
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
