package controllers

import (
	"os"
	"testing"
)

func newTempDB(t *testing.T) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "controllers_test_*.db")
	if err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })
	return tmpFile.Name()
}

func TestNewManager(t *testing.T) {
	manager, err := NewManager(newTempDB(t))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	if len(manager.List()) != 0 {
		t.Error("New manager should have no controllers")
	}
}

func TestRegisterController(t *testing.T) {
	manager, err := NewManager(newTempDB(t))
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Close()

	c, err := manager.Register("Alice")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if c.ID == "" {
		t.Error("ID should be generated")
	}
	if c.Name != "Alice" {
		t.Errorf("Expected Name 'Alice', got '%s'", c.Name)
	}
	if c.RegisteredAt.IsZero() || c.LastSeenAt.IsZero() {
		t.Error("Timestamps should be set")
	}
}

func TestRegisterSameNameKeepsID(t *testing.T) {
	manager, err := NewManager(newTempDB(t))
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Close()

	first, _ := manager.Register("Alice")
	second, _ := manager.Register("  Alice ")

	if first.ID != second.ID {
		t.Errorf("Expected same ID on re-register, got %s and %s", first.ID, second.ID)
	}
	if len(manager.List()) != 1 {
		t.Errorf("Expected 1 controller, got %d", len(manager.List()))
	}
}

func TestControllersPersist(t *testing.T) {
	dbPath := newTempDB(t)

	manager, err := NewManager(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	alice, _ := manager.Register("Alice")
	manager.Register("Bob")
	manager.Close()

	reopened, err := NewManager(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if len(reopened.List()) != 2 {
		t.Fatalf("Expected 2 controllers after reopen, got %d", len(reopened.List()))
	}
	got, ok := reopened.Get("Alice")
	if !ok {
		t.Fatal("Alice should be loaded from disk")
	}
	if got.ID != alice.ID {
		t.Errorf("Expected ID %s, got %s", alice.ID, got.ID)
	}
	if !got.RegisteredAt.Equal(alice.RegisteredAt) {
		t.Errorf("Expected RegisteredAt %v, got %v", alice.RegisteredAt, got.RegisteredAt)
	}
}

func TestGetUnknownController(t *testing.T) {
	manager, err := NewManager(newTempDB(t))
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Close()

	if _, ok := manager.Get("nobody"); ok {
		t.Error("Expected unknown controller lookup to fail")
	}
}
