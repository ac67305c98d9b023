package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUserExists is returned when a (email, provider) pair is already taken.
var ErrUserExists = errors.New("user already exists")

// DB interface for database operations
type DB interface {
	Init() error
	// User operations
	CreateUser(email, provider string, passwordHash *string) (*User, error)
	GetUserByEmailProvider(email, provider string) (*User, error)
	GetUserByID(id string) (*User, error)
	// Interaction operations
	CreateInteraction(userID, model, role, content string) error
	ListInteractionsByUser(userID string) ([]*Interaction, error)
}

// Memory DB
type MemDB struct {
	mu           sync.Mutex
	users        map[string]*User // keyed by email + "\x00" + provider
	interactions []*Interaction
}

func NewMemoryDB() *MemDB {
	return &MemDB{users: map[string]*User{}}
}

func memKey(email, provider string) string { return email + "\x00" + provider }

func (m *MemDB) Init() error { return nil }

func (m *MemDB) CreateUser(email, provider string, passwordHash *string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(email, provider)
	if _, ok := m.users[key]; ok {
		return nil, ErrUserExists
	}
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Provider:     provider,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	m.users[key] = u
	return u, nil
}

func (m *MemDB) GetUserByEmailProvider(email, provider string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[memKey(email, provider)]; ok {
		return u, nil
	}
	return nil, nil
}

func (m *MemDB) GetUserByID(id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *MemDB) CreateInteraction(userID, model, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, &Interaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Model:     model,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *MemDB) ListInteractionsByUser(userID string) ([]*Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Interaction
	for _, it := range m.interactions {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

// SQLite DB
type SQLiteDB struct {
	db   *sql.DB
	path string
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteDB{db: d, path: path}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, email TEXT NOT NULL, provider TEXT NOT NULL, password_hash TEXT, active INTEGER DEFAULT 1, created_at TEXT, UNIQUE(email, provider));`,
		`CREATE TABLE IF NOT EXISTS interactions (id TEXT PRIMARY KEY, user_id TEXT NOT NULL REFERENCES users(id), model TEXT NOT NULL, role TEXT NOT NULL, content TEXT NOT NULL, created_at TEXT);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteDB) CreateUser(email, provider string, passwordHash *string) (*User, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`INSERT INTO users(id,email,provider,password_hash,active,created_at) VALUES(?,?,?,?,1,datetime('now'))`,
		id, email, provider, passwordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %v", ErrUserExists, err)
		}
		return nil, err
	}
	return &User{ID: id, Email: email, Provider: provider, PasswordHash: passwordHash, Active: true}, nil
}

func (s *SQLiteDB) GetUserByEmailProvider(email, provider string) (*User, error) {
	row := s.db.QueryRow(`SELECT id,email,provider,password_hash,active,created_at FROM users WHERE email = ? AND provider = ?`, email, provider)
	return scanUser(row)
}

func (s *SQLiteDB) GetUserByID(id string) (*User, error) {
	row := s.db.QueryRow(`SELECT id,email,provider,password_hash,active,created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *SQLiteDB) CreateInteraction(userID, model, role, content string) error {
	_, err := s.db.Exec(`INSERT INTO interactions(id,user_id,model,role,content,created_at) VALUES(?,?,?,?,?,datetime('now'))`,
		uuid.NewString(), userID, model, role, content)
	return err
}

func (s *SQLiteDB) ListInteractionsByUser(userID string) ([]*Interaction, error) {
	// rowid breaks ties: datetime('now') only has second precision
	rows, err := s.db.Query(`SELECT id,user_id,model,role,content,created_at FROM interactions WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Interaction
	for rows.Next() {
		var it Interaction
		var created string
		if err := rows.Scan(&it.ID, &it.UserID, &it.Model, &it.Role, &it.Content, &created); err != nil {
			return nil, err
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

// scanUser scans one user row; a sql.Row or sql.Rows both satisfy this.
func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	var created string
	var hash sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Provider, &hash, &u.Active, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if hash.Valid {
		u.PasswordHash = &hash.String
	}
	return &u, nil
}

// lifecycle helpers
func (m *MemDB) close() error { return nil }
func (m *MemDB) ping() bool   { return true }

func (s *SQLiteDB) close() error { return s.db.Close() }
func (s *SQLiteDB) ping() bool   { return s.db.Ping() == nil }
