package main

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresDB struct {
	db  *sql.DB
	dsn string
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresDB) Init() error {
	// rely on migrations to create tables; just verify connectivity
	return p.db.Ping()
}

func (p *PostgresDB) CreateUser(email, provider string, passwordHash *string) (*User, error) {
	id := uuid.NewString()
	_, err := p.db.Exec(`INSERT INTO users(id,email,provider,password_hash,active,created_at) VALUES($1,$2,$3,$4,true,now())`,
		id, email, provider, passwordHash)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return &User{ID: id, Email: email, Provider: provider, PasswordHash: passwordHash, Active: true}, nil
}

func (p *PostgresDB) GetUserByEmailProvider(email, provider string) (*User, error) {
	row := p.db.QueryRow(`SELECT id,email,provider,password_hash,active,created_at FROM users WHERE email = $1 AND provider = $2`, email, provider)
	return scanUser(row)
}

func (p *PostgresDB) GetUserByID(id string) (*User, error) {
	row := p.db.QueryRow(`SELECT id,email,provider,password_hash,active,created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (p *PostgresDB) CreateInteraction(userID, model, role, content string) error {
	_, err := p.db.Exec(`INSERT INTO interactions(id,user_id,model,role,content,created_at) VALUES($1,$2,$3,$4,$5,now())`,
		uuid.NewString(), userID, model, role, content)
	return err
}

func (p *PostgresDB) ListInteractionsByUser(userID string) ([]*Interaction, error) {
	rows, err := p.db.Query(`SELECT id,user_id,model,role,content,created_at FROM interactions WHERE user_id = $1 ORDER BY created_at`, userID)
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

func (p *PostgresDB) close() error { return p.db.Close() }
func (p *PostgresDB) ping() bool   { return p.db.Ping() == nil }
