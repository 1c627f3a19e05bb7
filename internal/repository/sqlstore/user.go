package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

func (r *Store) CreateUser(ctx context.Context, u *models.User) (string, error) {
	if u == nil {
		return "", fmt.Errorf("user is nil")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Created = db.Now()

	if _, err := r.conn.Exec(ctx, `INSERT INTO users (id, email, password_hash, created) VALUES (?, ?, ?, ?)`, u.ID, u.Email, u.PasswordHash, u.Created); err != nil {
		if isUniqueViolation(err) {
			return "", repository.ErrDuplicate
		}
		return "", err
	}

	return u.ID, nil
}

func (r *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.scanUser(r.conn.QueryRow(ctx, `SELECT id, email, password_hash, created FROM users WHERE id = ?`, id))
}

func (r *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.scanUser(r.conn.QueryRow(ctx, `SELECT id, email, password_hash, created FROM users WHERE email = ?`, email))
}

func (r *Store) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
