package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/internal/models"
)

func (r *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}
	p.Updated = db.Now()

	_, err := r.conn.Exec(ctx, `INSERT INTO profiles (user_id, display_name, bio, location, experience_level, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		p.UserID, p.DisplayName, p.Bio, p.Location, p.ExperienceLevel, p.Updated)
	return err
}

func (r *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	row := r.conn.QueryRow(ctx, `SELECT user_id, display_name, bio, location, experience_level, updated FROM profiles WHERE user_id = ?`, userID)
	var p models.Profile
	if err := row.Scan(&p.UserID, &p.DisplayName, &p.Bio, &p.Location, &p.ExperienceLevel, &p.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &p, nil
}

// UpdateProfile writes the profile, creating it when the user has none yet.
func (r *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}
	p.Updated = db.Now()

	_, err := r.conn.Exec(ctx, `INSERT INTO profiles (user_id, display_name, bio, location, experience_level, updated) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET display_name = excluded.display_name, bio = excluded.bio,
		location = excluded.location, experience_level = excluded.experience_level, updated = excluded.updated`,
		p.UserID, p.DisplayName, p.Bio, p.Location, p.ExperienceLevel, p.Updated)
	return err
}
