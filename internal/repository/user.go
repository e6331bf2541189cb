package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"recipehub/internal/model"
)

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// GetProfile retrieves the display profile for a UID
func (r *userRepository) GetProfile(ctx context.Context, uid string) (*model.UserProfile, error) {
	query := `
		SELECT uid, display_name, photo_url, updated_at
		FROM user_profiles
		WHERE uid = $1
	`
	var p model.UserProfile
	err := r.db.GetContext(ctx, &p, query, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile creates or replaces a profile
func (r *userRepository) UpsertProfile(ctx context.Context, p *model.UserProfile) error {
	p.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	query := `
		INSERT INTO user_profiles (uid, display_name, photo_url, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uid) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    photo_url = EXCLUDED.photo_url,
		    updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, p.UID, p.DisplayName, p.PhotoURL, p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
