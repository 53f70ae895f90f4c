// Package users is the user directory: display names, contact e-mail and the
// free consultation quota flag. Accounts themselves are issued elsewhere; a
// row appears here when a user saves a profile or first consumes the quota.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"consultation_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opGet        = "users.repository.get"
	opUpsert     = "users.repository.upsert_profile"
	opQuotaRead  = "users.repository.has_consumed_free_quota"
	opQuotaWrite = "users.repository.set_consumed_free_quota"

	errNotConfigured  = "user directory not configured"
	errUserIDRequired = "user id is required"
)

// Profile is the directory entry of one user.
type Profile struct {
	ID                string    `json:"id"`
	DisplayName       string    `json:"displayName"`
	Email             string    `json:"email"`
	FreeQuotaConsumed bool      `json:"freeQuotaConsumed"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Repository is the pgx-backed user directory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates the directory over pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the profile of userID.
func (r *Repository) Get(ctx context.Context, userID string) (Profile, error) {
	if r == nil || r.pool == nil {
		return Profile{}, apperr.Internal(errNotConfigured).WithOp(opGet)
	}
	if strings.TrimSpace(userID) == "" {
		return Profile{}, apperr.Validation(errUserIDRequired).WithOp(opGet)
	}

	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, email, free_quota_consumed, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&p.ID, &p.DisplayName, &p.Email, &p.FreeQuotaConsumed, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, apperr.NotFound("user not found").WithOp(opGet)
	}
	if err != nil {
		return Profile{}, apperr.Dependency("user directory unavailable", err).WithOp(opGet)
	}
	return p, nil
}

// UpsertProfile stores the display name and e-mail of userID.
func (r *Repository) UpsertProfile(ctx context.Context, userID, displayName, email string) (Profile, error) {
	if r == nil || r.pool == nil {
		return Profile{}, apperr.Internal(errNotConfigured).WithOp(opUpsert)
	}
	if strings.TrimSpace(userID) == "" {
		return Profile{}, apperr.Validation(errUserIDRequired).WithOp(opUpsert)
	}

	var p Profile
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, display_name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name, email = EXCLUDED.email, updated_at = now()
		RETURNING id, display_name, email, free_quota_consumed, updated_at
	`, userID, displayName, email).Scan(&p.ID, &p.DisplayName, &p.Email, &p.FreeQuotaConsumed, &p.UpdatedAt)
	if err != nil {
		return Profile{}, apperr.Dependency("user directory unavailable", err).WithOp(opUpsert)
	}
	return p, nil
}

// DisplayName returns the user's name, or "" when the user has none.
func (r *Repository) DisplayName(ctx context.Context, userID string) (string, error) {
	p, err := r.Get(ctx, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(p.DisplayName), nil
}

// Email returns the user's contact address, or "" when none is stored.
func (r *Repository) Email(ctx context.Context, userID string) (string, error) {
	p, err := r.Get(ctx, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(p.Email), nil
}

// HasConsumedFreeQuota reports whether userID has completed a free consultation.
func (r *Repository) HasConsumedFreeQuota(ctx context.Context, userID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, apperr.Internal(errNotConfigured).WithOp(opQuotaRead)
	}

	var consumed bool
	err := r.pool.QueryRow(ctx, `SELECT free_quota_consumed FROM users WHERE id = $1`, userID).Scan(&consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Dependency("user directory unavailable", fmt.Errorf("read quota: %w", err)).WithOp(opQuotaRead)
	}
	return consumed, nil
}

// SetConsumedFreeQuota marks the quota as used, creating the row if needed.
func (r *Repository) SetConsumedFreeQuota(ctx context.Context, userID string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errNotConfigured).WithOp(opQuotaWrite)
	}
	if strings.TrimSpace(userID) == "" {
		return apperr.Validation(errUserIDRequired).WithOp(opQuotaWrite)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, free_quota_consumed)
		VALUES ($1, TRUE)
		ON CONFLICT (id) DO UPDATE SET free_quota_consumed = TRUE, updated_at = now()
	`, userID)
	if err != nil {
		return apperr.Dependency("user directory unavailable", fmt.Errorf("write quota: %w", err)).WithOp(opQuotaWrite)
	}
	return nil
}
