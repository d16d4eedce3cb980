package repositories

import (
	"context"
	"database/sql"

	"crmhub/internal/models"
)

type ProfileRepository interface {
	// Get returns ErrNotFound when the profile row does not exist yet.
	Get(ctx context.Context, id string) (*models.Profile, error)
	Update(ctx context.Context, p *models.Profile) error
}

type profileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func insertProfile(ctx context.Context, db querier, p *models.Profile) error {
	if len(p.NotificationPreferences) == 0 {
		p.NotificationPreferences = []byte(`{}`)
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	const q = `
		INSERT INTO profiles (id, email, full_name, avatar_url, phone, job_title, department, timezone, notification_preferences)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`
	err := db.QueryRowContext(ctx, q,
		p.ID, p.Email, p.FullName, p.AvatarURL, p.Phone, p.JobTitle, p.Department, p.Timezone,
		string(p.NotificationPreferences),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return wrapErr("create profile", err)
}

func (r *profileRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	const q = `
		SELECT id, email, full_name, avatar_url, phone, job_title, department, timezone,
			notification_preferences, created_at, updated_at
		FROM profiles WHERE id = $1`
	var (
		p     models.Profile
		prefs []byte
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.Phone, &p.JobTitle, &p.Department, &p.Timezone,
		&prefs, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, wrapErr("get profile", err)
	}
	p.NotificationPreferences = prefs
	return &p, nil
}

func (r *profileRepository) Update(ctx context.Context, p *models.Profile) error {
	const q = `
		UPDATE profiles SET full_name=$1, avatar_url=$2, phone=$3, job_title=$4, department=$5,
			timezone=$6, notification_preferences=$7, updated_at=NOW()
		WHERE id=$8
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, q,
		p.FullName, p.AvatarURL, p.Phone, p.JobTitle, p.Department,
		p.Timezone, string(p.NotificationPreferences), p.ID,
	).Scan(&p.UpdatedAt)
	return wrapErr("update profile", err)
}
