package repositories

import (
	"context"
	"database/sql"
	"strings"

	"crmhub/internal/models"
)

type UserRepository interface {
	// CreateWithProfile inserts the user and its empty profile together.
	CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("create user: begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const q = `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, q, user.ID, strings.ToLower(user.Email), user.PasswordHash).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return wrapErr("create user", err)
	}
	if err = insertProfile(ctx, tx, profile); err != nil {
		return err
	}
	return wrapErr("create user: commit", tx.Commit())
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	const q = `SELECT id, email, password_hash, created_at, updated_at FROM users WHERE id = $1`
	u := &models.User{}
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, wrapErr("get user", err)
	}
	return u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT id, email, password_hash, created_at, updated_at FROM users WHERE email = $1`
	u := &models.User{}
	err := r.DB.QueryRowContext(ctx, q, strings.ToLower(strings.TrimSpace(email))).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, wrapErr("get user by email", err)
	}
	return u, nil
}
