package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crmhub/internal/models"
)

type ActivityRepository interface {
	Create(ctx context.Context, a *models.Activity) error
	GetByID(ctx context.Context, id string) (*models.Activity, error)
	List(ctx context.Context, f models.ActivityFilter) ([]models.Activity, error)
	Update(ctx context.Context, a *models.Activity) error
	UpdateStatus(ctx context.Context, id string, to models.TaskStatus, completedAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

type activityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) ActivityRepository {
	return &activityRepository{db: db}
}

const activityColumns = `id, type, subject, description, status, due_date, completed_at, duration_minutes,
	outcome, contact_id, company_id, deal_id, lead_id, assigned_to, created_by, created_at, updated_at`

func scanActivity(s rowScanner) (*models.Activity, error) {
	var a models.Activity
	err := s.Scan(
		&a.ID, &a.Type, &a.Subject, &a.Description, &a.Status, &a.DueDate, &a.CompletedAt, &a.DurationMinutes,
		&a.Outcome, &a.ContactID, &a.CompanyID, &a.DealID, &a.LeadID, &a.AssignedTo, &a.CreatedBy,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *activityRepository) Create(ctx context.Context, a *models.Activity) error {
	const q = `
		INSERT INTO activities (id, type, subject, description, status, due_date, completed_at,
			duration_minutes, outcome, contact_id, company_id, deal_id, lead_id, assigned_to, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, q,
		a.ID, a.Type, a.Subject, a.Description, a.Status, a.DueDate, a.CompletedAt,
		a.DurationMinutes, a.Outcome, a.ContactID, a.CompanyID, a.DealID, a.LeadID, a.AssignedTo, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return wrapErr("create activity", err)
}

func (r *activityRepository) GetByID(ctx context.Context, id string) (*models.Activity, error) {
	a, err := scanActivity(r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get activity", err)
	}
	return a, nil
}

func (r *activityRepository) List(ctx context.Context, f models.ActivityFilter) ([]models.Activity, error) {
	conditions := []string{}
	args := []any{}
	argID := 1

	if f.Query != "" {
		conditions = append(conditions, fmt.Sprintf("(subject ILIKE $%d OR description ILIKE $%d)", argID, argID))
		args = append(args, likePattern(f.Query))
		argID++
	}
	if f.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argID))
		args = append(args, f.Type)
		argID++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, f.Status)
		argID++
	}
	if f.DealID != "" {
		conditions = append(conditions, fmt.Sprintf("deal_id = $%d", argID))
		args = append(args, f.DealID)
		argID++
	}

	query := `SELECT ` + activityColumns + ` FROM activities` + where(conditions) + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list activities", err)
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, wrapErr("scan activity", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *activityRepository) Update(ctx context.Context, a *models.Activity) error {
	const q = `
		UPDATE activities SET type=$1, subject=$2, description=$3, status=$4, due_date=$5, completed_at=$6,
			duration_minutes=$7, outcome=$8, contact_id=$9, company_id=$10, deal_id=$11, lead_id=$12,
			assigned_to=$13, updated_at=NOW()
		WHERE id=$14
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, q,
		a.Type, a.Subject, a.Description, a.Status, a.DueDate, a.CompletedAt,
		a.DurationMinutes, a.Outcome, a.ContactID, a.CompanyID, a.DealID, a.LeadID,
		a.AssignedTo, a.ID,
	).Scan(&a.UpdatedAt)
	return wrapErr("update activity", err)
}

func (r *activityRepository) UpdateStatus(ctx context.Context, id string, to models.TaskStatus, completedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE activities SET status=$1, completed_at=$2, updated_at=NOW() WHERE id=$3`, to, completedAt, id)
	return expectOne("update activity status", res, err)
}

func (r *activityRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
	return expectOne("delete activity", res, err)
}
