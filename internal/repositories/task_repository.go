package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crmhub/internal/models"
)

type TaskRepository interface {
	Store(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error

	UpdateStatus(ctx context.Context, id string, to models.TaskStatus, completedAt *time.Time) error
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, title, description, priority, status, due_date, completed_at,
	contact_id, company_id, deal_id, lead_id, assigned_to, created_by, created_at, updated_at`

func scanTask(s rowScanner) (*models.Task, error) {
	var t models.Task
	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.DueDate, &t.CompletedAt,
		&t.ContactID, &t.CompanyID, &t.DealID, &t.LeadID, &t.AssignedTo, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepository) Store(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (
			id, title, description, priority, status, due_date, completed_at,
			contact_id, company_id, deal_id, lead_id, assigned_to, created_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		task.ID, task.Title, task.Description, task.Priority, task.Status, task.DueDate, task.CompletedAt,
		task.ContactID, task.CompanyID, task.DealID, task.LeadID, task.AssignedTo, task.CreatedBy,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	return wrapErr("store task", err)
}

func (r *taskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("find task", err)
	}
	return task, nil
}

func (r *taskRepository) FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`

	conditions := []string{}
	args := []any{}
	argID := 1

	if filter.Query != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argID, argID))
		args = append(args, likePattern(filter.Query))
		argID++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, filter.Status)
		argID++
	}
	if filter.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argID))
		args = append(args, filter.Priority)
		argID++
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argID))
		args = append(args, filter.AssignedTo)
		argID++
	}

	baseQuery += where(conditions) + " ORDER BY due_date ASC NULLS LAST, created_at DESC"
	if filter.Limit > 0 {
		baseQuery += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, wrapErr("list tasks", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrapErr("scan task", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks SET
			title=$1, description=$2, priority=$3, status=$4, due_date=$5, completed_at=$6,
			contact_id=$7, company_id=$8, deal_id=$9, lead_id=$10, assigned_to=$11, updated_at=NOW()
		WHERE id=$12
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		task.Title, task.Description, task.Priority, task.Status, task.DueDate, task.CompletedAt,
		task.ContactID, task.CompanyID, task.DealID, task.LeadID, task.AssignedTo, task.ID,
	).Scan(&task.UpdatedAt)
	return wrapErr("update task", err)
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return expectOne("delete task", res, err)
}

func (r *taskRepository) UpdateStatus(ctx context.Context, id string, to models.TaskStatus, completedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status=$1, completed_at=$2, updated_at=NOW() WHERE id=$3`, to, completedAt, id)
	return expectOne("update task status", res, err)
}
