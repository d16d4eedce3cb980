// internal/services/tasks.go
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"crmhub/internal/models"
	"crmhub/internal/repositories"
)

// TaskInput is the writable part of a task; nil fields are left unchanged.
type TaskInput struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Priority    *models.TaskPriority `json:"priority"`
	Status      *models.TaskStatus   `json:"status"`
	DueDate     *string              `json:"due_date"`
	ContactID   *string              `json:"contact_id"`
	CompanyID   *string              `json:"company_id"`
	DealID      *string              `json:"deal_id"`
	LeadID      *string              `json:"lead_id"`
	AssignedTo  *string              `json:"assigned_to"`
}

// TaskService defines the interface for task-related business logic.
type TaskService interface {
	Create(ctx context.Context, in TaskInput, createdBy string) (*models.Task, error)
	GetByID(ctx context.Context, id string) (*models.Task, error)
	GetAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, id string, in TaskInput) (*models.Task, error)
	Delete(ctx context.Context, id string) error

	UpdateStatus(ctx context.Context, id string, to models.TaskStatus) (*models.Task, error)
}

type taskService struct {
	repo repositories.TaskRepository
	now  func() time.Time
}

// NewTaskService creates a new instance of TaskService.
func NewTaskService(repo repositories.TaskRepository) TaskService {
	return &taskService{repo: repo, now: time.Now}
}

// completedAt keeps completed_at in step with the status: stamped when a
// task becomes completed, cleared when it leaves that status.
func completedAt(prev *time.Time, from, to models.TaskStatus, now time.Time) *time.Time {
	if to != models.StatusCompleted {
		return nil
	}
	if from == models.StatusCompleted && prev != nil {
		return prev
	}
	return &now
}

func (s *taskService) apply(t *models.Task, in TaskInput) error {
	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	setOptional(&t.Description, in.Description)
	setOptional(&t.ContactID, in.ContactID)
	setOptional(&t.CompanyID, in.CompanyID)
	setOptional(&t.DealID, in.DealID)
	setOptional(&t.LeadID, in.LeadID)
	setOptional(&t.AssignedTo, in.AssignedTo)
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return invalid("unknown priority %q", *in.Priority)
		}
		t.Priority = *in.Priority
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return invalid("unknown status %q", *in.Status)
		}
		t.CompletedAt = completedAt(t.CompletedAt, t.Status, *in.Status, s.now())
		t.Status = *in.Status
	}
	if in.DueDate != nil {
		d, err := parseDate(*in.DueDate)
		if err != nil {
			return err
		}
		t.DueDate = d
	}
	if t.Title == "" {
		return invalid("title is required")
	}
	return nil
}

func (s *taskService) Create(ctx context.Context, in TaskInput, createdBy string) (*models.Task, error) {
	task := &models.Task{
		ID:       uuid.NewString(),
		Status:   models.StatusPending,
		Priority: models.PriorityMedium,
	}
	if createdBy != "" {
		task.CreatedBy = &createdBy
	}
	if err := s.apply(task, in); err != nil {
		return nil, err
	}
	if err := s.repo.Store(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, id string) (*models.Task, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *taskService) GetAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	return s.repo.FindAll(ctx, filter)
}

func (s *taskService) Update(ctx context.Context, id string, in TaskInput) (*models.Task, error) {
	existingTask, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(existingTask, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, existingTask); err != nil {
		return nil, err
	}
	return existingTask, nil
}

func (s *taskService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *taskService) UpdateStatus(ctx context.Context, id string, to models.TaskStatus) (*models.Task, error) {
	if !to.Valid() {
		return nil, invalid("unknown status %q", to)
	}
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, to, completedAt(task.CompletedAt, task.Status, to, s.now())); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}
