package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"crmhub/internal/models"
	"crmhub/internal/repositories"
)

type ActivityInput struct {
	Type            *models.ActivityType `json:"type"`
	Subject         *string              `json:"subject"`
	Description     *string              `json:"description"`
	Status          *models.TaskStatus   `json:"status"`
	DueDate         *string              `json:"due_date"`
	DurationMinutes *int                 `json:"duration_minutes"`
	Outcome         *string              `json:"outcome"`
	ContactID       *string              `json:"contact_id"`
	CompanyID       *string              `json:"company_id"`
	DealID          *string              `json:"deal_id"`
	LeadID          *string              `json:"lead_id"`
	AssignedTo      *string              `json:"assigned_to"`
}

type ActivityService struct {
	repo repositories.ActivityRepository
	now  func() time.Time
}

func NewActivityService(repo repositories.ActivityRepository) *ActivityService {
	return &ActivityService{repo: repo, now: time.Now}
}

func (s *ActivityService) apply(a *models.Activity, in ActivityInput) error {
	if in.Type != nil {
		if !in.Type.Valid() {
			return invalid("type must be one of call, email, meeting, note")
		}
		a.Type = *in.Type
	}
	if in.Subject != nil {
		a.Subject = strings.TrimSpace(*in.Subject)
	}
	setOptional(&a.Description, in.Description)
	setOptional(&a.Outcome, in.Outcome)
	setOptional(&a.ContactID, in.ContactID)
	setOptional(&a.CompanyID, in.CompanyID)
	setOptional(&a.DealID, in.DealID)
	setOptional(&a.LeadID, in.LeadID)
	setOptional(&a.AssignedTo, in.AssignedTo)
	if in.DurationMinutes != nil {
		if *in.DurationMinutes < 0 {
			return invalid("duration_minutes must not be negative")
		}
		a.DurationMinutes = in.DurationMinutes
	}
	if in.DueDate != nil {
		d, err := parseDate(*in.DueDate)
		if err != nil {
			return err
		}
		a.DueDate = d
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return invalid("unknown status %q", *in.Status)
		}
		a.CompletedAt = completedAt(a.CompletedAt, a.Status, *in.Status, s.now())
		a.Status = *in.Status
	}
	if a.Type == "" {
		return invalid("type is required")
	}
	if a.Subject == "" {
		return invalid("subject is required")
	}
	return nil
}

func (s *ActivityService) Create(ctx context.Context, in ActivityInput, createdBy string) (*models.Activity, error) {
	a := &models.Activity{ID: uuid.NewString(), Status: models.StatusPending}
	if createdBy != "" {
		a.CreatedBy = &createdBy
	}
	if err := s.apply(a, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *ActivityService) Get(ctx context.Context, id string) (*models.Activity, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ActivityService) List(ctx context.Context, f models.ActivityFilter) ([]models.Activity, error) {
	return s.repo.List(ctx, f)
}

func (s *ActivityService) Update(ctx context.Context, id string, in ActivityInput) (*models.Activity, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(a, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Complete is the one-click "mark done" from the activity list.
func (s *ActivityService) Complete(ctx context.Context, id string) (*models.Activity, error) {
	return s.UpdateStatus(ctx, id, models.StatusCompleted)
}

func (s *ActivityService) UpdateStatus(ctx context.Context, id string, to models.TaskStatus) (*models.Activity, error) {
	if !to.Valid() {
		return nil, invalid("unknown status %q", to)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, to, completedAt(a.CompletedAt, a.Status, to, s.now())); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ActivityService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
