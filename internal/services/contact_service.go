package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"crmhub/internal/models"
	"crmhub/internal/repositories"
)

type ContactInput struct {
	FirstName       *string  `json:"first_name"`
	LastName        *string  `json:"last_name"`
	Email           *string  `json:"email"`
	Phone           *string  `json:"phone"`
	Mobile          *string  `json:"mobile"`
	JobTitle        *string  `json:"job_title"`
	Department      *string  `json:"department"`
	CompanyID       *string  `json:"company_id"`
	LeadSource      *string  `json:"lead_source"`
	Status          *string  `json:"status"`
	Description     *string  `json:"description"`
	Tags            []string `json:"tags"`
	LastContactedAt *string  `json:"last_contacted_at"`
	OwnerID         *string  `json:"owner_id"`
}

func (in ContactInput) apply(c *models.Contact) error {
	if in.FirstName != nil {
		c.FirstName = strings.TrimSpace(*in.FirstName)
	}
	setOptional(&c.LastName, in.LastName)
	setOptional(&c.Email, in.Email)
	setOptional(&c.Phone, in.Phone)
	setOptional(&c.Mobile, in.Mobile)
	setOptional(&c.JobTitle, in.JobTitle)
	setOptional(&c.Department, in.Department)
	setOptional(&c.CompanyID, in.CompanyID)
	setOptional(&c.LeadSource, in.LeadSource)
	setOptional(&c.Description, in.Description)
	setOptional(&c.OwnerID, in.OwnerID)
	if in.Status != nil {
		switch st := strings.TrimSpace(*in.Status); st {
		case "active", "inactive":
			c.Status = st
		default:
			return invalid("status must be active or inactive")
		}
	}
	if in.Tags != nil {
		c.Tags = in.Tags
	}
	if in.LastContactedAt != nil {
		t, err := parseDate(*in.LastContactedAt)
		if err != nil {
			return err
		}
		c.LastContactedAt = t
	}
	if c.FirstName == "" {
		return invalid("first_name is required")
	}
	return nil
}

type ContactService struct {
	repo repositories.ContactRepository
}

func NewContactService(repo repositories.ContactRepository) *ContactService {
	return &ContactService{repo: repo}
}

func (s *ContactService) Create(ctx context.Context, in ContactInput, createdBy string) (*models.Contact, error) {
	c := &models.Contact{ID: uuid.NewString(), Status: "active", Tags: []string{}}
	if createdBy != "" {
		c.CreatedBy = &createdBy
		c.OwnerID = &createdBy
	}
	if err := in.apply(c); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, c.ID)
}

func (s *ContactService) Get(ctx context.Context, id string) (*models.Contact, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ContactService) List(ctx context.Context, f models.ContactFilter) ([]models.Contact, error) {
	return s.repo.List(ctx, f)
}

func (s *ContactService) Update(ctx context.Context, id string, in ContactInput) (*models.Contact, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(c); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ContactService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
