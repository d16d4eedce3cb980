package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"crmhub/internal/models"
	"crmhub/internal/repositories"
)

type CompanyInput struct {
	Name          *string          `json:"name"`
	Domain        *string          `json:"domain"`
	Industry      *string          `json:"industry"`
	Size          *string          `json:"size"`
	Website       *string          `json:"website"`
	Phone         *string          `json:"phone"`
	Email         *string          `json:"email"`
	Description   *string          `json:"description"`
	AnnualRevenue *decimal.Decimal `json:"annual_revenue"`
	FoundedYear   *int             `json:"founded_year"`
	Tags          []string         `json:"tags"`
	OwnerID       *string          `json:"owner_id"`
}

func (in CompanyInput) apply(c *models.Company) error {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	setOptional(&c.Domain, in.Domain)
	setOptional(&c.Industry, in.Industry)
	setOptional(&c.Size, in.Size)
	setOptional(&c.Website, in.Website)
	setOptional(&c.Phone, in.Phone)
	setOptional(&c.Email, in.Email)
	setOptional(&c.Description, in.Description)
	setOptional(&c.OwnerID, in.OwnerID)
	if in.AnnualRevenue != nil {
		if in.AnnualRevenue.IsNegative() {
			return invalid("annual_revenue must not be negative")
		}
		c.AnnualRevenue = decimal.NewNullDecimal(*in.AnnualRevenue)
	}
	if in.FoundedYear != nil {
		c.FoundedYear = in.FoundedYear
	}
	if in.Tags != nil {
		c.Tags = in.Tags
	}
	if c.Name == "" {
		return invalid("name is required")
	}
	return nil
}

type CompanyService struct {
	repo repositories.CompanyRepository
}

func NewCompanyService(repo repositories.CompanyRepository) *CompanyService {
	return &CompanyService{repo: repo}
}

func (s *CompanyService) Create(ctx context.Context, in CompanyInput, createdBy string) (*models.Company, error) {
	c := &models.Company{ID: uuid.NewString(), Tags: []string{}}
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
	return c, nil
}

func (s *CompanyService) Get(ctx context.Context, id string) (*models.Company, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *CompanyService) List(ctx context.Context, f models.CompanyFilter) ([]models.Company, error) {
	return s.repo.List(ctx, f)
}

func (s *CompanyService) Update(ctx context.Context, id string, in CompanyInput) (*models.Company, error) {
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
	return c, nil
}

func (s *CompanyService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
