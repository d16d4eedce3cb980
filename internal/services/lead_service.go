package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crmhub/internal/models"
	"crmhub/internal/realtime"
	"crmhub/internal/repositories"
)

type LeadInput struct {
	FirstName   *string            `json:"first_name"`
	LastName    *string            `json:"last_name"`
	Email       *string            `json:"email"`
	Phone       *string            `json:"phone"`
	CompanyName *string            `json:"company_name"`
	JobTitle    *string            `json:"job_title"`
	LeadSource  *string            `json:"lead_source"`
	Status      *models.LeadStatus `json:"status"`
	Score       *int               `json:"score"`
	Description *string            `json:"description"`
	Website     *string            `json:"website"`
	Tags        []string           `json:"tags"`
	OwnerID     *string            `json:"owner_id"`
}

func (in LeadInput) apply(l *models.Lead) error {
	if in.FirstName != nil {
		l.FirstName = strings.TrimSpace(*in.FirstName)
	}
	setOptional(&l.LastName, in.LastName)
	setOptional(&l.Email, in.Email)
	setOptional(&l.Phone, in.Phone)
	setOptional(&l.CompanyName, in.CompanyName)
	setOptional(&l.JobTitle, in.JobTitle)
	setOptional(&l.LeadSource, in.LeadSource)
	setOptional(&l.Description, in.Description)
	setOptional(&l.Website, in.Website)
	setOptional(&l.OwnerID, in.OwnerID)
	if in.Status != nil {
		// converted выставляется только через /convert
		if !validLeadStatus(*in.Status) || *in.Status == models.LeadConverted {
			return invalid("status must be one of new, contacted, qualified, unqualified")
		}
		l.Status = *in.Status
	}
	if in.Score != nil {
		if *in.Score < 0 || *in.Score > 100 {
			return invalid("score must be between 0 and 100")
		}
		l.Score = *in.Score
	}
	if in.Tags != nil {
		l.Tags = in.Tags
	}
	if l.FirstName == "" {
		return invalid("first_name is required")
	}
	return nil
}

func validLeadStatus(s models.LeadStatus) bool {
	for _, v := range models.LeadStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ConvertInput controls what a lead conversion creates besides the contact.
type ConvertInput struct {
	CreateDeal bool             `json:"create_deal"`
	DealName   *string          `json:"deal_name"`
	Value      *decimal.Decimal `json:"value"`
	Currency   *string          `json:"currency"`
	PipelineID *string          `json:"pipeline_id"`
	CompanyID  *string          `json:"company_id"`
}

type ConvertResult struct {
	Lead    *models.Lead    `json:"lead"`
	Contact *models.Contact `json:"contact"`
	Deal    *models.Deal    `json:"deal,omitempty"`
}

type LeadService struct {
	Repo     repositories.LeadRepository
	Contacts repositories.ContactRepository
	Deals    *DealService
	log      *zap.Logger
	now      func() time.Time
}

func NewLeadService(leadRepo repositories.LeadRepository, contactRepo repositories.ContactRepository, deals *DealService, log *zap.Logger) *LeadService {
	return &LeadService{Repo: leadRepo, Contacts: contactRepo, Deals: deals, log: log, now: time.Now}
}

func (s *LeadService) Create(ctx context.Context, in LeadInput, createdBy string) (*models.Lead, error) {
	l := &models.Lead{ID: uuid.NewString(), Status: models.LeadNew, Tags: []string{}}
	if createdBy != "" {
		l.CreatedBy = &createdBy
		l.OwnerID = &createdBy
	}
	if err := in.apply(l); err != nil {
		return nil, err
	}
	if err := s.Repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *LeadService) Update(ctx context.Context, id string, in LeadInput) (*models.Lead, error) {
	l, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status == models.LeadConverted && in.Status != nil {
		return nil, ErrLeadAlreadyConverted
	}
	if err := in.apply(l); err != nil {
		return nil, err
	}
	if err := s.Repo.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *LeadService) List(ctx context.Context, f models.LeadFilter) ([]models.Lead, error) {
	return s.Repo.List(ctx, f)
}

func (s *LeadService) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *LeadService) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

func (s *LeadService) StatusCounts(ctx context.Context) (map[models.LeadStatus]int, error) {
	return s.Repo.CountByStatus(ctx)
}

// Convert turns a lead into a contact and, optionally, a deal placed on
// the pipeline's first stage. The lead ends up converted; a second
// conversion fails with ErrLeadAlreadyConverted.
func (s *LeadService) Convert(ctx context.Context, leadID string, in ConvertInput, by string) (*ConvertResult, error) {
	lead, err := s.Repo.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status == models.LeadConverted {
		return nil, ErrLeadAlreadyConverted
	}

	contact := &models.Contact{
		ID:          uuid.NewString(),
		FirstName:   lead.FirstName,
		LastName:    lead.LastName,
		Email:       lead.Email,
		Phone:       lead.Phone,
		JobTitle:    lead.JobTitle,
		LeadSource:  lead.LeadSource,
		CompanyID:   optional(in.CompanyID),
		Status:      "active",
		Description: lead.Description,
		Tags:        append([]string{}, lead.Tags...),
		OwnerID:     lead.OwnerID,
	}
	if by != "" {
		contact.CreatedBy = &by
	}

	var deal *models.Deal
	if in.CreateDeal {
		name := optional(in.DealName)
		if name == nil {
			n := lead.FirstName
			if lead.CompanyName != nil {
				n = *lead.CompanyName
			}
			n += " deal"
			name = &n
		}
		deal, _, err = s.Deals.prepare(ctx, DealInput{
			Name:       name,
			Value:      in.Value,
			Currency:   in.Currency,
			PipelineID: in.PipelineID,
			ContactID:  &contact.ID,
			CompanyID:  in.CompanyID,
		}, by)
		if err != nil {
			return nil, err
		}
	}

	if err := s.Repo.Convert(ctx, lead.ID, contact, deal, s.now()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// кто-то успел сконвертировать параллельно
			return nil, ErrLeadAlreadyConverted
		}
		return nil, err
	}
	s.log.Info("[lead][convert] ok", zap.String("lead_id", lead.ID), zap.String("contact_id", contact.ID), zap.Bool("deal", deal != nil))
	if deal != nil {
		s.Deals.publish(realtime.DealCreated, *deal)
	}

	res := &ConvertResult{}
	if res.Lead, err = s.Repo.GetByID(ctx, lead.ID); err != nil {
		return nil, err
	}
	if res.Contact, err = s.Contacts.GetByID(ctx, contact.ID); err != nil {
		return nil, err
	}
	if deal != nil {
		if res.Deal, err = s.Deals.Get(ctx, deal.ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}
