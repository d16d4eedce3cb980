package services

import (
	"context"

	"crmhub/internal/models"
	"crmhub/internal/pipeline"
	"crmhub/internal/repositories"
)

type Dashboard struct {
	Contacts         int               `json:"contacts"`
	Companies        int               `json:"companies"`
	Leads            int               `json:"leads"`
	RecentDeals      []models.Deal     `json:"recent_deals"`
	PendingTasks     []models.Task     `json:"pending_tasks"`
	RecentActivities []models.Activity `json:"recent_activities"`
	Pipeline         pipeline.Metrics  `json:"pipeline"`
}

type DashboardService struct {
	contacts   repositories.ContactRepository
	companies  repositories.CompanyRepository
	leads      repositories.LeadRepository
	deals      repositories.DealRepository
	tasks      repositories.TaskRepository
	activities repositories.ActivityRepository
}

func NewDashboardService(
	contacts repositories.ContactRepository,
	companies repositories.CompanyRepository,
	leads repositories.LeadRepository,
	deals repositories.DealRepository,
	tasks repositories.TaskRepository,
	activities repositories.ActivityRepository,
) *DashboardService {
	return &DashboardService{
		contacts:   contacts,
		companies:  companies,
		leads:      leads,
		deals:      deals,
		tasks:      tasks,
		activities: activities,
	}
}

func (s *DashboardService) Get(ctx context.Context) (*Dashboard, error) {
	var (
		d   Dashboard
		err error
	)
	if d.Contacts, err = s.contacts.Count(ctx); err != nil {
		return nil, err
	}
	if d.Companies, err = s.companies.Count(ctx); err != nil {
		return nil, err
	}
	if d.Leads, err = s.leads.Count(ctx); err != nil {
		return nil, err
	}

	all, err := s.deals.List(ctx, models.DealFilter{})
	if err != nil {
		return nil, err
	}
	d.Pipeline = pipeline.Summarize(all)
	// List is newest first
	d.RecentDeals = all
	if len(all) > 10 {
		d.RecentDeals = all[:10]
	}

	if d.PendingTasks, err = s.tasks.FindAll(ctx, models.TaskFilter{Status: models.StatusPending, Limit: 5}); err != nil {
		return nil, err
	}
	if d.RecentActivities, err = s.activities.List(ctx, models.ActivityFilter{Limit: 5}); err != nil {
		return nil, err
	}
	return &d, nil
}
