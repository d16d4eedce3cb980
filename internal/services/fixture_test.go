package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"crmhub/internal/models"
	"crmhub/internal/repositories"
	"crmhub/internal/repositories/repotest"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

const (
	stLead     = "st-lead"
	stProposal = "st-proposal"
	stWon      = "st-won"
	stLost     = "st-lost"
	otherPipe  = "pipe-other"
	stOther    = "st-other"
)

type recordingNotifier struct {
	mu     sync.Mutex
	closed []models.Deal
}

func (n *recordingNotifier) DealClosed(_ context.Context, d models.Deal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, d)
}

type fixture struct {
	db       *repotest.DB
	notifier *recordingNotifier
	deals    *DealService
	leads    *LeadService
}

// newFixture seeds the default pipeline (Lead, Proposal, Won, Lost) and a
// second pipeline with one stage.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.New()
	db.SeedPipeline(
		models.Pipeline{ID: repositories.DefaultPipelineID, Name: "Sales Pipeline", IsDefault: true},
		models.Stage{ID: stLost, Name: "Closed Lost", Position: 5, IsLost: true},
		models.Stage{ID: stLead, Name: "Lead", Position: 0, Probability: 10},
		models.Stage{ID: stWon, Name: "Closed Won", Position: 4, Probability: 100, IsWon: true},
		models.Stage{ID: stProposal, Name: "Proposal", Position: 2, Probability: 50},
	)
	db.SeedPipeline(
		models.Pipeline{ID: otherPipe, Name: "Partners"},
		models.Stage{ID: stOther, Name: "Intro", Position: 0, Probability: 5},
	)

	n := &recordingNotifier{}
	deals := NewDealService(db.Deals(), db.Pipelines(), n, zap.NewNop())
	deals.now = func() time.Time { return fixedNow }
	leads := NewLeadService(db.Leads(), db.Contacts(), deals, zap.NewNop())
	leads.now = func() time.Time { return fixedNow }
	return &fixture{db: db, notifier: n, deals: deals, leads: leads}
}

func ptr[T any](v T) *T { return &v }
