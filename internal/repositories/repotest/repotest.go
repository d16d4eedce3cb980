// Package repotest provides in-memory implementations of the repository
// interfaces for service and handler tests.
package repotest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"crmhub/internal/models"
	"crmhub/internal/repositories"
)

type table[T any] struct {
	rows  map[string]T
	order []string
}

func newTable[T any]() *table[T] { return &table[T]{rows: map[string]T{}} }

func (t *table[T]) put(id string, v T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = v
}

func (t *table[T]) get(id string) (T, bool) {
	v, ok := t.rows[id]
	return v, ok
}

func (t *table[T]) del(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// all returns rows in insertion order.
func (t *table[T]) all() []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

// DB is a shared in-memory database. Every repository obtained from the
// same DB sees the same rows.
type DB struct {
	mu    sync.Mutex
	clock time.Time
	err   error

	companies  *table[models.Company]
	contacts   *table[models.Contact]
	leads      *table[models.Lead]
	pipelines  *table[models.Pipeline]
	stages     *table[models.Stage]
	deals      *table[models.Deal]
	activities *table[models.Activity]
	tasks      *table[models.Task]
	users      *table[models.User]
	profiles   *table[models.Profile]

	// Writes counts successful write statements, per table.
	Writes map[string]int
}

func New() *DB {
	return &DB{
		clock:      time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		companies:  newTable[models.Company](),
		contacts:   newTable[models.Contact](),
		leads:      newTable[models.Lead](),
		pipelines:  newTable[models.Pipeline](),
		stages:     newTable[models.Stage](),
		deals:      newTable[models.Deal](),
		activities: newTable[models.Activity](),
		tasks:      newTable[models.Task](),
		users:      newTable[models.User](),
		profiles:   newTable[models.Profile](),
		Writes:     map[string]int{},
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (db *DB) FailWith(err error) {
	db.mu.Lock()
	db.err = err
	db.mu.Unlock()
}

// tick advances the fake clock so created_at ordering is deterministic.
func (db *DB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func notFound(op string) error { return fmt.Errorf("%s: %w", op, repositories.ErrNotFound) }

func contains(field *string, q string) bool {
	return field != nil && strings.Contains(strings.ToLower(*field), q)
}

func lower(q string) string { return strings.ToLower(strings.TrimSpace(q)) }

// SeedPipeline stores a pipeline with its stages.
func (db *DB) SeedPipeline(p models.Pipeline, stages ...models.Stage) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.pipelines.put(p.ID, p)
	for _, s := range stages {
		s.PipelineID = p.ID
		db.stages.put(s.ID, s)
	}
}

// ---- companies

type companies struct{ db *DB }

func (db *DB) Companies() repositories.CompanyRepository { return &companies{db} }

func (r *companies) Create(_ context.Context, c *models.Company) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	c.CreatedAt = r.db.tick()
	c.UpdatedAt = c.CreatedAt
	r.db.companies.put(c.ID, *c)
	r.db.Writes["companies"]++
	return nil
}

func (r *companies) GetByID(_ context.Context, id string) (*models.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	c, ok := r.db.companies.get(id)
	if !ok {
		return nil, notFound("get company")
	}
	return &c, nil
}

func (r *companies) List(_ context.Context, f models.CompanyFilter) ([]models.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	q := lower(f.Query)
	out := []models.Company{}
	for _, c := range r.db.companies.all() {
		if q != "" && !contains(&c.Name, q) && !contains(c.Domain, q) && !contains(c.Industry, q) {
			continue
		}
		if f.Industry != "" && (c.Industry == nil || *c.Industry != f.Industry) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *companies) Update(_ context.Context, c *models.Company) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	old, ok := r.db.companies.get(c.ID)
	if !ok {
		return notFound("update company")
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = r.db.tick()
	r.db.companies.put(c.ID, *c)
	r.db.Writes["companies"]++
	return nil
}

func (r *companies) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	if !r.db.companies.del(id) {
		return notFound("delete company")
	}
	r.db.Writes["companies"]++
	return nil
}

func (r *companies) Count(_ context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return 0, err
	}
	return len(r.db.companies.rows), nil
}

// ---- contacts

type contacts struct{ db *DB }

func (db *DB) Contacts() repositories.ContactRepository { return &contacts{db} }

func (db *DB) joinContact(c models.Contact) models.Contact {
	c.Company = nil
	if c.CompanyID != nil {
		if co, ok := db.companies.get(*c.CompanyID); ok {
			c.Company = &models.CompanyRef{ID: co.ID, Name: co.Name}
		}
	}
	return c
}

func (db *DB) insertContact(c *models.Contact) {
	c.CreatedAt = db.tick()
	c.UpdatedAt = c.CreatedAt
	db.contacts.put(c.ID, *c)
	db.Writes["contacts"]++
}

func (r *contacts) Create(_ context.Context, c *models.Contact) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	r.db.insertContact(c)
	return nil
}

func (r *contacts) GetByID(_ context.Context, id string) (*models.Contact, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	c, ok := r.db.contacts.get(id)
	if !ok {
		return nil, notFound("get contact")
	}
	c = r.db.joinContact(c)
	return &c, nil
}

func (r *contacts) List(_ context.Context, f models.ContactFilter) ([]models.Contact, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	q := lower(f.Query)
	out := []models.Contact{}
	for _, c := range r.db.contacts.all() {
		c = r.db.joinContact(c)
		if q != "" && !contains(&c.FirstName, q) && !contains(c.LastName, q) && !contains(c.Email, q) &&
			(c.Company == nil || !contains(&c.Company.Name, q)) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.CompanyID != "" && (c.CompanyID == nil || *c.CompanyID != f.CompanyID) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FirstName < out[j].FirstName })
	return out, nil
}

func (r *contacts) Update(_ context.Context, c *models.Contact) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	old, ok := r.db.contacts.get(c.ID)
	if !ok {
		return notFound("update contact")
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = r.db.tick()
	r.db.contacts.put(c.ID, *c)
	r.db.Writes["contacts"]++
	return nil
}

func (r *contacts) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	if !r.db.contacts.del(id) {
		return notFound("delete contact")
	}
	r.db.Writes["contacts"]++
	return nil
}

func (r *contacts) Count(_ context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return 0, err
	}
	return len(r.db.contacts.rows), nil
}

// ---- leads

type leads struct{ db *DB }

func (db *DB) Leads() repositories.LeadRepository { return &leads{db} }

func (r *leads) Create(_ context.Context, l *models.Lead) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	l.CreatedAt = r.db.tick()
	l.UpdatedAt = l.CreatedAt
	r.db.leads.put(l.ID, *l)
	r.db.Writes["leads"]++
	return nil
}

func (r *leads) GetByID(_ context.Context, id string) (*models.Lead, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	l, ok := r.db.leads.get(id)
	if !ok {
		return nil, notFound("get lead")
	}
	return &l, nil
}

func (r *leads) List(_ context.Context, f models.LeadFilter) ([]models.Lead, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	q := lower(f.Query)
	out := []models.Lead{}
	all := r.db.leads.all()
	for i := len(all) - 1; i >= 0; i-- {
		l := all[i]
		if q != "" && !contains(&l.FirstName, q) && !contains(l.LastName, q) && !contains(l.Email, q) && !contains(l.CompanyName, q) {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *leads) Update(_ context.Context, l *models.Lead) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	old, ok := r.db.leads.get(l.ID)
	if !ok {
		return notFound("update lead")
	}
	l.CreatedAt = old.CreatedAt
	l.ConvertedContactID, l.ConvertedDealID, l.ConvertedAt = old.ConvertedContactID, old.ConvertedDealID, old.ConvertedAt
	l.UpdatedAt = r.db.tick()
	r.db.leads.put(l.ID, *l)
	r.db.Writes["leads"]++
	return nil
}

func (r *leads) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	if !r.db.leads.del(id) {
		return notFound("delete lead")
	}
	r.db.Writes["leads"]++
	return nil
}

func (r *leads) Count(_ context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return 0, err
	}
	return len(r.db.leads.rows), nil
}

func (r *leads) CountByStatus(_ context.Context) (map[models.LeadStatus]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	out := map[models.LeadStatus]int{}
	for _, s := range models.LeadStatuses {
		out[s] = 0
	}
	for _, l := range r.db.leads.rows {
		out[l.Status]++
	}
	return out, nil
}

func (r *leads) Convert(_ context.Context, leadID string, contact *models.Contact, deal *models.Deal, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	l, ok := r.db.leads.get(leadID)
	if !ok || l.Status == models.LeadConverted {
		return notFound("convert lead")
	}
	r.db.insertContact(contact)
	if deal != nil {
		r.db.insertDeal(deal)
		l.ConvertedDealID = &deal.ID
	}
	l.Status = models.LeadConverted
	l.ConvertedContactID = &contact.ID
	l.ConvertedAt = &at
	l.UpdatedAt = r.db.tick()
	r.db.leads.put(l.ID, l)
	r.db.Writes["leads"]++
	return nil
}

// ---- pipelines

type pipelines struct{ db *DB }

func (db *DB) Pipelines() repositories.PipelineRepository { return &pipelines{db} }

func (r *pipelines) List(_ context.Context) ([]models.Pipeline, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	return r.db.pipelines.all(), nil
}

func (r *pipelines) GetByID(_ context.Context, id string) (*models.Pipeline, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	p, ok := r.db.pipelines.get(id)
	if !ok {
		return nil, notFound("get pipeline")
	}
	return &p, nil
}

func (r *pipelines) Default(_ context.Context) (*models.Pipeline, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	var fallback *models.Pipeline
	for _, p := range r.db.pipelines.all() {
		if p.IsDefault {
			return &p, nil
		}
		if p.ID == repositories.DefaultPipelineID {
			p := p
			fallback = &p
		}
	}
	if fallback == nil {
		return nil, notFound("default pipeline")
	}
	return fallback, nil
}

func (r *pipelines) ListStages(_ context.Context, pipelineID string) ([]models.Stage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	out := []models.Stage{}
	for _, s := range r.db.stages.all() {
		if s.PipelineID == pipelineID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *pipelines) GetStage(_ context.Context, id string) (*models.Stage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	s, ok := r.db.stages.get(id)
	if !ok {
		return nil, notFound("get stage")
	}
	return &s, nil
}

func (r *pipelines) CreateStage(_ context.Context, s *models.Stage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	s.CreatedAt = r.db.tick()
	s.UpdatedAt = s.CreatedAt
	r.db.stages.put(s.ID, *s)
	r.db.Writes["pipeline_stages"]++
	return nil
}

func (r *pipelines) UpdateStage(_ context.Context, s *models.Stage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	old, ok := r.db.stages.get(s.ID)
	if !ok {
		return notFound("update stage")
	}
	s.PipelineID = old.PipelineID
	s.CreatedAt = old.CreatedAt
	s.UpdatedAt = r.db.tick()
	r.db.stages.put(s.ID, *s)
	r.db.Writes["pipeline_stages"]++
	return nil
}

func (r *pipelines) DeleteStage(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	if !r.db.stages.del(id) {
		return notFound("delete stage")
	}
	for _, d := range r.db.deals.all() {
		if d.StageID != nil && *d.StageID == id {
			d.StageID = nil
			r.db.deals.put(d.ID, d)
		}
	}
	r.db.Writes["pipeline_stages"]++
	return nil
}

// ---- deals

type deals struct{ db *DB }

func (db *DB) Deals() repositories.DealRepository { return &deals{db} }

func (db *DB) joinDeal(d models.Deal) models.Deal {
	d.Contact, d.Company, d.Stage = nil, nil, nil
	if d.ContactID != nil {
		if c, ok := db.contacts.get(*d.ContactID); ok {
			d.Contact = &models.ContactRef{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Email: c.Email}
		}
	}
	if d.CompanyID != nil {
		if co, ok := db.companies.get(*d.CompanyID); ok {
			d.Company = &models.CompanyRef{ID: co.ID, Name: co.Name}
		}
	}
	if d.StageID != nil {
		if s, ok := db.stages.get(*d.StageID); ok {
			d.Stage = &s
		}
	}
	return d
}

func (db *DB) insertDeal(d *models.Deal) {
	d.CreatedAt = db.tick()
	d.UpdatedAt = d.CreatedAt
	stored := *d
	stored.Contact, stored.Company, stored.Stage = nil, nil, nil
	db.deals.put(d.ID, stored)
	db.Writes["deals"]++
}

func (r *deals) Create(_ context.Context, d *models.Deal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	r.db.insertDeal(d)
	return nil
}

func (r *deals) GetByID(_ context.Context, id string) (*models.Deal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	d, ok := r.db.deals.get(id)
	if !ok {
		return nil, notFound("get deal")
	}
	d = r.db.joinDeal(d)
	return &d, nil
}

func (r *deals) List(_ context.Context, f models.DealFilter) ([]models.Deal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	out := []models.Deal{}
	all := r.db.deals.all()
	for i := len(all) - 1; i >= 0; i-- {
		d := all[i]
		if f.PipelineID != "" && d.PipelineID != f.PipelineID {
			continue
		}
		if f.StageID != "" && (d.StageID == nil || *d.StageID != f.StageID) {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		out = append(out, r.db.joinDeal(d))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *deals) Update(_ context.Context, d *models.Deal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	old, ok := r.db.deals.get(d.ID)
	if !ok {
		return notFound("update deal")
	}
	d.CreatedAt = old.CreatedAt
	d.UpdatedAt = r.db.tick()
	stored := *d
	stored.Contact, stored.Company, stored.Stage = nil, nil, nil
	r.db.deals.put(d.ID, stored)
	r.db.Writes["deals"]++
	return nil
}

func (r *deals) ApplyTransition(_ context.Context, id, stageID string, status models.DealStatus, closedAt *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	d, ok := r.db.deals.get(id)
	if !ok {
		return notFound("move deal")
	}
	d.StageID = &stageID
	d.Status = status
	d.ActualCloseDate = closedAt
	d.UpdatedAt = r.db.tick()
	r.db.deals.put(id, d)
	r.db.Writes["deals"]++
	return nil
}

func (r *deals) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	if !r.db.deals.del(id) {
		return notFound("delete deal")
	}
	r.db.Writes["deals"]++
	return nil
}

// ---- activities

type activities struct{ db *DB }

func (db *DB) Activities() repositories.ActivityRepository { return &activities{db} }

func (r *activities) Create(_ context.Context, a *models.Activity) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	a.CreatedAt = r.db.tick()
	a.UpdatedAt = a.CreatedAt
	r.db.activities.put(a.ID, *a)
	r.db.Writes["activities"]++
	return nil
}

func (r *activities) GetByID(_ context.Context, id string) (*models.Activity, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	a, ok := r.db.activities.get(id)
	if !ok {
		return nil, notFound("get activity")
	}
	return &a, nil
}

func (r *activities) List(_ context.Context, f models.ActivityFilter) ([]models.Activity, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	q := lower(f.Query)
	out := []models.Activity{}
	all := r.db.activities.all()
	for i := len(all) - 1; i >= 0; i-- {
		a := all[i]
		if q != "" && !contains(&a.Subject, q) && !contains(a.Description, q) {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.DealID != "" && (a.DealID == nil || *a.DealID != f.DealID) {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *activities) Update(_ context.Context, a *models.Activity) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	old, ok := r.db.activities.get(a.ID)
	if !ok {
		return notFound("update activity")
	}
	a.CreatedAt = old.CreatedAt
	a.UpdatedAt = r.db.tick()
	r.db.activities.put(a.ID, *a)
	r.db.Writes["activities"]++
	return nil
}

func (r *activities) UpdateStatus(_ context.Context, id string, to models.TaskStatus, completedAt *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	a, ok := r.db.activities.get(id)
	if !ok {
		return notFound("update activity status")
	}
	a.Status = to
	a.CompletedAt = completedAt
	a.UpdatedAt = r.db.tick()
	r.db.activities.put(id, a)
	r.db.Writes["activities"]++
	return nil
}

func (r *activities) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	if !r.db.activities.del(id) {
		return notFound("delete activity")
	}
	r.db.Writes["activities"]++
	return nil
}

// ---- tasks

type tasks struct{ db *DB }

func (db *DB) Tasks() repositories.TaskRepository { return &tasks{db} }

func (r *tasks) Store(_ context.Context, t *models.Task) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	t.CreatedAt = r.db.tick()
	t.UpdatedAt = t.CreatedAt
	r.db.tasks.put(t.ID, *t)
	r.db.Writes["tasks"]++
	return nil
}

func (r *tasks) FindByID(_ context.Context, id string) (*models.Task, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	t, ok := r.db.tasks.get(id)
	if !ok {
		return nil, notFound("find task")
	}
	return &t, nil
}

func (r *tasks) FindAll(_ context.Context, f models.TaskFilter) ([]models.Task, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	q := lower(f.Query)
	out := []models.Task{}
	for _, t := range r.db.tasks.all() {
		if q != "" && !contains(&t.Title, q) && !contains(t.Description, q) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.AssignedTo != "" && (t.AssignedTo == nil || *t.AssignedTo != f.AssignedTo) {
			continue
		}
		out = append(out, t)
	}
	// due_date ASC NULLS LAST
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DueDate, out[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *tasks) Update(_ context.Context, t *models.Task) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	old, ok := r.db.tasks.get(t.ID)
	if !ok {
		return notFound("update task")
	}
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = r.db.tick()
	r.db.tasks.put(t.ID, *t)
	r.db.Writes["tasks"]++
	return nil
}

func (r *tasks) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	if !r.db.tasks.del(id) {
		return notFound("delete task")
	}
	r.db.Writes["tasks"]++
	return nil
}

func (r *tasks) UpdateStatus(_ context.Context, id string, to models.TaskStatus, completedAt *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	t, ok := r.db.tasks.get(id)
	if !ok {
		return notFound("update task status")
	}
	t.Status = to
	t.CompletedAt = completedAt
	t.UpdatedAt = r.db.tick()
	r.db.tasks.put(id, t)
	r.db.Writes["tasks"]++
	return nil
}

// ---- users & profiles

type users struct{ db *DB }

func (db *DB) Users() repositories.UserRepository { return &users{db} }

func (r *users) CreateWithProfile(_ context.Context, u *models.User, p *models.Profile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	u.Email = strings.ToLower(u.Email)
	for _, existing := range r.db.users.rows {
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w: users_email_key", repositories.ErrDuplicate)
		}
	}
	u.CreatedAt = r.db.tick()
	u.UpdatedAt = u.CreatedAt
	r.db.users.put(u.ID, *u)
	if len(p.NotificationPreferences) == 0 {
		p.NotificationPreferences = json.RawMessage(`{}`)
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	p.CreatedAt, p.UpdatedAt = u.CreatedAt, u.CreatedAt
	r.db.profiles.put(p.ID, *p)
	r.db.Writes["users"]++
	return nil
}

func (r *users) GetByID(_ context.Context, id string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	u, ok := r.db.users.get(id)
	if !ok {
		return nil, notFound("get user")
	}
	return &u, nil
}

func (r *users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	email = lower(email)
	for _, u := range r.db.users.rows {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, notFound("get user by email")
}

type profiles struct{ db *DB }

func (db *DB) Profiles() repositories.ProfileRepository { return &profiles{db} }

// DeleteProfile drops a profile row, leaving the user in place.
func (db *DB) DeleteProfile(id string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.profiles.del(id)
}

func (r *profiles) Get(_ context.Context, id string) (*models.Profile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return nil, err
	}
	p, ok := r.db.profiles.get(id)
	if !ok {
		return nil, notFound("get profile")
	}
	return &p, nil
}

func (r *profiles) Update(_ context.Context, p *models.Profile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.err; err != nil {
		return err
	}
	old, ok := r.db.profiles.get(p.ID)
	if !ok {
		return notFound("update profile")
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = r.db.tick()
	r.db.profiles.put(p.ID, *p)
	r.db.Writes["profiles"]++
	return nil
}
