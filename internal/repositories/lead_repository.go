package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"crmhub/internal/models"
)

type LeadRepository interface {
	Create(ctx context.Context, l *models.Lead) error
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	List(ctx context.Context, f models.LeadFilter) ([]models.Lead, error)
	Update(ctx context.Context, l *models.Lead) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[models.LeadStatus]int, error)
	// Convert inserts the contact (and the deal when non-nil) and marks
	// the lead converted, all in one transaction.
	Convert(ctx context.Context, leadID string, contact *models.Contact, deal *models.Deal, at time.Time) error
}

type leadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) LeadRepository {
	return &leadRepository{db: db}
}

const leadColumns = `id, first_name, last_name, email, phone, company_name, job_title, lead_source,
	status, score, description, website, tags, converted_contact_id, converted_deal_id, converted_at,
	owner_id, created_by, created_at, updated_at`

func scanLead(s rowScanner) (*models.Lead, error) {
	var l models.Lead
	err := s.Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.CompanyName, &l.JobTitle, &l.LeadSource,
		&l.Status, &l.Score, &l.Description, &l.Website, pq.Array(&l.Tags), &l.ConvertedContactID,
		&l.ConvertedDealID, &l.ConvertedAt, &l.OwnerID, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *leadRepository) Create(ctx context.Context, l *models.Lead) error {
	const q = `
		INSERT INTO leads (id, first_name, last_name, email, phone, company_name, job_title, lead_source,
			status, score, description, website, tags, owner_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, q,
		l.ID, l.FirstName, l.LastName, l.Email, l.Phone, l.CompanyName, l.JobTitle, l.LeadSource,
		l.Status, l.Score, l.Description, l.Website, tags(l.Tags), l.OwnerID, l.CreatedBy,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	return wrapErr("create lead", err)
}

func (r *leadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get lead", err)
	}
	return l, nil
}

func (r *leadRepository) List(ctx context.Context, f models.LeadFilter) ([]models.Lead, error) {
	conditions := []string{}
	args := []any{}
	argID := 1

	if f.Query != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR company_name ILIKE $%d)",
			argID, argID, argID, argID))
		args = append(args, likePattern(f.Query))
		argID++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, f.Status)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads`+where(conditions)+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, wrapErr("list leads", err)
	}
	defer rows.Close()

	out := []models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, wrapErr("scan lead", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *leadRepository) Update(ctx context.Context, l *models.Lead) error {
	const q = `
		UPDATE leads SET first_name=$1, last_name=$2, email=$3, phone=$4, company_name=$5, job_title=$6,
			lead_source=$7, status=$8, score=$9, description=$10, website=$11, tags=$12, owner_id=$13,
			updated_at=NOW()
		WHERE id=$14
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, q,
		l.FirstName, l.LastName, l.Email, l.Phone, l.CompanyName, l.JobTitle,
		l.LeadSource, l.Status, l.Score, l.Description, l.Website, tags(l.Tags), l.OwnerID, l.ID,
	).Scan(&l.UpdatedAt)
	return wrapErr("update lead", err)
}

func (r *leadRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	return expectOne("delete lead", res, err)
}

func (r *leadRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n)
	return n, wrapErr("count leads", err)
}

func (r *leadRepository) CountByStatus(ctx context.Context) (map[models.LeadStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, wrapErr("count leads by status", err)
	}
	defer rows.Close()

	out := make(map[models.LeadStatus]int, len(models.LeadStatuses))
	for _, s := range models.LeadStatuses {
		out[s] = 0
	}
	for rows.Next() {
		var (
			status models.LeadStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, wrapErr("scan lead status", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *leadRepository) Convert(ctx context.Context, leadID string, contact *models.Contact, deal *models.Deal, at time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("convert lead: begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertContact(ctx, tx, contact); err != nil {
		return err
	}
	var dealID *string
	if deal != nil {
		if err = insertDeal(ctx, tx, deal); err != nil {
			return err
		}
		dealID = &deal.ID
	}

	// статус проверяется ещё раз внутри транзакции
	const q = `
		UPDATE leads SET status=$1, converted_contact_id=$2, converted_deal_id=$3, converted_at=$4, updated_at=NOW()
		WHERE id=$5 AND status <> $1`
	res, err := tx.ExecContext(ctx, q, models.LeadConverted, contact.ID, dealID, at, leadID)
	if err = expectOne("convert lead", res, err); err != nil {
		return err
	}
	return wrapErr("convert lead: commit", tx.Commit())
}
