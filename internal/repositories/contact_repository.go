package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"crmhub/internal/models"
)

type ContactRepository interface {
	Create(ctx context.Context, c *models.Contact) error
	GetByID(ctx context.Context, id string) (*models.Contact, error)
	List(ctx context.Context, f models.ContactFilter) ([]models.Contact, error)
	Update(ctx context.Context, c *models.Contact) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type contactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) ContactRepository {
	return &contactRepository{db: db}
}

const contactSelect = `
	SELECT c.id, c.first_name, c.last_name, c.email, c.phone, c.mobile, c.job_title, c.department,
		c.company_id, c.lead_source, c.status, c.description, c.tags, c.last_contacted_at,
		c.owner_id, c.created_by, c.created_at, c.updated_at,
		co.id, co.name
	FROM contacts c
	LEFT JOIN companies co ON co.id = c.company_id`

func scanContact(s rowScanner) (*models.Contact, error) {
	var (
		c      models.Contact
		coID   sql.NullString
		coName sql.NullString
	)
	err := s.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Mobile, &c.JobTitle, &c.Department,
		&c.CompanyID, &c.LeadSource, &c.Status, &c.Description, pq.Array(&c.Tags), &c.LastContactedAt,
		&c.OwnerID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		&coID, &coName,
	)
	if err != nil {
		return nil, err
	}
	if coID.Valid {
		c.Company = &models.CompanyRef{ID: coID.String, Name: coName.String}
	}
	return &c, nil
}

func (r *contactRepository) Create(ctx context.Context, c *models.Contact) error {
	return insertContact(ctx, r.db, c)
}

func insertContact(ctx context.Context, db querier, c *models.Contact) error {
	const q = `
		INSERT INTO contacts (id, first_name, last_name, email, phone, mobile, job_title, department,
			company_id, lead_source, status, description, tags, last_contacted_at, owner_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at`
	err := db.QueryRowContext(ctx, q,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Mobile, c.JobTitle, c.Department,
		c.CompanyID, c.LeadSource, c.Status, c.Description, tags(c.Tags), c.LastContactedAt, c.OwnerID, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return wrapErr("create contact", err)
}

func (r *contactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, contactSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, wrapErr("get contact", err)
	}
	return c, nil
}

func (r *contactRepository) List(ctx context.Context, f models.ContactFilter) ([]models.Contact, error) {
	conditions := []string{}
	args := []any{}
	argID := 1

	if f.Query != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(c.first_name ILIKE $%d OR c.last_name ILIKE $%d OR c.email ILIKE $%d OR co.name ILIKE $%d)",
			argID, argID, argID, argID))
		args = append(args, likePattern(f.Query))
		argID++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", argID))
		args = append(args, f.Status)
		argID++
	}
	if f.CompanyID != "" {
		conditions = append(conditions, fmt.Sprintf("c.company_id = $%d", argID))
		args = append(args, f.CompanyID)
	}

	rows, err := r.db.QueryContext(ctx, contactSelect+where(conditions)+` ORDER BY c.first_name`, args...)
	if err != nil {
		return nil, wrapErr("list contacts", err)
	}
	defer rows.Close()

	out := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, wrapErr("scan contact", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *contactRepository) Update(ctx context.Context, c *models.Contact) error {
	const q = `
		UPDATE contacts SET first_name=$1, last_name=$2, email=$3, phone=$4, mobile=$5, job_title=$6,
			department=$7, company_id=$8, lead_source=$9, status=$10, description=$11, tags=$12,
			last_contacted_at=$13, owner_id=$14, updated_at=NOW()
		WHERE id=$15
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, q,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Mobile, c.JobTitle,
		c.Department, c.CompanyID, c.LeadSource, c.Status, c.Description, tags(c.Tags),
		c.LastContactedAt, c.OwnerID, c.ID,
	).Scan(&c.UpdatedAt)
	return wrapErr("update contact", err)
}

func (r *contactRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	return expectOne("delete contact", res, err)
}

func (r *contactRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n)
	return n, wrapErr("count contacts", err)
}
