package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"crmhub/internal/models"
)

type CompanyRepository interface {
	Create(ctx context.Context, c *models.Company) error
	GetByID(ctx context.Context, id string) (*models.Company, error)
	List(ctx context.Context, f models.CompanyFilter) ([]models.Company, error)
	Update(ctx context.Context, c *models.Company) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type companyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) CompanyRepository {
	return &companyRepository{db: db}
}

const companyColumns = `id, name, domain, industry, size, website, phone, email, description,
	annual_revenue, founded_year, tags, owner_id, created_by, created_at, updated_at`

func scanCompany(s rowScanner) (*models.Company, error) {
	var c models.Company
	err := s.Scan(
		&c.ID, &c.Name, &c.Domain, &c.Industry, &c.Size, &c.Website, &c.Phone, &c.Email, &c.Description,
		&c.AnnualRevenue, &c.FoundedYear, pq.Array(&c.Tags), &c.OwnerID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *companyRepository) Create(ctx context.Context, c *models.Company) error {
	const q = `
		INSERT INTO companies (id, name, domain, industry, size, website, phone, email, description,
			annual_revenue, founded_year, tags, owner_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, q,
		c.ID, c.Name, c.Domain, c.Industry, c.Size, c.Website, c.Phone, c.Email, c.Description,
		c.AnnualRevenue, c.FoundedYear, tags(c.Tags), c.OwnerID, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return wrapErr("create company", err)
}

func (r *companyRepository) GetByID(ctx context.Context, id string) (*models.Company, error) {
	c, err := scanCompany(r.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get company", err)
	}
	return c, nil
}

func (r *companyRepository) List(ctx context.Context, f models.CompanyFilter) ([]models.Company, error) {
	conditions := []string{}
	args := []any{}
	argID := 1

	if f.Query != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR domain ILIKE $%d OR industry ILIKE $%d)", argID, argID, argID))
		args = append(args, likePattern(f.Query))
		argID++
	}
	if f.Industry != "" {
		conditions = append(conditions, fmt.Sprintf("industry = $%d", argID))
		args = append(args, f.Industry)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies`+where(conditions)+` ORDER BY name`, args...)
	if err != nil {
		return nil, wrapErr("list companies", err)
	}
	defer rows.Close()

	out := []models.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, wrapErr("scan company", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *companyRepository) Update(ctx context.Context, c *models.Company) error {
	const q = `
		UPDATE companies SET name=$1, domain=$2, industry=$3, size=$4, website=$5, phone=$6, email=$7,
			description=$8, annual_revenue=$9, founded_year=$10, tags=$11, owner_id=$12, updated_at=NOW()
		WHERE id=$13
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, q,
		c.Name, c.Domain, c.Industry, c.Size, c.Website, c.Phone, c.Email,
		c.Description, c.AnnualRevenue, c.FoundedYear, tags(c.Tags), c.OwnerID, c.ID,
	).Scan(&c.UpdatedAt)
	return wrapErr("update company", err)
}

func (r *companyRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, id)
	return expectOne("delete company", res, err)
}

func (r *companyRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&n)
	return n, wrapErr("count companies", err)
}
