package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"crmhub/internal/models"
)

type DealRepository interface {
	Create(ctx context.Context, d *models.Deal) error
	GetByID(ctx context.Context, id string) (*models.Deal, error)
	List(ctx context.Context, f models.DealFilter) ([]models.Deal, error)
	Update(ctx context.Context, d *models.Deal) error
	// ApplyTransition writes stage_id, status and actual_close_date in one statement.
	ApplyTransition(ctx context.Context, id, stageID string, status models.DealStatus, closedAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

type dealRepository struct {
	db *sql.DB
}

func NewDealRepository(db *sql.DB) DealRepository {
	return &dealRepository{db: db}
}

const dealSelect = `
	SELECT d.id, d.name, d.value, d.currency, d.pipeline_id, d.stage_id, d.contact_id, d.company_id,
		d.expected_close_date, d.actual_close_date, d.probability, d.status, d.loss_reason,
		d.description, d.tags, d.owner_id, d.created_by, d.created_at, d.updated_at,
		c.id, c.first_name, c.last_name, c.email,
		co.id, co.name,
		s.id, s.pipeline_id, s.name, s.color, s.probability, s.position, s.is_won, s.is_lost
	FROM deals d
	LEFT JOIN contacts c ON c.id = d.contact_id
	LEFT JOIN companies co ON co.id = d.company_id
	LEFT JOIN pipeline_stages s ON s.id = d.stage_id`

func scanDeal(s rowScanner) (*models.Deal, error) {
	var (
		d                          models.Deal
		cID, cFirst, cLast, cEmail sql.NullString
		coID, coName               sql.NullString
		sID, sPipeline, sName      sql.NullString
		sColor                     sql.NullString
		sProb, sPos                sql.NullInt64
		sWon, sLost                sql.NullBool
	)
	err := s.Scan(
		&d.ID, &d.Name, &d.Value, &d.Currency, &d.PipelineID, &d.StageID, &d.ContactID, &d.CompanyID,
		&d.ExpectedCloseDate, &d.ActualCloseDate, &d.Probability, &d.Status, &d.LossReason,
		&d.Description, pq.Array(&d.Tags), &d.OwnerID, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
		&cID, &cFirst, &cLast, &cEmail,
		&coID, &coName,
		&sID, &sPipeline, &sName, &sColor, &sProb, &sPos, &sWon, &sLost,
	)
	if err != nil {
		return nil, err
	}
	if cID.Valid {
		d.Contact = &models.ContactRef{ID: cID.String, FirstName: cFirst.String}
		if cLast.Valid {
			d.Contact.LastName = &cLast.String
		}
		if cEmail.Valid {
			d.Contact.Email = &cEmail.String
		}
	}
	if coID.Valid {
		d.Company = &models.CompanyRef{ID: coID.String, Name: coName.String}
	}
	if sID.Valid {
		d.Stage = &models.Stage{
			ID:          sID.String,
			PipelineID:  sPipeline.String,
			Name:        sName.String,
			Color:       sColor.String,
			Probability: int(sProb.Int64),
			Position:    int(sPos.Int64),
			IsWon:       sWon.Bool,
			IsLost:      sLost.Bool,
		}
	}
	return &d, nil
}

func (r *dealRepository) Create(ctx context.Context, d *models.Deal) error {
	return insertDeal(ctx, r.db, d)
}

func insertDeal(ctx context.Context, db querier, d *models.Deal) error {
	const q = `
		INSERT INTO deals (id, name, value, currency, pipeline_id, stage_id, contact_id, company_id,
			expected_close_date, actual_close_date, probability, status, loss_reason, description,
			tags, owner_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING created_at, updated_at`
	err := db.QueryRowContext(ctx, q,
		d.ID, d.Name, d.Value, d.Currency, d.PipelineID, d.StageID, d.ContactID, d.CompanyID,
		d.ExpectedCloseDate, d.ActualCloseDate, d.Probability, d.Status, d.LossReason, d.Description,
		tags(d.Tags), d.OwnerID, d.CreatedBy,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return wrapErr("create deal", err)
}

func (r *dealRepository) GetByID(ctx context.Context, id string) (*models.Deal, error) {
	d, err := scanDeal(r.db.QueryRowContext(ctx, dealSelect+` WHERE d.id = $1`, id))
	if err != nil {
		return nil, wrapErr("get deal", err)
	}
	return d, nil
}

func (r *dealRepository) List(ctx context.Context, f models.DealFilter) ([]models.Deal, error) {
	conditions := []string{}
	args := []any{}
	argID := 1

	if f.PipelineID != "" {
		conditions = append(conditions, fmt.Sprintf("d.pipeline_id = $%d", argID))
		args = append(args, f.PipelineID)
		argID++
	}
	if f.StageID != "" {
		conditions = append(conditions, fmt.Sprintf("d.stage_id = $%d", argID))
		args = append(args, f.StageID)
		argID++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", argID))
		args = append(args, f.Status)
		argID++
	}

	query := dealSelect + where(conditions) + " ORDER BY d.created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list deals", err)
	}
	defer rows.Close()

	out := []models.Deal{}
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, wrapErr("scan deal", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Update writes every editable column, stage and status included, as a
// single statement. Callers derive status through pipeline.Transition.
func (r *dealRepository) Update(ctx context.Context, d *models.Deal) error {
	const q = `
		UPDATE deals SET name=$1, value=$2, currency=$3, pipeline_id=$4, stage_id=$5, contact_id=$6,
			company_id=$7, expected_close_date=$8, actual_close_date=$9, probability=$10, status=$11,
			loss_reason=$12, description=$13, tags=$14, owner_id=$15, updated_at=NOW()
		WHERE id=$16
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, q,
		d.Name, d.Value, d.Currency, d.PipelineID, d.StageID, d.ContactID,
		d.CompanyID, d.ExpectedCloseDate, d.ActualCloseDate, d.Probability, d.Status,
		d.LossReason, d.Description, tags(d.Tags), d.OwnerID, d.ID,
	).Scan(&d.UpdatedAt)
	return wrapErr("update deal", err)
}

func (r *dealRepository) ApplyTransition(ctx context.Context, id, stageID string, status models.DealStatus, closedAt *time.Time) error {
	const q = `
		UPDATE deals SET stage_id=$1, status=$2, actual_close_date=$3, updated_at=NOW()
		WHERE id=$4`
	res, err := r.db.ExecContext(ctx, q, stageID, status, closedAt, id)
	return expectOne("move deal", res, err)
}

func (r *dealRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM deals WHERE id = $1`, id)
	return expectOne("delete deal", res, err)
}
