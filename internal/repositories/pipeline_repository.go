package repositories

import (
	"context"
	"database/sql"

	"crmhub/internal/models"
)

// DefaultPipelineID is the pipeline seeded by the initial migration.
const DefaultPipelineID = "00000000-0000-0000-0000-000000000001"

type PipelineRepository interface {
	List(ctx context.Context) ([]models.Pipeline, error)
	GetByID(ctx context.Context, id string) (*models.Pipeline, error)
	// Default returns the pipeline flagged is_default, falling back to DefaultPipelineID.
	Default(ctx context.Context) (*models.Pipeline, error)

	ListStages(ctx context.Context, pipelineID string) ([]models.Stage, error)
	GetStage(ctx context.Context, id string) (*models.Stage, error)
	CreateStage(ctx context.Context, s *models.Stage) error
	UpdateStage(ctx context.Context, s *models.Stage) error
	DeleteStage(ctx context.Context, id string) error
}

type pipelineRepository struct {
	db *sql.DB
}

func NewPipelineRepository(db *sql.DB) PipelineRepository {
	return &pipelineRepository{db: db}
}

const pipelineColumns = `id, name, description, is_default, created_by, created_at, updated_at`

func scanPipeline(s rowScanner) (*models.Pipeline, error) {
	var p models.Pipeline
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.IsDefault, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

const stageColumns = `id, pipeline_id, name, description, color, probability, position, is_won, is_lost, created_at, updated_at`

func scanStage(s rowScanner) (*models.Stage, error) {
	var st models.Stage
	err := s.Scan(&st.ID, &st.PipelineID, &st.Name, &st.Description, &st.Color, &st.Probability,
		&st.Position, &st.IsWon, &st.IsLost, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *pipelineRepository) List(ctx context.Context) ([]models.Pipeline, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+pipelineColumns+` FROM pipelines ORDER BY is_default DESC, name`)
	if err != nil {
		return nil, wrapErr("list pipelines", err)
	}
	defer rows.Close()

	out := []models.Pipeline{}
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, wrapErr("scan pipeline", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *pipelineRepository) GetByID(ctx context.Context, id string) (*models.Pipeline, error) {
	p, err := scanPipeline(r.db.QueryRowContext(ctx, `SELECT `+pipelineColumns+` FROM pipelines WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get pipeline", err)
	}
	return p, nil
}

func (r *pipelineRepository) Default(ctx context.Context) (*models.Pipeline, error) {
	const q = `SELECT ` + pipelineColumns + ` FROM pipelines
		WHERE is_default OR id = $1
		ORDER BY is_default DESC
		LIMIT 1`
	p, err := scanPipeline(r.db.QueryRowContext(ctx, q, DefaultPipelineID))
	if err != nil {
		return nil, wrapErr("default pipeline", err)
	}
	return p, nil
}

func (r *pipelineRepository) ListStages(ctx context.Context, pipelineID string) ([]models.Stage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stageColumns+` FROM pipeline_stages WHERE pipeline_id = $1 ORDER BY position`, pipelineID)
	if err != nil {
		return nil, wrapErr("list stages", err)
	}
	defer rows.Close()

	out := []models.Stage{}
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, wrapErr("scan stage", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *pipelineRepository) GetStage(ctx context.Context, id string) (*models.Stage, error) {
	s, err := scanStage(r.db.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM pipeline_stages WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get stage", err)
	}
	return s, nil
}

func (r *pipelineRepository) CreateStage(ctx context.Context, s *models.Stage) error {
	const q = `
		INSERT INTO pipeline_stages (id, pipeline_id, name, description, color, probability, position, is_won, is_lost)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, q,
		s.ID, s.PipelineID, s.Name, s.Description, s.Color, s.Probability, s.Position, s.IsWon, s.IsLost,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return wrapErr("create stage", err)
}

func (r *pipelineRepository) UpdateStage(ctx context.Context, s *models.Stage) error {
	const q = `
		UPDATE pipeline_stages SET name=$1, description=$2, color=$3, probability=$4, position=$5,
			is_won=$6, is_lost=$7, updated_at=NOW()
		WHERE id=$8
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, q,
		s.Name, s.Description, s.Color, s.Probability, s.Position, s.IsWon, s.IsLost, s.ID,
	).Scan(&s.UpdatedAt)
	return wrapErr("update stage", err)
}

// DeleteStage removes the stage; deals in it keep a NULL stage_id and
// drop off the board.
func (r *pipelineRepository) DeleteStage(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pipeline_stages WHERE id = $1`, id)
	return expectOne("delete stage", res, err)
}
