package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/lib/pq"
)

var (
	ErrSeasonNotFound        = errors.New("season not found")
	ErrSeasonNameConflict    = errors.New("season name already exists")
	ErrSeasonAlreadyInvoiced = errors.New("season invoices already generated")
)

type SeasonRepository interface {
	Create(ctx context.Context, season *models.Season) error
	GetByID(ctx context.Context, id int) (*models.Season, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error)
	List(ctx context.Context) ([]*models.Season, error)
	Update(ctx context.Context, season *models.Season) error
	// SetInvoicesGeneratedAt sets the completion latch. It fails with
	// ErrSeasonAlreadyInvoiced when the latch is already set.
	SetInvoicesGeneratedAt(ctx context.Context, exec SQLExecutor, seasonID int, generatedAt time.Time) error
}

type postgresSeasonRepository struct {
	db *sql.DB
}

func NewPostgresSeasonRepository(db *sql.DB) SeasonRepository {
	return &postgresSeasonRepository{db: db}
}

const seasonColumns = `id, name, regular_fee, discounted_fee, min_allowed_age, age_reference_date, invoices_generated_at, created_at`

func scanSeason(row rowScanner, s *models.Season) error {
	return row.Scan(
		&s.ID,
		&s.Name,
		&s.RegularFee,
		&s.DiscountedFee,
		&s.MinAllowedAge,
		&s.AgeReferenceDate,
		&s.InvoicesGeneratedAt,
		&s.CreatedAt,
	)
}

func (r *postgresSeasonRepository) Create(ctx context.Context, season *models.Season) error {
	query := `
		INSERT INTO seasons (name, regular_fee, discounted_fee, min_allowed_age, age_reference_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		season.Name,
		season.RegularFee,
		season.DiscountedFee,
		season.MinAllowedAge,
		season.AgeReferenceDate,
	).Scan(&season.ID, &season.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrSeasonNameConflict
		}
		return fmt.Errorf("failed to create season: %w", err)
	}
	return nil
}

func (r *postgresSeasonRepository) GetByID(ctx context.Context, id int) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE id = $1`
	season := &models.Season{}
	if err := scanSeason(r.db.QueryRowContext(ctx, query, id), season); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonNotFound
		}
		return nil, fmt.Errorf("failed to find season: %w", err)
	}
	return season, nil
}

// GetByIDForUpdate locks the season row for the duration of the surrounding
// transaction. The invoice sweep uses it so the latch check and the latch
// write cannot race.
func (r *postgresSeasonRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE id = $1 FOR UPDATE`
	season := &models.Season{}
	if err := scanSeason(exec.QueryRowContext(ctx, query, id), season); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonNotFound
		}
		return nil, fmt.Errorf("failed to lock season: %w", err)
	}
	return season, nil
}

func (r *postgresSeasonRepository) List(ctx context.Context) ([]*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons ORDER BY name DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}
	defer rows.Close()

	var seasons []*models.Season
	for rows.Next() {
		season := &models.Season{}
		if err := scanSeason(rows, season); err != nil {
			return nil, fmt.Errorf("failed to scan season: %w", err)
		}
		seasons = append(seasons, season)
	}
	return seasons, rows.Err()
}

func (r *postgresSeasonRepository) Update(ctx context.Context, season *models.Season) error {
	query := `
		UPDATE seasons
		SET name = $1, regular_fee = $2, discounted_fee = $3, min_allowed_age = $4, age_reference_date = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		season.Name,
		season.RegularFee,
		season.DiscountedFee,
		season.MinAllowedAge,
		season.AgeReferenceDate,
		season.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrSeasonNameConflict
		}
		return fmt.Errorf("failed to update season: %w", err)
	}
	return checkAffectedRows(result, ErrSeasonNotFound)
}

func (r *postgresSeasonRepository) SetInvoicesGeneratedAt(ctx context.Context, exec SQLExecutor, seasonID int, generatedAt time.Time) error {
	if exec == nil {
		exec = r.db
	}
	query := `UPDATE seasons SET invoices_generated_at = $1 WHERE id = $2 AND invoices_generated_at IS NULL`
	result, err := exec.ExecContext(ctx, query, generatedAt, seasonID)
	if err != nil {
		return fmt.Errorf("failed to set invoices_generated_at: %w", err)
	}
	return checkAffectedRows(result, ErrSeasonAlreadyInvoiced)
}
