package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/frisbee-cz/evidence/models"
	"github.com/lib/pq"
)

var (
	ErrCompetitionNotFound      = errors.New("competition not found")
	ErrCompetitionConflict      = errors.New("competition already exists for this season, division and age limit")
	ErrCompetitionSeasonInvalid = errors.New("competition season conflict or invalid")
	ErrDivisionNotFound         = errors.New("division not found")
	ErrAgeLimitNotFound         = errors.New("age limit not found")
)

type CompetitionRepository interface {
	Create(ctx context.Context, competition *models.Competition) error
	GetByID(ctx context.Context, id int) (*models.Competition, error)
	// GetWithDetails loads the competition together with its season,
	// division and optional age limit.
	GetWithDetails(ctx context.Context, id int) (*models.Competition, error)
	ListBySeason(ctx context.Context, seasonID int) ([]*models.Competition, error)
	GetDivision(ctx context.Context, id int) (*models.Division, error)
	ListDivisions(ctx context.Context) ([]*models.Division, error)
	GetAgeLimit(ctx context.Context, id int) (*models.AgeLimit, error)
	ListAgeLimits(ctx context.Context) ([]*models.AgeLimit, error)
}

type postgresCompetitionRepository struct {
	db *sql.DB
}

func NewPostgresCompetitionRepository(db *sql.DB) CompetitionRepository {
	return &postgresCompetitionRepository{db: db}
}

const competitionColumns = `id, name, season_id, division_id, age_limit_id, fee_type, environment, deposit, registration_deadline, created_at`

func scanCompetition(row rowScanner, c *models.Competition) error {
	return row.Scan(
		&c.ID,
		&c.Name,
		&c.SeasonID,
		&c.DivisionID,
		&c.AgeLimitID,
		&c.FeeType,
		&c.Environment,
		&c.Deposit,
		&c.RegistrationDeadline,
		&c.CreatedAt,
	)
}

func (r *postgresCompetitionRepository) Create(ctx context.Context, competition *models.Competition) error {
	query := `
		INSERT INTO competitions (name, season_id, division_id, age_limit_id, fee_type, environment, deposit, registration_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		competition.Name,
		competition.SeasonID,
		competition.DivisionID,
		competition.AgeLimitID,
		competition.FeeType,
		competition.Environment,
		competition.Deposit,
		competition.RegistrationDeadline,
	).Scan(&competition.ID, &competition.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return ErrCompetitionConflict
			case "23503":
				switch pqErr.Constraint {
				case "competitions_season_id_fkey":
					return ErrCompetitionSeasonInvalid
				case "competitions_division_id_fkey":
					return ErrDivisionNotFound
				case "competitions_age_limit_id_fkey":
					return ErrAgeLimitNotFound
				}
			}
		}
		return fmt.Errorf("failed to create competition: %w", err)
	}
	return nil
}

func (r *postgresCompetitionRepository) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE id = $1`
	competition := &models.Competition{}
	if err := scanCompetition(r.db.QueryRowContext(ctx, query, id), competition); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to find competition: %w", err)
	}
	return competition, nil
}

func (r *postgresCompetitionRepository) GetWithDetails(ctx context.Context, id int) (*models.Competition, error) {
	query := `
		SELECT
			c.id, c.name, c.season_id, c.division_id, c.age_limit_id, c.fee_type, c.environment,
			c.deposit, c.registration_deadline, c.created_at,
			s.id, s.name, s.regular_fee, s.discounted_fee, s.min_allowed_age, s.age_reference_date, s.invoices_generated_at, s.created_at,
			d.id, d.name, d.is_female_allowed, d.is_male_allowed, d.created_at,
			a.id, a.name, a.m_min, a.m_max, a.f_min, a.f_max, a.created_at
		FROM competitions c
		JOIN seasons s ON s.id = c.season_id
		JOIN divisions d ON d.id = c.division_id
		LEFT JOIN age_limits a ON a.id = c.age_limit_id
		WHERE c.id = $1`

	competition := &models.Competition{}
	season := &models.Season{}
	division := &models.Division{}
	var (
		alID        sql.NullInt64
		alName      sql.NullString
		alMMin      sql.NullInt64
		alMMax      sql.NullInt64
		alFMin      sql.NullInt64
		alFMax      sql.NullInt64
		alCreatedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&competition.ID, &competition.Name, &competition.SeasonID, &competition.DivisionID,
		&competition.AgeLimitID, &competition.FeeType, &competition.Environment,
		&competition.Deposit, &competition.RegistrationDeadline, &competition.CreatedAt,
		&season.ID, &season.Name, &season.RegularFee, &season.DiscountedFee,
		&season.MinAllowedAge, &season.AgeReferenceDate, &season.InvoicesGeneratedAt, &season.CreatedAt,
		&division.ID, &division.Name, &division.IsFemaleAllowed, &division.IsMaleAllowed, &division.CreatedAt,
		&alID, &alName, &alMMin, &alMMax, &alFMin, &alFMax, &alCreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to find competition with details: %w", err)
	}

	competition.Season = season
	competition.Division = division
	if alID.Valid {
		competition.AgeLimit = &models.AgeLimit{
			ID:        int(alID.Int64),
			Name:      alName.String,
			MaleMin:   int(alMMin.Int64),
			MaleMax:   int(alMMax.Int64),
			FemaleMin: int(alFMin.Int64),
			FemaleMax: int(alFMax.Int64),
			CreatedAt: alCreatedAt.Time,
		}
	}
	return competition, nil
}

func (r *postgresCompetitionRepository) ListBySeason(ctx context.Context, seasonID int) ([]*models.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE season_id = $1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	defer rows.Close()

	var competitions []*models.Competition
	for rows.Next() {
		competition := &models.Competition{}
		if err := scanCompetition(rows, competition); err != nil {
			return nil, fmt.Errorf("failed to scan competition: %w", err)
		}
		competitions = append(competitions, competition)
	}
	return competitions, rows.Err()
}

func (r *postgresCompetitionRepository) GetDivision(ctx context.Context, id int) (*models.Division, error) {
	query := `SELECT id, name, is_female_allowed, is_male_allowed, created_at FROM divisions WHERE id = $1`
	division := &models.Division{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&division.ID, &division.Name, &division.IsFemaleAllowed, &division.IsMaleAllowed, &division.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDivisionNotFound
		}
		return nil, fmt.Errorf("failed to find division: %w", err)
	}
	return division, nil
}

func (r *postgresCompetitionRepository) ListDivisions(ctx context.Context) ([]*models.Division, error) {
	query := `SELECT id, name, is_female_allowed, is_male_allowed, created_at FROM divisions ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list divisions: %w", err)
	}
	defer rows.Close()

	var divisions []*models.Division
	for rows.Next() {
		division := &models.Division{}
		if err := rows.Scan(&division.ID, &division.Name, &division.IsFemaleAllowed, &division.IsMaleAllowed, &division.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan division: %w", err)
		}
		divisions = append(divisions, division)
	}
	return divisions, rows.Err()
}

func (r *postgresCompetitionRepository) GetAgeLimit(ctx context.Context, id int) (*models.AgeLimit, error) {
	query := `SELECT id, name, m_min, m_max, f_min, f_max, created_at FROM age_limits WHERE id = $1`
	ageLimit := &models.AgeLimit{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ageLimit.ID, &ageLimit.Name, &ageLimit.MaleMin, &ageLimit.MaleMax,
		&ageLimit.FemaleMin, &ageLimit.FemaleMax, &ageLimit.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAgeLimitNotFound
		}
		return nil, fmt.Errorf("failed to find age limit: %w", err)
	}
	return ageLimit, nil
}

func (r *postgresCompetitionRepository) ListAgeLimits(ctx context.Context) ([]*models.AgeLimit, error) {
	query := `SELECT id, name, m_min, m_max, f_min, f_max, created_at FROM age_limits ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list age limits: %w", err)
	}
	defer rows.Close()

	var ageLimits []*models.AgeLimit
	for rows.Next() {
		ageLimit := &models.AgeLimit{}
		if err := rows.Scan(
			&ageLimit.ID, &ageLimit.Name, &ageLimit.MaleMin, &ageLimit.MaleMax,
			&ageLimit.FemaleMin, &ageLimit.FemaleMax, &ageLimit.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan age limit: %w", err)
		}
		ageLimits = append(ageLimits, ageLimit)
	}
	return ageLimits, rows.Err()
}
