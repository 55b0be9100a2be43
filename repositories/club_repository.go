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
	ErrClubNotFound = errors.New("club not found")
	ErrClubConflict = errors.New("club name already exists")
)

type ClubRepository interface {
	Create(ctx context.Context, club *models.Club) error
	GetByID(ctx context.Context, id int) (*models.Club, error)
	List(ctx context.Context) ([]*models.Club, error)
	Update(ctx context.Context, club *models.Club) error
	UpdateLogoKey(ctx context.Context, clubID int, logoKey string) error
	SetFakturoidSubjectID(ctx context.Context, clubID, subjectID int) error
}

type postgresClubRepository struct {
	db *sql.DB
}

func NewPostgresClubRepository(db *sql.DB) ClubRepository {
	return &postgresClubRepository{db: db}
}

const clubColumns = `id, name, short_name, email, website, city, identification_number, fakturoid_subject_id, logo_key, created_at`

func scanClub(row rowScanner, club *models.Club) error {
	return row.Scan(
		&club.ID,
		&club.Name,
		&club.ShortName,
		&club.Email,
		&club.Website,
		&club.City,
		&club.IdentificationNumber,
		&club.FakturoidSubjectID,
		&club.LogoKey,
		&club.CreatedAt,
	)
}

func (r *postgresClubRepository) Create(ctx context.Context, club *models.Club) error {
	query := `
		INSERT INTO clubs (name, short_name, email, website, city, identification_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		club.Name, club.ShortName, club.Email, club.Website, club.City, club.IdentificationNumber,
	).Scan(&club.ID, &club.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrClubConflict
		}
		return fmt.Errorf("failed to create club: %w", err)
	}
	return nil
}

func (r *postgresClubRepository) GetByID(ctx context.Context, id int) (*models.Club, error) {
	query := `SELECT ` + clubColumns + ` FROM clubs WHERE id = $1`
	club := &models.Club{}
	if err := scanClub(r.db.QueryRowContext(ctx, query, id), club); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("failed to find club: %w", err)
	}
	return club, nil
}

func (r *postgresClubRepository) List(ctx context.Context) ([]*models.Club, error) {
	query := `SELECT ` + clubColumns + ` FROM clubs ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}
	defer rows.Close()

	var clubs []*models.Club
	for rows.Next() {
		club := &models.Club{}
		if err := scanClub(rows, club); err != nil {
			return nil, fmt.Errorf("failed to scan club: %w", err)
		}
		clubs = append(clubs, club)
	}
	return clubs, rows.Err()
}

func (r *postgresClubRepository) Update(ctx context.Context, club *models.Club) error {
	query := `
		UPDATE clubs
		SET name = $1, short_name = $2, email = $3, website = $4, city = $5, identification_number = $6
		WHERE id = $7`

	result, err := r.db.ExecContext(ctx, query,
		club.Name, club.ShortName, club.Email, club.Website, club.City, club.IdentificationNumber, club.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrClubConflict
		}
		return fmt.Errorf("failed to update club: %w", err)
	}
	return checkAffectedRows(result, ErrClubNotFound)
}

func (r *postgresClubRepository) UpdateLogoKey(ctx context.Context, clubID int, logoKey string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE clubs SET logo_key = $1 WHERE id = $2`, logoKey, clubID)
	if err != nil {
		return fmt.Errorf("failed to update club logo: %w", err)
	}
	return checkAffectedRows(result, ErrClubNotFound)
}

func (r *postgresClubRepository) SetFakturoidSubjectID(ctx context.Context, clubID, subjectID int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE clubs SET fakturoid_subject_id = $1 WHERE id = $2`, subjectID, clubID)
	if err != nil {
		return fmt.Errorf("failed to set club fakturoid subject: %w", err)
	}
	return checkAffectedRows(result, ErrClubNotFound)
}
