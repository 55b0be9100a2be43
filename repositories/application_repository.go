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
	ErrApplicationNotFound = errors.New("competition application not found")
	ErrApplicationConflict = errors.New("team already applied to this competition")
)

type ApplicationRepository interface {
	Create(ctx context.Context, application *models.CompetitionApplication) error
	GetByID(ctx context.Context, id int) (*models.CompetitionApplication, error)
	ListByCompetition(ctx context.Context, competitionID int) ([]*models.CompetitionApplication, error)
	UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.ApplicationState) error
	// UpdateStateForInvoice moves every application linked to the invoice
	// that currently sits in fromState into toState.
	UpdateStateForInvoice(ctx context.Context, exec SQLExecutor, invoiceID int, fromState, toState models.ApplicationState) error
	// ListUninvoicedByClub returns the club's applications without an
	// invoice, locked FOR UPDATE inside the given transaction.
	ListUninvoicedByClub(ctx context.Context, exec SQLExecutor, clubID int) ([]*models.CompetitionApplication, error)
	// SetInvoice stamps the invoice on the given applications.
	SetInvoice(ctx context.Context, exec SQLExecutor, applicationIDs []int, invoiceID int) error
}

type postgresApplicationRepository struct {
	db *sql.DB
}

func NewPostgresApplicationRepository(db *sql.DB) ApplicationRepository {
	return &postgresApplicationRepository{db: db}
}

const applicationColumns = `id, competition_id, team_id, team_name, state, invoice_id, registered_by_id, created_at`

func scanApplication(row rowScanner, a *models.CompetitionApplication) error {
	return row.Scan(
		&a.ID,
		&a.CompetitionID,
		&a.TeamID,
		&a.TeamName,
		&a.State,
		&a.InvoiceID,
		&a.RegisteredByID,
		&a.CreatedAt,
	)
}

func (r *postgresApplicationRepository) Create(ctx context.Context, application *models.CompetitionApplication) error {
	query := `
		INSERT INTO competition_applications (competition_id, team_id, team_name, state, registered_by_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		application.CompetitionID,
		application.TeamID,
		application.TeamName,
		application.State,
		application.RegisteredByID,
	).Scan(&application.ID, &application.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return ErrApplicationConflict
			case "23503":
				if pqErr.Constraint == "competition_applications_competition_id_fkey" {
					return ErrCompetitionNotFound
				}
				if pqErr.Constraint == "competition_applications_team_id_fkey" {
					return ErrTeamNotFound
				}
			}
		}
		return fmt.Errorf("failed to create competition application: %w", err)
	}
	return nil
}

func (r *postgresApplicationRepository) GetByID(ctx context.Context, id int) (*models.CompetitionApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM competition_applications WHERE id = $1`
	application := &models.CompetitionApplication{}
	if err := scanApplication(r.db.QueryRowContext(ctx, query, id), application); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to find competition application: %w", err)
	}
	return application, nil
}

func (r *postgresApplicationRepository) ListByCompetition(ctx context.Context, competitionID int) ([]*models.CompetitionApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM competition_applications WHERE competition_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list competition applications: %w", err)
	}
	defer rows.Close()

	var applications []*models.CompetitionApplication
	for rows.Next() {
		application := &models.CompetitionApplication{}
		if err := scanApplication(rows, application); err != nil {
			return nil, fmt.Errorf("failed to scan competition application: %w", err)
		}
		applications = append(applications, application)
	}
	return applications, rows.Err()
}

func (r *postgresApplicationRepository) UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.ApplicationState) error {
	if exec == nil {
		exec = r.db
	}
	query := `UPDATE competition_applications SET state = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, state, id)
	if err != nil {
		return fmt.Errorf("failed to update application state: %w", err)
	}
	return checkAffectedRows(result, ErrApplicationNotFound)
}

func (r *postgresApplicationRepository) UpdateStateForInvoice(ctx context.Context, exec SQLExecutor, invoiceID int, fromState, toState models.ApplicationState) error {
	if exec == nil {
		exec = r.db
	}
	query := `UPDATE competition_applications SET state = $1 WHERE invoice_id = $2 AND state = $3`
	if _, err := exec.ExecContext(ctx, query, toState, invoiceID, fromState); err != nil {
		return fmt.Errorf("failed to update application states for invoice %d: %w", invoiceID, err)
	}
	return nil
}

func (r *postgresApplicationRepository) ListUninvoicedByClub(ctx context.Context, exec SQLExecutor, clubID int) ([]*models.CompetitionApplication, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT a.id, a.competition_id, a.team_id, a.team_name, a.state, a.invoice_id, a.registered_by_id, a.created_at
		FROM competition_applications a
		JOIN teams t ON t.id = a.team_id
		WHERE t.club_id = $1 AND a.invoice_id IS NULL
		FOR UPDATE OF a`

	rows, err := exec.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list uninvoiced applications: %w", err)
	}
	defer rows.Close()

	var applications []*models.CompetitionApplication
	for rows.Next() {
		application := &models.CompetitionApplication{}
		if err := scanApplication(rows, application); err != nil {
			return nil, fmt.Errorf("failed to scan competition application: %w", err)
		}
		applications = append(applications, application)
	}
	return applications, rows.Err()
}

func (r *postgresApplicationRepository) SetInvoice(ctx context.Context, exec SQLExecutor, applicationIDs []int, invoiceID int) error {
	if exec == nil {
		exec = r.db
	}
	if len(applicationIDs) == 0 {
		return nil
	}
	query := `UPDATE competition_applications SET invoice_id = $1 WHERE id = ANY($2)`
	if _, err := exec.ExecContext(ctx, query, invoiceID, pq.Array(applicationIDs)); err != nil {
		return fmt.Errorf("failed to link applications to invoice %d: %w", invoiceID, err)
	}
	return nil
}
