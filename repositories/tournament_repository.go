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
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentConflict       = errors.New("tournament name already exists in this competition")
	ErrTeamAtTournamentNotFound = errors.New("team at tournament not found")
	ErrTeamAtTournamentConflict = errors.New("team already present at this tournament")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	ListBySeason(ctx context.Context, seasonID int) ([]*models.Tournament, error)
	ListByCompetition(ctx context.Context, competitionID int) ([]*models.Tournament, error)

	CreateTeamAtTournament(ctx context.Context, exec SQLExecutor, team *models.TeamAtTournament) error
	GetTeamAtTournament(ctx context.Context, id int) (*models.TeamAtTournament, error)
	// GetTeamAtTournamentWithDetails loads the team participation with its
	// tournament, competition and application for eligibility checks.
	GetTeamAtTournamentWithDetails(ctx context.Context, id int) (*models.TeamAtTournament, error)
	DeleteTeamsByApplication(ctx context.Context, exec SQLExecutor, applicationID int) (int, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `id, competition_id, name, start_date, end_date, location, rosters_deadline, created_at`

func scanTournament(row rowScanner, t *models.Tournament) error {
	return row.Scan(
		&t.ID,
		&t.CompetitionID,
		&t.Name,
		&t.StartDate,
		&t.EndDate,
		&t.Location,
		&t.RostersDeadline,
		&t.CreatedAt,
	)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, tournament *models.Tournament) error {
	query := `
		INSERT INTO tournaments (competition_id, name, start_date, end_date, location, rosters_deadline)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		tournament.CompetitionID,
		tournament.Name,
		tournament.StartDate,
		tournament.EndDate,
		tournament.Location,
		tournament.RostersDeadline,
	).Scan(&tournament.ID, &tournament.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return ErrTournamentConflict
			case "23503":
				return ErrCompetitionNotFound
			}
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	tournament := &models.Tournament{}
	if err := scanTournament(r.db.QueryRowContext(ctx, query, id), tournament); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to find tournament: %w", err)
	}
	return tournament, nil
}

func (r *postgresTournamentRepository) ListBySeason(ctx context.Context, seasonID int) ([]*models.Tournament, error) {
	query := `
		SELECT t.id, t.competition_id, t.name, t.start_date, t.end_date, t.location, t.rosters_deadline, t.created_at
		FROM tournaments t
		JOIN competitions c ON c.id = t.competition_id
		WHERE c.season_id = $1
		ORDER BY t.start_date DESC, t.name`
	return r.list(ctx, query, seasonID)
}

func (r *postgresTournamentRepository) ListByCompetition(ctx context.Context, competitionID int) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE competition_id = $1 ORDER BY start_date`
	return r.list(ctx, query, competitionID)
}

func (r *postgresTournamentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		tournament := &models.Tournament{}
		if err := scanTournament(rows, tournament); err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, tournament)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) CreateTeamAtTournament(ctx context.Context, exec SQLExecutor, team *models.TeamAtTournament) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO teams_at_tournaments (tournament_id, application_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query, team.TournamentID, team.ApplicationID).
		Scan(&team.ID, &team.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrTeamAtTournamentConflict
		}
		return fmt.Errorf("failed to create team at tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetTeamAtTournament(ctx context.Context, id int) (*models.TeamAtTournament, error) {
	query := `SELECT id, tournament_id, application_id, final_placement, spirit_avg, created_at FROM teams_at_tournaments WHERE id = $1`
	team := &models.TeamAtTournament{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&team.ID, &team.TournamentID, &team.ApplicationID, &team.FinalPlacement, &team.SpiritAvg, &team.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamAtTournamentNotFound
		}
		return nil, fmt.Errorf("failed to find team at tournament: %w", err)
	}
	return team, nil
}

func (r *postgresTournamentRepository) GetTeamAtTournamentWithDetails(ctx context.Context, id int) (*models.TeamAtTournament, error) {
	query := `
		SELECT
			tt.id, tt.tournament_id, tt.application_id, tt.final_placement, tt.spirit_avg, tt.created_at,
			t.id, t.competition_id, t.name, t.start_date, t.end_date, t.location, t.rosters_deadline, t.created_at,
			a.id, a.competition_id, a.team_id, a.team_name, a.state, a.invoice_id, a.registered_by_id, a.created_at,
			tm.id, tm.club_id, tm.name, tm.created_at
		FROM teams_at_tournaments tt
		JOIN tournaments t ON t.id = tt.tournament_id
		JOIN competition_applications a ON a.id = tt.application_id
		JOIN teams tm ON tm.id = a.team_id
		WHERE tt.id = $1`

	team := &models.TeamAtTournament{}
	tournament := &models.Tournament{}
	application := &models.CompetitionApplication{}
	clubTeam := &models.Team{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&team.ID, &team.TournamentID, &team.ApplicationID, &team.FinalPlacement, &team.SpiritAvg, &team.CreatedAt,
		&tournament.ID, &tournament.CompetitionID, &tournament.Name, &tournament.StartDate,
		&tournament.EndDate, &tournament.Location, &tournament.RostersDeadline, &tournament.CreatedAt,
		&application.ID, &application.CompetitionID, &application.TeamID, &application.TeamName,
		&application.State, &application.InvoiceID, &application.RegisteredByID, &application.CreatedAt,
		&clubTeam.ID, &clubTeam.ClubID, &clubTeam.Name, &clubTeam.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamAtTournamentNotFound
		}
		return nil, fmt.Errorf("failed to find team at tournament with details: %w", err)
	}

	application.Team = clubTeam
	team.Tournament = tournament
	team.Application = application
	return team, nil
}

func (r *postgresTournamentRepository) DeleteTeamsByApplication(ctx context.Context, exec SQLExecutor, applicationID int) (int, error) {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `DELETE FROM teams_at_tournaments WHERE application_id = $1`, applicationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete teams at tournaments for application %d: %w", applicationID, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted teams at tournaments: %w", err)
	}
	return int(deleted), nil
}
