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
	ErrRosterEntryNotFound = errors.New("roster entry not found")
	ErrRosterEntryConflict = errors.New("member already on this roster")
)

type RosterRepository interface {
	Create(ctx context.Context, entry *models.MemberAtTournament) error
	GetByID(ctx context.Context, id int) (*models.MemberAtTournament, error)
	Update(ctx context.Context, entry *models.MemberAtTournament) error
	Delete(ctx context.Context, id int) error
	ListByTeamAtTournament(ctx context.Context, teamAtTournamentID int) ([]*models.MemberAtTournament, error)

	// FindByTournamentAndMember returns an existing roster entry of the member
	// anywhere at the tournament, along with the name of the team it is on.
	FindByTournamentAndMember(ctx context.Context, tournamentID, memberID int) (*models.MemberAtTournament, string, error)
	CaptainExists(ctx context.Context, teamAtTournamentID int) (bool, error)
	SpiritCaptainExists(ctx context.Context, teamAtTournamentID int) (bool, error)
	JerseyNumberTaken(ctx context.Context, teamAtTournamentID, jerseyNumber int) (bool, error)

	// ListSeasonParticipations flattens every roster entry of the season for
	// the fee sweep, one row per (member, tournament) with the competition's
	// fee type and the owning club.
	ListSeasonParticipations(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.SeasonParticipation, error)
}

type postgresRosterRepository struct {
	db *sql.DB
}

func NewPostgresRosterRepository(db *sql.DB) RosterRepository {
	return &postgresRosterRepository{db: db}
}

const rosterColumns = `id, tournament_id, team_at_tournament_id, member_id, is_captain, is_spirit_captain, is_coach, jersey_number, created_at`

func scanRosterEntry(row rowScanner, entry *models.MemberAtTournament) error {
	return row.Scan(
		&entry.ID,
		&entry.TournamentID,
		&entry.TeamAtTournamentID,
		&entry.MemberID,
		&entry.IsCaptain,
		&entry.IsSpiritCaptain,
		&entry.IsCoach,
		&entry.JerseyNumber,
		&entry.CreatedAt,
	)
}

func (r *postgresRosterRepository) Create(ctx context.Context, entry *models.MemberAtTournament) error {
	query := `
		INSERT INTO members_at_tournaments (tournament_id, team_at_tournament_id, member_id, is_captain, is_spirit_captain, is_coach, jersey_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		entry.TournamentID,
		entry.TeamAtTournamentID,
		entry.MemberID,
		entry.IsCaptain,
		entry.IsSpiritCaptain,
		entry.IsCoach,
		entry.JerseyNumber,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return ErrRosterEntryConflict
			case "23503":
				return ErrMemberNotFound
			}
		}
		return fmt.Errorf("failed to create roster entry: %w", err)
	}
	return nil
}

func (r *postgresRosterRepository) GetByID(ctx context.Context, id int) (*models.MemberAtTournament, error) {
	query := `SELECT ` + rosterColumns + ` FROM members_at_tournaments WHERE id = $1`
	entry := &models.MemberAtTournament{}
	if err := scanRosterEntry(r.db.QueryRowContext(ctx, query, id), entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRosterEntryNotFound
		}
		return nil, fmt.Errorf("failed to find roster entry: %w", err)
	}
	return entry, nil
}

func (r *postgresRosterRepository) Update(ctx context.Context, entry *models.MemberAtTournament) error {
	query := `
		UPDATE members_at_tournaments
		SET is_captain = $1, is_spirit_captain = $2, is_coach = $3, jersey_number = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		entry.IsCaptain, entry.IsSpiritCaptain, entry.IsCoach, entry.JerseyNumber, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update roster entry: %w", err)
	}
	return checkAffectedRows(result, ErrRosterEntryNotFound)
}

func (r *postgresRosterRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM members_at_tournaments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete roster entry: %w", err)
	}
	return checkAffectedRows(result, ErrRosterEntryNotFound)
}

func (r *postgresRosterRepository) ListByTeamAtTournament(ctx context.Context, teamAtTournamentID int) ([]*models.MemberAtTournament, error) {
	query := `
		SELECT
			mt.id, mt.tournament_id, mt.team_at_tournament_id, mt.member_id,
			mt.is_captain, mt.is_spirit_captain, mt.is_coach, mt.jersey_number, mt.created_at,
			m.id, m.club_id, m.first_name, m.last_name, m.birth_date, m.sex, m.citizenship, m.email_confirmed_at
		FROM members_at_tournaments mt
		JOIN members m ON m.id = mt.member_id
		WHERE mt.team_at_tournament_id = $1
		ORDER BY m.last_name, m.first_name`

	rows, err := r.db.QueryContext(ctx, query, teamAtTournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}
	defer rows.Close()

	var entries []*models.MemberAtTournament
	for rows.Next() {
		entry := &models.MemberAtTournament{}
		member := &models.Member{}
		err := rows.Scan(
			&entry.ID, &entry.TournamentID, &entry.TeamAtTournamentID, &entry.MemberID,
			&entry.IsCaptain, &entry.IsSpiritCaptain, &entry.IsCoach, &entry.JerseyNumber, &entry.CreatedAt,
			&member.ID, &member.ClubID, &member.FirstName, &member.LastName,
			&member.BirthDate, &member.Sex, &member.Citizenship, &member.EmailConfirmedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan roster entry: %w", err)
		}
		entry.Member = member
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *postgresRosterRepository) FindByTournamentAndMember(ctx context.Context, tournamentID, memberID int) (*models.MemberAtTournament, string, error) {
	query := `
		SELECT mt.id, mt.tournament_id, mt.team_at_tournament_id, mt.member_id,
			mt.is_captain, mt.is_spirit_captain, mt.is_coach, mt.jersey_number, mt.created_at,
			a.team_name
		FROM members_at_tournaments mt
		JOIN teams_at_tournaments tt ON tt.id = mt.team_at_tournament_id
		JOIN competition_applications a ON a.id = tt.application_id
		WHERE mt.tournament_id = $1 AND mt.member_id = $2`

	entry := &models.MemberAtTournament{}
	var teamName string
	err := r.db.QueryRowContext(ctx, query, tournamentID, memberID).Scan(
		&entry.ID, &entry.TournamentID, &entry.TeamAtTournamentID, &entry.MemberID,
		&entry.IsCaptain, &entry.IsSpiritCaptain, &entry.IsCoach, &entry.JerseyNumber, &entry.CreatedAt,
		&teamName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrRosterEntryNotFound
		}
		return nil, "", fmt.Errorf("failed to find roster entry: %w", err)
	}
	return entry, teamName, nil
}

func (r *postgresRosterRepository) CaptainExists(ctx context.Context, teamAtTournamentID int) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM members_at_tournaments WHERE team_at_tournament_id = $1 AND is_captain)`,
		teamAtTournamentID)
}

func (r *postgresRosterRepository) SpiritCaptainExists(ctx context.Context, teamAtTournamentID int) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM members_at_tournaments WHERE team_at_tournament_id = $1 AND is_spirit_captain)`,
		teamAtTournamentID)
}

func (r *postgresRosterRepository) JerseyNumberTaken(ctx context.Context, teamAtTournamentID, jerseyNumber int) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM members_at_tournaments WHERE team_at_tournament_id = $1 AND jersey_number = $2)`,
		teamAtTournamentID, jerseyNumber)
}

func (r *postgresRosterRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to check roster: %w", err)
	}
	return found, nil
}

func (r *postgresRosterRepository) ListSeasonParticipations(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.SeasonParticipation, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT
			mt.member_id, m.club_id, t.id, t.name, c.id, c.fee_type, t.start_date, t.end_date,
			m.first_name, m.last_name, m.birth_date, m.email
		FROM members_at_tournaments mt
		JOIN members m ON m.id = mt.member_id
		JOIN tournaments t ON t.id = mt.tournament_id
		JOIN competitions c ON c.id = t.competition_id
		WHERE c.season_id = $1
		ORDER BY m.club_id, mt.member_id, t.start_date`

	rows, err := exec.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list season participations: %w", err)
	}
	defer rows.Close()

	var participations []*models.SeasonParticipation
	for rows.Next() {
		p := &models.SeasonParticipation{}
		member := &models.Member{}
		err := rows.Scan(
			&p.MemberID, &p.ClubID, &p.TournamentID, &p.TournamentName,
			&p.CompetitionID, &p.FeeType, &p.TournamentStart, &p.TournamentEnd,
			&member.FirstName, &member.LastName, &member.BirthDate, &member.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan season participation: %w", err)
		}
		member.ID = p.MemberID
		member.ClubID = p.ClubID
		p.Member = member
		participations = append(participations, p)
	}
	return participations, rows.Err()
}
