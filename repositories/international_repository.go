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
	ErrIntlTournamentNotFound  = errors.New("international tournament not found")
	ErrIntlTeamNotFound        = errors.New("team at international tournament not found")
	ErrIntlTeamConflict        = errors.New("team already present at this international tournament")
	ErrIntlRosterEntryNotFound = errors.New("international roster entry not found")
	ErrIntlRosterEntryConflict = errors.New("member already on this international roster")
)

type InternationalRepository interface {
	Create(ctx context.Context, tournament *models.InternationalTournament) error
	GetByID(ctx context.Context, id int) (*models.InternationalTournament, error)
	ListBySeason(ctx context.Context, seasonID int) ([]*models.InternationalTournament, error)

	CreateTeam(ctx context.Context, team *models.TeamAtInternationalTournament) error
	GetTeam(ctx context.Context, id int) (*models.TeamAtInternationalTournament, error)
	// GetTeamWithDetails loads the team with its tournament, owning club team
	// and division for eligibility checks.
	GetTeamWithDetails(ctx context.Context, id int) (*models.TeamAtInternationalTournament, error)
	ListTeams(ctx context.Context, tournamentID int) ([]*models.TeamAtInternationalTournament, error)
	UpdateTeamResult(ctx context.Context, teamID int, finalPlacement, totalTeams *int) error

	CreateRosterEntry(ctx context.Context, entry *models.MemberAtInternationalTournament) error
	GetRosterEntry(ctx context.Context, id int) (*models.MemberAtInternationalTournament, error)
	UpdateRosterEntry(ctx context.Context, entry *models.MemberAtInternationalTournament) error
	DeleteRosterEntry(ctx context.Context, id int) error
	ListRoster(ctx context.Context, teamAtTournamentID int) ([]*models.MemberAtInternationalTournament, error)
	// FindRosterEntryByTournamentAndMember looks across all teams of the
	// tournament, returning the name of the team the member is already on.
	FindRosterEntryByTournamentAndMember(ctx context.Context, tournamentID, memberID int) (*models.MemberAtInternationalTournament, string, error)
	CaptainExists(ctx context.Context, teamAtTournamentID int) (bool, error)
	SpiritCaptainExists(ctx context.Context, teamAtTournamentID int) (bool, error)
	JerseyNumberTaken(ctx context.Context, teamAtTournamentID, jerseyNumber int) (bool, error)

	// ListSeasonParticipations mirrors the domestic query for the fee sweep.
	// International tournaments carry their own fee type.
	ListSeasonParticipations(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.SeasonParticipation, error)
}

type postgresInternationalRepository struct {
	db *sql.DB
}

func NewPostgresInternationalRepository(db *sql.DB) InternationalRepository {
	return &postgresInternationalRepository{db: db}
}

const intlTournamentColumns = `id, name, season_id, date_from, date_to, city, country, type, environment, fee_type, created_at`

func scanIntlTournament(row rowScanner, t *models.InternationalTournament) error {
	return row.Scan(
		&t.ID, &t.Name, &t.SeasonID, &t.DateFrom, &t.DateTo,
		&t.City, &t.Country, &t.Type, &t.Environment, &t.FeeType, &t.CreatedAt,
	)
}

func (r *postgresInternationalRepository) Create(ctx context.Context, tournament *models.InternationalTournament) error {
	query := `
		INSERT INTO international_tournaments (name, season_id, date_from, date_to, city, country, type, environment, fee_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		tournament.Name, tournament.SeasonID, tournament.DateFrom, tournament.DateTo,
		tournament.City, tournament.Country, tournament.Type, tournament.Environment, tournament.FeeType,
	).Scan(&tournament.ID, &tournament.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrSeasonNotFound
		}
		return fmt.Errorf("failed to create international tournament: %w", err)
	}
	return nil
}

func (r *postgresInternationalRepository) GetByID(ctx context.Context, id int) (*models.InternationalTournament, error) {
	query := `SELECT ` + intlTournamentColumns + ` FROM international_tournaments WHERE id = $1`
	tournament := &models.InternationalTournament{}
	if err := scanIntlTournament(r.db.QueryRowContext(ctx, query, id), tournament); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntlTournamentNotFound
		}
		return nil, fmt.Errorf("failed to find international tournament: %w", err)
	}
	return tournament, nil
}

func (r *postgresInternationalRepository) ListBySeason(ctx context.Context, seasonID int) ([]*models.InternationalTournament, error) {
	query := `SELECT ` + intlTournamentColumns + ` FROM international_tournaments WHERE season_id = $1 ORDER BY date_from DESC`
	rows, err := r.db.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list international tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.InternationalTournament
	for rows.Next() {
		tournament := &models.InternationalTournament{}
		if err := scanIntlTournament(rows, tournament); err != nil {
			return nil, fmt.Errorf("failed to scan international tournament: %w", err)
		}
		tournaments = append(tournaments, tournament)
	}
	return tournaments, rows.Err()
}

const intlTeamColumns = `id, tournament_id, team_id, division_id, age_limit_id, team_name, final_placement, total_teams, created_at`

func scanIntlTeam(row rowScanner, t *models.TeamAtInternationalTournament) error {
	return row.Scan(
		&t.ID, &t.TournamentID, &t.TeamID, &t.DivisionID, &t.AgeLimitID,
		&t.TeamName, &t.FinalPlacement, &t.TotalTeams, &t.CreatedAt,
	)
}

func (r *postgresInternationalRepository) CreateTeam(ctx context.Context, team *models.TeamAtInternationalTournament) error {
	query := `
		INSERT INTO teams_at_international_tournaments (tournament_id, team_id, division_id, age_limit_id, team_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		team.TournamentID, team.TeamID, team.DivisionID, team.AgeLimitID, team.TeamName,
	).Scan(&team.ID, &team.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return ErrIntlTeamConflict
			case "23503":
				return ErrIntlTournamentNotFound
			}
		}
		return fmt.Errorf("failed to create team at international tournament: %w", err)
	}
	return nil
}

func (r *postgresInternationalRepository) GetTeam(ctx context.Context, id int) (*models.TeamAtInternationalTournament, error) {
	query := `SELECT ` + intlTeamColumns + ` FROM teams_at_international_tournaments WHERE id = $1`
	team := &models.TeamAtInternationalTournament{}
	if err := scanIntlTeam(r.db.QueryRowContext(ctx, query, id), team); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntlTeamNotFound
		}
		return nil, fmt.Errorf("failed to find team at international tournament: %w", err)
	}
	return team, nil
}

func (r *postgresInternationalRepository) GetTeamWithDetails(ctx context.Context, id int) (*models.TeamAtInternationalTournament, error) {
	query := `
		SELECT ` + prefixColumns("tt", intlTeamColumns) + `,
			` + prefixColumns("t", intlTournamentColumns) + `,
			tm.id, tm.club_id, tm.name, tm.created_at
		FROM teams_at_international_tournaments tt
		JOIN international_tournaments t ON t.id = tt.tournament_id
		JOIN teams tm ON tm.id = tt.team_id
		WHERE tt.id = $1`

	team := &models.TeamAtInternationalTournament{}
	tournament := &models.InternationalTournament{}
	clubTeam := &models.Team{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&team.ID, &team.TournamentID, &team.TeamID, &team.DivisionID, &team.AgeLimitID,
		&team.TeamName, &team.FinalPlacement, &team.TotalTeams, &team.CreatedAt,
		&tournament.ID, &tournament.Name, &tournament.SeasonID, &tournament.DateFrom, &tournament.DateTo,
		&tournament.City, &tournament.Country, &tournament.Type, &tournament.Environment,
		&tournament.FeeType, &tournament.CreatedAt,
		&clubTeam.ID, &clubTeam.ClubID, &clubTeam.Name, &clubTeam.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntlTeamNotFound
		}
		return nil, fmt.Errorf("failed to find team at international tournament with details: %w", err)
	}

	team.Tournament = tournament
	team.Team = clubTeam
	return team, nil
}

func (r *postgresInternationalRepository) ListTeams(ctx context.Context, tournamentID int) ([]*models.TeamAtInternationalTournament, error) {
	query := `SELECT ` + intlTeamColumns + ` FROM teams_at_international_tournaments WHERE tournament_id = $1 ORDER BY team_name`
	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams at international tournament: %w", err)
	}
	defer rows.Close()

	var teams []*models.TeamAtInternationalTournament
	for rows.Next() {
		team := &models.TeamAtInternationalTournament{}
		if err := scanIntlTeam(rows, team); err != nil {
			return nil, fmt.Errorf("failed to scan team at international tournament: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (r *postgresInternationalRepository) UpdateTeamResult(ctx context.Context, teamID int, finalPlacement, totalTeams *int) error {
	query := `UPDATE teams_at_international_tournaments SET final_placement = $1, total_teams = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, finalPlacement, totalTeams, teamID)
	if err != nil {
		return fmt.Errorf("failed to update team result: %w", err)
	}
	return checkAffectedRows(result, ErrIntlTeamNotFound)
}

func (r *postgresInternationalRepository) CreateRosterEntry(ctx context.Context, entry *models.MemberAtInternationalTournament) error {
	query := `
		INSERT INTO members_at_international_tournaments (tournament_id, team_at_tournament_id, member_id, is_captain, is_spirit_captain, is_coach, jersey_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		entry.TournamentID, entry.TeamAtTournamentID, entry.MemberID,
		entry.IsCaptain, entry.IsSpiritCaptain, entry.IsCoach, entry.JerseyNumber,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return ErrIntlRosterEntryConflict
			case "23503":
				return ErrMemberNotFound
			}
		}
		return fmt.Errorf("failed to create international roster entry: %w", err)
	}
	return nil
}

func (r *postgresInternationalRepository) GetRosterEntry(ctx context.Context, id int) (*models.MemberAtInternationalTournament, error) {
	query := `
		SELECT id, tournament_id, team_at_tournament_id, member_id,
			is_captain, is_spirit_captain, is_coach, jersey_number, created_at
		FROM members_at_international_tournaments WHERE id = $1`

	entry := &models.MemberAtInternationalTournament{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&entry.ID, &entry.TournamentID, &entry.TeamAtTournamentID, &entry.MemberID,
		&entry.IsCaptain, &entry.IsSpiritCaptain, &entry.IsCoach, &entry.JerseyNumber, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntlRosterEntryNotFound
		}
		return nil, fmt.Errorf("failed to find international roster entry: %w", err)
	}
	return entry, nil
}

func (r *postgresInternationalRepository) UpdateRosterEntry(ctx context.Context, entry *models.MemberAtInternationalTournament) error {
	query := `
		UPDATE members_at_international_tournaments
		SET is_captain = $1, is_spirit_captain = $2, is_coach = $3, jersey_number = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		entry.IsCaptain, entry.IsSpiritCaptain, entry.IsCoach, entry.JerseyNumber, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update international roster entry: %w", err)
	}
	return checkAffectedRows(result, ErrIntlRosterEntryNotFound)
}

func (r *postgresInternationalRepository) DeleteRosterEntry(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM members_at_international_tournaments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete international roster entry: %w", err)
	}
	return checkAffectedRows(result, ErrIntlRosterEntryNotFound)
}

func (r *postgresInternationalRepository) ListRoster(ctx context.Context, teamAtTournamentID int) ([]*models.MemberAtInternationalTournament, error) {
	query := `
		SELECT
			mt.id, mt.tournament_id, mt.team_at_tournament_id, mt.member_id,
			mt.is_captain, mt.is_spirit_captain, mt.is_coach, mt.jersey_number, mt.created_at,
			m.id, m.club_id, m.first_name, m.last_name, m.birth_date, m.sex, m.citizenship, m.email_confirmed_at
		FROM members_at_international_tournaments mt
		JOIN members m ON m.id = mt.member_id
		WHERE mt.team_at_tournament_id = $1
		ORDER BY m.last_name, m.first_name`

	rows, err := r.db.QueryContext(ctx, query, teamAtTournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list international roster: %w", err)
	}
	defer rows.Close()

	var entries []*models.MemberAtInternationalTournament
	for rows.Next() {
		entry := &models.MemberAtInternationalTournament{}
		member := &models.Member{}
		err := rows.Scan(
			&entry.ID, &entry.TournamentID, &entry.TeamAtTournamentID, &entry.MemberID,
			&entry.IsCaptain, &entry.IsSpiritCaptain, &entry.IsCoach, &entry.JerseyNumber, &entry.CreatedAt,
			&member.ID, &member.ClubID, &member.FirstName, &member.LastName,
			&member.BirthDate, &member.Sex, &member.Citizenship, &member.EmailConfirmedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan international roster entry: %w", err)
		}
		entry.Member = member
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *postgresInternationalRepository) FindRosterEntryByTournamentAndMember(ctx context.Context, tournamentID, memberID int) (*models.MemberAtInternationalTournament, string, error) {
	query := `
		SELECT mt.id, mt.tournament_id, mt.team_at_tournament_id, mt.member_id,
			mt.is_captain, mt.is_spirit_captain, mt.is_coach, mt.jersey_number, mt.created_at,
			tt.team_name
		FROM members_at_international_tournaments mt
		JOIN teams_at_international_tournaments tt ON tt.id = mt.team_at_tournament_id
		WHERE mt.tournament_id = $1 AND mt.member_id = $2`

	entry := &models.MemberAtInternationalTournament{}
	var teamName string
	err := r.db.QueryRowContext(ctx, query, tournamentID, memberID).Scan(
		&entry.ID, &entry.TournamentID, &entry.TeamAtTournamentID, &entry.MemberID,
		&entry.IsCaptain, &entry.IsSpiritCaptain, &entry.IsCoach, &entry.JerseyNumber, &entry.CreatedAt,
		&teamName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrIntlRosterEntryNotFound
		}
		return nil, "", fmt.Errorf("failed to find international roster entry: %w", err)
	}
	return entry, teamName, nil
}

func (r *postgresInternationalRepository) CaptainExists(ctx context.Context, teamAtTournamentID int) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM members_at_international_tournaments WHERE team_at_tournament_id = $1 AND is_captain)`,
		teamAtTournamentID)
}

func (r *postgresInternationalRepository) SpiritCaptainExists(ctx context.Context, teamAtTournamentID int) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM members_at_international_tournaments WHERE team_at_tournament_id = $1 AND is_spirit_captain)`,
		teamAtTournamentID)
}

func (r *postgresInternationalRepository) JerseyNumberTaken(ctx context.Context, teamAtTournamentID, jerseyNumber int) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM members_at_international_tournaments WHERE team_at_tournament_id = $1 AND jersey_number = $2)`,
		teamAtTournamentID, jerseyNumber)
}

func (r *postgresInternationalRepository) ListSeasonParticipations(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.SeasonParticipation, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT
			mt.member_id, m.club_id, t.id, t.name, t.fee_type, t.date_from, t.date_to,
			m.first_name, m.last_name, m.birth_date, m.email
		FROM members_at_international_tournaments mt
		JOIN members m ON m.id = mt.member_id
		JOIN international_tournaments t ON t.id = mt.tournament_id
		WHERE t.season_id = $1
		ORDER BY m.club_id, mt.member_id, t.date_from`

	rows, err := exec.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list international season participations: %w", err)
	}
	defer rows.Close()

	var participations []*models.SeasonParticipation
	for rows.Next() {
		p := &models.SeasonParticipation{}
		member := &models.Member{}
		err := rows.Scan(
			&p.MemberID, &p.ClubID, &p.TournamentID, &p.TournamentName,
			&p.FeeType, &p.TournamentStart, &p.TournamentEnd,
			&member.FirstName, &member.LastName, &member.BirthDate, &member.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan international season participation: %w", err)
		}
		member.ID = p.MemberID
		member.ClubID = p.ClubID
		p.Member = member
		participations = append(participations, p)
	}
	return participations, rows.Err()
}

func (r *postgresInternationalRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to check international roster: %w", err)
	}
	return found, nil
}
