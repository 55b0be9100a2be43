package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
)

type CompetitionService struct {
	db           *sql.DB
	seasons      repositories.SeasonRepository
	competitions repositories.CompetitionRepository
	tournaments  repositories.TournamentRepository
	applications repositories.ApplicationRepository
	teams        repositories.TeamRepository
	agents       repositories.AgentRepository
	notifier     ClubNotifier
	logger       *slog.Logger
}

func NewCompetitionService(
	db *sql.DB,
	seasons repositories.SeasonRepository,
	competitions repositories.CompetitionRepository,
	tournaments repositories.TournamentRepository,
	applications repositories.ApplicationRepository,
	teams repositories.TeamRepository,
	agents repositories.AgentRepository,
	notifier ClubNotifier,
	logger *slog.Logger,
) *CompetitionService {
	return &CompetitionService{
		db:           db,
		seasons:      seasons,
		competitions: competitions,
		tournaments:  tournaments,
		applications: applications,
		teams:        teams,
		agents:       agents,
		notifier:     notifier,
		logger:       logger,
	}
}

type SeasonInput struct {
	Name             string    `json:"name"`
	RegularFee       int64     `json:"regular_fee"`
	DiscountedFee    int64     `json:"discounted_fee"`
	MinAllowedAge    int       `json:"min_allowed_age"`
	AgeReferenceDate time.Time `json:"age_reference_date"`
}

func (s *CompetitionService) CreateSeason(ctx context.Context, caller Caller, input SeasonInput) (*models.Season, error) {
	if !caller.IsAdmin {
		return nil, ErrForbiddenOperation
	}
	if input.Name == "" {
		return nil, NewValidationError("name", "This field is required")
	}
	if input.RegularFee < 0 || input.DiscountedFee < 0 {
		return nil, NewValidationError("regular_fee", "Fees must not be negative")
	}

	season := &models.Season{
		Name:             input.Name,
		RegularFee:       input.RegularFee,
		DiscountedFee:    input.DiscountedFee,
		MinAllowedAge:    input.MinAllowedAge,
		AgeReferenceDate: input.AgeReferenceDate,
	}
	if err := s.seasons.Create(ctx, season); err != nil {
		if errors.Is(err, repositories.ErrSeasonNameConflict) {
			return nil, ErrSeasonNameConflict
		}
		return nil, err
	}
	return season, nil
}

func (s *CompetitionService) GetSeason(ctx context.Context, id int) (*models.Season, error) {
	season, err := s.seasons.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}
	return season, nil
}

func (s *CompetitionService) ListSeasons(ctx context.Context) ([]*models.Season, error) {
	return s.seasons.List(ctx)
}

func (s *CompetitionService) UpdateSeason(ctx context.Context, caller Caller, id int, input SeasonInput) (*models.Season, error) {
	if !caller.IsAdmin {
		return nil, ErrForbiddenOperation
	}
	season, err := s.GetSeason(ctx, id)
	if err != nil {
		return nil, err
	}
	season.Name = input.Name
	season.RegularFee = input.RegularFee
	season.DiscountedFee = input.DiscountedFee
	season.MinAllowedAge = input.MinAllowedAge
	season.AgeReferenceDate = input.AgeReferenceDate

	if err := s.seasons.Update(ctx, season); err != nil {
		if errors.Is(err, repositories.ErrSeasonNameConflict) {
			return nil, ErrSeasonNameConflict
		}
		return nil, err
	}
	return season, nil
}

func (s *CompetitionService) ListDivisions(ctx context.Context) ([]*models.Division, error) {
	return s.competitions.ListDivisions(ctx)
}

func (s *CompetitionService) ListAgeLimits(ctx context.Context) ([]*models.AgeLimit, error) {
	return s.competitions.ListAgeLimits(ctx)
}

type CompetitionInput struct {
	Name                 string             `json:"name"`
	SeasonID             int                `json:"season_id"`
	DivisionID           int                `json:"division_id"`
	AgeLimitID           *int               `json:"age_limit_id"`
	FeeType              models.FeeType     `json:"fee_type"`
	Environment          models.Environment `json:"environment"`
	Deposit              int64              `json:"deposit"`
	RegistrationDeadline time.Time          `json:"registration_deadline"`
}

func (s *CompetitionService) CreateCompetition(ctx context.Context, caller Caller, input CompetitionInput) (*models.Competition, error) {
	if !caller.IsAdmin {
		return nil, ErrForbiddenOperation
	}
	if input.Name == "" {
		return nil, NewValidationError("name", "This field is required")
	}
	if _, err := s.GetSeason(ctx, input.SeasonID); err != nil {
		return nil, err
	}
	if _, err := s.competitions.GetDivision(ctx, input.DivisionID); err != nil {
		if errors.Is(err, repositories.ErrDivisionNotFound) {
			return nil, NewValidationError("division_id", "Division not found")
		}
		return nil, err
	}
	if input.AgeLimitID != nil {
		if _, err := s.competitions.GetAgeLimit(ctx, *input.AgeLimitID); err != nil {
			if errors.Is(err, repositories.ErrAgeLimitNotFound) {
				return nil, NewValidationError("age_limit_id", "Age limit not found")
			}
			return nil, err
		}
	}

	competition := &models.Competition{
		Name:                 input.Name,
		SeasonID:             input.SeasonID,
		DivisionID:           input.DivisionID,
		AgeLimitID:           input.AgeLimitID,
		FeeType:              input.FeeType,
		Environment:          input.Environment,
		Deposit:              input.Deposit,
		RegistrationDeadline: input.RegistrationDeadline,
	}
	if err := s.competitions.Create(ctx, competition); err != nil {
		return nil, err
	}
	return competition, nil
}

func (s *CompetitionService) GetCompetition(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.competitions.GetWithDetails(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	return competition, nil
}

func (s *CompetitionService) ListCompetitions(ctx context.Context, seasonID int) ([]*models.Competition, error) {
	return s.competitions.ListBySeason(ctx, seasonID)
}

type TournamentInput struct {
	CompetitionID   int       `json:"competition_id"`
	Name            string    `json:"name"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Location        string    `json:"location"`
	RostersDeadline time.Time `json:"rosters_deadline"`
}

func (s *CompetitionService) CreateTournament(ctx context.Context, caller Caller, input TournamentInput) (*models.Tournament, error) {
	if !caller.IsAdmin {
		return nil, ErrForbiddenOperation
	}
	if input.Name == "" {
		return nil, NewValidationError("name", "This field is required")
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, NewValidationError("end_date", "End date must not be before start date")
	}
	if _, err := s.GetCompetition(ctx, input.CompetitionID); err != nil {
		return nil, err
	}

	tournament := &models.Tournament{
		CompetitionID:   input.CompetitionID,
		Name:            input.Name,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		Location:        input.Location,
		RostersDeadline: input.RostersDeadline,
	}
	if err := s.tournaments.Create(ctx, tournament); err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *CompetitionService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *CompetitionService) ListTournamentsBySeason(ctx context.Context, seasonID int) ([]*models.Tournament, error) {
	return s.tournaments.ListBySeason(ctx, seasonID)
}

func (s *CompetitionService) ListTournamentsByCompetition(ctx context.Context, competitionID int) ([]*models.Tournament, error) {
	return s.tournaments.ListByCompetition(ctx, competitionID)
}

// RegisterTeam applies a club team to a competition. The application starts
// in AWAITING_PAYMENT and becomes playable only after the admin accepts it.
func (s *CompetitionService) RegisterTeam(ctx context.Context, caller Caller, competitionID, teamID int) (*models.CompetitionApplication, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if err := s.requireClub(ctx, caller, team.ClubID); err != nil {
		return nil, err
	}

	competition, err := s.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if time.Now().After(competition.RegistrationDeadline) {
		return nil, NewValidationError("competition", "The registration deadline has passed")
	}

	existing, err := s.applications.ListByCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	for _, application := range existing {
		if application.TeamID == teamID && application.State != models.ApplicationWithdrawn {
			return nil, NewValidationError("team", "Team is already registered for this competition")
		}
	}

	application := &models.CompetitionApplication{
		CompetitionID:  competitionID,
		TeamID:         teamID,
		TeamName:       team.Name,
		State:          models.ApplicationAwaitingPayment,
		RegisteredByID: caller.AgentID,
	}
	if err := s.applications.Create(ctx, application); err != nil {
		return nil, err
	}

	s.logger.Info("team registered for competition",
		slog.Int("competition_id", competitionID),
		slog.Int("team_id", teamID),
		slog.Int("application_id", application.ID))
	return application, nil
}

func (s *CompetitionService) ListApplications(ctx context.Context, competitionID int) ([]*models.CompetitionApplication, error) {
	return s.applications.ListByCompetition(ctx, competitionID)
}

// SetApplicationState is the admin transition. Moving into ACCEPTED creates a
// TeamAtTournament for every tournament of the competition; moving out of
// ACCEPTED removes them again, roster entries included.
func (s *CompetitionService) SetApplicationState(ctx context.Context, caller Caller, applicationID int, state models.ApplicationState) error {
	if !caller.IsAdmin {
		return ErrForbiddenOperation
	}

	application, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repositories.ErrApplicationNotFound) {
			return ErrApplicationNotFound
		}
		return err
	}
	if application.State == state {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.applications.UpdateState(ctx, tx, applicationID, state); err != nil {
		return err
	}

	switch {
	case state == models.ApplicationAccepted:
		tournaments, err := s.tournaments.ListByCompetition(ctx, application.CompetitionID)
		if err != nil {
			return err
		}
		for _, tournament := range tournaments {
			team := &models.TeamAtTournament{
				TournamentID:  tournament.ID,
				ApplicationID: applicationID,
			}
			if err := s.tournaments.CreateTeamAtTournament(ctx, tx, team); err != nil {
				return err
			}
		}
		s.logger.Info("team accepted to competition",
			slog.Int("application_id", applicationID),
			slog.Int("tournaments", len(tournaments)))

	case application.State == models.ApplicationAccepted:
		deleted, err := s.tournaments.DeleteTeamsByApplication(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		s.logger.Info("team removed from competition tournaments",
			slog.Int("application_id", applicationID),
			slog.Int("deleted", deleted))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if team, err := s.teams.GetByID(ctx, application.TeamID); err == nil {
		message := fmt.Sprintf("Application of team %s is now %s.", application.TeamName, applicationStateLabel(state))
		if err := s.notifier.Notify(ctx, team.ClubID, "Competition application update", message); err != nil {
			s.logger.Error("failed to notify club about application state",
				slog.Int("application_id", applicationID), slog.Any("error", err))
		}
	}
	return nil
}

func applicationStateLabel(state models.ApplicationState) string {
	switch state {
	case models.ApplicationAwaitingPayment:
		return "awaiting payment"
	case models.ApplicationPaid:
		return "paid"
	case models.ApplicationAccepted:
		return "accepted"
	case models.ApplicationDeclined:
		return "declined"
	case models.ApplicationWithdrawn:
		return "withdrawn"
	}
	return "updated"
}

// WithdrawApplication lets the club pull an application that has not been
// accepted yet. Accepted applications need the admin transition.
func (s *CompetitionService) WithdrawApplication(ctx context.Context, caller Caller, applicationID int) error {
	application, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repositories.ErrApplicationNotFound) {
			return ErrApplicationNotFound
		}
		return err
	}
	team, err := s.teams.GetByID(ctx, application.TeamID)
	if err != nil {
		return err
	}
	if err := s.requireClub(ctx, caller, team.ClubID); err != nil {
		return err
	}

	switch application.State {
	case models.ApplicationAwaitingPayment, models.ApplicationPaid:
	default:
		return ErrApplicationInvalidState
	}
	return s.applications.UpdateState(ctx, nil, applicationID, models.ApplicationWithdrawn)
}

func (s *CompetitionService) requireClub(ctx context.Context, caller Caller, clubID int) error {
	if caller.IsAdmin {
		return nil
	}
	ok, err := s.agents.HasActiveAffiliation(ctx, caller.AgentID, clubID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbiddenOperation
	}
	return nil
}
