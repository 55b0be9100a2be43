package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
)

// InternationalService manages tournaments abroad and the national program
// teams sent to them. Rosters for those teams live in RosterService.
type InternationalService struct {
	international      repositories.InternationalRepository
	teams              repositories.TeamRepository
	competitions       repositories.CompetitionRepository
	agents             repositories.AgentRepository
	nationalTeamClubID int
	logger             *slog.Logger
}

func NewInternationalService(
	international repositories.InternationalRepository,
	teams repositories.TeamRepository,
	competitions repositories.CompetitionRepository,
	agents repositories.AgentRepository,
	nationalTeamClubID int,
	logger *slog.Logger,
) *InternationalService {
	return &InternationalService{
		international:      international,
		teams:              teams,
		competitions:       competitions,
		agents:             agents,
		nationalTeamClubID: nationalTeamClubID,
		logger:             logger,
	}
}

type InternationalTournamentInput struct {
	Name        string                             `json:"name"`
	SeasonID    int                                `json:"season_id"`
	DateFrom    time.Time                          `json:"date_from"`
	DateTo      time.Time                          `json:"date_to"`
	City        string                             `json:"city"`
	Country     string                             `json:"country"`
	Type        models.InternationalTournamentType `json:"type"`
	Environment models.Environment                 `json:"environment"`
	FeeType     models.FeeType                     `json:"fee_type"`
}

func (s *InternationalService) CreateTournament(ctx context.Context, caller Caller, input InternationalTournamentInput) (*models.InternationalTournament, error) {
	if !caller.IsAdmin {
		return nil, ErrForbiddenOperation
	}
	if input.Name == "" {
		return nil, NewValidationError("name", "This field is required")
	}
	if input.DateTo.Before(input.DateFrom) {
		return nil, NewValidationError("date_to", "End date must not be before start date")
	}

	tournament := &models.InternationalTournament{
		Name:        input.Name,
		SeasonID:    input.SeasonID,
		DateFrom:    input.DateFrom,
		DateTo:      input.DateTo,
		City:        input.City,
		Country:     input.Country,
		Type:        input.Type,
		Environment: input.Environment,
		FeeType:     input.FeeType,
	}
	if err := s.international.Create(ctx, tournament); err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *InternationalService) GetTournament(ctx context.Context, id int) (*models.InternationalTournament, error) {
	tournament, err := s.international.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrIntlTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *InternationalService) ListTournaments(ctx context.Context, seasonID int) ([]*models.InternationalTournament, error) {
	return s.international.ListBySeason(ctx, seasonID)
}

type InternationalTeamInput struct {
	TournamentID int    `json:"tournament_id"`
	TeamID       int    `json:"team_id"`
	DivisionID   int    `json:"division_id"`
	AgeLimitID   *int   `json:"age_limit_id"`
	TeamName     string `json:"team_name"`
}

// RegisterTeam enters a national program team into an international
// tournament. The team must belong to the national team club.
func (s *InternationalService) RegisterTeam(ctx context.Context, caller Caller, input InternationalTeamInput) (*models.TeamAtInternationalTournament, error) {
	if err := s.requireNationalTeamClub(ctx, caller); err != nil {
		return nil, err
	}

	team, err := s.teams.GetByID(ctx, input.TeamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if team.ClubID != s.nationalTeamClubID {
		return nil, ErrNationalTeamOnly
	}
	if _, err := s.GetTournament(ctx, input.TournamentID); err != nil {
		return nil, err
	}
	if _, err := s.competitions.GetDivision(ctx, input.DivisionID); err != nil {
		if errors.Is(err, repositories.ErrDivisionNotFound) {
			return nil, NewValidationError("division_id", "Division not found")
		}
		return nil, err
	}

	name := input.TeamName
	if name == "" {
		name = team.Name
	}
	entry := &models.TeamAtInternationalTournament{
		TournamentID: input.TournamentID,
		TeamID:       input.TeamID,
		DivisionID:   input.DivisionID,
		AgeLimitID:   input.AgeLimitID,
		TeamName:     name,
	}
	if err := s.international.CreateTeam(ctx, entry); err != nil {
		if errors.Is(err, repositories.ErrIntlTeamConflict) {
			return nil, NewValidationError("team_id", "Team is already registered for this tournament")
		}
		return nil, err
	}
	return entry, nil
}

func (s *InternationalService) ListTeams(ctx context.Context, tournamentID int) ([]*models.TeamAtInternationalTournament, error) {
	return s.international.ListTeams(ctx, tournamentID)
}

// RecordResult stores the final placement after the tournament.
func (s *InternationalService) RecordResult(ctx context.Context, caller Caller, teamID int, finalPlacement, totalTeams *int) error {
	if err := s.requireNationalTeamClub(ctx, caller); err != nil {
		return err
	}
	if finalPlacement != nil && totalTeams != nil && *finalPlacement > *totalTeams {
		return NewValidationError("final_placement", "Placement cannot exceed the number of teams")
	}
	if err := s.international.UpdateTeamResult(ctx, teamID, finalPlacement, totalTeams); err != nil {
		if errors.Is(err, repositories.ErrIntlTeamNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *InternationalService) requireNationalTeamClub(ctx context.Context, caller Caller) error {
	if s.nationalTeamClubID == 0 {
		return ErrNationalTeamOnly
	}
	if caller.IsAdmin {
		return nil
	}
	affiliated, err := s.agents.HasActiveAffiliation(ctx, caller.AgentID, s.nationalTeamClubID)
	if err != nil {
		return err
	}
	if !affiliated {
		return ErrNationalTeamOnly
	}
	return nil
}
