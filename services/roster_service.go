package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
)

// RosterConfig carries the feature flags and the national team club id into
// the eligibility checks. Kept explicit so tests can flip flags without
// touching the environment.
type RosterConfig struct {
	EmailVerificationRequired  bool
	MinAgeVerificationRequired bool
	NationalTeamClubID         int
}

// Caller identifies the authenticated agent performing the operation.
type Caller struct {
	AgentID int
	IsAdmin bool
}

type RosterService struct {
	rosters       repositories.RosterRepository
	tournaments   repositories.TournamentRepository
	competitions  repositories.CompetitionRepository
	seasons       repositories.SeasonRepository
	members       repositories.MemberRepository
	agents        repositories.AgentRepository
	international repositories.InternationalRepository
	notifier      ClubNotifier
	cfg           RosterConfig
	logger        *slog.Logger
}

// ClubNotifier fans a message out to a club's agents. Implemented by
// ClubService; split out so roster tests can use a stub.
type ClubNotifier interface {
	Notify(ctx context.Context, clubID int, subject, message string) error
}

func NewRosterService(
	rosters repositories.RosterRepository,
	tournaments repositories.TournamentRepository,
	competitions repositories.CompetitionRepository,
	seasons repositories.SeasonRepository,
	members repositories.MemberRepository,
	agents repositories.AgentRepository,
	international repositories.InternationalRepository,
	notifier ClubNotifier,
	cfg RosterConfig,
	logger *slog.Logger,
) *RosterService {
	return &RosterService{
		rosters:       rosters,
		tournaments:   tournaments,
		competitions:  competitions,
		seasons:       seasons,
		members:       members,
		agents:        agents,
		international: international,
		notifier:      notifier,
		cfg:           cfg,
		logger:        logger,
	}
}

type UpdateRosterEntryInput struct {
	IsCaptain       bool
	IsSpiritCaptain bool
	IsCoach         bool
	JerseyNumber    *int
}

// AddMember validates the candidate against the full check chain and creates
// the roster entry. Checks run in a fixed order; the first failure wins.
func (s *RosterService) AddMember(ctx context.Context, caller Caller, teamAtTournamentID, memberID int) (*models.MemberAtTournament, error) {
	team, err := s.tournaments.GetTeamAtTournamentWithDetails(ctx, teamAtTournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamAtTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	clubID := team.Application.Team.ClubID
	if err := s.requireClub(ctx, caller, clubID); err != nil {
		return nil, err
	}

	if time.Now().After(team.Tournament.RostersDeadline) {
		return nil, NewValidationError("member_id", "The roster deadline has passed")
	}

	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, NewValidationError("member_id", "Member not found")
		}
		return nil, err
	}

	if s.cfg.EmailVerificationRequired && member.EmailConfirmedAt == nil {
		return nil, NewValidationError("member_id", "Member email is not confirmed")
	}

	competition, err := s.competitions.GetWithDetails(ctx, team.Tournament.CompetitionID)
	if err != nil {
		return nil, err
	}

	if !competition.Division.AllowsSex(member.Sex) {
		return nil, NewValidationError("member_id", "Member sex does not match the division")
	}

	existing, teamName, err := s.rosters.FindByTournamentAndMember(ctx, team.TournamentID, member.ID)
	if err != nil && !errors.Is(err, repositories.ErrRosterEntryNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.TeamAtTournamentID == team.ID {
			return nil, NewValidationError("member_id", "Member is already in this team roster")
		}
		return nil, NewValidationError("member_id",
			"Member is already in another team at this tournament: "+teamName)
	}

	if err := s.checkAge(member, competition); err != nil {
		return nil, err
	}

	roster, err := s.rosters.ListByTeamAtTournament(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	if err := checkNationalityQuota(roster, member); err != nil {
		return nil, err
	}

	entry := &models.MemberAtTournament{
		TournamentID:       team.TournamentID,
		TeamAtTournamentID: team.ID,
		MemberID:           member.ID,
		JerseyNumber:       member.DefaultJerseyNumber,
	}
	if err := s.rosters.Create(ctx, entry); err != nil {
		if errors.Is(err, repositories.ErrRosterEntryConflict) {
			// A concurrent add got there first; the unique constraint is the
			// final arbiter.
			return nil, NewValidationError("member_id", "Member is already in this team roster")
		}
		return nil, err
	}
	entry.Member = member

	if member.ClubID != clubID && s.notifier != nil {
		message := fmt.Sprintf(
			"Your player <b>%s</b> has been registered on the <b>%s</b> roster for the %s tournament.",
			member.FullName(), team.Application.TeamName, team.Tournament.Name,
		)
		if err := s.notifier.Notify(ctx, member.ClubID, "Roster announcement", message); err != nil {
			s.logger.Warn("failed to notify member's club about roster addition",
				slog.Int("member_id", member.ID),
				slog.Int("club_id", member.ClubID),
				slog.Any("error", err))
		}
	}

	return entry, nil
}

func (s *RosterService) checkAge(member *models.Member, competition *models.Competition) error {
	referenceDate := competition.Season.AgeReferenceDate
	age := member.AgeAt(referenceDate)

	if competition.AgeLimit != nil {
		minAge, maxAge := competition.AgeLimit.Range(member.Sex)
		if s.cfg.MinAgeVerificationRequired && age < minAge {
			return NewValidationError("member_id", "Member does not meet the age limit")
		}
		if age > maxAge {
			return NewValidationError("member_id", "Member does not meet the age limit")
		}
		return nil
	}

	if s.cfg.MinAgeVerificationRequired && age < competition.Season.MinAllowedAge {
		return NewValidationError("member_id", "Member is below the season's minimum age")
	}
	return nil
}

// checkNationalityQuota enforces that after the hypothetical add at least 51%
// of the roster holds Czech citizenship. Pure integer arithmetic, no floats:
// czech*100 >= 51*(total+1).
func checkNationalityQuota(roster []*models.MemberAtTournament, candidate *models.Member) error {
	czechCount := 0
	for _, entry := range roster {
		if entry.Member != nil && entry.Member.IsCzech() {
			czechCount++
		}
	}
	if candidate.IsCzech() {
		czechCount++
	}
	total := len(roster) + 1
	if czechCount*100 < 51*total {
		return NewValidationError("member_id", "Nationality ratio: at least 51% must be Czech citizens")
	}
	return nil
}

// UpdateMember changes captaincy, spirit captaincy, coach flag and jersey
// number. Captain and spirit captain are unique per team at tournament; a
// self transition is allowed.
func (s *RosterService) UpdateMember(ctx context.Context, caller Caller, entryID int, input UpdateRosterEntryInput) (*models.MemberAtTournament, error) {
	entry, err := s.rosters.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, repositories.ErrRosterEntryNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	team, err := s.tournaments.GetTeamAtTournamentWithDetails(ctx, entry.TeamAtTournamentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireClub(ctx, caller, team.Application.Team.ClubID); err != nil {
		return nil, err
	}
	if time.Now().After(team.Tournament.RostersDeadline) {
		return nil, NewValidationError("member_id", "The roster deadline has passed")
	}

	if input.IsCaptain && !entry.IsCaptain {
		taken, err := s.rosters.CaptainExists(ctx, entry.TeamAtTournamentID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, NewValidationError("is_captain", "Team already has a captain.")
		}
	}
	if input.IsSpiritCaptain && !entry.IsSpiritCaptain {
		taken, err := s.rosters.SpiritCaptainExists(ctx, entry.TeamAtTournamentID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, NewValidationError("is_spirit_captain", "Team already has a spirit captain.")
		}
	}
	if input.JerseyNumber != nil && !equalIntPtr(input.JerseyNumber, entry.JerseyNumber) {
		taken, err := s.rosters.JerseyNumberTaken(ctx, entry.TeamAtTournamentID, *input.JerseyNumber)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, NewValidationError("jersey_number",
				fmt.Sprintf("Another player already has jersey number %d.", *input.JerseyNumber))
		}
	}

	entry.IsCaptain = input.IsCaptain
	entry.IsSpiritCaptain = input.IsSpiritCaptain
	entry.IsCoach = input.IsCoach
	entry.JerseyNumber = input.JerseyNumber

	if err := s.rosters.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RemoveMember deletes the roster entry while the deadline is still open.
func (s *RosterService) RemoveMember(ctx context.Context, caller Caller, entryID int) error {
	entry, err := s.rosters.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, repositories.ErrRosterEntryNotFound) {
			return ErrNotFound
		}
		return err
	}

	team, err := s.tournaments.GetTeamAtTournamentWithDetails(ctx, entry.TeamAtTournamentID)
	if err != nil {
		return err
	}
	if err := s.requireClub(ctx, caller, team.Application.Team.ClubID); err != nil {
		return err
	}
	if time.Now().After(team.Tournament.RostersDeadline) {
		return NewValidationError("member_id", "The roster deadline has passed")
	}

	return s.rosters.Delete(ctx, entry.ID)
}

// AddInternationalMember enters a member onto a national team roster. Only
// agents of the national team club may do this; nationality, division and age
// checks do not apply.
func (s *RosterService) AddInternationalMember(ctx context.Context, caller Caller, teamAtTournamentID, memberID int) (*models.MemberAtInternationalTournament, error) {
	if err := s.requireNationalTeamClub(ctx, caller); err != nil {
		return nil, err
	}

	team, err := s.international.GetTeamWithDetails(ctx, teamAtTournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrIntlTeamNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, NewValidationError("member_id", "Member not found")
		}
		return nil, err
	}

	existing, teamName, err := s.international.FindRosterEntryByTournamentAndMember(ctx, team.TournamentID, member.ID)
	if err != nil && !errors.Is(err, repositories.ErrIntlRosterEntryNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.TeamAtTournamentID == team.ID {
			return nil, NewValidationError("member_id", "Member is already in this team roster")
		}
		return nil, NewValidationError("member_id",
			"Member is already in another team at this tournament: "+teamName)
	}

	entry := &models.MemberAtInternationalTournament{
		TournamentID:       team.TournamentID,
		TeamAtTournamentID: team.ID,
		MemberID:           member.ID,
		JerseyNumber:       member.DefaultJerseyNumber,
	}
	if err := s.international.CreateRosterEntry(ctx, entry); err != nil {
		if errors.Is(err, repositories.ErrIntlRosterEntryConflict) {
			return nil, NewValidationError("member_id", "Member is already in this team roster")
		}
		return nil, err
	}
	entry.Member = member
	return entry, nil
}

func (s *RosterService) UpdateInternationalMember(ctx context.Context, caller Caller, entryID int, input UpdateRosterEntryInput) (*models.MemberAtInternationalTournament, error) {
	if err := s.requireNationalTeamClub(ctx, caller); err != nil {
		return nil, err
	}

	entry, err := s.international.GetRosterEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, repositories.ErrIntlRosterEntryNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if input.IsCaptain && !entry.IsCaptain {
		taken, err := s.international.CaptainExists(ctx, entry.TeamAtTournamentID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, NewValidationError("is_captain", "Team already has a captain.")
		}
	}
	if input.IsSpiritCaptain && !entry.IsSpiritCaptain {
		taken, err := s.international.SpiritCaptainExists(ctx, entry.TeamAtTournamentID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, NewValidationError("is_spirit_captain", "Team already has a spirit captain.")
		}
	}
	if input.JerseyNumber != nil && !equalIntPtr(input.JerseyNumber, entry.JerseyNumber) {
		taken, err := s.international.JerseyNumberTaken(ctx, entry.TeamAtTournamentID, *input.JerseyNumber)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, NewValidationError("jersey_number",
				fmt.Sprintf("Another player already has jersey number %d.", *input.JerseyNumber))
		}
	}

	entry.IsCaptain = input.IsCaptain
	entry.IsSpiritCaptain = input.IsSpiritCaptain
	entry.IsCoach = input.IsCoach
	entry.JerseyNumber = input.JerseyNumber

	if err := s.international.UpdateRosterEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *RosterService) RemoveInternationalMember(ctx context.Context, caller Caller, entryID int) error {
	if err := s.requireNationalTeamClub(ctx, caller); err != nil {
		return err
	}
	if err := s.international.DeleteRosterEntry(ctx, entryID); err != nil {
		if errors.Is(err, repositories.ErrIntlRosterEntryNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *RosterService) requireClub(ctx context.Context, caller Caller, clubID int) error {
	if caller.IsAdmin {
		return nil
	}
	affiliated, err := s.agents.HasActiveAffiliation(ctx, caller.AgentID, clubID)
	if err != nil {
		return err
	}
	if !affiliated {
		return ErrForbiddenOperation
	}
	return nil
}

func (s *RosterService) requireNationalTeamClub(ctx context.Context, caller Caller) error {
	if s.cfg.NationalTeamClubID == 0 {
		return ErrNationalTeamOnly
	}
	if caller.IsAdmin {
		return nil
	}
	affiliated, err := s.agents.HasActiveAffiliation(ctx, caller.AgentID, s.cfg.NationalTeamClubID)
	if err != nil {
		return err
	}
	if !affiliated {
		return ErrNationalTeamOnly
	}
	return nil
}

// ListRoster returns a team's roster at a tournament with member details.
func (s *RosterService) ListRoster(ctx context.Context, teamAtTournamentID int) ([]*models.MemberAtTournament, error) {
	return s.rosters.ListByTeamAtTournament(ctx, teamAtTournamentID)
}

func (s *RosterService) ListInternationalRoster(ctx context.Context, teamAtTournamentID int) ([]*models.MemberAtInternationalTournament, error) {
	return s.international.ListRoster(ctx, teamAtTournamentID)
}

// SearchMembers finds roster candidates. A query of three or more characters
// searches all clubs by name; a shorter or empty query lists the caller's
// active club members, narrowed to tournament eligibility when a tournament
// is given (division sex, age window, not already rostered there).
func (s *RosterService) SearchMembers(ctx context.Context, clubID int, query string, tournamentID *int, limit int) ([]*models.Member, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	queryLength := len([]rune(query))
	if queryLength >= 3 {
		return s.members.Search(ctx, query, limit)
	}
	if queryLength > 0 {
		return []*models.Member{}, nil
	}

	members, err := s.members.ListByClub(ctx, clubID, true)
	if err != nil {
		return nil, err
	}
	if tournamentID == nil {
		if len(members) > limit {
			members = members[:limit]
		}
		return members, nil
	}

	tournament, err := s.tournaments.GetByID(ctx, *tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	competition, err := s.competitions.GetWithDetails(ctx, tournament.CompetitionID)
	if err != nil {
		return nil, err
	}
	season := competition.Season
	division := competition.Division

	var eligible []*models.Member
	for _, member := range members {
		if division.IsMaleAllowed != division.IsFemaleAllowed && !division.AllowsSex(member.Sex) {
			continue
		}

		age := member.AgeAt(season.AgeReferenceDate)
		if competition.AgeLimit != nil {
			min, max := competition.AgeLimit.Range(member.Sex)
			if age < min || age > max {
				continue
			}
		} else if age < season.MinAllowedAge {
			continue
		}

		_, _, err := s.rosters.FindByTournamentAndMember(ctx, tournament.ID, member.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, repositories.ErrRosterEntryNotFound) {
			return nil, err
		}

		eligible = append(eligible, member)
		if len(eligible) == limit {
			break
		}
	}
	return eligible, nil
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
