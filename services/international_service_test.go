package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frisbee-cz/evidence/models"
)

type internationalFixture struct {
	svc           *InternationalService
	international *fakeInternationalRepo
}

// newInternationalFixture wires a national program around club 30. Agent 1
// is affiliated with the national team club, agent 2 with an ordinary club.
func newInternationalFixture(nationalTeamClubID int) *internationalFixture {
	international := &fakeInternationalRepo{
		tournaments: map[int]*models.InternationalTournament{
			1: {ID: 1, Name: "EUC 2026", SeasonID: 1, Country: "IE"},
		},
		teams:  map[int]*models.TeamAtInternationalTournament{},
		nextID: 1,
	}
	teams := &fakeTeamRepo{teams: map[int]*models.Team{
		5: {ID: 5, ClubID: 30, Name: "Czech Open"},
		6: {ID: 6, ClubID: 10, Name: "Prague Devils A"},
	}}
	competitions := &fakeCompetitionRepo{divisions: map[int]*models.Division{
		1: {ID: 1, Name: "Open", IsMaleAllowed: true, IsFemaleAllowed: true},
	}}
	agents := &fakeAgentRepo{affiliations: map[int]map[int]bool{
		1: {30: true},
		2: {10: true},
	}}
	return &internationalFixture{
		svc:           NewInternationalService(international, teams, competitions, agents, nationalTeamClubID, testLogger()),
		international: international,
	}
}

func TestCreateInternationalTournament(t *testing.T) {
	f := newInternationalFixture(30)
	input := InternationalTournamentInput{
		Name:        "WUCC 2026",
		SeasonID:    1,
		DateFrom:    time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC),
		DateTo:      time.Date(2026, time.July, 18, 0, 0, 0, 0, time.UTC),
		City:        "Limerick",
		Country:     "IE",
		Type:        models.InternationalOther,
		Environment: models.EnvironmentOutdoor,
		FeeType:     models.FeeTypeRegular,
	}

	_, err := f.svc.CreateTournament(context.Background(), Caller{AgentID: 1}, input)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	tournament, err := f.svc.CreateTournament(context.Background(), Caller{AgentID: 1, IsAdmin: true}, input)
	require.NoError(t, err)
	assert.NotZero(t, tournament.ID)
	assert.Equal(t, 9, tournament.DurationDays())

	input.Name = ""
	_, err = f.svc.CreateTournament(context.Background(), Caller{IsAdmin: true}, input)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	input.Name = "WUCC 2026"
	input.DateTo = input.DateFrom.AddDate(0, 0, -1)
	_, err = f.svc.CreateTournament(context.Background(), Caller{IsAdmin: true}, input)
	require.ErrorAs(t, err, &validationErr)
}

func TestRegisterTeamNationalProgramGate(t *testing.T) {
	input := InternationalTeamInput{TournamentID: 1, TeamID: 5, DivisionID: 1}

	f := newInternationalFixture(30)

	// Agent 2's club is not the national team club.
	_, err := f.svc.RegisterTeam(context.Background(), Caller{AgentID: 2}, input)
	assert.ErrorIs(t, err, ErrNationalTeamOnly)

	// Without a configured national team club the whole program is off,
	// admins included.
	off := newInternationalFixture(0)
	_, err = off.svc.RegisterTeam(context.Background(), Caller{AgentID: 1, IsAdmin: true}, input)
	assert.ErrorIs(t, err, ErrNationalTeamOnly)
}

func TestRegisterTeam(t *testing.T) {
	f := newInternationalFixture(30)

	entry, err := f.svc.RegisterTeam(context.Background(), Caller{AgentID: 1}, InternationalTeamInput{
		TournamentID: 1,
		TeamID:       5,
		DivisionID:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Czech Open", entry.TeamName, "team name defaults to the club team's name")

	teams, err := f.svc.ListTeams(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, teams, 1)
}

func TestRegisterTeamValidation(t *testing.T) {
	f := newInternationalFixture(30)
	caller := Caller{AgentID: 1}

	// A club team outside the national program cannot be entered, even by
	// an affiliated agent.
	_, err := f.svc.RegisterTeam(context.Background(), caller, InternationalTeamInput{TournamentID: 1, TeamID: 6, DivisionID: 1})
	assert.ErrorIs(t, err, ErrNationalTeamOnly)

	_, err = f.svc.RegisterTeam(context.Background(), caller, InternationalTeamInput{TournamentID: 99, TeamID: 5, DivisionID: 1})
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	_, err = f.svc.RegisterTeam(context.Background(), caller, InternationalTeamInput{TournamentID: 1, TeamID: 5, DivisionID: 99})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	f.international.teamConflict = true
	_, err = f.svc.RegisterTeam(context.Background(), caller, InternationalTeamInput{TournamentID: 1, TeamID: 5, DivisionID: 1})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "team_id", validationErr.Field)
}

func TestRecordResult(t *testing.T) {
	f := newInternationalFixture(30)
	entry, err := f.svc.RegisterTeam(context.Background(), Caller{AgentID: 1}, InternationalTeamInput{
		TournamentID: 1,
		TeamID:       5,
		DivisionID:   1,
	})
	require.NoError(t, err)

	err = f.svc.RecordResult(context.Background(), Caller{AgentID: 1}, entry.ID, intPtr(12), intPtr(8))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr, "placement beyond the field size is rejected")

	err = f.svc.RecordResult(context.Background(), Caller{AgentID: 1}, entry.ID, intPtr(3), intPtr(24))
	require.NoError(t, err)
	require.Len(t, f.international.results, 1)
	assert.Equal(t, 3, *f.international.results[0].finalPlacement)
	assert.Equal(t, 24, *f.international.results[0].totalTeams)

	err = f.svc.RecordResult(context.Background(), Caller{AgentID: 1}, 999, intPtr(1), intPtr(2))
	assert.ErrorIs(t, err, ErrNotFound)

	err = f.svc.RecordResult(context.Background(), Caller{AgentID: 2}, entry.ID, intPtr(1), intPtr(2))
	assert.ErrorIs(t, err, ErrNationalTeamOnly)
}
