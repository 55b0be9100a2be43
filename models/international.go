package models

import "time"

type InternationalTournamentType int

const (
	InternationalNationalTeam   InternationalTournamentType = 1
	InternationalEuropeanLeague InternationalTournamentType = 2
	InternationalOther          InternationalTournamentType = 3
)

// InternationalTournament is an event abroad; unlike domestic tournaments it
// carries its own fee type instead of inheriting one from a competition.
type InternationalTournament struct {
	ID          int                         `json:"id" db:"id"`
	Name        string                      `json:"name" db:"name"`
	SeasonID    int                         `json:"season_id" db:"season_id"`
	DateFrom    time.Time                   `json:"date_from" db:"date_from"`
	DateTo      time.Time                   `json:"date_to" db:"date_to"`
	City        string                      `json:"city" db:"city"`
	Country     string                      `json:"country" db:"country"`
	Type        InternationalTournamentType `json:"type" db:"type"`
	Environment Environment                 `json:"environment" db:"environment"`
	FeeType     FeeType                     `json:"fee_type" db:"fee_type"`
	CreatedAt   time.Time                   `json:"created_at" db:"created_at"`
}

func (t InternationalTournament) DurationDays() int {
	return int(t.DateTo.Sub(t.DateFrom).Hours()/24) + 1
}

type TeamAtInternationalTournament struct {
	ID             int       `json:"id" db:"id"`
	TournamentID   int       `json:"tournament_id" db:"tournament_id"`
	TeamID         int       `json:"team_id" db:"team_id"`
	DivisionID     int       `json:"division_id" db:"division_id"`
	AgeLimitID     *int      `json:"age_limit_id,omitempty" db:"age_limit_id"`
	TeamName       string    `json:"team_name" db:"team_name"`
	FinalPlacement *int      `json:"final_placement,omitempty" db:"final_placement"`
	TotalTeams     *int      `json:"total_teams,omitempty" db:"total_teams"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`

	Tournament *InternationalTournament `json:"tournament,omitempty" db:"-"`
	Team       *Team                    `json:"team,omitempty" db:"-"`
}

// MemberAtInternationalTournament mirrors the domestic roster entry. The DB
// constraint is per team roster only; cross-team duplication inside one
// tournament is rejected at validation time.
type MemberAtInternationalTournament struct {
	ID                 int       `json:"id" db:"id"`
	TournamentID       int       `json:"tournament_id" db:"tournament_id"`
	TeamAtTournamentID int       `json:"team_at_tournament_id" db:"team_at_tournament_id"`
	MemberID           int       `json:"member_id" db:"member_id"`
	IsCaptain          bool      `json:"is_captain" db:"is_captain"`
	IsSpiritCaptain    bool      `json:"is_spirit_captain" db:"is_spirit_captain"`
	IsCoach            bool      `json:"is_coach" db:"is_coach"`
	JerseyNumber       *int      `json:"jersey_number,omitempty" db:"jersey_number"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`

	Member           *Member                        `json:"member,omitempty" db:"-"`
	TeamAtTournament *TeamAtInternationalTournament `json:"team_at_tournament,omitempty" db:"-"`
}
