package models

import "time"

type Tournament struct {
	ID              int       `json:"id" db:"id"`
	CompetitionID   int       `json:"competition_id" db:"competition_id"`
	Name            string    `json:"name" db:"name"`
	StartDate       time.Time `json:"start_date" db:"start_date"`
	EndDate         time.Time `json:"end_date" db:"end_date"`
	Location        string    `json:"location" db:"location"`
	RostersDeadline time.Time `json:"rosters_deadline" db:"rosters_deadline"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`

	Competition *Competition `json:"competition,omitempty" db:"-"`
}

// DurationDays returns the inclusive day span of the tournament.
func (t Tournament) DurationDays() int {
	return int(t.EndDate.Sub(t.StartDate).Hours()/24) + 1
}

// TeamAtTournament is a club team's accepted participation at one tournament.
type TeamAtTournament struct {
	ID             int       `json:"id" db:"id"`
	TournamentID   int       `json:"tournament_id" db:"tournament_id"`
	ApplicationID  int       `json:"application_id" db:"application_id"`
	FinalPlacement *int      `json:"final_placement,omitempty" db:"final_placement"`
	SpiritAvg      *float64  `json:"spirit_avg,omitempty" db:"spirit_avg"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`

	Tournament  *Tournament             `json:"tournament,omitempty" db:"-"`
	Application *CompetitionApplication `json:"application,omitempty" db:"-"`
}

// MemberAtTournament is one roster entry: a member on one team at one
// tournament. A member appears at most once per tournament and jersey
// numbers are unique per team at tournament.
type MemberAtTournament struct {
	ID                 int       `json:"id" db:"id"`
	TournamentID       int       `json:"tournament_id" db:"tournament_id"`
	TeamAtTournamentID int       `json:"team_at_tournament_id" db:"team_at_tournament_id"`
	MemberID           int       `json:"member_id" db:"member_id"`
	IsCaptain          bool      `json:"is_captain" db:"is_captain"`
	IsSpiritCaptain    bool      `json:"is_spirit_captain" db:"is_spirit_captain"`
	IsCoach            bool      `json:"is_coach" db:"is_coach"`
	JerseyNumber       *int      `json:"jersey_number,omitempty" db:"jersey_number"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`

	Member           *Member           `json:"member,omitempty" db:"-"`
	TeamAtTournament *TeamAtTournament `json:"team_at_tournament,omitempty" db:"-"`
}
