package models

import "time"

// SeasonParticipation is one member's appearance on a tournament roster
// within a season, flattened for the fee sweep. FeeType comes from the
// competition the tournament belongs to.
type SeasonParticipation struct {
	MemberID        int       `json:"member_id" db:"member_id"`
	ClubID          int       `json:"club_id" db:"club_id"`
	TournamentID    int       `json:"tournament_id" db:"tournament_id"`
	// CompetitionID is zero for international participations.
	CompetitionID   int       `json:"competition_id,omitempty" db:"competition_id"`
	TournamentName  string    `json:"tournament_name" db:"tournament_name"`
	FeeType         FeeType   `json:"fee_type" db:"fee_type"`
	TournamentStart time.Time `json:"tournament_start" db:"tournament_start"`
	TournamentEnd   time.Time `json:"tournament_end" db:"tournament_end"`

	Member *Member `json:"member,omitempty" db:"-"`
}
