package models

import "time"

// TransferState matches the transfer_state ENUM in the DB. REQUESTED is the
// only state that accepts transitions; the other three are terminal.
type TransferState int

const (
	TransferRequested TransferState = 1
	TransferProcessed TransferState = 2
	TransferRevoked   TransferState = 3
	TransferRejected  TransferState = 4
)

type Transfer struct {
	ID               int           `json:"id" db:"id"`
	MemberID         int           `json:"member_id" db:"member_id"`
	State            TransferState `json:"state" db:"state"`
	SourceClubID     int           `json:"source_club_id" db:"source_club_id"`
	TargetClubID     int           `json:"target_club_id" db:"target_club_id"`
	RequestingClubID int           `json:"requesting_club_id" db:"requesting_club_id"`
	ApprovingClubID  int           `json:"approving_club_id" db:"approving_club_id"`
	RequestedByID    int           `json:"requested_by_id" db:"requested_by_id"`
	ApprovedByID     *int          `json:"approved_by_id,omitempty" db:"approved_by_id"`
	ApprovedAt       *time.Time    `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`

	Member     *Member `json:"member,omitempty" db:"-"`
	SourceClub *Club   `json:"source_club,omitempty" db:"-"`
	TargetClub *Club   `json:"target_club,omitempty" db:"-"`
}
