package models

import "time"

// Environment matches the competition_environment ENUM in the DB.
type Environment int

const (
	EnvironmentOutdoor Environment = 1
	EnvironmentIndoor  Environment = 2
	EnvironmentBeach   Environment = 3
)

type FeeType int

const (
	FeeTypeFree       FeeType = 1
	FeeTypeDiscounted FeeType = 2
	FeeTypeRegular    FeeType = 3
)

type ApplicationState int

const (
	ApplicationAwaitingPayment ApplicationState = 1
	ApplicationPaid            ApplicationState = 2
	ApplicationAccepted        ApplicationState = 3
	ApplicationDeclined        ApplicationState = 4
	ApplicationWithdrawn       ApplicationState = 5
)

type Competition struct {
	ID                   int         `json:"id" db:"id"`
	Name                 string      `json:"name" db:"name"`
	SeasonID             int         `json:"season_id" db:"season_id"`
	DivisionID           int         `json:"division_id" db:"division_id"`
	AgeLimitID           *int        `json:"age_limit_id,omitempty" db:"age_limit_id"`
	FeeType              FeeType     `json:"fee_type" db:"fee_type"`
	Environment          Environment `json:"environment" db:"environment"`
	Deposit              int64       `json:"deposit" db:"deposit"`
	RegistrationDeadline time.Time   `json:"registration_deadline" db:"registration_deadline"`
	CreatedAt            time.Time   `json:"created_at" db:"created_at"`

	Season   *Season   `json:"season,omitempty" db:"-"`
	Division *Division `json:"division,omitempty" db:"-"`
	AgeLimit *AgeLimit `json:"age_limit,omitempty" db:"-"`
}

// CompetitionApplication is a team's entry into a competition. TeamName is
// copied at application time for historical display.
type CompetitionApplication struct {
	ID             int              `json:"id" db:"id"`
	CompetitionID  int              `json:"competition_id" db:"competition_id"`
	TeamID         int              `json:"team_id" db:"team_id"`
	TeamName       string           `json:"team_name" db:"team_name"`
	State          ApplicationState `json:"state" db:"state"`
	InvoiceID      *int             `json:"invoice_id,omitempty" db:"invoice_id"`
	RegisteredByID int              `json:"registered_by_id" db:"registered_by_id"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`

	Competition *Competition `json:"competition,omitempty" db:"-"`
	Team        *Team        `json:"team,omitempty" db:"-"`
}
