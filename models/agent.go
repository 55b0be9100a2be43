package models

import "time"

// Agent is a user account acting on behalf of one or more clubs.
type Agent struct {
	ID           int    `json:"id" db:"id"`
	FirstName    string `json:"first_name" db:"first_name"`
	LastName     string `json:"last_name" db:"last_name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	IsAdmin      bool   `json:"is_admin" db:"is_admin"`
	// HasEmailNotificationsEnabled opts the agent into email copies of
	// club notifications.
	HasEmailNotificationsEnabled bool      `json:"has_email_notifications_enabled" db:"has_email_notifications_enabled"`
	CreatedAt                    time.Time `json:"created_at" db:"created_at"`
}

func (a Agent) FullName() string {
	return a.FirstName + " " + a.LastName
}

// AgentAtClub is the agent's affiliation with a club.
type AgentAtClub struct {
	ID        int       `json:"id" db:"id"`
	AgentID   int       `json:"agent_id" db:"agent_id"`
	ClubID    int       `json:"club_id" db:"club_id"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Agent *Agent `json:"agent,omitempty" db:"-"`
}

// ClubNotification is an in-app message for one agent affiliation.
type ClubNotification struct {
	ID            int        `json:"id" db:"id"`
	AgentAtClubID int        `json:"agent_at_club_id" db:"agent_at_club_id"`
	Subject       string     `json:"subject" db:"subject"`
	Message       string     `json:"message" db:"message"`
	ReadAt        *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
