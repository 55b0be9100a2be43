package models

import (
	"time"

	"github.com/google/uuid"
)

type MemberSex int

const (
	SexFemale MemberSex = 1
	SexMale   MemberSex = 2
)

type CoachLicenceClass int

const (
	CoachLicenceFirst  CoachLicenceClass = 1
	CoachLicenceSecond CoachLicenceClass = 2
	CoachLicenceThird  CoachLicenceClass = 3
)

// Member belongs to exactly one club at a time; club membership changes only
// through a processed Transfer.
type Member struct {
	ID          int       `json:"id" db:"id"`
	ClubID      int       `json:"club_id" db:"club_id"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	BirthDate   time.Time `json:"birth_date" db:"birth_date"`
	Sex         MemberSex `json:"sex" db:"sex"`
	// Citizenship is an ISO 3166-1 alpha-2 code, "CZ" for Czech citizens.
	Citizenship string `json:"citizenship" db:"citizenship"`
	// BirthNumber (rodné číslo) is required for Czech citizens.
	BirthNumber string `json:"birth_number,omitempty" db:"birth_number"`
	Street      string `json:"street,omitempty" db:"street"`
	City        string `json:"city,omitempty" db:"city"`
	HouseNumber string `json:"house_number,omitempty" db:"house_number"`
	PostalCode  string `json:"postal_code,omitempty" db:"postal_code"`

	Email                  string     `json:"email,omitempty" db:"email"`
	LegalGuardianEmail     string     `json:"legal_guardian_email,omitempty" db:"legal_guardian_email"`
	LegalGuardianFirstName string     `json:"legal_guardian_first_name,omitempty" db:"legal_guardian_first_name"`
	LegalGuardianLastName  string     `json:"legal_guardian_last_name,omitempty" db:"legal_guardian_last_name"`
	EmailConfirmationToken *uuid.UUID `json:"-" db:"email_confirmation_token"`
	EmailConfirmedAt       *time.Time `json:"email_confirmed_at,omitempty" db:"email_confirmed_at"`

	IsActive            bool      `json:"is_active" db:"is_active"`
	DefaultJerseyNumber *int      `json:"default_jersey_number,omitempty" db:"default_jersey_number"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`

	Club *Club `json:"club,omitempty" db:"-"`
}

func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

func (m Member) IsCzech() bool {
	return m.Citizenship == "CZ"
}

// AgeAt returns the member's age in whole years at the reference date.
func (m Member) AgeAt(reference time.Time) int {
	age := reference.Year() - m.BirthDate.Year()
	if reference.Month() < m.BirthDate.Month() ||
		(reference.Month() == m.BirthDate.Month() && reference.Day() < m.BirthDate.Day()) {
		age--
	}
	return age
}

type CoachLicence struct {
	ID        int               `json:"id" db:"id"`
	MemberID  int               `json:"member_id" db:"member_id"`
	Level     CoachLicenceClass `json:"level" db:"level"`
	ValidFrom time.Time         `json:"valid_from" db:"valid_from"`
	ValidTo   time.Time         `json:"valid_to" db:"valid_to"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// IsValidOn reports whether the licence covers the given date.
func (l CoachLicence) IsValidOn(date time.Time) bool {
	return !date.Before(l.ValidFrom) && !date.After(l.ValidTo)
}
