package models

import "time"

type Club struct {
	ID       int    `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	ShortName string `json:"short_name" db:"short_name"`
	Email    string `json:"email" db:"email"`
	Website  string `json:"website,omitempty" db:"website"`
	City     string `json:"city" db:"city"`
	// IdentificationNumber is the organization's IČO, required for the
	// national registry export.
	IdentificationNumber string `json:"identification_number" db:"identification_number"`
	// FakturoidSubjectID links the club to the invoicing service. Clubs
	// without it cannot receive invoices.
	FakturoidSubjectID *int      `json:"fakturoid_subject_id,omitempty" db:"fakturoid_subject_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}

func (c Club) DisplayName() string {
	if c.ShortName != "" {
		return c.ShortName
	}
	return c.Name
}

type Team struct {
	ID        int       `json:"id" db:"id"`
	ClubID    int       `json:"club_id" db:"club_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Club *Club `json:"club,omitempty" db:"-"`
}
