package models

import "time"

// Season groups all competitions and tournaments of one playing year.
type Season struct {
	ID               int        `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	RegularFee       int64      `json:"regular_fee" db:"regular_fee"`
	DiscountedFee    int64      `json:"discounted_fee" db:"discounted_fee"`
	MinAllowedAge    int        `json:"min_allowed_age" db:"min_allowed_age"`
	AgeReferenceDate time.Time  `json:"age_reference_date" db:"age_reference_date"`
	// InvoicesGeneratedAt is the completion latch of the season invoice
	// sweep. Set exactly once, never cleared.
	InvoicesGeneratedAt *time.Time `json:"invoices_generated_at,omitempty" db:"invoices_generated_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

type Division struct {
	ID              int       `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	IsFemaleAllowed bool      `json:"is_female_allowed" db:"is_female_allowed"`
	IsMaleAllowed   bool      `json:"is_male_allowed" db:"is_male_allowed"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// AllowsSex reports whether members of the given sex may play in the division.
func (d Division) AllowsSex(sex MemberSex) bool {
	switch sex {
	case SexFemale:
		return d.IsFemaleAllowed
	case SexMale:
		return d.IsMaleAllowed
	}
	return false
}

// AgeLimit holds sex-specific inclusive age bounds for a competition.
type AgeLimit struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	MaleMin   int       `json:"m_min" db:"m_min"`
	MaleMax   int       `json:"m_max" db:"m_max"`
	FemaleMin int       `json:"f_min" db:"f_min"`
	FemaleMax int       `json:"f_max" db:"f_max"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Range returns the inclusive min/max for the given sex.
func (a AgeLimit) Range(sex MemberSex) (min, max int) {
	if sex == SexFemale {
		return a.FemaleMin, a.FemaleMax
	}
	return a.MaleMin, a.MaleMax
}
