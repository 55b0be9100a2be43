package models

import "time"

type InvoiceState int

const (
	// InvoiceDraft means the invoice exists locally but has not been
	// registered with the invoicing service yet.
	InvoiceDraft    InvoiceState = 1
	InvoiceOpen     InvoiceState = 2
	InvoicePaid     InvoiceState = 3
	InvoiceCanceled InvoiceState = 4
)

type InvoiceType int

const (
	InvoiceCompetitionDeposit InvoiceType = 1
	InvoiceSeasonPlayerFees   InvoiceType = 2
)

// InvoiceRelationKind enumerates the entities an invoice can be linked to.
type InvoiceRelationKind string

const (
	RelationSeason      InvoiceRelationKind = "season"
	RelationCompetition InvoiceRelationKind = "competition"
	RelationApplication InvoiceRelationKind = "application"
)

// InvoiceRelation links an invoice to one domain object.
type InvoiceRelation struct {
	Kind InvoiceRelationKind `json:"kind" db:"kind"`
	ID   int                 `json:"id" db:"object_id"`
}

type InvoiceLine struct {
	Name   string `json:"name" db:"name"`
	Amount int64  `json:"amount" db:"amount"`
}

type Invoice struct {
	ID     int          `json:"id" db:"id"`
	ClubID int          `json:"club_id" db:"club_id"`
	State  InvoiceState `json:"state" db:"state"`
	Type   InvoiceType  `json:"type" db:"type"`
	Amount int64        `json:"amount" db:"amount"`

	// Mirrors of the Fakturoid record, filled in on registration and kept
	// up to date by the reconciliation job.
	FakturoidInvoiceID *int    `json:"fakturoid_invoice_id,omitempty" db:"fakturoid_invoice_id"`
	FakturoidStatus    string  `json:"fakturoid_status,omitempty" db:"fakturoid_status"`
	FakturoidTotal     float64 `json:"fakturoid_total,omitempty" db:"fakturoid_total"`
	FakturoidPublicURL string  `json:"fakturoid_public_url,omitempty" db:"fakturoid_public_url"`

	Lines     []InvoiceLine     `json:"lines,omitempty" db:"-"`
	Relations []InvoiceRelation `json:"relations,omitempty" db:"-"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`

	Club *Club `json:"club,omitempty" db:"-"`
}
