package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frisbee-cz/evidence/models"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

type InvoiceRepository interface {
	// Create persists the invoice together with its lines and relations in
	// one statement batch. Runs inside the caller's transaction when exec is
	// a *sql.Tx.
	Create(ctx context.Context, exec SQLExecutor, invoice *models.Invoice) error
	GetByID(ctx context.Context, id int) (*models.Invoice, error)
	ListByClub(ctx context.Context, clubID int) ([]*models.Invoice, error)

	// ExistsByClubSeasonType reports whether the club already has an invoice
	// of the given type related to the season. The season sweep uses it as
	// its per-club idempotence check.
	ExistsByClubSeasonType(ctx context.Context, exec SQLExecutor, clubID, seasonID int, invoiceType models.InvoiceType) (bool, error)

	ListDraftOlderThan(ctx context.Context, age time.Duration) ([]*models.Invoice, error)
	ListOpenCreatedSince(ctx context.Context, since time.Time) ([]*models.Invoice, error)

	UpdateFakturoidData(ctx context.Context, exec SQLExecutor, invoice *models.Invoice) error
	UpdateState(ctx context.Context, exec SQLExecutor, invoiceID int, state models.InvoiceState) error
}

type postgresInvoiceRepository struct {
	db *sql.DB
}

func NewPostgresInvoiceRepository(db *sql.DB) InvoiceRepository {
	return &postgresInvoiceRepository{db: db}
}

const invoiceColumns = `id, club_id, state, type, amount, fakturoid_invoice_id, fakturoid_status, fakturoid_total, fakturoid_public_url, created_at`

func scanInvoice(row rowScanner, inv *models.Invoice) error {
	var fakturoidStatus, fakturoidPublicURL sql.NullString
	var fakturoidTotal sql.NullFloat64
	err := row.Scan(
		&inv.ID,
		&inv.ClubID,
		&inv.State,
		&inv.Type,
		&inv.Amount,
		&inv.FakturoidInvoiceID,
		&fakturoidStatus,
		&fakturoidTotal,
		&fakturoidPublicURL,
		&inv.CreatedAt,
	)
	if err != nil {
		return err
	}
	inv.FakturoidStatus = fakturoidStatus.String
	inv.FakturoidTotal = fakturoidTotal.Float64
	inv.FakturoidPublicURL = fakturoidPublicURL.String
	return nil
}

func (r *postgresInvoiceRepository) Create(ctx context.Context, exec SQLExecutor, invoice *models.Invoice) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO invoices (club_id, state, type, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		invoice.ClubID, invoice.State, invoice.Type, invoice.Amount,
	).Scan(&invoice.ID, &invoice.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	for _, line := range invoice.Lines {
		_, err := exec.ExecContext(ctx,
			`INSERT INTO invoice_lines (invoice_id, name, amount) VALUES ($1, $2, $3)`,
			invoice.ID, line.Name, line.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to create invoice line: %w", err)
		}
	}

	for _, relation := range invoice.Relations {
		_, err := exec.ExecContext(ctx,
			`INSERT INTO invoice_relations (invoice_id, kind, object_id) VALUES ($1, $2, $3)`,
			invoice.ID, relation.Kind, relation.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to create invoice relation: %w", err)
		}
	}
	return nil
}

func (r *postgresInvoiceRepository) GetByID(ctx context.Context, id int) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	invoice := &models.Invoice{}
	if err := scanInvoice(r.db.QueryRowContext(ctx, query, id), invoice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	if err := r.loadDetails(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *postgresInvoiceRepository) loadDetails(ctx context.Context, invoice *models.Invoice) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, amount FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to list invoice lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line models.InvoiceLine
		if err := rows.Scan(&line.Name, &line.Amount); err != nil {
			return fmt.Errorf("failed to scan invoice line: %w", err)
		}
		invoice.Lines = append(invoice.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	relationRows, err := r.db.QueryContext(ctx,
		`SELECT kind, object_id FROM invoice_relations WHERE invoice_id = $1 ORDER BY id`, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to list invoice relations: %w", err)
	}
	defer relationRows.Close()
	for relationRows.Next() {
		var relation models.InvoiceRelation
		if err := relationRows.Scan(&relation.Kind, &relation.ID); err != nil {
			return fmt.Errorf("failed to scan invoice relation: %w", err)
		}
		invoice.Relations = append(invoice.Relations, relation)
	}
	return relationRows.Err()
}

func (r *postgresInvoiceRepository) ListByClub(ctx context.Context, clubID int) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE club_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, r.db, query, clubID)
}

func (r *postgresInvoiceRepository) ExistsByClubSeasonType(ctx context.Context, exec SQLExecutor, clubID, seasonID int, invoiceType models.InvoiceType) (bool, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM invoices i
			JOIN invoice_relations ir ON ir.invoice_id = i.id
			WHERE i.club_id = $1 AND i.type = $2 AND ir.kind = $3 AND ir.object_id = $4
		)`
	var found bool
	err := exec.QueryRowContext(ctx, query, clubID, invoiceType, models.RelationSeason, seasonID).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice existence: %w", err)
	}
	return found, nil
}

func (r *postgresInvoiceRepository) ListDraftOlderThan(ctx context.Context, age time.Duration) ([]*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE state = $1 AND created_at < $2
		ORDER BY created_at`
	return r.list(ctx, r.db, query, models.InvoiceDraft, time.Now().Add(-age))
}

func (r *postgresInvoiceRepository) ListOpenCreatedSince(ctx context.Context, since time.Time) ([]*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE state = $1 AND created_at >= $2
		ORDER BY created_at`
	return r.list(ctx, r.db, query, models.InvoiceOpen, since)
}

func (r *postgresInvoiceRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Invoice, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice := &models.Invoice{}
		if err := scanInvoice(rows, invoice); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func (r *postgresInvoiceRepository) UpdateFakturoidData(ctx context.Context, exec SQLExecutor, invoice *models.Invoice) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		UPDATE invoices
		SET state = $1, fakturoid_invoice_id = $2, fakturoid_status = $3, fakturoid_total = $4, fakturoid_public_url = $5
		WHERE id = $6`

	result, err := exec.ExecContext(ctx, query,
		invoice.State,
		invoice.FakturoidInvoiceID,
		nullableString(invoice.FakturoidStatus),
		invoice.FakturoidTotal,
		nullableString(invoice.FakturoidPublicURL),
		invoice.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice fakturoid data: %w", err)
	}
	return checkAffectedRows(result, ErrInvoiceNotFound)
}

func (r *postgresInvoiceRepository) UpdateState(ctx context.Context, exec SQLExecutor, invoiceID int, state models.InvoiceState) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `UPDATE invoices SET state = $1 WHERE id = $2`, state, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to update invoice state: %w", err)
	}
	return checkAffectedRows(result, ErrInvoiceNotFound)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
