package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/lib/pq"
)

var (
	ErrTransferNotFound = errors.New("transfer not found")
	ErrTransferConflict = errors.New("member already has a requested transfer")
	ErrTransferFinal    = errors.New("transfer is already in a final state")
)

type TransferRepository interface {
	Create(ctx context.Context, transfer *models.Transfer) error
	GetByID(ctx context.Context, id int) (*models.Transfer, error)
	ListByClub(ctx context.Context, clubID int) ([]*models.Transfer, error)
	ListByState(ctx context.Context, state models.TransferState) ([]*models.Transfer, error)

	// UpdateState moves the transfer out of REQUESTED. The WHERE clause only
	// matches the requested state, so a concurrent transition loses and gets
	// ErrTransferFinal.
	UpdateState(ctx context.Context, exec SQLExecutor, transferID int, state models.TransferState, approvedByID *int, approvedAt *time.Time) error
}

type postgresTransferRepository struct {
	db *sql.DB
}

func NewPostgresTransferRepository(db *sql.DB) TransferRepository {
	return &postgresTransferRepository{db: db}
}

const transferColumns = `id, member_id, state, source_club_id, target_club_id, requesting_club_id, approving_club_id, requested_by_id, approved_by_id, approved_at, created_at`

func scanTransfer(row rowScanner, t *models.Transfer) error {
	return row.Scan(
		&t.ID,
		&t.MemberID,
		&t.State,
		&t.SourceClubID,
		&t.TargetClubID,
		&t.RequestingClubID,
		&t.ApprovingClubID,
		&t.RequestedByID,
		&t.ApprovedByID,
		&t.ApprovedAt,
		&t.CreatedAt,
	)
}

func (r *postgresTransferRepository) Create(ctx context.Context, transfer *models.Transfer) error {
	query := `
		INSERT INTO transfers (member_id, state, source_club_id, target_club_id, requesting_club_id, approving_club_id, requested_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		transfer.MemberID,
		transfer.State,
		transfer.SourceClubID,
		transfer.TargetClubID,
		transfer.RequestingClubID,
		transfer.ApprovingClubID,
		transfer.RequestedByID,
	).Scan(&transfer.ID, &transfer.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return ErrTransferConflict
			case "23503":
				return ErrMemberNotFound
			}
		}
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

func (r *postgresTransferRepository) GetByID(ctx context.Context, id int) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	transfer := &models.Transfer{}
	if err := scanTransfer(r.db.QueryRowContext(ctx, query, id), transfer); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to find transfer: %w", err)
	}
	return transfer, nil
}

func (r *postgresTransferRepository) ListByClub(ctx context.Context, clubID int) ([]*models.Transfer, error) {
	query := `
		SELECT ` + prefixColumns("t", transferColumns) + `,
			m.first_name, m.last_name, m.birth_date
		FROM transfers t
		JOIN members m ON m.id = t.member_id
		WHERE t.source_club_id = $1 OR t.target_club_id = $1
		ORDER BY t.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*models.Transfer
	for rows.Next() {
		transfer := &models.Transfer{}
		member := &models.Member{}
		err := rows.Scan(
			&transfer.ID, &transfer.MemberID, &transfer.State,
			&transfer.SourceClubID, &transfer.TargetClubID,
			&transfer.RequestingClubID, &transfer.ApprovingClubID,
			&transfer.RequestedByID, &transfer.ApprovedByID, &transfer.ApprovedAt,
			&transfer.CreatedAt,
			&member.FirstName, &member.LastName, &member.BirthDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		member.ID = transfer.MemberID
		transfer.Member = member
		transfers = append(transfers, transfer)
	}
	return transfers, rows.Err()
}

func (r *postgresTransferRepository) ListByState(ctx context.Context, state models.TransferState) ([]*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE state = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, state)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers by state: %w", err)
	}
	defer rows.Close()

	var transfers []*models.Transfer
	for rows.Next() {
		transfer := &models.Transfer{}
		if err := scanTransfer(rows, transfer); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, transfer)
	}
	return transfers, rows.Err()
}

func (r *postgresTransferRepository) UpdateState(ctx context.Context, exec SQLExecutor, transferID int, state models.TransferState, approvedByID *int, approvedAt *time.Time) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		UPDATE transfers
		SET state = $1, approved_by_id = $2, approved_at = $3
		WHERE id = $4 AND state = $5`

	result, err := exec.ExecContext(ctx, query, state, approvedByID, approvedAt, transferID, models.TransferRequested)
	if err != nil {
		return fmt.Errorf("failed to update transfer state: %w", err)
	}
	return checkAffectedRows(result, ErrTransferFinal)
}
