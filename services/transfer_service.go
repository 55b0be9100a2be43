package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
)

type TransferService struct {
	db        *sql.DB
	transfers repositories.TransferRepository
	members   repositories.MemberRepository
	clubs     repositories.ClubRepository
	agents    repositories.AgentRepository
	notifier  ClubNotifier
	logger    *slog.Logger
}

func NewTransferService(
	db *sql.DB,
	transfers repositories.TransferRepository,
	members repositories.MemberRepository,
	clubs repositories.ClubRepository,
	agents repositories.AgentRepository,
	notifier ClubNotifier,
	logger *slog.Logger,
) *TransferService {
	return &TransferService{
		db:        db,
		transfers: transfers,
		members:   members,
		clubs:     clubs,
		agents:    agents,
		notifier:  notifier,
		logger:    logger,
	}
}

type RequestTransferInput struct {
	MemberID     int
	TargetClubID int
	// RequestingClubID is the club the caller acts for, either the source or
	// the target side.
	RequestingClubID int
}

// Request opens a transfer for the member. The requesting club may be either
// side; the other side becomes the approving club.
func (s *TransferService) Request(ctx context.Context, caller Caller, input RequestTransferInput) (*models.Transfer, error) {
	if err := s.requireClub(ctx, caller, input.RequestingClubID); err != nil {
		return nil, err
	}

	member, err := s.members.GetByID(ctx, input.MemberID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	if member.ClubID == input.TargetClubID {
		return nil, NewValidationError("target_club_id", "Member is already in target club")
	}
	if _, err := s.clubs.GetByID(ctx, input.TargetClubID); err != nil {
		if errors.Is(err, repositories.ErrClubNotFound) {
			return nil, ErrClubNotFound
		}
		return nil, err
	}

	sourceClubID := member.ClubID
	if input.RequestingClubID != sourceClubID && input.RequestingClubID != input.TargetClubID {
		return nil, ErrForbiddenOperation
	}
	approvingClubID := input.TargetClubID
	if input.RequestingClubID == input.TargetClubID {
		approvingClubID = sourceClubID
	}

	open, err := s.transfers.ListByState(ctx, models.TransferRequested)
	if err != nil {
		return nil, err
	}
	for _, t := range open {
		if t.MemberID == member.ID {
			return nil, NewValidationError("member_id", "Member already has a requested transfer")
		}
	}

	transfer := &models.Transfer{
		MemberID:         member.ID,
		State:            models.TransferRequested,
		SourceClubID:     sourceClubID,
		TargetClubID:     input.TargetClubID,
		RequestingClubID: input.RequestingClubID,
		ApprovingClubID:  approvingClubID,
		RequestedByID:    caller.AgentID,
	}
	if err := s.transfers.Create(ctx, transfer); err != nil {
		if errors.Is(err, repositories.ErrTransferConflict) {
			return nil, NewValidationError("member_id", "Member already has a requested transfer")
		}
		return nil, err
	}

	if err := s.notifier.Notify(ctx, approvingClubID, "Transfer requested",
		fmt.Sprintf("A transfer of <b>%s</b> awaits your approval.", member.FullName())); err != nil {
		s.logger.Warn("failed to notify approving club", slog.Int("transfer_id", transfer.ID), slog.Any("error", err))
	}
	return transfer, nil
}

// Approve moves the transfer to PROCESSED and the member to the target club,
// atomically.
func (s *TransferService) Approve(ctx context.Context, caller Caller, transferID int) (*models.Transfer, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if err := s.requireClub(ctx, caller, transfer.ApprovingClubID); err != nil {
		return nil, err
	}
	if transfer.State != models.TransferRequested {
		return nil, ErrTransferNotRequested
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transfer transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	approvedBy := caller.AgentID
	if err := s.transfers.UpdateState(ctx, tx, transfer.ID, models.TransferProcessed, &approvedBy, &now); err != nil {
		if errors.Is(err, repositories.ErrTransferFinal) {
			return nil, ErrTransferNotRequested
		}
		return nil, err
	}
	if err := s.members.UpdateClub(ctx, tx, transfer.MemberID, transfer.TargetClubID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transfer transaction: %w", err)
	}

	transfer.State = models.TransferProcessed
	transfer.ApprovedByID = &approvedBy
	transfer.ApprovedAt = &now

	if err := s.notifier.Notify(ctx, transfer.RequestingClubID, "Transfer processed",
		"The requested transfer has been approved."); err != nil {
		s.logger.Warn("failed to notify requesting club", slog.Int("transfer_id", transfer.ID), slog.Any("error", err))
	}
	return transfer, nil
}

// Revoke cancels the transfer from the requesting side.
func (s *TransferService) Revoke(ctx context.Context, caller Caller, transferID int) (*models.Transfer, error) {
	return s.close(ctx, caller, transferID, models.TransferRevoked, func(t *models.Transfer) int {
		return t.RequestingClubID
	})
}

// Reject declines the transfer from the approving side.
func (s *TransferService) Reject(ctx context.Context, caller Caller, transferID int) (*models.Transfer, error) {
	return s.close(ctx, caller, transferID, models.TransferRejected, func(t *models.Transfer) int {
		return t.ApprovingClubID
	})
}

func (s *TransferService) close(ctx context.Context, caller Caller, transferID int, state models.TransferState, actingClub func(*models.Transfer) int) (*models.Transfer, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if err := s.requireClub(ctx, caller, actingClub(transfer)); err != nil {
		return nil, err
	}
	if transfer.State != models.TransferRequested {
		return nil, ErrTransferNotRequested
	}

	if err := s.transfers.UpdateState(ctx, nil, transfer.ID, state, nil, nil); err != nil {
		if errors.Is(err, repositories.ErrTransferFinal) {
			return nil, ErrTransferNotRequested
		}
		return nil, err
	}
	transfer.State = state
	return transfer, nil
}

func (s *TransferService) ListByClub(ctx context.Context, caller Caller, clubID int) ([]*models.Transfer, error) {
	if err := s.requireClub(ctx, caller, clubID); err != nil {
		return nil, err
	}
	return s.transfers.ListByClub(ctx, clubID)
}

func (s *TransferService) load(ctx context.Context, transferID int) (*models.Transfer, error) {
	transfer, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransferNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return transfer, nil
}

func (s *TransferService) requireClub(ctx context.Context, caller Caller, clubID int) error {
	if caller.IsAdmin {
		return nil
	}
	affiliated, err := s.agents.HasActiveAffiliation(ctx, caller.AgentID, clubID)
	if err != nil {
		return err
	}
	if !affiliated {
		return ErrForbiddenOperation
	}
	return nil
}
