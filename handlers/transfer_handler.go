package handlers

import (
	"context"
	"net/http"

	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/services"
)

type TransferHandler struct {
	transfers *services.TransferService
}

func NewTransferHandler(transfers *services.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

func (h *TransferHandler) RequestTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	var input struct {
		MemberID         int `json:"member_id"`
		TargetClubID     int `json:"target_club_id"`
		RequestingClubID int `json:"requesting_club_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	transfer, err := h.transfers.Request(r.Context(), caller, services.RequestTransferInput{
		MemberID:         input.MemberID,
		TargetClubID:     input.TargetClubID,
		RequestingClubID: input.RequestingClubID,
	})
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"transfer": transfer}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TransferHandler) ApproveTransfer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.transfers.Approve)
}

func (h *TransferHandler) RevokeTransfer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.transfers.Revoke)
}

func (h *TransferHandler) RejectTransfer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.transfers.Reject)
}

func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	transfers, err := h.transfers.ListByClub(r.Context(), caller, clubID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"transfers": transfers}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type transferTransition func(ctx context.Context, caller services.Caller, transferID int) (*models.Transfer, error)

func (h *TransferHandler) transition(w http.ResponseWriter, r *http.Request, apply transferTransition) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	transferID, err := getIDFromURL(r, "transferID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	transfer, err := apply(r.Context(), caller, transferID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"transfer": transfer}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
