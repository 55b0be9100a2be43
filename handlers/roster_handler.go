package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/frisbee-cz/evidence/services"
)

var (
	errInvalidTournamentParam = errors.New("invalid tournament parameter")
	errInvalidClubParam       = errors.New("invalid club parameter")
)

type RosterHandler struct {
	rosters *services.RosterService
}

func NewRosterHandler(rosters *services.RosterService) *RosterHandler {
	return &RosterHandler{rosters: rosters}
}

type updateRosterEntryRequest struct {
	IsCaptain       bool `json:"is_captain"`
	IsSpiritCaptain bool `json:"is_spirit_captain"`
	IsCoach         bool `json:"is_coach"`
	JerseyNumber    *int `json:"jersey_number"`
}

func (req updateRosterEntryRequest) toInput() services.UpdateRosterEntryInput {
	return services.UpdateRosterEntryInput{
		IsCaptain:       req.IsCaptain,
		IsSpiritCaptain: req.IsSpiritCaptain,
		IsCoach:         req.IsCoach,
		JerseyNumber:    req.JerseyNumber,
	}
}

func (h *RosterHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	teamAtTournamentID, err := getIDFromURL(r, "teamAtTournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		MemberID int `json:"member_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entry, err := h.rosters.AddMember(r.Context(), caller, teamAtTournamentID, input.MemberID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"roster_entry": entry}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) ListRoster(w http.ResponseWriter, r *http.Request) {
	teamAtTournamentID, err := getIDFromURL(r, "teamAtTournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	roster, err := h.rosters.ListRoster(r.Context(), teamAtTournamentID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"roster": roster}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	entryID, err := getIDFromURL(r, "entryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req updateRosterEntryRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entry, err := h.rosters.UpdateMember(r.Context(), caller, entryID, req.toInput())
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"roster_entry": entry}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	entryID, err := getIDFromURL(r, "entryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.rosters.RemoveMember(r.Context(), caller, entryID); err != nil {
		mapServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchMembers backs the roster picker: ?q= for name search, ?tournament=
// narrows to members eligible at that tournament.
func (h *RosterHandler) SearchMembers(w http.ResponseWriter, r *http.Request) {
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var tournamentID *int
	if raw := r.URL.Query().Get("tournament"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			badRequestResponse(w, r, errInvalidTournamentParam)
			return
		}
		tournamentID = &id
	}

	members, err := h.rosters.SearchMembers(r.Context(), clubID, query, tournamentID, limit)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"members": members}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) AddInternationalMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	teamAtTournamentID, err := getIDFromURL(r, "teamAtTournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		MemberID int `json:"member_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entry, err := h.rosters.AddInternationalMember(r.Context(), caller, teamAtTournamentID, input.MemberID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"roster_entry": entry}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) ListInternationalRoster(w http.ResponseWriter, r *http.Request) {
	teamAtTournamentID, err := getIDFromURL(r, "teamAtTournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	roster, err := h.rosters.ListInternationalRoster(r.Context(), teamAtTournamentID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"roster": roster}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) UpdateInternationalMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	entryID, err := getIDFromURL(r, "entryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req updateRosterEntryRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entry, err := h.rosters.UpdateInternationalMember(r.Context(), caller, entryID, req.toInput())
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"roster_entry": entry}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) RemoveInternationalMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	entryID, err := getIDFromURL(r, "entryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.rosters.RemoveInternationalMember(r.Context(), caller, entryID); err != nil {
		mapServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
