package handlers

import (
	"net/http"

	"github.com/frisbee-cz/evidence/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	agent, token, err := h.auth.Register(r.Context(), input)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"agent": agent, "token": token}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	agent, token, err := h.auth.Login(r.Context(), input)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"agent": agent, "token": token}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	agent, err := h.auth.GetAgent(r.Context(), caller.AgentID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	clubIDs, err := h.auth.ListClubs(r.Context(), caller)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"agent": agent, "club_ids": clubIDs}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AuthHandler) SetEmailNotifications(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	var input struct {
		Enabled bool `json:"enabled"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.auth.SetEmailNotifications(r.Context(), caller, input.Enabled); err != nil {
		mapServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) AddAffiliation(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	var input struct {
		AgentID int `json:"agent_id"`
		ClubID  int `json:"club_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	affiliation, err := h.auth.AddAffiliation(r.Context(), caller, input.AgentID, input.ClubID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"affiliation": affiliation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AuthHandler) SetAffiliationActive(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	affiliationID, err := getIDFromURL(r, "affiliationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Active bool `json:"active"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.auth.SetAffiliationActive(r.Context(), caller, affiliationID, input.Active); err != nil {
		mapServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
