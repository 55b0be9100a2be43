package handlers

import (
	"net/http"
	"strconv"

	"github.com/frisbee-cz/evidence/services"
)

// FinanceHandler exposes fee reports, invoicing and the regulatory export.
type FinanceHandler struct {
	invoices *services.InvoiceService
	fees     *services.FeeService
	export   *services.ExportService
	auth     *services.AuthService
	// feesCheckEmail is the federation office address copied on every fee
	// check report. Empty means the caller alone receives it.
	feesCheckEmail string
}

func NewFinanceHandler(
	invoices *services.InvoiceService,
	fees *services.FeeService,
	export *services.ExportService,
	auth *services.AuthService,
	feesCheckEmail string,
) *FinanceHandler {
	return &FinanceHandler{
		invoices:       invoices,
		fees:           fees,
		export:         export,
		auth:           auth,
		feesCheckEmail: feesCheckEmail,
	}
}

func optionalClubID(r *http.Request) (*int, error) {
	raw := r.URL.Query().Get("club")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return nil, errInvalidClubParam
	}
	return &id, nil
}

// GenerateSeasonInvoices runs the season invoice sweep. Admin only, enforced
// by routing.
func (h *FinanceHandler) GenerateSeasonInvoices(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.invoices.GenerateSeasonInvoices(r.Context(), seasonID); err != nil {
		mapServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// DryRunSeasonInvoices emails a preview of the sweep without persisting
// anything.
func (h *FinanceHandler) DryRunSeasonInvoices(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	agent, err := h.auth.GetAgent(r.Context(), caller.AgentID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := h.invoices.GenerateSeasonInvoicesDryRun(r.Context(), seasonID, agent.Email); err != nil {
		mapServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// CheckSeasonFees emails the per-member fee preview CSV to the caller.
func (h *FinanceHandler) CheckSeasonFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	clubID, err := optionalClubID(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	agent, err := h.auth.GetAgent(r.Context(), caller.AgentID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	recipients := []string{agent.Email}
	if h.feesCheckEmail != "" && h.feesCheckEmail != agent.Email {
		recipients = append(recipients, h.feesCheckEmail)
	}
	if err := h.fees.SeasonFeesForCheck(r.Context(), recipients, seasonID, clubID); err != nil {
		mapServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *FinanceHandler) CompetitionOnlyFees(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.fees.CompetitionOnlyFees(r.Context(), competitionID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *FinanceHandler) CreateDepositInvoice(w http.ResponseWriter, r *http.Request) {
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	invoice, err := h.invoices.CreateDepositInvoice(r.Context(), clubID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"invoice": invoice}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *FinanceHandler) ListClubInvoices(w http.ResponseWriter, r *http.Request) {
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	invoices, err := h.invoices.ListClubInvoices(r.Context(), clubID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"invoices": invoices}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *FinanceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := getIDFromURL(r, "invoiceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	invoice, err := h.invoices.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"invoice": invoice}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerateNSAExport builds the registry CSV and mails it to the caller.
func (h *FinanceHandler) GenerateNSAExport(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	clubID, err := optionalClubID(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	agent, err := h.auth.GetAgent(r.Context(), caller.AgentID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := h.export.GenerateNSAExport(r.Context(), agent.Email, seasonID, clubID); err != nil {
		mapServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
