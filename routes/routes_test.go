package routes

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frisbee-cz/evidence/handlers"
	"github.com/frisbee-cz/evidence/middleware"
	"github.com/frisbee-cz/evidence/models"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/frisbee-cz/evidence/services"
)

const routesTestSecret = "routes-test-secret"

type stubTransferRepo struct {
	repositories.TransferRepository
	transfer *models.Transfer
}

func (s *stubTransferRepo) GetByID(_ context.Context, id int) (*models.Transfer, error) {
	if s.transfer == nil || s.transfer.ID != id {
		return nil, repositories.ErrTransferNotFound
	}
	return s.transfer, nil
}

func (s *stubTransferRepo) UpdateState(_ context.Context, _ repositories.SQLExecutor, _ int, state models.TransferState, _ *int, _ *time.Time) error {
	s.transfer.State = state
	return nil
}

type stubAgentRepo struct {
	repositories.AgentRepository
	affiliations map[int]int
}

func (s *stubAgentRepo) HasActiveAffiliation(_ context.Context, agentID, clubID int) (bool, error) {
	return s.affiliations[agentID] == clubID, nil
}

func bearerToken(t *testing.T, agentID int, isAdmin bool) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"agent_id": agentID,
		"is_admin": isAdmin,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(routesTestSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

// Rejecting a transfer is an action of the approving club's agents, not a
// federation-office one; the route must let an ordinary agent through to the
// service-level affiliation check.
func TestTransferRejectRouteReachesService(t *testing.T) {
	transfers := &stubTransferRepo{transfer: &models.Transfer{
		ID:               1,
		MemberID:         7,
		State:            models.TransferRequested,
		SourceClubID:     10,
		TargetClubID:     20,
		RequestingClubID: 10,
		ApprovingClubID:  20,
	}}
	agents := &stubAgentRepo{affiliations: map[int]int{
		1: 10,
		2: 20,
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transferService := services.NewTransferService(nil, transfers, nil, nil, agents, nil, logger)

	router := chi.NewRouter()
	SetupRoutes(
		router,
		middleware.NewAuthenticator(routesTestSecret),
		&handlers.AuthHandler{},
		&handlers.ClubHandler{},
		&handlers.MemberHandler{},
		&handlers.CompetitionHandler{},
		&handlers.RosterHandler{},
		handlers.NewTransferHandler(transferService),
		&handlers.FinanceHandler{},
		&handlers.InternationalHandler{},
		&handlers.WebSocketHandler{},
	)
	server := httptest.NewServer(router)
	defer server.Close()

	reject := func(token string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, server.URL+"/transfers/1/reject", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", token)
		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	// An agent of the requesting club is turned away by the service's
	// affiliation check, not by a blanket admin gate.
	resp := reject(bearerToken(t, 1, false))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.TransferRequested, transfers.transfer.State)

	// An agent of the approving club may reject.
	resp = reject(bearerToken(t, 2, false))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.TransferRejected, transfers.transfer.State)
}
