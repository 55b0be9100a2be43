package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakturoidServer struct {
	*httptest.Server

	tokenRequests  int
	validToken     string
	invoiceCreated map[string]interface{}
}

// newFakturoidServer serves the token endpoint and a minimal invoices API.
// Each call to the token endpoint issues a fresh token; older tokens get 401.
func newFakturoidServer(t *testing.T) *fakturoidServer {
	t.Helper()
	s := &fakturoidServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		s.tokenRequests++
		s.validToken = "token-" + strconv.Itoa(s.tokenRequests)
		json.NewEncoder(w).Encode(map[string]string{"access_token": s.validToken})
	})
	mux.HandleFunc("/accounts/cul/invoices.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&s.invoiceCreated); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":              310,
			"status":          "open",
			"total":           "1200.0",
			"public_html_url": "https://app.fakturoid.cz/cul/invoices/310",
		})
	})
	mux.HandleFunc("/accounts/cul/invoices/404.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/accounts/cul/invoices/310.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 310, "status": "paid", "total": "1200.0"})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func TestCreateInvoice(t *testing.T) {
	server := newFakturoidServer(t)
	client := NewHTTPFakturoidClient(server.URL, "cul", "id", "secret")

	invoice, err := client.CreateInvoice(context.Background(), 55, []FakturoidLine{
		{Name: "Season fees 2026", Quantity: 1, UnitPrice: 1200},
	})
	require.NoError(t, err)

	assert.Equal(t, 310, invoice.ID)
	assert.Equal(t, FakturoidStatusOpen, invoice.Status)
	assert.Equal(t, 1200.0, invoice.Total)
	assert.Equal(t, "https://app.fakturoid.cz/cul/invoices/310", invoice.PublicHTMLURL)

	assert.Equal(t, float64(55), server.invoiceCreated["subject_id"])
	assert.Equal(t, 1, server.tokenRequests)
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	server := newFakturoidServer(t)
	client := NewHTTPFakturoidClient(server.URL, "cul", "id", "secret")

	_, err := client.GetInvoice(context.Background(), 310)
	require.NoError(t, err)
	_, err = client.GetInvoice(context.Background(), 310)
	require.NoError(t, err)

	assert.Equal(t, 1, server.tokenRequests)
}

func TestExpiredTokenRetriesOnce(t *testing.T) {
	server := newFakturoidServer(t)
	client := NewHTTPFakturoidClient(server.URL, "cul", "id", "secret")

	_, err := client.GetInvoice(context.Background(), 310)
	require.NoError(t, err)

	// Invalidate the cached token server-side; the next call gets a 401,
	// re-authenticates and succeeds.
	server.validToken = "rotated"
	invoice, err := client.GetInvoice(context.Background(), 310)
	require.NoError(t, err)
	assert.Equal(t, FakturoidStatusPaid, invoice.Status)
	assert.Equal(t, 2, server.tokenRequests)
}

func TestGetInvoiceNotFound(t *testing.T) {
	server := newFakturoidServer(t)
	client := NewHTTPFakturoidClient(server.URL, "cul", "id", "secret")

	_, err := client.GetInvoice(context.Background(), 404)
	assert.ErrorIs(t, err, ErrFakturoidNotFound)
}
