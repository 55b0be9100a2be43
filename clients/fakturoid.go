package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Invoice statuses reported by Fakturoid.
const (
	FakturoidStatusOpen          = "open"
	FakturoidStatusSent          = "sent"
	FakturoidStatusOverdue       = "overdue"
	FakturoidStatusPaid          = "paid"
	FakturoidStatusCancelled     = "cancelled"
	FakturoidStatusUncollectible = "uncollectible"
)

var (
	ErrFakturoidUnauthorized = errors.New("fakturoid authorization failed")
	ErrFakturoidNotFound     = errors.New("fakturoid record not found")
)

type FakturoidLine struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type FakturoidInvoice struct {
	ID            int     `json:"id"`
	Status        string  `json:"status"`
	Total         float64 `json:"total,string"`
	PublicHTMLURL string  `json:"public_html_url"`
}

type FakturoidSubject struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	RegistrationNo string `json:"registration_no"`
}

// FakturoidClient is the part of the Fakturoid API the invoicing workflow
// needs.
type FakturoidClient interface {
	CreateInvoice(ctx context.Context, subjectID int, lines []FakturoidLine) (*FakturoidInvoice, error)
	GetInvoice(ctx context.Context, invoiceID int) (*FakturoidInvoice, error)
	GetSubject(ctx context.Context, subjectID int) (*FakturoidSubject, error)
}

// HTTPFakturoidClient talks to the Fakturoid v3 API using the OAuth
// client_credentials flow. The token is cached; a 401 response triggers one
// re-authentication and retry before the error propagates.
type HTTPFakturoidClient struct {
	baseURL      string
	accountSlug  string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
}

func NewHTTPFakturoidClient(baseURL, accountSlug, clientID, clientSecret string) *HTTPFakturoidClient {
	return &HTTPFakturoidClient{
		baseURL:      baseURL,
		accountSlug:  accountSlug,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPFakturoidClient) CreateInvoice(ctx context.Context, subjectID int, lines []FakturoidLine) (*FakturoidInvoice, error) {
	payload := map[string]interface{}{
		"subject_id": subjectID,
		"lines":      lines,
	}
	invoice := &FakturoidInvoice{}
	if err := c.do(ctx, http.MethodPost, "/invoices.json", payload, invoice); err != nil {
		return nil, fmt.Errorf("failed to create fakturoid invoice: %w", err)
	}
	return invoice, nil
}

func (c *HTTPFakturoidClient) GetInvoice(ctx context.Context, invoiceID int) (*FakturoidInvoice, error) {
	invoice := &FakturoidInvoice{}
	path := "/invoices/" + strconv.Itoa(invoiceID) + ".json"
	if err := c.do(ctx, http.MethodGet, path, nil, invoice); err != nil {
		return nil, fmt.Errorf("failed to get fakturoid invoice %d: %w", invoiceID, err)
	}
	return invoice, nil
}

func (c *HTTPFakturoidClient) GetSubject(ctx context.Context, subjectID int) (*FakturoidSubject, error) {
	subject := &FakturoidSubject{}
	path := "/subjects/" + strconv.Itoa(subjectID) + ".json"
	if err := c.do(ctx, http.MethodGet, path, nil, subject); err != nil {
		return nil, fmt.Errorf("failed to get fakturoid subject %d: %w", subjectID, err)
	}
	return subject, nil
}

func (c *HTTPFakturoidClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := c.token(ctx, false)
	if err != nil {
		return err
	}

	status, err := c.request(ctx, method, path, payload, token, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		// The cached token expired. Authenticate again and retry once.
		token, err = c.token(ctx, true)
		if err != nil {
			return err
		}
		status, err = c.request(ctx, method, path, payload, token, out)
		if err != nil {
			return err
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		return ErrFakturoidUnauthorized
	case status == http.StatusNotFound:
		return ErrFakturoidNotFound
	case status >= 400:
		return fmt.Errorf("fakturoid returned status %d", status)
	}
	return nil
}

func (c *HTTPFakturoidClient) request(ctx context.Context, method, path string, payload interface{}, token string, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to encode fakturoid payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	url := c.baseURL + "/accounts/" + c.accountSlug + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("failed to build fakturoid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "evidence (info@czechultimate.cz)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fakturoid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("failed to decode fakturoid response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *HTTPFakturoidClient) token(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && !force {
		return c.accessToken, nil
	}

	payload := []byte(`{"grant_type":"client_credentials"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "evidence (info@czechultimate.cz)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fakturoid token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrFakturoidUnauthorized
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	c.accessToken = tokenResponse.AccessToken
	return c.accessToken, nil
}
