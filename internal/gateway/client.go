package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// tokenExpiryMargin renews the cached token this long before it actually
// expires.
const tokenExpiryMargin = 5 * time.Minute

var ErrGatewayDeclined = errors.New("payment gateway declined the request")

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	PostbackURL  string
}

// Client talks to the PIX payment gateway. The OAuth access token is cached
// process-wide with a TTL and dropped on the first 401, so callers only ever
// see AccessToken as a capability and never touch the raw credential state.
type Client struct {
	cfg  Config
	http *http.Client

	mu             sync.Mutex
	accessToken    string
	tokenExpiresAt time.Time
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// AccessToken returns the cached token, fetching a fresh one when the cache
// is empty or inside the expiry margin.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiresAt.Add(-tokenExpiryMargin)) {
		return c.accessToken, nil
	}

	body, err := json.Marshal(map[string]string{"grant_type": "client_credentials"})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = token.AccessToken
	c.tokenExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// Invalidate drops the cached token. Called after an authentication failure.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.accessToken = ""
	c.tokenExpiresAt = time.Time{}
	c.mu.Unlock()
}

type Payer struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Email    string `json:"email,omitempty"`
}

type PixChargeRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	ExternalID string          `json:"external_id"`
	Payer      Payer           `json:"payer"`
}

type PixCharge struct {
	TransactionID string          `json:"transactionId"`
	ExternalID    string          `json:"external_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	QRCode        string          `json:"qrcode"`
	PixKey        string          `json:"pix_key"`
	ExpiresAt     string          `json:"expires_at"`
}

type CreditParty struct {
	Name    string `json:"name"`
	KeyType string `json:"keyType"`
	Key     string `json:"key"`
	TaxID   string `json:"taxId"`
}

type PixPayoutRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	ExternalID  string          `json:"external_id"`
	CreditParty CreditParty     `json:"creditParty"`
}

type PixPayout struct {
	TransactionID string `json:"transactionId"`
	ExternalID    string `json:"external_id"`
	Status        string `json:"status"`
}

// GeneratePix creates a cash-in charge and returns its QR code.
func (c *Client) GeneratePix(ctx context.Context, reqBody PixChargeRequest) (*PixCharge, error) {
	payload := struct {
		PixChargeRequest
		PostbackURL string `json:"postbackUrl"`
	}{reqBody, c.cfg.PostbackURL}

	var charge PixCharge
	if err := c.post(ctx, "/pix/qrcode", payload, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// Payment sends a cash-out transfer to the given PIX key.
func (c *Client) Payment(ctx context.Context, reqBody PixPayoutRequest) (*PixPayout, error) {
	var payout PixPayout
	if err := c.post(ctx, "/pix/payment", reqBody, &payout); err != nil {
		return nil, err
	}
	return &payout, nil
}

// post issues an authenticated request, retrying exactly once with a fresh
// token when the gateway answers 401.
func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.AccessToken(ctx)
		if err != nil {
			return err
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("gateway request failed: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			log.Printf("gateway token rejected, refreshing and retrying: path=%s", path)
			c.Invalidate()
			continue
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			resp.Body.Close()
			return fmt.Errorf("%w: status %d on %s", ErrGatewayDeclined, resp.StatusCode, path)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: authentication failed after token refresh", ErrGatewayDeclined)
}
