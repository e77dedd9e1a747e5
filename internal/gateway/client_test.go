package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	tokenCalls  int
	chargeCalls int
	rejectToken string
}

func (f *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token-" + string(rune('0'+f.tokenCalls)),
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/pix/qrcode", func(w http.ResponseWriter, r *http.Request) {
		f.chargeCalls++
		if auth := r.Header.Get("Authorization"); auth == "Bearer "+f.rejectToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transactionId": "gw-123",
			"status":        "PENDING",
			"qrcode":        "qr-data",
			"pix_key":       "key-data",
		})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeGateway) *Client {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:      srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		PostbackURL:  "http://localhost/webhooks/pix",
	})
}

func TestAccessTokenCached(t *testing.T) {
	f := &fakeGateway{}
	c := newTestClient(t, f)
	ctx := context.Background()

	first, err := c.AccessToken(ctx)
	require.NoError(t, err)
	second, err := c.AccessToken(ctx)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, f.tokenCalls, "token must come from the cache")
}

func TestInvalidateForcesRefresh(t *testing.T) {
	f := &fakeGateway{}
	c := newTestClient(t, f)
	ctx := context.Background()

	first, err := c.AccessToken(ctx)
	require.NoError(t, err)

	c.Invalidate()

	second, err := c.AccessToken(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Equal(t, 2, f.tokenCalls)
}

func TestGeneratePix(t *testing.T) {
	f := &fakeGateway{}
	c := newTestClient(t, f)

	charge, err := c.GeneratePix(context.Background(), PixChargeRequest{
		Amount:     decimal.NewFromInt(25),
		ExternalID: "tx-1",
		Payer:      Payer{Name: "Player", Document: "12345678900"},
	})
	require.NoError(t, err)
	require.Equal(t, "gw-123", charge.TransactionID)
	require.Equal(t, "qr-data", charge.QRCode)
}

func TestRetriesOnceOnUnauthorized(t *testing.T) {
	f := &fakeGateway{rejectToken: "token-1"}
	c := newTestClient(t, f)

	// First token gets rejected; a fresh one must be fetched and retried.
	charge, err := c.GeneratePix(context.Background(), PixChargeRequest{
		Amount:     decimal.NewFromInt(25),
		ExternalID: "tx-1",
	})
	require.NoError(t, err)
	require.Equal(t, "gw-123", charge.TransactionID)
	require.Equal(t, 2, f.tokenCalls)
	require.Equal(t, 2, f.chargeCalls)
}
