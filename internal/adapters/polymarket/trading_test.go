package polymarket_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/nobet/internal/adapters/polymarket"
	"github.com/alejandrodnm/nobet/internal/domain"
)

// Clave de prueba pública (cuenta #0 de hardhat). Nunca tiene fondos reales.
const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var testCreds = domain.Credentials{
	APIKey:     "key-123",
	Secret:     "c2VjcmV0LXNlY3JldA==",
	Passphrase: "pass",
	Address:    testAddress,
}

func newTestTrader(t *testing.T, srv *httptest.Server) *polymarket.TradingClient {
	t.Helper()
	auth, err := polymarket.NewAuthClient(polymarket.NewClient(srv.URL, "", 5*time.Second), testPrivateKey, "", 0)
	require.NoError(t, err)
	return polymarket.NewTradingClient(auth)
}

// clobStub responde /neg-risk y delega /order en orderHandler.
func clobStub(orderHandler http.HandlerFunc) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/neg-risk", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"neg_risk": false}`))
	})
	mux.HandleFunc("/order", orderHandler)
	return httptest.NewServer(mux)
}

func TestNewAuthClient_InvalidKey(t *testing.T) {
	_, err := polymarket.NewAuthClient(polymarket.NewClient("", "", 0), "not-hex", "", 0)
	assert.Error(t, err)

	_, err = polymarket.NewAuthClient(polymarket.NewClient("", "", 0), testPrivateKey, "0xnope", 0)
	assert.Error(t, err)
}

func TestDeriveCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/derive-api-key", r.URL.Path)
		assert.Equal(t, testAddress, r.Header.Get("POLY_ADDRESS"))
		assert.Equal(t, "0", r.Header.Get("POLY_NONCE"))
		assert.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))
		assert.True(t, strings.HasPrefix(r.Header.Get("POLY_SIGNATURE"), "0x"))
		assert.Len(t, r.Header.Get("POLY_SIGNATURE"), 132)
		w.Write([]byte(`{"apiKey": "k", "secret": "s", "passphrase": "p"}`))
	}))
	defer srv.Close()

	trader := newTestTrader(t, srv)
	assert.Equal(t, testAddress, trader.Address())

	creds, err := trader.DeriveCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k", creds.APIKey)
	assert.Equal(t, testAddress, creds.Address)
	assert.False(t, creds.CreatedAt.IsZero())
}

func TestDeriveCredentials_Incomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"apiKey": "k"}`))
	}))
	defer srv.Close()

	_, err := newTestTrader(t, srv).DeriveCredentials(context.Background())
	assert.Error(t, err)
}

func TestSubmitLimitBuy_Accepted(t *testing.T) {
	srv := clobStub(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-123", r.Header.Get("POLY_API_KEY"))
		assert.Equal(t, "pass", r.Header.Get("POLY_PASSPHRASE"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req struct {
			Order struct {
				Maker       string `json:"maker"`
				Signer      string `json:"signer"`
				TokenID     string `json:"tokenId"`
				MakerAmount string `json:"makerAmount"`
				TakerAmount string `json:"takerAmount"`
				Side        string `json:"side"`
				Signature   string `json:"signature"`
			} `json:"order"`
			Owner     string `json:"owner"`
			OrderType string `json:"orderType"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "key-123", req.Owner)
		assert.Equal(t, "GTC", req.OrderType)
		assert.Equal(t, "BUY", req.Order.Side)
		assert.Equal(t, "2222", req.Order.TokenID)
		assert.Equal(t, testAddress, req.Order.Maker)
		assert.Equal(t, testAddress, req.Order.Signer)
		// 40 shares a 0.05 → 2 USDC (6 decimales).
		assert.Equal(t, "2000000", req.Order.MakerAmount)
		assert.Equal(t, "40000000", req.Order.TakerAmount)
		assert.True(t, strings.HasPrefix(req.Order.Signature, "0x"))

		w.Write([]byte(`{"success": true, "orderID": "0xorder", "status": "live", "takingAmount": "", "makingAmount": "2"}`))
	})
	defer srv.Close()

	placed, err := newTestTrader(t, srv).SubmitLimitBuy(context.Background(),
		domain.LimitOrder{TokenID: "2222", Price: 0.05, Shares: 40}, testCreds)
	require.NoError(t, err)
	assert.Equal(t, "0xorder", placed.OrderID)
	assert.Equal(t, "live", placed.Status)
	assert.InDelta(t, 2, placed.MakingAmount, 1e-9)
	assert.Zero(t, placed.TakingAmount)
	assert.InDelta(t, 40, placed.SignedShares, 1e-9)
	assert.InDelta(t, 2, placed.SignedCost, 1e-9)
}

func TestSubmitLimitBuy_ReportsSignedAmounts(t *testing.T) {
	srv := clobStub(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Order struct {
				MakerAmount string `json:"makerAmount"`
				TakerAmount string `json:"takerAmount"`
			} `json:"order"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// 28.5714... shares se firman como 28.57 → 1.9999 USDC.
		assert.Equal(t, "1999900", req.Order.MakerAmount)
		assert.Equal(t, "28570000", req.Order.TakerAmount)
		w.Write([]byte(`{"success": true, "orderID": "0xfrac", "status": "live"}`))
	})
	defer srv.Close()

	placed, err := newTestTrader(t, srv).SubmitLimitBuy(context.Background(),
		domain.LimitOrder{TokenID: "2222", Price: 0.07, Shares: 2 / 0.07}, testCreds)
	require.NoError(t, err)
	assert.InDelta(t, 28.57, placed.SignedShares, 1e-9)
	assert.InDelta(t, 1.9999, placed.SignedCost, 1e-9)
}

func TestSubmitLimitBuy_MissingOrderID(t *testing.T) {
	srv := clobStub(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "status": "matched"}`))
	})
	defer srv.Close()

	placed, err := newTestTrader(t, srv).SubmitLimitBuy(context.Background(),
		domain.LimitOrder{TokenID: "2222", Price: 0.05, Shares: 40}, testCreds)
	require.NoError(t, err)
	assert.Equal(t, "unknown", placed.OrderID)
}

func TestSubmitLimitBuy_PostedExactlyOnce(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"rate limited", http.StatusTooManyRequests, `slow down`},
		{"rejected", http.StatusOK, `{"success": false, "errorMsg": "not enough balance / allowance"}`},
		{"error message", http.StatusOK, `{"success": true, "errorMsg": "order crosses book"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var posts atomic.Int32
			srv := clobStub(func(w http.ResponseWriter, r *http.Request) {
				posts.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			defer srv.Close()

			_, err := newTestTrader(t, srv).SubmitLimitBuy(context.Background(),
				domain.LimitOrder{TokenID: "2222", Price: 0.05, Shares: 40}, testCreds)
			require.Error(t, err)
			assert.Equal(t, int32(1), posts.Load())
		})
	}
}

func TestSubmitLimitBuy_RejectsBadInput(t *testing.T) {
	var posts atomic.Int32
	srv := clobStub(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
	})
	defer srv.Close()
	trader := newTestTrader(t, srv)

	_, err := trader.SubmitLimitBuy(context.Background(),
		domain.LimitOrder{TokenID: "2222", Price: 1.2, Shares: 10}, testCreds)
	assert.Error(t, err)

	_, err = trader.SubmitLimitBuy(context.Background(),
		domain.LimitOrder{TokenID: "2222", Price: 0.05, Shares: 0.001}, testCreds)
	assert.Error(t, err)

	_, err = trader.SubmitLimitBuy(context.Background(),
		domain.LimitOrder{TokenID: "2222", Price: 0.05, Shares: 40}, domain.Credentials{})
	assert.Error(t, err)

	assert.Zero(t, posts.Load())
}
