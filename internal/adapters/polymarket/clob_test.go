package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchOrderBook_SortsLevels(t *testing.T) {
	data, err := os.ReadFile("testdata/clob_book.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/book", r.URL.Path)
		assert.Equal(t, "2222", r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	book, err := newTestClient(srv, nil).FetchOrderBook(context.Background(), "2222")
	require.NoError(t, err)

	assert.Equal(t, "2222", book.TokenID)
	require.Len(t, book.Asks, 3, "zero-price level dropped")
	ask, ok := book.BestAskLevel()
	require.True(t, ok)
	assert.InDelta(t, 0.05, ask.Price, 1e-9)
	assert.InDelta(t, 150, ask.Size, 1e-9)
	assert.InDelta(t, 0.04, book.BestBid(), 1e-9)
	assert.InDelta(t, 0.01, book.Spread(), 1e-9)
}

func TestFetchOrderBook_EmptyBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"asset_id": "9", "bids": [], "asks": []}`))
	}))
	defer srv.Close()

	book, err := newTestClient(srv, nil).FetchOrderBook(context.Background(), "9")
	require.NoError(t, err)
	_, ok := book.BestAskLevel()
	assert.False(t, ok)
	assert.Zero(t, book.Spread())
}

func TestFetchOrderBook_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "No orderbook exists for the requested token id"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchOrderBook(context.Background(), "9")
	assert.Error(t, err)
}
