package ports

import (
	"context"

	"github.com/alejandrodnm/nobet/internal/domain"
)

// BookProvider obtiene el orderbook de un token del CLOB.
type BookProvider interface {
	// FetchOrderBook devuelve el book del token con bids de mayor a menor
	// y asks de menor a mayor.
	FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}
