package ports

import (
	"context"

	"github.com/alejandrodnm/nobet/internal/domain"
)

// MarketFeed lista los mercados activos del feed de Gamma.
type MarketFeed interface {
	// ListActiveMarkets devuelve hasta limit mercados activos y no cerrados,
	// ordenados por sortKey. Un payload no-2xx o malformado devuelve un error
	// que envuelve domain.ErrFetchFailure y ningún mercado.
	ListActiveMarkets(ctx context.Context, limit int, sortKey string, descending bool) ([]domain.Market, error)
}
