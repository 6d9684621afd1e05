package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alejandrodnm/nobet/internal/domain"
)

const (
	bookPath    = "/book"
	negRiskPath = "/neg-risk"
)

// FetchOrderBook implementa ports.BookProvider con GET /book.
func (c *Client) FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	u := c.clobBase + bookPath + "?token_id=" + url.QueryEscape(tokenID)

	var resp orderBookResponse
	if err := c.get(ctx, c.booksLimiter, u, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("clob.FetchOrderBook %s: %w", tokenID, err)
	}

	ob := mapOrderBook(tokenID, resp)
	slog.Debug("order book fetched",
		"token_id", tokenID,
		"bids", len(ob.Bids),
		"asks", len(ob.Asks),
		"best_ask", ob.BestAsk(),
	)
	return ob, nil
}

// IsNegRisk consulta si el token usa el NegRisk adapter. Determina el
// exchange contra el que se firma la orden.
func (c *Client) IsNegRisk(ctx context.Context, tokenID string) (bool, error) {
	u := c.clobBase + negRiskPath + "?token_id=" + url.QueryEscape(tokenID)

	var resp clobNegRiskResponse
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return false, fmt.Errorf("clob.IsNegRisk %s: %w", tokenID, err)
	}
	return resp.NegRisk, nil
}
