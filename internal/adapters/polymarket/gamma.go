package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/nobet/internal/domain"
)

const (
	gammaMarketsPath = "/markets"
	gammaPageSize    = 100
	defaultFeedLimit = 200
)

// ListActiveMarkets implementa ports.MarketFeed.
// Pide las páginas de gammaPageSize en paralelo y las concatena en orden de
// página. Si cualquier página falla no devuelve nada: el error envuelve
// domain.ErrFetchFailure.
func (c *Client) ListActiveMarkets(ctx context.Context, limit int, sortKey string, descending bool) ([]domain.Market, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	pages := (limit + gammaPageSize - 1) / gammaPageSize
	results := make([]gammaMarketsResponse, pages)

	g, gctx := errgroup.WithContext(ctx)
	for page := 0; page < pages; page++ {
		offset := page * gammaPageSize
		size := min(gammaPageSize, limit-offset)
		g.Go(func() error {
			var resp gammaMarketsResponse
			if err := c.get(gctx, c.gammaLimiter, c.marketsURL(size, offset, sortKey, descending), &resp); err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			results[page] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gamma.ListActiveMarkets: %w: %w", domain.ErrFetchFailure, err)
	}

	// Paginación por offset: si el feed se mueve entre páginas puede repetir mercados.
	seen := make(map[string]bool, limit)
	all := make([]gammaMarket, 0, limit)
	for _, page := range results {
		for _, gm := range page {
			key := firstNonEmpty(gm.ConditionID, gm.ConditionIDSnake, gm.ID)
			if key != "" && seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, gm)
		}
	}

	slog.Debug("gamma markets fetched", "pages", pages, "markets", len(all))
	return mapGammaMarkets(all), nil
}

func (c *Client) marketsURL(limit, offset int, sortKey string, descending bool) string {
	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if sortKey != "" {
		q.Set("order", sortKey)
		q.Set("ascending", strconv.FormatBool(!descending))
	}
	return c.gammaBase + gammaMarketsPath + "?" + q.Encode()
}
