package polymarket

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/nobet/internal/domain"
)

// Polymarket usa varios formatos de fecha; intentamos los más comunes.
var endDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07",
	"2006-01-02",
}

// mapGammaMarkets convierte los DTOs de Gamma a domain.Market.
func mapGammaMarkets(raw []gammaMarket) []domain.Market {
	markets := make([]domain.Market, 0, len(raw))
	for _, r := range raw {
		markets = append(markets, mapGammaMarket(r))
	}
	return markets
}

// mapGammaMarket convierte un gammaMarket DTO a domain.Market.
func mapGammaMarket(r gammaMarket) domain.Market {
	m := domain.Market{
		ID:          r.ID,
		ConditionID: firstNonEmpty(r.ConditionID, r.ConditionIDSnake),
		Question:    r.Question,
		Description: r.Description,
		Slug:        r.Slug,
		EndDate:     parseEndDate(firstNonEmpty(r.EndDate, r.EndDateISO, r.EndDateISOSnake)),
		Volume24h:   r.Volume24h.Value,
		Tokens:      mapGammaTokens(r),
		Active:      r.Active,
		Closed:      r.Closed,
	}
	switch {
	case r.Volume.Valid:
		m.Volume = r.Volume.Value
	case r.VolumeNum.Valid:
		m.Volume = r.VolumeNum.Value
	}
	return m
}

// mapGammaTokens usa el array explícito `tokens` si existe; si no, combina
// outcomes/outcomePrices/clobTokenIds por posición. Listas de distinta
// longitud no producen tokens: el filtro descarta el mercado.
func mapGammaTokens(r gammaMarket) []domain.Token {
	if len(r.Tokens) > 0 {
		tokens := make([]domain.Token, 0, len(r.Tokens))
		for _, t := range r.Tokens {
			tokens = append(tokens, domain.Token{
				TokenID: t.TokenID,
				Outcome: t.Outcome,
				Price:   t.Price.Value,
			})
		}
		return tokens
	}

	n := len(r.Outcomes)
	if n == 0 || len(r.OutcomePrices) != n || len(r.ClobTokenIDs) != n {
		return nil
	}
	tokens := make([]domain.Token, 0, n)
	for i := 0; i < n; i++ {
		price, _ := strconv.ParseFloat(strings.TrimSpace(r.OutcomePrices[i]), 64)
		tokens = append(tokens, domain.Token{
			TokenID: r.ClobTokenIDs[i],
			Outcome: r.Outcomes[i],
			Price:   price,
		})
	}
	return tokens
}

// parseEndDate devuelve time.Time{} si s está vacío o no es parseable.
func parseEndDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range endDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// mapOrderBook convierte la respuesta de /book a domain.OrderBook.
func mapOrderBook(tokenID string, r orderBookResponse) domain.OrderBook {
	return domain.OrderBook{
		TokenID: firstNonEmpty(r.AssetID, tokenID),
		Bids:    mapBookEntries(r.Bids, false),
		Asks:    mapBookEntries(r.Asks, true),
	}
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
// El CLOB devuelve los asks de peor a mejor, así que el orden no se asume.
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Price > entries[j].Price
	})

	return entries
}
