// Package trader implementa la pasada de ejecución con control de riesgo:
// límites por run, chequeos por candidato, colocación de órdenes e informe.
package trader

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/nobet/internal/domain"
	"github.com/alejandrodnm/nobet/internal/ports"
)

// RiskConfig contiene los límites que aplica el gate.
type RiskConfig struct {
	BetSize      float64
	DailyLimit   float64
	MaxPositions int
	MaxNoPrice   float64 // techo para el mejor ask del token NO
	MinAskDepth  float64 // shares en el mejor ask
	MaxSpread    float64 // mejor ask - mejor bid, solo si hay bid
}

// RiskGate aplica los chequeos de admisión en orden fijo: límite diario y tope
// de posiciones cortan el run; duplicado y liquidez descartan el candidato.
type RiskGate struct {
	cfg   RiskConfig
	store ports.StateStore
	books ports.BookProvider
}

// NewRiskGate crea un gate. books puede ser nil si solo se hace dry run.
func NewRiskGate(cfg RiskConfig, store ports.StateStore, books ports.BookProvider) *RiskGate {
	return &RiskGate{cfg: cfg, store: store, books: books}
}

// BetSize devuelve el bet configurado en unidades de colateral.
func (g *RiskGate) BetSize() decimal.Decimal {
	return decimal.NewFromFloat(g.cfg.BetSize)
}

// CheckRun aplica los límites duros. spend es el gasto comprometido hoy y open
// el número de posiciones abiertas, tal como los lleva el llamador en la pasada.
// Llegar justo al límite se permite; pasarse no.
func (g *RiskGate) CheckRun(spend decimal.Decimal, open int) error {
	limit := decimal.NewFromFloat(g.cfg.DailyLimit)
	if spend.Add(g.BetSize()).GreaterThan(limit) {
		return &domain.GateError{
			Status: domain.StatusDailyLimitExceeded,
			Hard:   true,
			Reason: fmt.Sprintf("Daily limit reached ($%s/$%s)", spend.StringFixed(2), limit.StringFixed(2)),
		}
	}
	if open >= g.cfg.MaxPositions {
		return &domain.GateError{
			Status: domain.StatusPositionCapReached,
			Hard:   true,
			Reason: fmt.Sprintf("Max positions reached (%d/%d)", open, g.cfg.MaxPositions),
		}
	}
	return nil
}

// CheckDuplicate falla en blando si ya hay posición para conditionID.
// Los errores del store se devuelven tal cual: no son una decisión del gate.
func (g *RiskGate) CheckDuplicate(ctx context.Context, conditionID string) error {
	dup, err := g.store.IsDuplicate(ctx, conditionID)
	if err != nil {
		return fmt.Errorf("trader.CheckDuplicate: %w", err)
	}
	if dup {
		return &domain.GateError{
			Status: domain.StatusDuplicateMarket,
			Reason: "Already have position in this market",
		}
	}
	return nil
}

// CheckLiquidity descarga el libro del NO y revisa su mejor ask. Cualquier
// fallo, incluido un libro no disponible, es un InsufficientLiquidity blando.
func (g *RiskGate) CheckLiquidity(ctx context.Context, tokenID string) (domain.Quote, error) {
	if g.books == nil {
		return domain.Quote{}, illiquid("order book unavailable: no book provider")
	}
	book, err := g.books.FetchOrderBook(ctx, tokenID)
	if err != nil {
		return domain.Quote{}, illiquid(fmt.Sprintf("order book unavailable: %v", err))
	}

	ask, ok := book.BestAskLevel()
	if !ok {
		return domain.Quote{}, illiquid("no asks in order book")
	}
	if ask.Price > g.cfg.MaxNoPrice {
		return domain.Quote{}, illiquid(fmt.Sprintf("best ask $%.3f above ceiling $%.3f", ask.Price, g.cfg.MaxNoPrice))
	}
	if ask.Size < g.cfg.MinAskDepth {
		return domain.Quote{}, illiquid(fmt.Sprintf("ask depth %.1f below %.1f shares", ask.Size, g.cfg.MinAskDepth))
	}

	q := domain.Quote{TokenID: tokenID, Ask: ask.Price, AskSize: ask.Size}
	if bid, ok := book.BestBidLevel(); ok {
		q.Bid = bid.Price
		q.Spread = ask.Price - bid.Price
		if q.Spread > g.cfg.MaxSpread+1e-9 {
			return domain.Quote{}, illiquid(fmt.Sprintf("spread %.3f above %.3f", q.Spread, g.cfg.MaxSpread))
		}
	}
	return q, nil
}

func illiquid(reason string) error {
	return &domain.GateError{Status: domain.StatusInsufficientLiquidity, Reason: reason}
}

// asGateError extrae un GateError de err.
func asGateError(err error) (*domain.GateError, bool) {
	var ge *domain.GateError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
