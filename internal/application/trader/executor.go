package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/nobet/internal/domain"
	"github.com/alejandrodnm/nobet/internal/ports"
)

const defaultSubmitTimeout = 20 * time.Second

// minShares es el tamaño mínimo firmable: el CLOB trabaja en centésimas de share.
var minShares = decimal.New(1, -2)

// ExecutorConfig controla cómo un candidato admitido se convierte en orden.
type ExecutorConfig struct {
	BetSize       float64
	DryRun        bool
	SubmitTimeout time.Duration
}

// Executor convierte un candidato admitido en una posición. El gasto solo se
// registra después de que el venue acepta la orden, y por el importe firmado.
type Executor struct {
	cfg    ExecutorConfig
	store  ports.StateStore
	gate   *RiskGate
	signer ports.OrderSigner
	now    func() time.Time
}

// NewExecutor crea un Executor. signer puede ser nil en dry run.
func NewExecutor(cfg ExecutorConfig, store ports.StateStore, gate *RiskGate, signer ports.OrderSigner) *Executor {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}
	return &Executor{
		cfg:    cfg,
		store:  store,
		gate:   gate,
		signer: signer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sustituye el reloj de timestamps y del día de gasto.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// DryRun indica si las órdenes se simulan.
func (e *Executor) DryRun() bool {
	return e.cfg.DryRun
}

// Execute procesa un candidato. El TradeResult siempre describe qué pasó.
// Un error no-nil significa que el run debe parar: el estado no se puede leer
// o una orden aceptada no se pudo registrar (envuelve domain.ErrReconcile).
func (e *Executor) Execute(ctx context.Context, c domain.Candidate) (domain.TradeResult, error) {
	res := domain.TradeResult{
		ConditionID: c.ConditionID,
		Question:    c.Question,
		NoTokenID:   c.NoTokenID,
		BetSize:     e.cfg.BetSize,
		DryRun:      e.cfg.DryRun,
		Timestamp:   e.now(),
	}
	if e.cfg.DryRun {
		return e.simulate(ctx, c, res)
	}
	return e.place(ctx, c, res)
}

func (e *Executor) simulate(ctx context.Context, c domain.Candidate, res domain.TradeResult) (domain.TradeResult, error) {
	pos := domain.Position{
		ConditionID: c.ConditionID,
		Question:    c.Question,
		NoTokenID:   c.NoTokenID,
		EntryPrice:  c.NoPrice,
		BetSize:     e.cfg.BetSize,
		Shares:      0,
		OrderID:     domain.DryRunOrderID,
		Timestamp:   res.Timestamp,
		DryRun:      true,
	}
	if err := e.store.SavePosition(ctx, pos); err != nil {
		res.Status = domain.StatusOrderFailed
		res.Message = fmt.Sprintf("could not record simulated position: %v", err)
		return res, fmt.Errorf("trader.Execute: save simulated position %s: %w", c.ConditionID, err)
	}

	res.Status = domain.StatusSimulatedFill
	res.OrderID = domain.DryRunOrderID
	res.Price = c.NoPrice
	res.Message = fmt.Sprintf("DRY RUN: Would buy $%.2f of NO @ ~$%.2f", e.cfg.BetSize, c.NoPrice)

	slog.Info("simulated NO bet",
		"condition_id", c.ConditionID,
		"no_price", c.NoPrice,
		"bet", fmt.Sprintf("$%.2f", e.cfg.BetSize),
	)
	return res, nil
}

func (e *Executor) place(ctx context.Context, c domain.Candidate, res domain.TradeResult) (domain.TradeResult, error) {
	if e.signer == nil {
		return failed(res, "no order signer configured"), nil
	}

	creds, err := e.store.GetOrCreateCredentials(ctx, e.signer.DeriveCredentials)
	if err != nil {
		if errors.Is(err, domain.ErrStateCorruption) {
			return failed(res, err.Error()), fmt.Errorf("trader.Execute: credentials: %w", err)
		}
		return failed(res, fmt.Sprintf("credentials: %v", err)), nil
	}
	if !creds.BoundTo(e.signer.Address()) {
		err := fmt.Errorf("%w: cached for %s, signer is %s", domain.ErrCredentialsMismatch, creds.Address, e.signer.Address())
		return failed(res, err.Error()), fmt.Errorf("trader.Execute: %w", err)
	}

	quote, err := e.gate.CheckLiquidity(ctx, c.NoTokenID)
	if err != nil {
		res.Status = domain.StatusInsufficientLiquidity
		res.Message = "Insufficient liquidity or spread too wide"
		if ge, ok := asGateError(err); ok {
			res.Message = ge.Reason
		}
		slog.Info("skipping illiquid market", "condition_id", c.ConditionID, "reason", res.Message)
		return res, nil
	}

	// Shares truncadas a centésimas, igual que las firma el CLOB.
	ask := decimal.NewFromFloat(quote.Ask)
	shares := decimal.NewFromFloat(e.cfg.BetSize).Div(ask).Truncate(2)
	if shares.LessThan(minShares) {
		return failed(res, fmt.Sprintf("bet $%.2f too small for ask $%.3f", e.cfg.BetSize, quote.Ask)), nil
	}
	order := domain.LimitOrder{
		TokenID: c.NoTokenID,
		Price:   quote.Ask,
		Shares:  shares.InexactFloat64(),
	}

	slog.Info("placing NO bet",
		"condition_id", c.ConditionID,
		"price", order.Price,
		"shares", shares.StringFixed(2),
		"bet", fmt.Sprintf("$%.2f", e.cfg.BetSize),
	)

	subCtx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
	placed, err := e.signer.SubmitLimitBuy(subCtx, order, creds)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("order submission timed out; venue outcome unknown, reconcile manually",
				"condition_id", c.ConditionID, "token_id", c.NoTokenID, "timeout", e.cfg.SubmitTimeout)
		} else {
			slog.Warn("order failed", "condition_id", c.ConditionID, "err", err)
		}
		return failed(res, fmt.Sprintf("Order failed: %v", err)), nil
	}

	// Se registra lo firmado; si el signer no lo informa, el cálculo local
	// coincide con la aritmética de la orden.
	filled, committed := order.Shares, shares.Mul(ask).InexactFloat64()
	if placed.SignedShares > 0 {
		filled = placed.SignedShares
	}
	if placed.SignedCost > 0 {
		committed = placed.SignedCost
	}

	pos := domain.Position{
		ConditionID: c.ConditionID,
		Question:    c.Question,
		NoTokenID:   c.NoTokenID,
		EntryPrice:  order.Price,
		BetSize:     committed,
		Shares:      filled,
		OrderID:     placed.OrderID,
		Timestamp:   res.Timestamp,
	}

	res.Status = domain.StatusPlaced
	res.OrderID = placed.OrderID
	res.Price = order.Price
	res.Shares = filled
	res.BetSize = committed
	res.Message = fmt.Sprintf("Placed BUY %.2f NO @ $%.3f = $%.2f", filled, order.Price, committed)

	// El venue ya tiene la orden: a partir de aquí un fallo de escritura no se
	// puede deshacer.
	if err := e.store.SavePosition(ctx, pos); err != nil {
		return e.unrecorded(res, "position", err)
	}
	if err := e.store.RecordSpend(ctx, committed, res.Timestamp); err != nil {
		return e.unrecorded(res, "spend", err)
	}

	slog.Info("order placed",
		"condition_id", c.ConditionID,
		"order_id", placed.OrderID,
		"status", placed.Status,
		"committed", fmt.Sprintf("$%.4f", committed),
	)
	return res, nil
}

func (e *Executor) unrecorded(res domain.TradeResult, what string, err error) (domain.TradeResult, error) {
	slog.Error("accepted order not recorded, reconcile manually",
		"condition_id", res.ConditionID,
		"order_id", res.OrderID,
		"record", what,
		"err", err,
	)
	res.Message += fmt.Sprintf(" (NOT RECORDED: %s: %v)", what, err)
	return res, fmt.Errorf("trader.Execute: %w: order %s for %s: %s: %w",
		domain.ErrReconcile, res.OrderID, res.ConditionID, what, err)
}

func failed(res domain.TradeResult, msg string) domain.TradeResult {
	res.Status = domain.StatusOrderFailed
	res.Message = msg
	return res
}
