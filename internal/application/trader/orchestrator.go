package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/nobet/internal/domain"
	"github.com/alejandrodnm/nobet/internal/ports"
)

// CandidateSource descarga el feed y lo filtra. Lo implementa scanner.Scanner.
type CandidateSource interface {
	Fetch(ctx context.Context) ([]domain.Market, error)
	Select(markets []domain.Market, now time.Time) []domain.Candidate
}

// OrchestratorConfig agrupa los ajustes de una pasada.
type OrchestratorConfig struct {
	DailyLimit   float64
	MaxPositions int
	OrderDelay   time.Duration // pausa entre órdenes en vivo
}

// Orchestrator ejecuta una pasada scan → filtro → gate → ejecución.
type Orchestrator struct {
	cfg    OrchestratorConfig
	source CandidateSource
	store  ports.StateStore
	gate   *RiskGate
	exec   *Executor
	now    func() time.Time
}

// NewOrchestrator conecta las piezas de una pasada.
func NewOrchestrator(cfg OrchestratorConfig, source CandidateSource, store ports.StateStore, gate *RiskGate, exec *Executor) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		source: source,
		store:  store,
		gate:   gate,
		exec:   exec,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sustituye el reloj. El día de gasto es el día natural de now()
// en su zona.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	o.exec.WithClock(now)
	return o
}

// Run ejecuta una pasada. Gasto y posiciones abiertas se leen del store una
// vez y después se llevan en memoria. Si la pasada aborta se devuelve igualmente
// el informe junto con la causa.
func (o *Orchestrator) Run(ctx context.Context) (domain.Report, error) {
	rep := domain.Report{
		RunID:        uuid.NewString(),
		State:        domain.StateIdle,
		DryRun:       o.exec.DryRun(),
		StartedAt:    o.now(),
		DailyLimit:   o.cfg.DailyLimit,
		MaxPositions: o.cfg.MaxPositions,
	}
	log := slog.With("run_id", rep.RunID)

	rep.State = domain.StateScanning
	markets, err := o.source.Fetch(ctx)
	if err != nil {
		return o.abort(log, rep, fmt.Errorf("trader.Run: %w", err))
	}
	rep.Scanned = len(markets)

	rep.State = domain.StateFiltering
	now := o.now()
	rep.Candidates = o.source.Select(markets, now)
	log.Info("scan complete", "markets", rep.Scanned, "candidates", len(rep.Candidates), "dry_run", rep.DryRun)
	if len(rep.Candidates) == 0 {
		return o.complete(log, rep), nil
	}

	spendF, err := o.store.DailySpend(ctx, now)
	if err != nil {
		return o.abort(log, rep, fmt.Errorf("trader.Run: daily spend: %w", err))
	}
	open, err := o.store.OpenPositionCount(ctx)
	if err != nil {
		return o.abort(log, rep, fmt.Errorf("trader.Run: open positions: %w", err))
	}
	spend := decimal.NewFromFloat(spendF)
	log.Debug("pass budget seeded", "spend", spend.StringFixed(2), "open", open)

	rep.State = domain.StateGatingAndExecuting
	for i, c := range rep.Candidates {
		if err := ctx.Err(); err != nil {
			rep = o.skipRest(rep, i, "run cancelled")
			return o.abort(log, rep, fmt.Errorf("trader.Run: %w", err))
		}

		if err := o.gate.CheckRun(spend, open); err != nil {
			ge, _ := asGateError(err)
			rep.Results = append(rep.Results, o.gateResult(c, ge))
			log.Info("hard stop", "status", ge.Status, "reason", ge.Reason)
			rep = o.skipRest(rep, i+1, fmt.Sprintf("Not attempted: %s", ge.Status))
			break
		}

		if err := o.gate.CheckDuplicate(ctx, c.ConditionID); err != nil {
			ge, ok := asGateError(err)
			if !ok {
				rep = o.skipRest(rep, i, "run aborted")
				rep.Spend, _ = spend.Float64()
				rep.OpenPositions = open
				return o.abort(log, rep, err)
			}
			rep.Results = append(rep.Results, o.gateResult(c, ge))
			log.Debug("duplicate market", "condition_id", c.ConditionID)
			continue
		}

		res, err := o.exec.Execute(ctx, c)
		rep.Results = append(rep.Results, res)
		if res.Status.Accepted() {
			spend = spend.Add(decimal.NewFromFloat(res.BetSize))
			open++
		}
		if err != nil {
			rep = o.skipRest(rep, i+1, "run aborted")
			rep.Spend, _ = spend.Float64()
			rep.OpenPositions = open
			return o.abort(log, rep, err)
		}

		if !rep.DryRun && o.cfg.OrderDelay > 0 && i < len(rep.Candidates)-1 {
			if !sleepCtx(ctx, o.cfg.OrderDelay) {
				rep = o.skipRest(rep, i+1, "run cancelled")
				return o.abort(log, rep, fmt.Errorf("trader.Run: %w", ctx.Err()))
			}
		}
	}

	rep.Spend, _ = spend.Float64()
	rep.OpenPositions = open
	return o.complete(log, rep), nil
}

func (o *Orchestrator) gateResult(c domain.Candidate, ge *domain.GateError) domain.TradeResult {
	return domain.TradeResult{
		ConditionID: c.ConditionID,
		Question:    c.Question,
		NoTokenID:   c.NoTokenID,
		Status:      ge.Status,
		Message:     ge.Reason,
		BetSize:     o.gate.cfg.BetSize,
		DryRun:      o.exec.DryRun(),
		Timestamp:   o.now(),
	}
}

// skipRest marca candidates[from:] como Skipped.
func (o *Orchestrator) skipRest(rep domain.Report, from int, msg string) domain.Report {
	for _, c := range rep.Candidates[from:] {
		rep.Results = append(rep.Results, domain.TradeResult{
			ConditionID: c.ConditionID,
			Question:    c.Question,
			NoTokenID:   c.NoTokenID,
			Status:      domain.StatusSkipped,
			Message:     msg,
			DryRun:      rep.DryRun,
			Timestamp:   o.now(),
		})
	}
	return rep
}

func (o *Orchestrator) complete(log *slog.Logger, rep domain.Report) domain.Report {
	rep.State = domain.StateCompleted
	rep.FinishedAt = o.now()
	log.Info("run completed",
		"placed", rep.Count(domain.StatusPlaced),
		"simulated", rep.Count(domain.StatusSimulatedFill),
		"failed", rep.Count(domain.StatusOrderFailed),
		"spend", fmt.Sprintf("$%.2f", rep.Spend),
		"open_positions", rep.OpenPositions,
	)
	return rep
}

func (o *Orchestrator) abort(log *slog.Logger, rep domain.Report, err error) (domain.Report, error) {
	rep.State = domain.StateAborted
	rep.Err = err
	rep.FinishedAt = o.now()
	log.Error("run aborted", "err", err)
	return rep, err
}

// sleepCtx espera d o hasta que ctx termine. Devuelve false si ctx terminó antes.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
