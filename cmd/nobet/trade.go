package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/nobet/internal/adapters/lock"
	"github.com/alejandrodnm/nobet/internal/adapters/polymarket"
	"github.com/alejandrodnm/nobet/internal/application/trader"
	"github.com/alejandrodnm/nobet/internal/domain"
	"github.com/alejandrodnm/nobet/internal/ports"
)

// scan lista los candidatos del momento sin tocar el estado.
func (a *app) scan(ctx context.Context) error {
	s, err := a.scanner(a.client())
	if err != nil {
		return err
	}
	cands, err := s.Scan(ctx)
	if err != nil {
		return err
	}
	a.console.PrintCandidates(cands)
	return nil
}

// trade ejecuta una pasada completa y notifica el resumen.
func (a *app) trade(ctx context.Context) error {
	client := a.client()
	src, err := a.scanner(client)
	if err != nil {
		return err
	}

	var signer ports.OrderSigner
	if !a.dryRun {
		if err := a.cfg.RequireWallet(); err != nil {
			return err
		}
		w := a.cfg.Wallet
		auth, err := polymarket.NewAuthClient(client, w.PrivateKey, w.FunderAddress, w.SignatureType)
		if err != nil {
			return err
		}
		signer = polymarket.NewTradingClient(auth)
		slog.Info("live trading enabled", "signer", auth.Address(), "funder", auth.Funder())
	}

	release, err := a.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	t := a.cfg.Trading
	gate := trader.NewRiskGate(trader.RiskConfig{
		BetSize:      t.BetSize,
		DailyLimit:   t.DailyLimit,
		MaxPositions: t.MaxPositions,
		MaxNoPrice:   *a.cfg.Filter.MaxNoPrice,
		MinAskDepth:  *t.MinAskDepth,
		MaxSpread:    *t.MaxSpread,
	}, store, client)
	exec := trader.NewExecutor(trader.ExecutorConfig{
		BetSize:       t.BetSize,
		DryRun:        a.dryRun,
		SubmitTimeout: t.SubmitTimeout.Duration(),
	}, store, gate, signer)
	orch := trader.NewOrchestrator(trader.OrchestratorConfig{
		DailyLimit:   t.DailyLimit,
		MaxPositions: t.MaxPositions,
		OrderDelay:   t.OrderDelay.Duration(),
	}, src, store, gate, exec).WithClock(a.now)

	rep, runErr := orch.Run(ctx)

	a.console.PrintResults(rep.Results)
	a.console.Print(fmt.Sprintf("Spend today: $%.2f / $%.2f | Open: %d / %d",
		rep.Spend, rep.DailyLimit, rep.OpenPositions, rep.MaxPositions))

	// La notificación sale aunque el run se haya abortado.
	a.notifier.Send(context.WithoutCancel(ctx), trader.FormatReport(rep))
	return runErr
}

// acquireLock toma el lock de Redis si está configurado.
func (a *app) acquireLock(ctx context.Context) (func(), error) {
	var rl ports.RunLock = lock.Noop{}
	var closeFn func() error
	if a.cfg.Lock.RedisAddr != "" {
		r := lock.NewRedis(a.cfg.Lock.RedisAddr, a.cfg.Lock.RedisPassword)
		rl, closeFn = r, r.Close
	}

	release, err := rl.Acquire(ctx, a.cfg.Lock.Key, a.cfg.Lock.TTL.Duration())
	if err != nil {
		if closeFn != nil {
			closeFn()
		}
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("another trade run is in progress: %w", err)
		}
		return nil, err
	}
	return func() {
		release()
		if closeFn != nil {
			closeFn()
		}
	}, nil
}

// status muestra el estado persistido.
func (a *app) status(ctx context.Context) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := trader.Status(ctx, store, trader.StatusConfig{
		DailyLimit:   a.cfg.Trading.DailyLimit,
		MaxPositions: a.cfg.Trading.MaxPositions,
		DryRun:       a.dryRun,
	}, a.now())
	if err != nil {
		return err
	}
	a.console.PrintStatus(st)
	return nil
}
