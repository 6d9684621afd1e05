package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/alejandrodnm/nobet/internal/adapters/onchain"
	"github.com/alejandrodnm/nobet/internal/application/trader"
	"github.com/alejandrodnm/nobet/internal/ports"
)

// withLedger abre el cliente on-chain, ejecuta fn y lo cierra.
func (a *app) withLedger(fn func(l ports.Ledger) error) error {
	if err := a.cfg.RequireWallet(); err != nil {
		return err
	}
	w := a.cfg.Wallet
	l, err := onchain.NewLedger(w.RPCURL, w.PrivateKey, w.CollateralAddress)
	if err != nil {
		return err
	}
	defer l.Close()
	return fn(l)
}

// balance muestra los balances del funder, o del signer si no hay funder.
func (a *app) balance(ctx context.Context) error {
	return a.withLedger(func(l ports.Ledger) error {
		b, err := l.Balances(ctx, a.cfg.Wallet.FunderAddress)
		if err != nil {
			return err
		}
		a.console.PrintBalances(b)
		return nil
	})
}

// withdraw envía USDC.e desde la dirección del signer a dest.
func (a *app) withdraw(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: nobet withdraw <dest> [amount]")
	}
	dest := args[0]
	var amount float64
	if len(args) == 2 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		amount = v
	}

	return a.withLedger(func(l ports.Ledger) error {
		rec, err := l.Transfer(ctx, dest, amount)
		if err != nil {
			a.notifier.Send(context.WithoutCancel(ctx), trader.FormatTransferFailure(err))
			return err
		}

		var remaining float64
		if b, err := l.Balances(ctx, ""); err != nil {
			slog.Warn("could not read balance after withdrawal", "err", err)
		} else {
			remaining = b.Collateral
		}

		a.console.Print(fmt.Sprintf("Sent $%.2f USDC.e to %s\nTX: %s\nRemaining: $%.2f",
			rec.Amount, rec.Destination, rec.TxHash, remaining))
		a.notifier.Send(ctx, trader.FormatTransfer(rec, remaining))
		return nil
	})
}

// approve configura los allowances de los exchanges.
func (a *app) approve(ctx context.Context) error {
	return a.withLedger(func(l ports.Ledger) error {
		if err := l.EnsureApprovals(ctx); err != nil {
			return err
		}
		a.console.Print("Exchange approvals in place for " + l.Address())
		return nil
	})
}
