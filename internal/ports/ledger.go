package ports

import (
	"context"

	"github.com/alejandrodnm/nobet/internal/domain"
)

// Ledger habla con la cadena de liquidación. Lo usan balance, withdraw y
// approve; el núcleo de trading nunca lo toca.
type Ledger interface {
	Address() string
	Balances(ctx context.Context, address string) (domain.Balances, error)
	// Transfer envía amount de colateral a destination. amount <= 0 envía
	// todo el saldo.
	Transfer(ctx context.Context, destination string, amount float64) (domain.TxReceipt, error)
	EnsureApprovals(ctx context.Context) error
}
