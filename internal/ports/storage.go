package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/nobet/internal/domain"
)

// DeriveFunc deriva credenciales nuevas del venue.
type DeriveFunc func(ctx context.Context) (domain.Credentials, error)

// StateStore es el único dueño del estado durable: el ledger de gasto diario,
// la tabla de posiciones y las credenciales cacheadas. Cada mutación es atómica
// y un lector nunca ve un registro a medio escribir. Los registros ilegibles
// salen como domain.ErrStateCorruption.
type StateStore interface {
	// DailySpend devuelve el gasto registrado en el día natural de day.
	DailySpend(ctx context.Context, day time.Time) (float64, error)

	// SpendLedger devuelve una copia del ledger completo.
	SpendLedger(ctx context.Context) (domain.SpendLedger, error)

	// RecordSpend suma amount al día de at y poda los días fuera de la
	// ventana de retención en un único read-modify-write.
	RecordSpend(ctx context.Context, amount float64, at time.Time) error

	// Positions devuelve todas las posiciones indexadas por condition id.
	Positions(ctx context.Context) (map[string]domain.Position, error)

	// SavePosition inserta o reemplaza la posición de p.ConditionID.
	SavePosition(ctx context.Context, p domain.Position) error

	// IsDuplicate indica si existe una posición para conditionID.
	IsDuplicate(ctx context.Context, conditionID string) (bool, error)

	// OpenPositionCount cuenta las posiciones con resolved == false.
	OpenPositionCount(ctx context.Context) (int, error)

	// Credentials devuelve las credenciales cacheadas; ok es false si no hay.
	Credentials(ctx context.Context) (creds domain.Credentials, ok bool, err error)

	// GetOrCreateCredentials devuelve las credenciales cacheadas o llama a
	// derive y persiste el resultado. Si el proceso muere entre derive y la
	// escritura, la siguiente llamada vuelve a derivar.
	GetOrCreateCredentials(ctx context.Context, derive DeriveFunc) (domain.Credentials, error)

	Close() error
}
