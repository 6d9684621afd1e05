package domain

import "errors"

// Errores centinela. Se comparan con errors.Is.
var (
	// ErrFetchFailure: el feed de mercados no respondió o devolvió un payload inválido.
	ErrFetchFailure = errors.New("market feed fetch failed")
	// ErrDailyLimitExceeded: el bet pasaría el gasto de hoy por encima del límite diario.
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")
	// ErrPositionCapReached: las posiciones abiertas ya están en el máximo configurado.
	ErrPositionCapReached = errors.New("position cap reached")
	// ErrDuplicateMarket: ya existe una posición para el condition id.
	ErrDuplicateMarket = errors.New("duplicate market")
	// ErrInsufficientLiquidity: el libro del NO no pasó el filtro de ask/profundidad/spread.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrOrderFailed: el venue rechazó la orden o no respondió a tiempo, o falló la firma.
	ErrOrderFailed = errors.New("order failed")
	// ErrStateCorruption: no se pudo leer un registro persistido.
	ErrStateCorruption = errors.New("state corruption")
	// ErrReconcile: el venue aceptó la orden pero no se pudo persistir su
	// registro. Requiere conciliación manual.
	ErrReconcile = errors.New("accepted order not recorded")
	// ErrLockHeld: otro proceso tiene el lock del run.
	ErrLockHeld = errors.New("run lock held by another process")
	// ErrCredentialsMismatch: las credenciales cacheadas son de otro signer.
	ErrCredentialsMismatch = errors.New("cached credentials belong to a different signer")
)

// GateError lo devuelve el risk gate. Los fallos duros paran el run entero;
// los blandos solo saltan el candidato actual.
type GateError struct {
	Status TradeStatus
	Hard   bool
	Reason string
}

func (e *GateError) Error() string {
	return string(e.Status) + ": " + e.Reason
}

// Unwrap traduce el status del gate a su error centinela.
func (e *GateError) Unwrap() error {
	switch e.Status {
	case StatusDailyLimitExceeded:
		return ErrDailyLimitExceeded
	case StatusPositionCapReached:
		return ErrPositionCapReached
	case StatusDuplicateMarket:
		return ErrDuplicateMarket
	case StatusInsufficientLiquidity:
		return ErrInsufficientLiquidity
	}
	return nil
}
