package domain

import "time"

// TradeStatus es el resultado de procesar un candidato.
type TradeStatus string

const (
	StatusPlaced                TradeStatus = "Placed"
	StatusSimulatedFill         TradeStatus = "SimulatedFill"
	StatusSkipped               TradeStatus = "Skipped"
	StatusDuplicateMarket       TradeStatus = "DuplicateMarket"
	StatusDailyLimitExceeded    TradeStatus = "DailyLimitExceeded"
	StatusPositionCapReached    TradeStatus = "PositionCapReached"
	StatusInsufficientLiquidity TradeStatus = "InsufficientLiquidity"
	StatusOrderFailed           TradeStatus = "OrderFailed"
)

// Accepted indica si el estado creó una posición.
func (s TradeStatus) Accepted() bool {
	return s == StatusPlaced || s == StatusSimulatedFill
}

// TradeResult es la línea del reporte para un candidato. BetSize es el
// colateral comprometido: el bet configurado en dry run, el importe firmado
// en vivo.
type TradeResult struct {
	ConditionID string
	Question    string
	NoTokenID   string
	Status      TradeStatus
	Message     string
	OrderID     string
	Shares      float64
	Price       float64
	BetSize     float64
	DryRun      bool
	Timestamp   time.Time
}

// LimitOrder es una orden límite BUY de Shares del token a Price.
type LimitOrder struct {
	TokenID string
	Price   float64
	Shares  float64
}

// PlacedOrder es la confirmación del venue para una orden enviada.
// SignedShares y SignedCost son los importes que realmente se firmaron
// (takerAmount y makerAmount / 1e6); cero si el signer no los informa.
type PlacedOrder struct {
	OrderID      string
	Status       string
	TakingAmount float64
	MakingAmount float64
	SignedShares float64
	SignedCost   float64
}
