package domain

import "time"

// DryRunOrderID es el order id que se guarda en los fills simulados.
const DryRunOrderID = "dry_run"

// Position es un bet al NO mantenido hasta resolución, indexado por condition id.
// Los nombres JSON coinciden con los archivos de estado antiguos para que un
// directorio de estado existente siga funcionando.
type Position struct {
	ConditionID string    `json:"condition_id,omitempty"`
	Question    string    `json:"question"`
	NoTokenID   string    `json:"no_token_id,omitempty"`
	EntryPrice  float64   `json:"entry_price"`
	BetSize     float64   `json:"bet_size"`
	Shares      float64   `json:"shares"`
	OrderID     string    `json:"order_id"`
	Timestamp   time.Time `json:"timestamp"`
	Resolved    bool      `json:"resolved"`
	DryRun      bool      `json:"dry_run"`
}
