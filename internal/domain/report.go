package domain

import "time"

// RunState es el estado del orquestador durante una pasada.
type RunState string

const (
	StateIdle               RunState = "Idle"
	StateScanning           RunState = "Scanning"
	StateFiltering          RunState = "Filtering"
	StateGatingAndExecuting RunState = "GatingAndExecuting"
	StateCompleted          RunState = "Completed"
	StateAborted            RunState = "Aborted"
)

// Report es el resultado estructurado de una pasada scan → filtro → gate → ejecución.
type Report struct {
	RunID         string
	State         RunState
	DryRun        bool
	StartedAt     time.Time
	FinishedAt    time.Time
	Scanned       int
	Candidates    []Candidate
	Results       []TradeResult
	Spend         float64
	DailyLimit    float64
	OpenPositions int
	MaxPositions  int
	Err           error
}

// Count devuelve cuántos resultados tienen el status dado.
func (r Report) Count(status TradeStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Status resume el estado persistido para el comando status.
type Status struct {
	Day            string
	Spend          float64
	DailyLimit     float64
	OpenPositions  int
	TotalPositions int
	MaxPositions   int
	DryRun         bool
	Open           []Position
}
