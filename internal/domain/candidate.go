package domain

import "time"

// Candidate es un mercado que pasó todos los filtros y es elegible para un
// bet al NO. Se deriva y nunca se persiste.
type Candidate struct {
	MarketID         string
	ConditionID      string
	Question         string
	Slug             string
	NoTokenID        string
	YesPrice         float64
	NoPrice          float64
	Volume           float64
	EndDate          time.Time
	DaysToResolution int
}
