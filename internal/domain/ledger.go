package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DayLayout es la fecha ISO que se usa como clave del ledger de gasto.
const DayLayout = "2006-01-02"

// DefaultRetentionDays es cuántos días naturales de gasto se conservan.
const DefaultRetentionDays = 30

// SpendLedger asocia un día natural (DayLayout) al colateral gastado ese día.
type SpendLedger map[string]float64

// DayKey devuelve la clave del ledger para t, en la zona de t.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// On devuelve el importe registrado el día de t.
func (l SpendLedger) On(t time.Time) float64 {
	return l[DayKey(t)]
}

// Total suma todos los días del ledger.
func (l SpendLedger) Total() float64 {
	sum := decimal.Zero
	for _, v := range l {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.InexactFloat64()
}

// RecordAndPrune devuelve un ledger nuevo con amount sumado al día de at y sin
// los días anteriores a los últimos retentionDays días naturales (hoy incluido).
// Las claves que no son fechas válidas se descartan. retentionDays <= 0
// desactiva la poda. El receptor no se modifica.
func (l SpendLedger) RecordAndPrune(amount float64, at time.Time, retentionDays int) (SpendLedger, error) {
	if amount < 0 {
		return nil, fmt.Errorf("domain.RecordAndPrune: negative amount %.6f", amount)
	}

	loc := at.Location()
	today := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, loc)
	cutoff := today.AddDate(0, 0, -(retentionDays - 1))

	out := make(SpendLedger, len(l)+1)
	for k, v := range l {
		day, err := time.ParseInLocation(DayLayout, k, loc)
		if err != nil {
			continue
		}
		if retentionDays > 0 && day.Before(cutoff) {
			continue
		}
		out[k] = v
	}

	key := DayKey(at)
	out[key] = decimal.NewFromFloat(out[key]).Add(decimal.NewFromFloat(amount)).InexactFloat64()
	return out, nil
}
