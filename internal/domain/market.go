package domain

import (
	"strings"
	"time"
)

// Market es un snapshot inmutable de un mercado binario tal como lo devuelve
// el feed de Gamma.
type Market struct {
	ID          string
	ConditionID string
	Question    string
	Description string
	Slug        string
	EndDate     time.Time // zero si el feed no trae una fecha parseable
	Volume      float64   // volumen total en USDC
	Volume24h   float64
	Tokens      []Token
	Active      bool
	Closed      bool
}

// Token es uno de los lados del mercado (YES/NO).
type Token struct {
	TokenID string
	Outcome string // "Yes" | "No"
	Price   float64
}

// OutcomeToken devuelve el token cuyo outcome coincide con label (sin
// distinguir mayúsculas). ok es false si no hay ninguno o hay más de uno.
func (m Market) OutcomeToken(label string) (Token, bool) {
	var (
		found Token
		n     int
	)
	for _, t := range m.Tokens {
		if strings.EqualFold(strings.TrimSpace(t.Outcome), label) {
			found = t
			n++
		}
	}
	return found, n == 1
}

// YesToken devuelve el token YES del mercado.
func (m Market) YesToken() (Token, bool) {
	return m.OutcomeToken("yes")
}

// NoToken devuelve el token NO del mercado.
func (m Market) NoToken() (Token, bool) {
	return m.OutcomeToken("no")
}

// HoursToResolution devuelve las horas entre now y EndDate.
// Devuelve 0 si EndDate no está definido o ya pasó.
func (m Market) HoursToResolution(now time.Time) float64 {
	if m.EndDate.IsZero() {
		return 0
	}
	h := m.EndDate.Sub(now).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// TruncateQuestion devuelve la pregunta del mercado truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del conditionID como fallback.
func TruncateQuestion(question, conditionID string, maxLen int) string {
	q := question
	if q == "" {
		if len(conditionID) > 20 {
			q = conditionID[:20] + "..."
		} else {
			q = conditionID
		}
	}
	r := []rune(q)
	if len(r) > maxLen {
		q = string(r[:maxLen-3]) + "..."
	}
	return q
}
