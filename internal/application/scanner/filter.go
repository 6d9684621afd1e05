package scanner

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/nobet/internal/domain"
)

// FilterConfig contiene los criterios de selección de candidatos.
type FilterConfig struct {
	MinYesProb          float64
	MaxNoPrice          float64
	MinVolume           float64
	MaxDaysToResolution int
	// Keywords marca temas de alta volatilidad. Se comparan como palabras
	// completas, sin distinguir mayúsculas, sobre question + description.
	Keywords []string
}

// SkipReason es el motivo por el que un mercado no llega a candidato.
type SkipReason string

const (
	SkipKeyword  SkipReason = "keyword"
	SkipVolume   SkipReason = "volume"
	SkipEndDate  SkipReason = "end_date"
	SkipOutcomes SkipReason = "outcomes"
	SkipYesPrice SkipReason = "yes_price"
	SkipNoPrice  SkipReason = "no_price"
)

// SkipStats cuenta los mercados descartados por motivo.
type SkipStats map[SkipReason]int

// Filter convierte snapshots del feed en candidatos ordenados.
// Es puro: no hace I/O y el mismo input produce siempre el mismo output.
type Filter struct {
	cfg      FilterConfig
	keywords *regexp.Regexp // nil si no hay keywords
}

// NewFilter compila el patrón de keywords.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	f := &Filter{cfg: cfg}
	re, err := compileKeywords(cfg.Keywords)
	if err != nil {
		return nil, fmt.Errorf("scanner.NewFilter: %w", err)
	}
	f.keywords = re
	return f, nil
}

// compileKeywords construye `(?i)\b(?:kw1|kw2|...)\b`. Los espacios dentro de
// una keyword aceptan cualquier whitespace.
func compileKeywords(keywords []string) (*regexp.Regexp, error) {
	alts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		words := strings.Fields(kw)
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	if len(alts) == 0 {
		return nil, nil
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

// Apply devuelve los candidatos que pasan todas las reglas, ordenados por
// yes price descendente (empates por condition id), junto con el recuento de
// descartes.
func (f *Filter) Apply(markets []domain.Market, now time.Time) ([]domain.Candidate, SkipStats) {
	stats := make(SkipStats)
	result := make([]domain.Candidate, 0)
	for _, m := range markets {
		c, reason := f.Evaluate(m, now)
		if reason != "" {
			stats[reason]++
			continue
		}
		result = append(result, c)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].YesPrice != result[j].YesPrice {
			return result[i].YesPrice > result[j].YesPrice
		}
		return result[i].ConditionID < result[j].ConditionID
	})
	return result, stats
}

// Evaluate aplica las reglas a un mercado. reason es vacío si pasa.
func (f *Filter) Evaluate(m domain.Market, now time.Time) (domain.Candidate, SkipReason) {
	if f.IsHighVolatility(m) {
		return domain.Candidate{}, SkipKeyword
	}
	if m.Volume < f.cfg.MinVolume {
		return domain.Candidate{}, SkipVolume
	}
	if m.EndDate.IsZero() {
		return domain.Candidate{}, SkipEndDate
	}
	maxEnd := now.Add(time.Duration(f.cfg.MaxDaysToResolution) * 24 * time.Hour)
	if m.EndDate.After(maxEnd) {
		return domain.Candidate{}, SkipEndDate
	}

	yes, okYes := m.YesToken()
	no, okNo := m.NoToken()
	if !okYes || !okNo {
		return domain.Candidate{}, SkipOutcomes
	}
	if yes.Price < f.cfg.MinYesProb {
		return domain.Candidate{}, SkipYesPrice
	}
	if no.Price > f.cfg.MaxNoPrice {
		return domain.Candidate{}, SkipNoPrice
	}

	return domain.Candidate{
		MarketID:         m.ID,
		ConditionID:      m.ConditionID,
		Question:         m.Question,
		Slug:             m.Slug,
		NoTokenID:        no.TokenID,
		YesPrice:         yes.Price,
		NoPrice:          no.Price,
		Volume:           m.Volume,
		EndDate:          m.EndDate,
		DaysToResolution: int(m.EndDate.Sub(now) / (24 * time.Hour)),
	}, ""
}

// IsHighVolatility indica si el texto del mercado contiene alguna keyword.
func (f *Filter) IsHighVolatility(m domain.Market) bool {
	if f.keywords == nil {
		return false
	}
	return f.keywords.MatchString(m.Question + " " + m.Description)
}
