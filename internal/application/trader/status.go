package trader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alejandrodnm/nobet/internal/domain"
	"github.com/alejandrodnm/nobet/internal/ports"
)

// StatusConfig contiene los límites que se muestran junto a los contadores.
type StatusConfig struct {
	DailyLimit   float64
	MaxPositions int
	DryRun       bool
}

// Status resume el store a fecha now: gasto de hoy, conteo de posiciones y
// las posiciones abiertas, de la más antigua a la más reciente.
func Status(ctx context.Context, store ports.StateStore, cfg StatusConfig, now time.Time) (domain.Status, error) {
	spend, err := store.DailySpend(ctx, now)
	if err != nil {
		return domain.Status{}, fmt.Errorf("trader.Status: %w", err)
	}
	positions, err := store.Positions(ctx)
	if err != nil {
		return domain.Status{}, fmt.Errorf("trader.Status: %w", err)
	}

	st := domain.Status{
		Day:            domain.DayKey(now),
		Spend:          spend,
		DailyLimit:     cfg.DailyLimit,
		TotalPositions: len(positions),
		MaxPositions:   cfg.MaxPositions,
		DryRun:         cfg.DryRun,
	}
	for _, p := range positions {
		if !p.Resolved {
			st.Open = append(st.Open, p)
		}
	}
	st.OpenPositions = len(st.Open)

	sort.Slice(st.Open, func(i, j int) bool {
		a, b := st.Open[i], st.Open[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ConditionID < b.ConditionID
	})
	return st, nil
}
