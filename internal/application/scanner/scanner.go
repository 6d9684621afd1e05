package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/nobet/internal/domain"
	"github.com/alejandrodnm/nobet/internal/ports"
)

// Config contiene la configuración del scanner.
type Config struct {
	FeedLimit  int
	SortKey    string
	Descending bool
	Filter     FilterConfig
}

// Scanner obtiene mercados del feed y los pasa por el Filter.
type Scanner struct {
	cfg    Config
	feed   ports.MarketFeed
	filter *Filter
	now    func() time.Time
}

// New crea un Scanner con el feed inyectado.
func New(cfg Config, feed ports.MarketFeed) (*Scanner, error) {
	f, err := NewFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		cfg:    cfg,
		feed:   feed,
		filter: f,
		now:    time.Now,
	}, nil
}

// WithClock sustituye el reloj, para tests.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// Now devuelve la hora del reloj del scanner.
func (s *Scanner) Now() time.Time {
	return s.now()
}

// Fetch obtiene los mercados activos. Cualquier error envuelve
// domain.ErrFetchFailure y no devuelve mercados parciales.
func (s *Scanner) Fetch(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.feed.ListActiveMarkets(ctx, s.cfg.FeedLimit, s.cfg.SortKey, s.cfg.Descending)
	if err != nil {
		return nil, fmt.Errorf("scanner.Fetch: %w", wrapFetch(err))
	}
	return markets, nil
}

// Select filtra y ordena los mercados.
func (s *Scanner) Select(markets []domain.Market, now time.Time) []domain.Candidate {
	candidates, skipped := s.filter.Apply(markets, now)
	slog.Debug("markets filtered",
		"markets", len(markets),
		"candidates", len(candidates),
		"skip_keyword", skipped[SkipKeyword],
		"skip_volume", skipped[SkipVolume],
		"skip_end_date", skipped[SkipEndDate],
		"skip_outcomes", skipped[SkipOutcomes],
		"skip_yes_price", skipped[SkipYesPrice],
		"skip_no_price", skipped[SkipNoPrice],
	)
	return candidates
}

// Scan ejecuta fetch + filtro en un paso.
func (s *Scanner) Scan(ctx context.Context) ([]domain.Candidate, error) {
	markets, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return s.Select(markets, s.now()), nil
}

func wrapFetch(err error) error {
	if errors.Is(err, domain.ErrFetchFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrFetchFailure, err)
}
