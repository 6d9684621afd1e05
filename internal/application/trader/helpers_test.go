package trader_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/nobet/internal/adapters/storage"
	"github.com/alejandrodnm/nobet/internal/application/trader"
	"github.com/alejandrodnm/nobet/internal/domain"
	"github.com/alejandrodnm/nobet/internal/ports"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

const signerAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// --- mocks ---

type stubSource struct {
	markets []domain.Market
	cands   []domain.Candidate
	err     error
}

func (s *stubSource) Fetch(context.Context) ([]domain.Market, error) {
	return s.markets, s.err
}

func (s *stubSource) Select([]domain.Market, time.Time) []domain.Candidate {
	return s.cands
}

type mockBooks struct {
	books map[string]domain.OrderBook
	calls int
}

func (m *mockBooks) FetchOrderBook(_ context.Context, tokenID string) (domain.OrderBook, error) {
	m.calls++
	b, ok := m.books[tokenID]
	if !ok {
		return domain.OrderBook{}, fmt.Errorf("no orderbook for %s", tokenID)
	}
	return b, nil
}

type mockSigner struct {
	addr      string
	deriveErr error
	submit    func(ctx context.Context, o domain.LimitOrder) (domain.PlacedOrder, error)

	derives int
	orders  []domain.LimitOrder
}

func newSigner() *mockSigner {
	return &mockSigner{addr: signerAddr}
}

func (m *mockSigner) Address() string { return m.addr }

func (m *mockSigner) DeriveCredentials(context.Context) (domain.Credentials, error) {
	m.derives++
	if m.deriveErr != nil {
		return domain.Credentials{}, m.deriveErr
	}
	return domain.Credentials{APIKey: "key", Secret: "c2VjcmV0", Passphrase: "pass", Address: m.addr}, nil
}

func (m *mockSigner) SubmitLimitBuy(ctx context.Context, o domain.LimitOrder, _ domain.Credentials) (domain.PlacedOrder, error) {
	m.orders = append(m.orders, o)
	if m.submit != nil {
		return m.submit(ctx, o)
	}
	return domain.PlacedOrder{OrderID: fmt.Sprintf("0xorder%d", len(m.orders)), Status: "live"}, nil
}

// failingStore falla en RecordSpend después de aceptar la orden.
type failingStore struct {
	ports.StateStore
}

func (failingStore) RecordSpend(context.Context, float64, time.Time) error {
	return errors.New("disk full")
}

// dupErrStore falla en IsDuplicate a partir de la llamada after+1.
type dupErrStore struct {
	ports.StateStore
	after int
	calls int
}

func (s *dupErrStore) IsDuplicate(ctx context.Context, conditionID string) (bool, error) {
	s.calls++
	if s.calls > s.after {
		return false, errors.New("read positions: i/o error")
	}
	return s.StateStore.IsDuplicate(ctx, conditionID)
}

// --- fixtures ---

func newStore(t *testing.T) (*storage.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := storage.NewFileStore(dir, domain.DefaultRetentionDays)
	require.NoError(t, err)
	return s, dir
}

func candidate(cid string, yes float64) domain.Candidate {
	return domain.Candidate{
		MarketID:         "m-" + cid,
		ConditionID:      cid,
		Question:         "Will " + cid + " happen?",
		NoTokenID:        "no-" + cid,
		YesPrice:         yes,
		NoPrice:          1 - yes,
		Volume:           50_000,
		EndDate:          now.Add(72 * time.Hour),
		DaysToResolution: 3,
	}
}

// liquidBook es un book que pasa el filtro de liquidez por defecto.
func liquidBook(tokenID string, ask float64) domain.OrderBook {
	return domain.OrderBook{
		TokenID: tokenID,
		Asks:    []domain.BookEntry{{Price: ask, Size: 500}},
		Bids:    []domain.BookEntry{{Price: ask - 0.01, Size: 300}},
	}
}

func riskConfig() trader.RiskConfig {
	return trader.RiskConfig{
		BetSize:      2,
		DailyLimit:   50,
		MaxPositions: 25,
		MaxNoPrice:   0.12,
		MinAskDepth:  100,
		MaxSpread:    0.03,
	}
}

type harness struct {
	store  ports.StateStore
	dir    string
	books  *mockBooks
	signer *mockSigner
	gate   *trader.RiskGate
	exec   *trader.Executor
}

func newHarness(t *testing.T, cfg trader.RiskConfig, dryRun bool) *harness {
	t.Helper()
	store, dir := newStore(t)
	return buildHarness(cfg, dryRun, store, dir, time.Second)
}

func buildHarness(cfg trader.RiskConfig, dryRun bool, store ports.StateStore, dir string, submitTimeout time.Duration) *harness {
	h := &harness{
		store:  store,
		dir:    dir,
		books:  &mockBooks{books: map[string]domain.OrderBook{}},
		signer: newSigner(),
	}
	h.gate = trader.NewRiskGate(cfg, h.store, h.books)
	h.exec = trader.NewExecutor(trader.ExecutorConfig{
		BetSize:       cfg.BetSize,
		DryRun:        dryRun,
		SubmitTimeout: submitTimeout,
	}, h.store, h.gate, h.signer).WithClock(clock)
	return h
}

func (h *harness) orchestrator(cfg trader.RiskConfig, src trader.CandidateSource, delay time.Duration) *trader.Orchestrator {
	return trader.NewOrchestrator(trader.OrchestratorConfig{
		DailyLimit:   cfg.DailyLimit,
		MaxPositions: cfg.MaxPositions,
		OrderDelay:   delay,
	}, src, h.store, h.gate, h.exec).WithClock(clock)
}

// snapshot lee los documentos de estado; un archivo ausente queda como nil.
func snapshot(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	for _, name := range []string{"daily_spend.json", "positions.json", "api_creds.json"} {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil && !os.IsNotExist(err) {
			require.NoError(t, err)
		}
		out[name] = b
	}
	return out
}

func statuses(results []domain.TradeResult) []domain.TradeStatus {
	out := make([]domain.TradeStatus, len(results))
	for i, r := range results {
		out[i] = r.Status
	}
	return out
}
