package trader_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/nobet/config"
	"github.com/alejandrodnm/nobet/internal/application/scanner"
	"github.com/alejandrodnm/nobet/internal/application/trader"
	"github.com/alejandrodnm/nobet/internal/domain"
)

type stubFeed struct {
	markets []domain.Market
}

func (f *stubFeed) ListActiveMarkets(context.Context, int, string, bool) ([]domain.Market, error) {
	return f.markets, nil
}

func TestRun_ScenarioA_SimulatedFill(t *testing.T) {
	cfg := riskConfig()
	h := newHarness(t, cfg, true)
	ctx := context.Background()

	feed := &stubFeed{markets: []domain.Market{{
		ID:          "id-0xa",
		ConditionID: "0xa",
		Question:    "Will the incumbent win the election?",
		EndDate:     now.Add(3 * 24 * time.Hour),
		Volume:      50_000,
		Tokens: []domain.Token{
			{TokenID: "yes-0xa", Outcome: "Yes", Price: 0.95},
			{TokenID: "no-0xa", Outcome: "No", Price: 0.05},
		},
		Active: true,
	}}}
	sc, err := scanner.New(scanner.Config{
		FeedLimit: 200,
		Filter: scanner.FilterConfig{
			MinYesProb:          0.90,
			MaxNoPrice:          0.12,
			MinVolume:           10_000,
			MaxDaysToResolution: 7,
			Keywords:            config.DefaultKeywords,
		},
	}, feed)
	require.NoError(t, err)

	rep, err := h.orchestrator(cfg, sc, 0).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.StateCompleted, rep.State)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 1, rep.Scanned)
	require.Len(t, rep.Candidates, 1)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, domain.StatusSimulatedFill, rep.Results[0].Status)
	assert.Equal(t, 2.0, rep.Spend)
	assert.Equal(t, 1, rep.OpenPositions)

	positions, err := h.store.Positions(ctx)
	require.NoError(t, err)
	require.Contains(t, positions, "0xa")
	assert.Zero(t, positions["0xa"].Shares)
}

func TestRun_ScenarioB_DailyLimitStopsRun(t *testing.T) {
	cfg := riskConfig()
	cfg.DailyLimit = 3
	h := newHarness(t, cfg, true)

	src := &stubSource{markets: make([]domain.Market, 3), cands: []domain.Candidate{
		candidate("0x1", 0.97),
		candidate("0x2", 0.96),
		candidate("0x3", 0.95),
	}}

	rep, err := h.orchestrator(cfg, src, 0).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StateCompleted, rep.State)
	assert.Equal(t, []domain.TradeStatus{
		domain.StatusSimulatedFill,
		domain.StatusDailyLimitExceeded,
		domain.StatusSkipped,
	}, statuses(rep.Results))
	assert.Equal(t, "Daily limit reached ($2.00/$3.00)", rep.Results[1].Message)
	assert.Equal(t, "Not attempted: DailyLimitExceeded", rep.Results[2].Message)

	dup, err := h.store.IsDuplicate(context.Background(), "0x3")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestRun_ScenarioC_Duplicate(t *testing.T) {
	cfg := riskConfig()
	h := newHarness(t, cfg, true)
	ctx := context.Background()
	require.NoError(t, h.store.SavePosition(ctx, domain.Position{
		ConditionID: "0xdup",
		Question:    "held",
		OrderID:     "0xabc",
		Timestamp:   now.Add(-time.Hour),
	}))
	before := snapshot(t, h.dir)

	src := &stubSource{cands: []domain.Candidate{candidate("0xdup", 0.95)}}
	rep, err := h.orchestrator(cfg, src, 0).Run(ctx)
	require.NoError(t, err)

	require.Len(t, rep.Results, 1)
	assert.Equal(t, domain.StatusDuplicateMarket, rep.Results[0].Status)
	assert.Equal(t, "Already have position in this market", rep.Results[0].Message)
	assert.Equal(t, before, snapshot(t, h.dir))
}

func TestRun_ScenarioD_AskAboveCeiling(t *testing.T) {
	cfg := riskConfig()
	h := newHarness(t, cfg, false)
	ctx := context.Background()
	h.books.books["no-0xa"] = domain.OrderBook{
		Asks: []domain.BookEntry{{Price: 0.20, Size: 1000}},
		Bids: []domain.BookEntry{{Price: 0.19, Size: 1000}},
	}

	src := &stubSource{cands: []domain.Candidate{candidate("0xa", 0.95)}}
	rep, err := h.orchestrator(cfg, src, 0).Run(ctx)
	require.NoError(t, err)

	require.Len(t, rep.Results, 1)
	assert.Equal(t, domain.StatusInsufficientLiquidity, rep.Results[0].Status)
	assert.Empty(t, h.signer.orders)

	positions, err := h.store.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
	spend, err := h.store.DailySpend(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, spend)
	assert.Zero(t, rep.Spend)
}

func TestRun_ScenarioE_SubmitTimeoutLeavesStateUntouched(t *testing.T) {
	cfg := riskConfig()
	store, dir := newStore(t)
	h := buildHarness(cfg, false, store, dir, 20*time.Millisecond)
	ctx := context.Background()
	h.books.books["no-0xa"] = liquidBook("no-0xa", 0.05)
	h.signer.submit = func(ctx context.Context, _ domain.LimitOrder) (domain.PlacedOrder, error) {
		<-ctx.Done()
		return domain.PlacedOrder{}, fmt.Errorf("submit order: post: %w", ctx.Err())
	}

	require.NoError(t, store.RecordSpend(ctx, 1, now))
	require.NoError(t, store.SavePosition(ctx, domain.Position{ConditionID: "0xold", Question: "old", OrderID: "0x1", Timestamp: now.Add(-time.Hour)}))
	_, err := store.GetOrCreateCredentials(ctx, h.signer.DeriveCredentials)
	require.NoError(t, err)
	before := snapshot(t, dir)

	src := &stubSource{cands: []domain.Candidate{candidate("0xa", 0.95)}}
	rep, err := h.orchestrator(cfg, src, 0).Run(ctx)
	require.NoError(t, err)

	require.Len(t, rep.Results, 1)
	assert.Equal(t, domain.StatusOrderFailed, rep.Results[0].Status)
	assert.Contains(t, rep.Results[0].Message, "deadline exceeded")
	assert.Len(t, h.signer.orders, 1)
	assert.Equal(t, before, snapshot(t, dir))
	assert.Equal(t, 1.0, rep.Spend)
	assert.Equal(t, 1, rep.OpenPositions)
}

func TestRun_PositionCap(t *testing.T) {
	cfg := riskConfig()
	cfg.MaxPositions = 2
	h := newHarness(t, cfg, true)
	ctx := context.Background()
	require.NoError(t, h.store.SavePosition(ctx, domain.Position{ConditionID: "0xheld", Question: "held"}))

	src := &stubSource{cands: []domain.Candidate{
		candidate("0x1", 0.97),
		candidate("0x2", 0.96),
		candidate("0x3", 0.95),
	}}
	rep, err := h.orchestrator(cfg, src, 0).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []domain.TradeStatus{
		domain.StatusSimulatedFill,
		domain.StatusPositionCapReached,
		domain.StatusSkipped,
	}, statuses(rep.Results))
	assert.Equal(t, "Max positions reached (2/2)", rep.Results[1].Message)
	assert.Equal(t, 2, rep.OpenPositions)
}

func TestRun_ResolvedPositionsDoNotCount(t *testing.T) {
	cfg := riskConfig()
	cfg.MaxPositions = 1
	h := newHarness(t, cfg, true)
	ctx := context.Background()
	require.NoError(t, h.store.SavePosition(ctx, domain.Position{ConditionID: "0xdone", Question: "done", Resolved: true}))

	src := &stubSource{cands: []domain.Candidate{candidate("0x1", 0.97)}}
	rep, err := h.orchestrator(cfg, src, 0).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.TradeStatus{domain.StatusSimulatedFill}, statuses(rep.Results))
}

func TestRun_DuplicateAcrossPasses(t *testing.T) {
	cfg := riskConfig()
	h := newHarness(t, cfg, true)
	src := &stubSource{cands: []domain.Candidate{candidate("0x1", 0.97), candidate("0x2", 0.96)}}
	orch := h.orchestrator(cfg, src, 0)

	first, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.TradeStatus{domain.StatusSimulatedFill, domain.StatusSimulatedFill}, statuses(first.Results))

	second, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.TradeStatus{domain.StatusDuplicateMarket, domain.StatusDuplicateMarket}, statuses(second.Results))
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 2, second.OpenPositions)
}

func TestRun_SpendSeededFromStore(t *testing.T) {
	cfg := riskConfig()
	h := newHarness(t, cfg, false)
	ctx := context.Background()
	require.NoError(t, h.store.RecordSpend(ctx, 10, now.AddDate(0, 0, -1)))
	require.NoError(t, h.store.RecordSpend(ctx, 48, now))
	h.books.books["no-0x1"] = liquidBook("no-0x1", 0.05)
	h.books.books["no-0x2"] = liquidBook("no-0x2", 0.05)

	src := &stubSource{cands: []domain.Candidate{candidate("0x1", 0.97), candidate("0x2", 0.96)}}
	rep, err := h.orchestrator(cfg, src, 0).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []domain.TradeStatus{domain.StatusPlaced, domain.StatusDailyLimitExceeded}, statuses(rep.Results))
	assert.Equal(t, 50.0, rep.Spend)

	spend, err := h.store.DailySpend(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 50.0, spend)
}

func TestRun_FetchFailureAborts(t *testing.T) {
	cfg := riskConfig()
	h := newHarness(t, cfg, true)
	src := &stubSource{err: fmt.Errorf("%w: gamma 503", domain.ErrFetchFailure)}

	rep, err := h.orchestrator(cfg, src, 0).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailure)
	assert.Equal(t, domain.StateAborted, rep.State)
	assert.Empty(t, rep.Results)
	assert.Equal(t, err, rep.Err)
}

func TestRun_NoCandidates(t *testing.T) {
	cfg := riskConfig()
	h := newHarness(t, cfg, true)
	src := &stubSource{markets: make([]domain.Market, 5)}

	rep, err := h.orchestrator(cfg, src, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, rep.State)
	assert.Equal(t, 5, rep.Scanned)
	assert.Empty(t, rep.Results)
	assert.Equal(t, trader.NoCandidatesMessage, trader.FormatReport(rep))
}

func TestRun_ReconcileAbortsRun(t *testing.T) {
	cfg := riskConfig()
	store, dir := newStore(t)
	h := buildHarness(cfg, false, failingStore{store}, dir, time.Second)
	h.books.books["no-0x1"] = liquidBook("no-0x1", 0.05)
	h.books.books["no-0x2"] = liquidBook("no-0x2", 0.05)

	src := &stubSource{cands: []domain.Candidate{candidate("0x1", 0.97), candidate("0x2", 0.96)}}
	rep, err := h.orchestrator(cfg, src, 0).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReconcile)
	assert.Equal(t, domain.StateAborted, rep.State)
	assert.Equal(t, []domain.TradeStatus{domain.StatusPlaced, domain.StatusSkipped}, statuses(rep.Results))
	assert.Equal(t, "run aborted", rep.Results[1].Message)
	assert.Len(t, h.signer.orders, 1)
}

func TestRun_DuplicateCheckErrorKeepsPassTotals(t *testing.T) {
	cfg := riskConfig()
	store, dir := newStore(t)
	h := buildHarness(cfg, true, &dupErrStore{StateStore: store, after: 1}, dir, time.Second)

	src := &stubSource{cands: []domain.Candidate{candidate("0x1", 0.97), candidate("0x2", 0.96), candidate("0x3", 0.95)}}
	rep, err := h.orchestrator(cfg, src, 0).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "i/o error")

	assert.Equal(t, domain.StateAborted, rep.State)
	assert.Equal(t, []domain.TradeStatus{domain.StatusSimulatedFill, domain.StatusSkipped, domain.StatusSkipped}, statuses(rep.Results))
	assert.Equal(t, 2.0, rep.Spend)
	assert.Equal(t, 1, rep.OpenPositions)
}

func TestRun_SpendTracksSignedCost(t *testing.T) {
	cfg := riskConfig()
	h := newHarness(t, cfg, false)
	ctx := context.Background()
	h.books.books["no-0x1"] = liquidBook("no-0x1", 0.07)
	h.books.books["no-0x2"] = liquidBook("no-0x2", 0.07)

	src := &stubSource{cands: []domain.Candidate{candidate("0x1", 0.93), candidate("0x2", 0.93)}}
	rep, err := h.orchestrator(cfg, src, 0).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []domain.TradeStatus{domain.StatusPlaced, domain.StatusPlaced}, statuses(rep.Results))
	assert.InDelta(t, 3.9998, rep.Spend, 1e-9)

	spend, err := h.store.DailySpend(ctx, now)
	require.NoError(t, err)
	assert.InDelta(t, rep.Spend, spend, 1e-9)
}

func TestRun_CancelDuringOrderDelay(t *testing.T) {
	cfg := riskConfig()
	h := newHarness(t, cfg, false)
	h.books.books["no-0x1"] = liquidBook("no-0x1", 0.05)
	h.books.books["no-0x2"] = liquidBook("no-0x2", 0.05)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.signer.submit = func(context.Context, domain.LimitOrder) (domain.PlacedOrder, error) {
		cancel()
		return domain.PlacedOrder{OrderID: "0xfirst", Status: "live"}, nil
	}

	src := &stubSource{cands: []domain.Candidate{candidate("0x1", 0.97), candidate("0x2", 0.96)}}
	rep, err := h.orchestrator(cfg, src, time.Hour).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, domain.StateAborted, rep.State)
	assert.Equal(t, []domain.TradeStatus{domain.StatusPlaced, domain.StatusSkipped}, statuses(rep.Results))
	assert.Equal(t, "run cancelled", rep.Results[1].Message)
	assert.Len(t, h.signer.orders, 1)
}

func TestRun_CancelledBeforeFirstCandidate(t *testing.T) {
	cfg := riskConfig()
	h := newHarness(t, cfg, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &stubSource{cands: []domain.Candidate{candidate("0x1", 0.97)}}
	rep, err := h.orchestrator(cfg, src, 0).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.StateAborted, rep.State)
	assert.Equal(t, []domain.TradeStatus{domain.StatusSkipped}, statuses(rep.Results))
}
