package trader_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/nobet/internal/application/trader"
	"github.com/alejandrodnm/nobet/internal/domain"
)

func TestFormatReport_DryRun(t *testing.T) {
	rep := domain.Report{
		State:         domain.StateCompleted,
		DryRun:        true,
		Candidates:    []domain.Candidate{candidate("0x1", 0.97), candidate("0x2", 0.96)},
		Spend:         2,
		DailyLimit:    3,
		OpenPositions: 4,
		MaxPositions:  25,
		Results: []domain.TradeResult{
			{Question: "Will A & B <merge>?", Status: domain.StatusSimulatedFill, Message: "DRY RUN: Would buy $2.00 of NO @ ~$0.05"},
			{Question: "Second", Status: domain.StatusDailyLimitExceeded, Message: "Daily limit reached ($2.00/$3.00)"},
		},
	}

	want := "<b>Polymarket NO-Bet (DRY RUN)</b>\n" +
		"\n🔸 Will A &amp; B &lt;merge&gt;?\n   DRY RUN: Would buy $2.00 of NO @ ~$0.05" +
		"\n⏭ Second\n   Daily limit reached ($2.00/$3.00)" +
		"\n\nSpend today: $2.00 / $3.00 | Open: 4 / 25"
	assert.Equal(t, want, trader.FormatReport(rep))
}

func TestFormatReport_LiveIconsAndTruncation(t *testing.T) {
	long := strings.Repeat("é", 60)
	rep := domain.Report{
		State:      domain.StateCompleted,
		Candidates: []domain.Candidate{candidate("0x1", 0.97)},
		Results: []domain.TradeResult{
			{Question: long, Status: domain.StatusPlaced, Message: "Placed BUY 40.00 NO @ $0.050 = $2.00"},
			{Question: "q", Status: domain.StatusOrderFailed},
		},
	}

	got := trader.FormatReport(rep)
	assert.True(t, strings.HasPrefix(got, "<b>Polymarket NO-Bet (LIVE)</b>\n"))
	assert.Contains(t, got, "✅ "+strings.Repeat("é", 50)+"\n")
	assert.NotContains(t, got, strings.Repeat("é", 51))
	assert.Contains(t, got, "❌ q\n   OrderFailed")
}

func TestFormatReport_Aborted(t *testing.T) {
	rep := domain.Report{
		State:      domain.StateAborted,
		Candidates: []domain.Candidate{candidate("0x1", 0.97)},
		Err:        errors.New("accepted order not recorded: <disk>"),
	}
	assert.Contains(t, trader.FormatReport(rep), "\n\n❌ Run aborted: accepted order not recorded: &lt;disk&gt;")
}

func TestFormatReport_AbortedBeforeScan(t *testing.T) {
	rep := domain.Report{State: domain.StateAborted, Err: errors.New("feed down")}
	got := trader.FormatReport(rep)
	assert.NotEqual(t, trader.NoCandidatesMessage, got)
	assert.NotContains(t, got, "Spend today")
	assert.Contains(t, got, "Run aborted: feed down")
}

func TestFormatTransfer(t *testing.T) {
	rec := domain.TxReceipt{
		TxHash:      "0xhash",
		Destination: "0x1234567890abcdef1234567890abcdef12345678",
		Amount:      12.5,
	}
	assert.Equal(t,
		"<b>Polymarket Withdrawal</b>\nSent $12.50 USDC to 0x12345678...\nTX: 0xhash\nRemaining: $0.00 USDC",
		trader.FormatTransfer(rec, 0))
	assert.Equal(t, "<b>Polymarket Withdrawal Failed</b>\nnot enough &lt;gas&gt;",
		trader.FormatTransferFailure(errors.New("not enough <gas>")))
}
