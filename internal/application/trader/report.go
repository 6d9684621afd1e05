package trader

import (
	"fmt"
	"html"
	"strings"

	"github.com/alejandrodnm/nobet/internal/domain"
)

const reportQuestionLen = 50

// NoCandidatesMessage es la notificación cuando el scan no encuentra nada.
const NoCandidatesMessage = "🔍 Polymarket Scan: No candidates found matching criteria."

// FormatReport formatea el informe de un run como HTML de Telegram.
func FormatReport(r domain.Report) string {
	if r.State == domain.StateCompleted && len(r.Candidates) == 0 {
		return NoCandidatesMessage
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Polymarket NO-Bet (%s)</b>\n", modeLabel(r.DryRun))

	for _, res := range r.Results {
		msg := res.Message
		if msg == "" {
			msg = string(res.Status)
		}
		fmt.Fprintf(&sb, "\n%s %s\n   %s",
			statusIcon(res.Status),
			html.EscapeString(truncateRunes(res.Question, reportQuestionLen)),
			html.EscapeString(msg),
		)
	}

	if len(r.Candidates) > 0 {
		fmt.Fprintf(&sb, "\n\nSpend today: $%.2f / $%.2f | Open: %d / %d",
			r.Spend, r.DailyLimit, r.OpenPositions, r.MaxPositions)
	}
	if r.State == domain.StateAborted && r.Err != nil {
		fmt.Fprintf(&sb, "\n\n❌ Run aborted: %s", html.EscapeString(r.Err.Error()))
	}
	return sb.String()
}

// FormatTransfer formatea la notificación de un retiro.
func FormatTransfer(rec domain.TxReceipt, remaining float64) string {
	return fmt.Sprintf("<b>Polymarket Withdrawal</b>\nSent $%.2f USDC to %s\nTX: %s\nRemaining: $%.2f USDC",
		rec.Amount, shortAddress(rec.Destination), rec.TxHash, remaining)
}

// FormatTransferFailure formatea la notificación de un retiro fallido.
func FormatTransferFailure(err error) string {
	return "<b>Polymarket Withdrawal Failed</b>\n" + html.EscapeString(err.Error())
}

func modeLabel(dryRun bool) string {
	if dryRun {
		return "DRY RUN"
	}
	return "LIVE"
}

func statusIcon(s domain.TradeStatus) string {
	switch s {
	case domain.StatusPlaced:
		return "✅"
	case domain.StatusSimulatedFill:
		return "🔸"
	case domain.StatusOrderFailed:
		return "❌"
	default:
		return "⏭"
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func shortAddress(a string) string {
	if len(a) <= 10 {
		return a
	}
	return a[:10] + "..."
}
