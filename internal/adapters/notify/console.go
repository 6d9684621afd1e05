package notify

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/nobet/internal/domain"
)

const noCandidatesMsg = "No candidates found matching criteria."

// Console imprime candidatos, estado, balances y resultados de un run.
// En modo tabla usa tablewriter; si no, un listado de texto plano.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un Console que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un Console sobre w (tests).
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Print escribe un bloque de texto tal cual.
func (c *Console) Print(text string) {
	fmt.Fprintln(c.out, text)
}

// PrintCandidates lista los candidatos de un scan.
func (c *Console) PrintCandidates(cands []domain.Candidate) {
	if len(cands) == 0 {
		fmt.Fprintln(c.out, noCandidatesMsg)
		return
	}

	if !c.table {
		fmt.Fprintf(c.out, "Found %d candidate(s):\n\n", len(cands))
		for i, cand := range cands {
			fmt.Fprintf(c.out, "%d. %s\n", i+1, cand.Question)
			fmt.Fprintf(c.out, "   YES: $%.2f | NO: $%.2f | Vol: $%s | Resolves: %dd\n",
				cand.YesPrice, cand.NoPrice, thousands(cand.Volume), cand.DaysToResolution)
			fmt.Fprintf(c.out, "   Token: %s\n", shortID(cand.NoTokenID, 16))
		}
		return
	}

	fmt.Fprintf(c.out, "\n%d candidate(s)\n", len(cands))
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "YES", "NO", "Volume", "Days", "End")
	for i, cand := range cands {
		end := "-"
		if !cand.EndDate.IsZero() {
			end = cand.EndDate.Format(domain.DayLayout)
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			domain.TruncateQuestion(cand.Question, cand.ConditionID, 50),
			fmt.Sprintf("$%.3f", cand.YesPrice),
			fmt.Sprintf("$%.3f", cand.NoPrice),
			"$"+thousands(cand.Volume),
			fmt.Sprintf("%d", cand.DaysToResolution),
			end,
		)
	}
	table.Render()
}

// PrintResults imprime una tabla con el resultado de cada candidato.
func (c *Console) PrintResults(results []domain.TradeResult) {
	if len(results) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Status", "Price", "Shares", "Order", "Message")
	for i, r := range results {
		table.Append(
			fmt.Sprintf("%d", i+1),
			domain.TruncateQuestion(r.Question, r.ConditionID, 40),
			string(r.Status),
			priceLabel(r.Price),
			fmt.Sprintf("%.2f", r.Shares),
			shortID(r.OrderID, 12),
			r.Message,
		)
	}
	table.Render()
}

// PrintStatus imprime gasto del día, contadores y posiciones abiertas.
func (c *Console) PrintStatus(s domain.Status) {
	fmt.Fprintln(c.out, "Polymarket NO-Bet Status")
	fmt.Fprintln(c.out, strings.Repeat("=", 40))
	fmt.Fprintf(c.out, "Daily spend (%s): $%.2f / $%.2f\n", s.Day, s.Spend, s.DailyLimit)
	fmt.Fprintf(c.out, "Open positions: %d / %d\n", s.OpenPositions, s.MaxPositions)
	fmt.Fprintf(c.out, "Total positions (all time): %d\n", s.TotalPositions)
	fmt.Fprintf(c.out, "Dry run: %t\n", s.DryRun)

	if len(s.Open) == 0 {
		return
	}
	fmt.Fprintln(c.out)

	if !c.table {
		fmt.Fprintln(c.out, "Open positions:")
		for _, p := range s.Open {
			mode := ""
			if p.DryRun {
				mode = " [DRY]"
			}
			fmt.Fprintf(c.out, "  - %s\n", domain.TruncateQuestion(p.Question, p.ConditionID, 60))
			fmt.Fprintf(c.out, "    Entry: $%.3f | Size: $%.2f%s\n", p.EntryPrice, p.BetSize, mode)
		}
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Entry", "Size", "Shares", "Placed", "Mode")
	for _, p := range s.Open {
		mode := "LIVE"
		if p.DryRun {
			mode = "DRY"
		}
		placed := "-"
		if !p.Timestamp.IsZero() {
			placed = p.Timestamp.Format("2006-01-02 15:04")
		}
		table.Append(
			domain.TruncateQuestion(p.Question, p.ConditionID, 50),
			fmt.Sprintf("$%.3f", p.EntryPrice),
			fmt.Sprintf("$%.2f", p.BetSize),
			fmt.Sprintf("%.2f", p.Shares),
			placed,
			mode,
		)
	}
	table.Render()
}

// PrintBalances imprime los balances on-chain de la wallet.
func (c *Console) PrintBalances(b domain.Balances) {
	fmt.Fprintf(c.out, "Wallet:  %s\n", b.Address)
	fmt.Fprintf(c.out, "POL:     %.4f\n", b.Native)
	fmt.Fprintf(c.out, "USDC.e:  $%.2f\n", b.Collateral)
}

// --- helpers ---

func priceLabel(p float64) string {
	if p <= 0 {
		return "-"
	}
	return fmt.Sprintf("$%.3f", p)
}

func shortID(id string, n int) string {
	if id == "" {
		return "-"
	}
	if len(id) <= n {
		return id
	}
	return id[:n] + "..."
}

// thousands formatea un importe sin decimales con separador de miles.
func thousands(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}
