package backtest

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

type equityPoint struct {
	Time   time.Time
	Equity float64
}

// MonthlyReturn is the equity change over one calendar month.
type MonthlyReturn struct {
	Month     string // "2024-01"
	ReturnPct float64
}

// Report summarizes a backtest run.
type Report struct {
	Pair           string
	Start          time.Time
	End            time.Time
	Candles        int
	InitialCapital float64
	FinalEquity    float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	SharpeRatio    float64 // per-candle mean/stddev, annual-free
	TradeCount     int
	WinRate        float64 // fraction of trades with positive net return
	OpenPosition   bool
	Trades         []Trade
	Monthly        []MonthlyReturn
}

func buildReport(pair string, port *Portfolio, equity []equityPoint) *Report {
	rep := &Report{
		Pair:           pair,
		Start:          equity[0].Time,
		End:            equity[len(equity)-1].Time,
		Candles:        len(equity),
		InitialCapital: port.cfg.InitialCapital,
		FinalEquity:    equity[len(equity)-1].Equity,
		OpenPosition:   port.Holding(),
		Trades:         port.Trades(),
		TradeCount:     len(port.Trades()),
	}
	rep.TotalReturnPct = (rep.FinalEquity - rep.InitialCapital) / rep.InitialCapital * 100

	wins := 0
	for _, tr := range rep.Trades {
		if tr.ReturnPct > 0 {
			wins++
		}
	}
	if rep.TradeCount > 0 {
		rep.WinRate = float64(wins) / float64(rep.TradeCount)
	}

	rep.MaxDrawdownPct = maxDrawdown(equity)
	rep.SharpeRatio = sharpe(equity)
	rep.Monthly = monthlyReturns(equity)
	return rep
}

// maxDrawdown is the largest peak-to-trough equity decline, in percent.
func maxDrawdown(equity []equityPoint) float64 {
	peak := equity[0].Equity
	worst := 0.0
	for _, pt := range equity {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if dd := (peak - pt.Equity) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

// sharpe is mean per-candle return over its standard deviation, scaled by
// sqrt(N). Zero when returns never vary.
func sharpe(equity []equityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		returns = append(returns, equity[i].Equity/equity[i-1].Equity-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(float64(len(returns)))
}

func monthlyReturns(equity []equityPoint) []MonthlyReturn {
	// Last equity value per month, keyed "2024-01".
	last := map[string]float64{}
	first := map[string]float64{}
	var keys []string
	for _, pt := range equity {
		k := pt.Time.Format("2006-01")
		if _, ok := first[k]; !ok {
			first[k] = pt.Equity
			keys = append(keys, k)
		}
		last[k] = pt.Equity
	}
	sort.Strings(keys)

	out := make([]MonthlyReturn, 0, len(keys))
	prevEnd := 0.0
	for i, k := range keys {
		base := first[k]
		if i > 0 {
			base = prevEnd // carry equity across month boundaries
		}
		out = append(out, MonthlyReturn{
			Month:     k,
			ReturnPct: (last[k] - base) / base * 100,
		})
		prevEnd = last[k]
	}
	return out
}

// String renders the report for the backtest CLI.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backtest %s  %s -> %s  (%d candles)\n",
		r.Pair, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"), r.Candles)
	fmt.Fprintf(&b, "  initial capital : %.2f\n", r.InitialCapital)
	fmt.Fprintf(&b, "  final equity    : %.2f\n", r.FinalEquity)
	fmt.Fprintf(&b, "  total return    : %+.2f%%\n", r.TotalReturnPct)
	fmt.Fprintf(&b, "  max drawdown    : %.2f%%\n", r.MaxDrawdownPct)
	fmt.Fprintf(&b, "  sharpe          : %.2f\n", r.SharpeRatio)
	fmt.Fprintf(&b, "  trades          : %d  (win rate %.0f%%)\n", r.TradeCount, r.WinRate*100)
	if r.OpenPosition {
		b.WriteString("  position still open at end of history\n")
	}
	if len(r.Monthly) > 0 {
		b.WriteString("  monthly:\n")
		for _, m := range r.Monthly {
			fmt.Fprintf(&b, "    %s  %+.2f%%\n", m.Month, m.ReturnPct)
		}
	}
	if len(r.Trades) > 0 {
		b.WriteString("  trades:\n")
		for _, tr := range r.Trades {
			fmt.Fprintf(&b, "    %s -> %s  %.4f -> %.4f  %+.2f%%  (%s)\n",
				tr.EntryTime.Format("2006-01-02 15:04"), tr.ExitTime.Format("2006-01-02 15:04"),
				tr.EntryPrice, tr.ExitPrice, tr.ReturnPct, tr.ExitReason)
		}
	}
	return b.String()
}
