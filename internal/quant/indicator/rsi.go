package indicator

import "github.com/shopspring/decimal"

// RSI computes the Relative Strength Index over a decimal close series
// using Wilder's smoothing: RSI = 100 - (100 / (1 + avgGain/avgLoss)).
// Returns a neutral 50 until period+1 closes are available, matching the
// "not enough history yet" convention the strategy examples rely on.
func RSI(closes []decimal.Decimal, period int) decimal.Decimal {
	neutral := decimal.NewFromInt(50)
	if len(closes) < period+1 || period <= 0 {
		return neutral
	}

	gains := make([]decimal.Decimal, 0, len(closes)-1)
	losses := make([]decimal.Decimal, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i].Sub(closes[i-1])
		if change.IsPositive() {
			gains = append(gains, change)
			losses = append(losses, decimal.Zero)
		} else {
			gains = append(gains, decimal.Zero)
			losses = append(losses, change.Abs())
		}
	}

	periodDec := decimal.NewFromInt(int64(period))
	avgGain := decimal.Zero
	avgLoss := decimal.Zero
	for i := 0; i < period; i++ {
		avgGain = avgGain.Add(gains[i])
		avgLoss = avgLoss.Add(losses[i])
	}
	avgGain = avgGain.Div(periodDec)
	avgLoss = avgLoss.Div(periodDec)

	periodMinusOne := decimal.NewFromInt(int64(period - 1))
	for i := period; i < len(gains); i++ {
		avgGain = avgGain.Mul(periodMinusOne).Add(gains[i]).Div(periodDec)
		avgLoss = avgLoss.Mul(periodMinusOne).Add(losses[i]).Div(periodDec)
	}

	if avgLoss.IsZero() {
		return decimal.NewFromInt(100)
	}

	rs := avgGain.Div(avgLoss)
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	return hundred.Sub(hundred.Div(one.Add(rs)))
}
