// Package indicators provides moving averages over price series (EMA, SMA).
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// Summary describes a window of prices.
type Summary struct {
	Latest  decimal.Decimal `json:"latest"`
	Min     decimal.Decimal `json:"min"`
	Max     decimal.Decimal `json:"max"`
	SMA     decimal.Decimal `json:"sma"`
	EMA     decimal.Decimal `json:"ema"`
	Period  int             `json:"period"`
	Samples int             `json:"samples"`
}

// CalculateEMA calculates the Exponential Moving Average for the given period.
// The result has len(values)-period+1 points, the first being the SMA seed.
func CalculateEMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := checkWindow(values, period); err != nil {
		return nil, err
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := ema.Compute(helper.SliceToChan(decimalsToFloat64(values)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// CalculateSMA calculates the Simple Moving Average for the given period.
func CalculateSMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := checkWindow(values, period); err != nil {
		return nil, err
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	out := sma.Compute(helper.SliceToChan(decimalsToFloat64(values)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// Summarize reports the last moving averages of values, oldest first.
// When fewer than period values exist the period shrinks to what is there.
func Summarize(values []decimal.Decimal, period int) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, fmt.Errorf("no data points")
	}
	if period <= 0 {
		return Summary{}, fmt.Errorf("period must be positive, got %d", period)
	}
	if period > len(values) {
		period = len(values)
	}

	s := Summary{
		Latest:  values[len(values)-1],
		Min:     decimal.Min(values[0], values[1:]...),
		Max:     decimal.Max(values[0], values[1:]...),
		Period:  period,
		Samples: len(values),
	}

	sma, err := CalculateSMA(values, period)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to calculate SMA%d: %w", period, err)
	}
	ema, err := CalculateEMA(values, period)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to calculate EMA%d: %w", period, err)
	}
	if len(sma) > 0 {
		s.SMA = sma[len(sma)-1]
	}
	if len(ema) > 0 {
		s.EMA = ema[len(ema)-1]
	}

	return s, nil
}

func checkWindow(values []decimal.Decimal, period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if len(values) < period {
		return fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}
	return nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
