// Package indicators computes technical indicators over a chronological price series.
// An indicator that cannot be computed from the available history is nil, never zero.
package indicators

import (
	"fmt"
	"math"
	"strings"
)

type MACDValue struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Set holds the latest value of every indicator.
type Set struct {
	SMA10        *float64        `json:"sma_10"`
	SMA20        *float64        `json:"sma_20"`
	SMA50        *float64        `json:"sma_50"`
	SMA200       *float64        `json:"sma_200"`
	Momentum5    *float64        `json:"momentum_5"`
	Momentum10   *float64        `json:"momentum_10"`
	Momentum20   *float64        `json:"momentum_20"`
	Volatility10 *float64        `json:"volatility_10"`
	RSI14        *float64        `json:"rsi_14"`
	MACD         *MACDValue      `json:"macd"`
	Bollinger    *BollingerBands `json:"bollinger"`
	AvgVolume5   *float64        `json:"avg_volume_5"`
	VolumeTrend  *float64        `json:"volume_trend"`
}

// Compute derives every indicator from prices and the aligned volumes.
func Compute(prices, volumes []float64) Set {
	return Set{
		SMA10:        SMA(prices, 10),
		SMA20:        SMA(prices, 20),
		SMA50:        SMA(prices, 50),
		SMA200:       SMA(prices, 200),
		Momentum5:    Momentum(prices, 5),
		Momentum10:   Momentum(prices, 10),
		Momentum20:   Momentum(prices, 20),
		Volatility10: Volatility(prices, 10),
		RSI14:        RSI(prices, 14),
		MACD:         MACD(prices, 12, 26, 9),
		Bollinger:    Bollinger(prices, 20, 2),
		AvgVolume5:   SMA(volumes, 5),
		VolumeTrend:  VolumeTrend(volumes, 5),
	}
}

// SMA is the mean of the last n values.
func SMA(values []float64, n int) *float64 {
	if n <= 0 || len(values) < n {
		return nil
	}
	v := mean(values[len(values)-n:])
	return &v
}

// Momentum is the percent change over the last n periods.
func Momentum(prices []float64, n int) *float64 {
	if n <= 0 || len(prices) < n+1 {
		return nil
	}
	base := prices[len(prices)-1-n]
	if base == 0 {
		return nil
	}
	v := (prices[len(prices)-1] - base) / base * 100
	return &v
}

// Volatility is the population standard deviation of the last n values.
func Volatility(values []float64, n int) *float64 {
	if n <= 0 || len(values) < n {
		return nil
	}
	v := stddev(values[len(values)-n:])
	return &v
}

// RSI uses simple means of the last period day-over-day gains and losses.
func RSI(prices []float64, period int) *float64 {
	if period <= 0 || len(prices) < period+1 {
		return nil
	}
	window := prices[len(prices)-period-1:]
	var gain, loss float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain, avgLoss := gain/float64(period), loss/float64(period)

	v := 100.0
	if avgLoss != 0 {
		v = 100 - 100/(1+avgGain/avgLoss)
	}
	return &v
}

// EMA returns the full exponential moving average series seeded with the first value.
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 || span <= 0 {
		return nil
	}
	alpha := 2 / (float64(span) + 1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD needs at least slow prices.
func MACD(prices []float64, fast, slow, signal int) *MACDValue {
	if len(prices) < slow || fast <= 0 || signal <= 0 {
		return nil
	}
	fastEMA, slowEMA := EMA(prices, fast), EMA(prices, slow)
	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig := EMA(line, signal)
	last := len(line) - 1
	return &MACDValue{
		Line:      line[last],
		Signal:    sig[last],
		Histogram: line[last] - sig[last],
	}
}

// Bollinger bands are the n-period SMA plus and minus k standard deviations.
func Bollinger(prices []float64, n int, k float64) *BollingerBands {
	if n <= 0 || len(prices) < n {
		return nil
	}
	window := prices[len(prices)-n:]
	mid, sd := mean(window), stddev(window)
	return &BollingerBands{Upper: mid + k*sd, Middle: mid, Lower: mid - k*sd}
}

// VolumeTrend is the ratio of the last n volumes' mean to the previous n.
func VolumeTrend(volumes []float64, n int) *float64 {
	if n <= 0 || len(volumes) < 2*n {
		return nil
	}
	recent := mean(volumes[len(volumes)-n:])
	prior := mean(volumes[len(volumes)-2*n : len(volumes)-n])
	if prior == 0 {
		return nil
	}
	v := recent / prior
	return &v
}

// Summary renders the set one indicator per line; absent values print as N/A.
func (s Set) Summary() string {
	var b strings.Builder
	line := func(name string, v *float64, format string) {
		if v == nil {
			fmt.Fprintf(&b, "%s: N/A\n", name)
			return
		}
		fmt.Fprintf(&b, "%s: "+format+"\n", name, *v)
	}
	line("SMA(10)", s.SMA10, "%.2f")
	line("SMA(20)", s.SMA20, "%.2f")
	line("SMA(50)", s.SMA50, "%.2f")
	line("SMA(200)", s.SMA200, "%.2f")
	line("Momentum(5)", s.Momentum5, "%.2f%%")
	line("Momentum(10)", s.Momentum10, "%.2f%%")
	line("Momentum(20)", s.Momentum20, "%.2f%%")
	line("Volatility(10)", s.Volatility10, "%.2f")
	line("RSI(14)", s.RSI14, "%.1f")
	if s.MACD != nil {
		fmt.Fprintf(&b, "MACD(12,26,9): line %.3f, signal %.3f, histogram %.3f\n", s.MACD.Line, s.MACD.Signal, s.MACD.Histogram)
	} else {
		b.WriteString("MACD(12,26,9): N/A\n")
	}
	if s.Bollinger != nil {
		fmt.Fprintf(&b, "Bollinger(20,2): upper %.2f, middle %.2f, lower %.2f\n", s.Bollinger.Upper, s.Bollinger.Middle, s.Bollinger.Lower)
	} else {
		b.WriteString("Bollinger(20,2): N/A\n")
	}
	line("Avg Volume(5)", s.AvgVolume5, "%.0f")
	line("Volume Trend(5 vs prior 5)", s.VolumeTrend, "%.2fx")
	return strings.TrimRight(b.String(), "\n")
}

// Values flattens the set into named scalars, keeping absent entries as nil.
func (s Set) Values() map[string]*float64 {
	out := map[string]*float64{
		"sma_10":        s.SMA10,
		"sma_20":        s.SMA20,
		"sma_50":        s.SMA50,
		"sma_200":       s.SMA200,
		"momentum_5":    s.Momentum5,
		"momentum_10":   s.Momentum10,
		"momentum_20":   s.Momentum20,
		"volatility_10": s.Volatility10,
		"rsi_14":        s.RSI14,
		"avg_volume_5":  s.AvgVolume5,
		"volume_trend":  s.VolumeTrend,
		"macd":          nil,
		"macd_signal":   nil,
		"macd_hist":     nil,
		"boll_upper":    nil,
		"boll_middle":   nil,
		"boll_lower":    nil,
	}
	if s.MACD != nil {
		m := *s.MACD
		out["macd"], out["macd_signal"], out["macd_hist"] = &m.Line, &m.Signal, &m.Histogram
	}
	if s.Bollinger != nil {
		bb := *s.Bollinger
		out["boll_upper"], out["boll_middle"], out["boll_lower"] = &bb.Upper, &bb.Middle, &bb.Lower
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)))
}
