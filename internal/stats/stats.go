// Package stats computes descriptive statistics over a window of readings.
// Every function is pure and safe for concurrent use.
package stats

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"telemetry-bridge/internal/models"
)

// ErrEmptyWindow is matched by EmptyWindowError via errors.Is
var ErrEmptyWindow = errors.New("window has no numeric values")

// EmptyWindowError is returned when nothing usable is left after filtering
type EmptyWindowError struct {
	// Rows is how many rows were supplied before filtering
	Rows int
}

func (e *EmptyWindowError) Error() string {
	return ErrEmptyWindow.Error() + " (" + strconv.Itoa(e.Rows) + " rows supplied)"
}

func (e *EmptyWindowError) Is(target error) bool {
	return target == ErrEmptyWindow
}

// Report holds the metrics for one window. It is recomputed per request.
type Report struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Mode    float64 `json:"mode"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	P25     float64 `json:"p25"`
	P50     float64 `json:"p50"`
	P75     float64 `json:"p75"`
}

// Compute builds a Report from values in input order. NaN and infinite
// values are dropped first.
func Compute(values []float64) (Report, error) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		valid = append(valid, v)
	}
	if len(valid) == 0 {
		return Report{}, &EmptyWindowError{Rows: len(values)}
	}

	sorted := make([]float64, len(valid))
	copy(sorted, valid)
	sort.Float64s(sorted)

	avg := Mean(valid)
	return Report{
		Count:   len(valid),
		Average: avg,
		Median:  medianSorted(sorted),
		Mode:    Mode(valid),
		StdDev:  populationStdDev(valid, avg),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		P25:     percentileSorted(sorted, 25),
		P50:     percentileSorted(sorted, 50),
		P75:     percentileSorted(sorted, 75),
	}, nil
}

// ComputeText parses each row as a decimal number, skipping rows that do
// not parse, and computes a Report over the rest.
func ComputeText(rows []string) (Report, error) {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		v, err := strconv.ParseFloat(strings.TrimSpace(row), 64)
		if err != nil {
			values = append(values, math.NaN())
			continue
		}
		values = append(values, v)
	}
	return Compute(values)
}

// ComputeSamples computes a Report over the values of a historical window
func ComputeSamples(samples []models.Sample) (Report, error) {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return Compute(values)
}

// Mean is the arithmetic mean; 0 for an empty slice. Values near the
// float64 limit do not overflow the result.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	if !math.IsInf(sum, 0) {
		return sum / float64(len(values))
	}

	var m float64
	for i, v := range values {
		n := float64(i + 1)
		m += v/n - m/n
	}
	return m
}

// Median of values; 0 for an empty slice
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return medianSorted(sorted)
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 0 {
		return sorted[mid-1]/2 + sorted[mid]/2
	}
	return sorted[mid]
}

// Mode returns the most frequent value. Among values sharing the highest
// count, the one that occurs first in input order wins.
func Mode(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	best, bestCount := values[0], 0
	for _, v := range values {
		if c := counts[v]; c > bestCount {
			best, bestCount = v, c
		}
	}
	return best
}

// StdDev is the population standard deviation (divides by N)
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return populationStdDev(values, Mean(values))
}

func populationStdDev(values []float64, mean float64) float64 {
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	if !math.IsInf(sq, 0) {
		return math.Sqrt(sq / float64(len(values)))
	}

	// Deviations too large to square; scale them down first
	var scale float64
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v/2-mean/2))
	}
	sq = 0
	for _, v := range values {
		d := (v/2 - mean/2) / scale
		sq += d * d
	}
	return 2 * scale * math.Sqrt(sq/float64(len(values)))
}

// Percentile uses linear interpolation between closest ranks on the sorted
// values: position = (N-1)*p/100.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	pos := float64(len(sorted)-1) * p / 100
	lower := int(math.Floor(pos))
	if lower < 0 {
		return sorted[0]
	}
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lower)
	if span := sorted[upper] - sorted[lower]; !math.IsInf(span, 0) {
		return sorted[lower] + frac*span
	}
	return sorted[lower] + frac*sorted[upper] - frac*sorted[lower]
}
