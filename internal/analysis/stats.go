package analysis

import "math"

type Summary struct {
	N    int
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	RMS  float64
}

func Summarize(values []float64) Summary {
	s := Summary{N: len(values)}
	if s.N == 0 {
		return s
	}
	s.Min, s.Max = values[0], values[0]
	sum, sq := 0.0, 0.0
	for _, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
		sq += v * v
	}
	n := float64(s.N)
	s.Mean = sum / n
	s.RMS = math.Sqrt(sq / n)
	s.Std = math.Sqrt(math.Max(sq/n-s.Mean*s.Mean, 0))
	return s
}

// CrossCorrelation finds the shift in samples, within ±maxLag, at which b
// best matches a. A positive lag means b trails a. The returned coefficient
// is the Pearson correlation over the overlapping samples.
func CrossCorrelation(a, b []float64, maxLag int) (lag int, coeff float64, err error) {
	n := min(len(a), len(b))
	if n < 3 {
		return 0, 0, ErrTooShort
	}
	maxLag = min(maxLag, n-2)

	coeff = math.Inf(-1)
	for k := -maxLag; k <= maxLag; k++ {
		var xs, ys []float64
		if k >= 0 {
			xs, ys = a[:n-k], b[k:n]
		} else {
			xs, ys = a[-k:n], b[:n+k]
		}
		if c := pearson(xs, ys); c > coeff {
			lag, coeff = k, c
		}
	}
	return lag, coeff, nil
}

func pearson(x, y []float64) float64 {
	sx, sy := Summarize(x), Summarize(y)
	if sx.Std == 0 || sy.Std == 0 {
		return 0
	}
	cov := 0.0
	for i := range x {
		cov += (x[i] - sx.Mean) * (y[i] - sy.Mean)
	}
	return cov / float64(len(x)) / (sx.Std * sy.Std)
}
