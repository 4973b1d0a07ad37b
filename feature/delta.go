package feature

const deltaWindow = 2

// deltaDenom is 2 * sum_{n=1}^{N} n^2 for N = deltaWindow.
var deltaDenom = func() float64 {
	d := 0.0
	for n := 1; n <= deltaWindow; n++ {
		d += float64(n * n)
	}
	return 2 * d
}()

// Delta computes delta (first derivative) coefficients with window N.
// Uses the regression formula: d[t] = sum_{n=1}^{N} n*(c[t+n] - c[t-n]) / (2 * sum_{n=1}^{N} n^2)
// with indices clamped to the sequence.
func Delta(features [][]float64, N int) [][]float64 {
	T := len(features)
	if T == 0 {
		return nil
	}
	dim := len(features[0])
	denom := 0.0
	for n := 1; n <= N; n++ {
		denom += float64(n * n)
	}
	denom *= 2.0

	deltas := make([][]float64, T)
	buf := make([]float64, T*dim)
	for t := 0; t < T; t++ {
		deltas[t] = buf[t*dim : (t+1)*dim]
		deltaInto(deltas[t], features, t, N, T-1, denom)
	}
	return deltas
}

// deltaInto writes the delta of frame t into dst, clamping indices to [0, last].
func deltaInto(dst []float64, seq [][]float64, t, N, last int, denom float64) {
	for d := range dst {
		num := 0.0
		for n := 1; n <= N; n++ {
			tp := min(t+n, last)
			tn := max(t-n, 0)
			num += float64(n) * (seq[tp][d] - seq[tn][d])
		}
		dst[d] = num / denom
	}
}

// AppendDeltas appends delta and delta-delta columns to each frame.
// Input: [T][D] -> Output: [T][3*D]
func AppendDeltas(features [][]float64) [][]float64 {
	d1 := Delta(features, deltaWindow)
	d2 := Delta(d1, deltaWindow)

	T := len(features)
	dim := len(features[0])
	out := make([][]float64, T)
	rowBuf := make([]float64, T*dim*3)
	for t := 0; t < T; t++ {
		row := rowBuf[t*dim*3 : (t+1)*dim*3]
		copy(row[:dim], features[t])
		copy(row[dim:dim*2], d1[t])
		copy(row[dim*2:], d2[t])
		out[t] = row
	}
	return out
}
