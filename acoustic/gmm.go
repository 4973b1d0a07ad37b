package acoustic

import (
	"math"
	"math/rand"

	"github.com/ieee0824/sphinx-go/logmath"
)

// Gaussian represents a single multivariate Gaussian component with diagonal covariance.
type Gaussian struct {
	Mean      []float64 // [dim]
	Variance  []float64 // [dim] diagonal covariance
	LogWeight float64   // log mixture weight

	logNormConst float64
	invVariance  []float64 // [dim] 1/Variance
}

// Precompute recalculates cached normalization constants and inverse variances.
// Must be called after updating Mean, Variance, or LogWeight.
func (g *Gaussian) Precompute() {
	dim := len(g.Mean)
	g.logNormConst = float64(dim)/2.0*math.Log(2*math.Pi) + 0.5*sumLog(g.Variance)
	g.invVariance = make([]float64, dim)
	for i := range g.Variance {
		g.invVariance[i] = 1.0 / g.Variance[i]
	}
}

// LogProb computes the log probability of observation x under this Gaussian.
func (g *Gaussian) LogProb(x []float64) float64 {
	return -0.5*mahalanobis(x, g.Mean, g.invVariance) - g.logNormConst
}

func mahalanobis(x, mean, invVar []float64) float64 {
	sum := 0.0
	for i := range mean {
		d := x[i] - mean[i]
		sum += d * d * invVar[i]
	}
	return sum
}

func sumLog(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += math.Log(x)
	}
	return s
}

// GMM is a Gaussian Mixture Model with diagonal covariance.
type GMM struct {
	Components []Gaussian
	Dim        int

	// Packed copies of the component parameters, built by PrecomputeSoA.
	soaMean   []float64 // [k*dim]
	soaInvVar []float64 // [k*dim]
	soaConst  []float64 // [k] logWeight - logNormConst
}

// PrecomputeSoA packs component parameters for LogProb. Call after all
// components are set.
func (g *GMM) PrecomputeSoA() {
	k := len(g.Components)
	dim := g.Dim
	g.soaMean = make([]float64, k*dim)
	g.soaInvVar = make([]float64, k*dim)
	g.soaConst = make([]float64, k)
	for i := range g.Components {
		g.Components[i].Precompute()
		off := i * dim
		copy(g.soaMean[off:off+dim], g.Components[i].Mean)
		copy(g.soaInvVar[off:off+dim], g.Components[i].invVariance)
		g.soaConst[i] = g.Components[i].LogWeight - g.Components[i].logNormConst
	}
}

// NewGMM creates a GMM with k components of dimension dim, initialized randomly.
func NewGMM(k, dim int) *GMM {
	means := make([][]float64, k)
	variances := make([][]float64, k)
	logWeights := make([]float64, k)
	for i := 0; i < k; i++ {
		means[i] = make([]float64, dim)
		variances[i] = make([]float64, dim)
		for d := 0; d < dim; d++ {
			means[i][d] = rand.NormFloat64()
			variances[i][d] = 1.0
		}
		logWeights[i] = -math.Log(float64(k))
	}
	return NewGMMWithParams(means, variances, logWeights)
}

// NewGMMWithParams creates a GMM from given parameters.
func NewGMMWithParams(means, variances [][]float64, logWeights []float64) *GMM {
	k := len(means)
	dim := len(means[0])
	g := &GMM{
		Components: make([]Gaussian, k),
		Dim:        dim,
	}
	for i := range g.Components {
		g.Components[i] = Gaussian{
			Mean:      append([]float64(nil), means[i]...),
			Variance:  append([]float64(nil), variances[i]...),
			LogWeight: logWeights[i],
		}
	}
	g.PrecomputeSoA()
	return g
}

// LogProb computes log P(x | this GMM) = log sum_k w_k * N(x; μ_k, σ_k).
func (g *GMM) LogProb(x []float64) float64 {
	if g.soaMean == nil {
		logSum := logmath.LogZero
		for i := range g.Components {
			lp := g.Components[i].LogWeight + g.Components[i].LogProb(x)
			logSum = logmath.AddLn(logSum, lp)
		}
		return logSum
	}
	dim := g.Dim
	logSum := logmath.LogZero
	for c := range g.soaConst {
		off := c * dim
		maha := mahalanobis(x, g.soaMean[off:off+dim], g.soaInvVar[off:off+dim])
		logSum = logmath.AddLn(logSum, g.soaConst[c]-0.5*maha)
	}
	return logSum
}

// LogProbBatch computes LogProb for multiple observations, writing results into dst.
func (g *GMM) LogProbBatch(xs [][]float64, dst []float64) {
	for i, x := range xs {
		dst[i] = g.LogProb(x)
	}
}
