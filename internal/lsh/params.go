// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lsh

import (
	"fmt"
	"math"
)

// Params is the banding layout: Bands bands of Rows hash values each.
// Bands*Rows never exceeds the signature width; trailing slots are unused.
type Params struct {
	Bands int `json:"bands" yaml:"bands"`
	Rows  int `json:"rows" yaml:"rows"`
}

// Crossover is the similarity at which the S-curve 1-(1-s^r)^b turns, (1/b)^(1/r).
func (p Params) Crossover() float64 {
	return math.Pow(1/float64(p.Bands), 1/float64(p.Rows))
}

// Probability returns the chance that a pair with similarity s shares at
// least one band.
func (p Params) Probability(s float64) float64 {
	return 1 - math.Pow(1-math.Pow(s, float64(p.Rows)), float64(p.Bands))
}

// Weights balance false positives against false negatives when choosing
// Params.
const (
	falsePositiveWeight = 0.5
	falseNegativeWeight = 0.5
	integrationSteps    = 128
)

// OptimalParams picks the (bands, rows) pair with b*r <= numPerm that
// minimises the weighted area of false positives below threshold and false
// negatives above it.
func OptimalParams(threshold float64, numPerm int) (Params, error) {
	if threshold <= 0 || threshold >= 1 {
		return Params{}, fmt.Errorf("threshold must be in (0, 1), got %v", threshold)
	}
	if numPerm <= 0 {
		return Params{}, fmt.Errorf("num_perm must be positive, got %d", numPerm)
	}

	best := Params{Bands: 1, Rows: 1}
	minErr := math.Inf(1)
	for b := 1; b <= numPerm; b++ {
		for r := 1; r <= numPerm/b; r++ {
			p := Params{Bands: b, Rows: r}
			fp := integrate(p.Probability, 0, threshold)
			fn := integrate(func(s float64) float64 { return 1 - p.Probability(s) }, threshold, 1)
			if e := fp*falsePositiveWeight + fn*falseNegativeWeight; e < minErr {
				minErr = e
				best = p
			}
		}
	}
	return best, nil
}

// integrate applies composite Simpson's rule on [lo, hi].
func integrate(f func(float64) float64, lo, hi float64) float64 {
	h := (hi - lo) / integrationSteps
	sum := f(lo) + f(hi)
	for i := 1; i < integrationSteps; i++ {
		x := lo + float64(i)*h
		if i%2 == 1 {
			sum += 4 * f(x)
		} else {
			sum += 2 * f(x)
		}
	}
	return sum * h / 3
}
