package searcher

import (
	"fmt"
	"math"
	"sort"
)

// Distribution is a product of independent Gaussians, one per parameter.
type Distribution struct {
	Mean     []float64 `json:"mean"`
	Variance []float64 `json:"variance"`
}

func NewDistribution(mean, variance []float64) (*Distribution, error) {
	if len(mean) != len(variance) {
		return nil, fmt.Errorf("%d means but %d variances", len(mean), len(variance))
	}
	if len(mean) == 0 {
		return nil, fmt.Errorf("no parameters")
	}
	for i, v := range variance {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("parameter %d: invalid variance %v", i, v)
		}
	}
	return &Distribution{
		Mean:     append([]float64(nil), mean...),
		Variance: append([]float64(nil), variance...),
	}, nil
}

func (d *Distribution) Dimension() int { return len(d.Mean) }

// Sample draws one point.
func (d *Distribution) Sample(rng *Rand) []float64 {
	p := make([]float64, len(d.Mean))
	for i := range p {
		p[i] = d.Mean[i] + math.Sqrt(d.Variance[i])*rng.NormFloat64()
	}
	return p
}

// Update returns the distribution moved towards the moments of the elite
// samples: each new moment is stepSize of the elite moment plus
// (1 - stepSize) of the old one.
func (d *Distribution) Update(elites [][]float64, stepSize float64) *Distribution {
	n := float64(len(elites))
	next := &Distribution{
		Mean:     make([]float64, len(d.Mean)),
		Variance: make([]float64, len(d.Variance)),
	}
	for i := range d.Mean {
		var sum float64
		for _, e := range elites {
			sum += e[i]
		}
		mean := sum / n
		var squares float64
		for _, e := range elites {
			squares += (e[i] - mean) * (e[i] - mean)
		}
		variance := squares / n
		next.Mean[i] = stepSize*mean + (1-stepSize)*d.Mean[i]
		next.Variance[i] = stepSize*variance + (1-stepSize)*d.Variance[i]
	}
	return next
}

func (d *Distribution) MaxVariance() float64 {
	max := math.Inf(-1)
	for _, v := range d.Variance {
		max = math.Max(max, v)
	}
	return max
}

// EliteCount is how many of the samples update the distribution. It's
// always at least one.
func EliteCount(samples int, proportion float64) int {
	n := int(math.Floor(proportion * float64(samples)))
	if n < 1 {
		return 1
	}
	return n
}

// EliteIndices returns the indices of the count highest scores, best first.
// Equal scores keep their sample order.
func EliteIndices(scores []float64, count int) []int {
	indices := make([]int, len(scores))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})
	if count > len(indices) {
		count = len(indices)
	}
	return indices[:count]
}
