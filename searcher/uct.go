package searcher

import "math"

// uct scores the children of one node:
// value + c * sqrt(ln N) / sqrt(n)
type uct struct {
	numerator float64
}

func newUCT(coefficient, parentVisits float64) uct {
	if parentVisits <= 1 {
		return uct{}
	}
	return uct{numerator: coefficient * math.Sqrt(math.Log(parentVisits))}
}

func (u uct) evaluate(child *Node) float64 {
	return child.value + u.numerator*child.rsqrtVisits
}
