package searcher

import (
	"golang.org/x/exp/rand"
)

// Rand is a seeded random source whose state can be saved in a status file
// and restored, so a resumed run continues the same sequence.
type Rand struct {
	*rand.Rand
	src *rand.PCGSource
}

func NewRand(seed uint64) *Rand {
	src := &rand.PCGSource{}
	src.Seed(seed)
	return &Rand{Rand: rand.New(src), src: src}
}

func (r *Rand) MarshalBinary() ([]byte, error) {
	return r.src.MarshalBinary()
}

func (r *Rand) UnmarshalBinary(data []byte) error {
	return r.src.UnmarshalBinary(data)
}
