package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

var defaultSource = newSource()

func newSource() *source {
	seed := make([]byte, 16)

	if _, err := cryptorand.Read(seed); err != nil {
		panic("unreachable")
	}

	return &source{
		//nolint:gosec // jitter is not security-sensitive
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		)),
	}
}

type source struct {
	mut sync.Mutex
	rng *rand.Rand
}

func (s *source) unit() float64 {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.rng.Float64()
}

// SymmetricUnit returns a uniformly distributed value in [-1, 1).
// It is used to perturb retry delays so that many clients recovering
// from the same outage do not reconnect in lockstep.
func SymmetricUnit() float64 {
	return defaultSource.unit()*2 - 1
}
