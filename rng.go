package main

import (
	"math/rand"

	"github.com/dgryski/go-wyhash"
)

// flavors is the fixed set of messages used for periodic log output. The
// picker draws from it uniformly so that dashboards see a stable message
// cardinality no matter how long the app runs.
var flavors = []string{
	"The fire crackles softly",
	"Embers glow in the darkness",
	"A log shifts and sparks fly",
	"The flames dance hypnotically",
	"Warmth radiates from the hearth",
	"Smoke curls up the chimney",
	"The fire pops and hisses",
	"Coals pulse with inner light",
}

// Rng wraps a seeded random number generator. Seeding with a string means a
// run can be reproduced exactly by passing the same seed on the command line.
// Not safe for concurrent use; callers serialize access.
type Rng struct {
	rng *rand.Rand
}

func NewRng(s string) Rng {
	return Rng{rand.New(rand.NewSource(int64(wyhash.Hash([]byte(s), 2467825690))))}
}

func (r Rng) Intn(n int) int64 {
	return int64(r.rng.Intn(n))
}

func (r Rng) Int(min, max int) int64 {
	return int64(r.rng.Intn(max-min) + min)
}

func (r Rng) Float(min, max float64) float64 {
	return r.rng.Float64()*(max-min) + min
}

func (r Rng) Choice(a []string) string {
	return a[r.Intn(len(a))]
}

// BoolWithProb returns true with a probability of p percent.
func (r Rng) BoolWithProb(p int) bool {
	return r.Int(0, 100) < int64(p)
}
