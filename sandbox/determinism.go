package sandbox

import "math/rand/v2"

// Determinism is the facade workflow code gets instead of ambient
// time/randomness. now is fixed per-activation (spec.md §4.3: "monotonic
// time is supplied by activation"); the random source is seeded from
// randomnessSeed and reseeded whenever an updateRandomSeed job arrives.
// Workflow code that calls time.Now or the global math/rand directly is not
// detected; DeterminismViolationError is raised only by Bindings, for calls
// to a global or dependency that was never injected.
type Determinism struct {
	nowUnixNano int64
	rng         *rand.Rand
}

func newDeterminism(seed int64, nowUnixNano int64) *Determinism {
	return &Determinism{
		nowUnixNano: nowUnixNano,
		rng:         rand.New(rand.NewPCG(uint64(seed), uint64(seed>>32)|1)),
	}
}

// Now returns the activation's fixed wall-clock time, not time.Now().
func (d *Determinism) Now() int64 { return d.nowUnixNano }

// SetNow advances the facade's clock to a new activation's Now value.
func (d *Determinism) SetNow(nowUnixNano int64) { d.nowUnixNano = nowUnixNano }

// Reseed implements the updateRandomSeed job (spec.md §3 job variants).
func (d *Determinism) Reseed(seed int64) {
	d.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed>>32)|1))
}

// Float64/IntN give workflow code deterministic randomness sourced only
// from the seeded generator.
func (d *Determinism) Float64() float64 { return d.rng.Float64() }
func (d *Determinism) IntN(n int) int   { return d.rng.IntN(n) }
