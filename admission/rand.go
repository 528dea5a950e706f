package admission

// lcg is the linear congruential generator the reference implementation
// uses for admission decisions (misc::Rand, a Knuth MMIX generator). Kept
// as a small hand-rolled generator rather than math/rand because admission
// decisions must be exactly reproducible across runs given a fixed seed,
// independent of any changes to Go's math/rand algorithm across releases.
type lcg struct {
	state uint64
}

func newLCG(seed uint64) *lcg {
	return &lcg{state: seed}
}

func (g *lcg) next() uint64 {
	g.state = 6364136223846793005*g.state + 1442695040888963407
	return g.state
}
