// Package viz holds the eased amplitude buffer behind the level bars.
package viz

// Fixed visualization parameters. These are behavior, not tunables.
const (
	// BarCount is the number of bars.
	BarCount = 20
	// Floor is the resting bar value.
	Floor = 0.15
	// Ceiling is the level's contribution above the floor.
	Ceiling = 0.85
	// Easing is the per-tick interpolation factor toward the target.
	Easing = 0.3
)

// Buffer is a damped-response array: every slot eases toward the same
// target derived from the latest level, so the bars smooth a single
// scalar over time rather than spreading it spatially.
//
// Values live in [Floor, 1.0] by construction of the easing formula.
// Float drift a hair outside that range is tolerated, not clamped.
type Buffer struct {
	slots [BarCount]float64
}

// NewBuffer returns a buffer at rest, all slots at the floor.
func NewBuffer() *Buffer {
	b := &Buffer{}
	b.Reset()
	return b
}

// Update eases every slot toward the target for the given level,
// which must be in [0,1]. Called once per analyzer tick.
func (b *Buffer) Update(level float64) {
	target := Floor + level*Ceiling
	for i := range b.slots {
		b.slots[i] += (target - b.slots[i]) * Easing
	}
}

// Reset snaps all slots back to the floor. This is the hard reset on
// leaving the recording state, deliberately not eased.
func (b *Buffer) Reset() {
	for i := range b.slots {
		b.slots[i] = Floor
	}
}

// Bars returns a copy of the slot values.
func (b *Buffer) Bars() []float64 {
	out := make([]float64, BarCount)
	copy(out, b.slots[:])
	return out
}
