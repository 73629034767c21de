package movement

import "time"

// BrakeCooldown is the minimum gap between two counted braking events.
const BrakeCooldown = 3000 * time.Millisecond

// BrakeDetector rate-limits braking events so one maneuver spanning several
// samples is counted once.
type BrakeDetector struct {
	cooldownMs    int64
	lastCountedMs int64
	counted       bool
	count         int
	braking       bool
}

// NewBrakeDetector uses cooldown, or BrakeCooldown when it is not positive.
func NewBrakeDetector(cooldown time.Duration) *BrakeDetector {
	if cooldown <= 0 {
		cooldown = BrakeCooldown
	}
	return &BrakeDetector{cooldownMs: cooldown.Milliseconds()}
}

// Observe records u at nowMs and reports whether a new braking event was counted.
func (d *BrakeDetector) Observe(u KinematicUpdate, nowMs int64) bool {
	d.braking = u.IsBraking
	if !u.IsBraking {
		return false
	}
	if d.counted && nowMs-d.lastCountedMs < d.cooldownMs {
		return false
	}
	d.counted = true
	d.lastCountedMs = nowMs
	d.count++
	return true
}

// Braking is the instantaneous state from the last update.
func (d *BrakeDetector) Braking() bool { return d.braking }

// Count is the number of counted events.
func (d *BrakeDetector) Count() int { return d.count }

// Reset forgets all events.
func (d *BrakeDetector) Reset() {
	*d = BrakeDetector{cooldownMs: d.cooldownMs}
}
