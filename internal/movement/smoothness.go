package movement

import "math"

const (
	// SmoothnessWindowSize is how many recent accelerations are scored.
	SmoothnessWindowSize = 10

	maxScore     = 100.0
	scorePenalty = 10.0
)

// SmoothnessWindow keeps the last SmoothnessWindowSize absolute accelerations.
type SmoothnessWindow struct {
	buf  [SmoothnessWindowSize]float64
	head int
	size int
}

// Push adds |accelMs2|, evicting the oldest value when full.
func (w *SmoothnessWindow) Push(accelMs2 float64) {
	v := math.Abs(accelMs2)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	idx := (w.head + w.size) % SmoothnessWindowSize
	if w.size == SmoothnessWindowSize {
		w.buf[w.head] = v
		w.head = (w.head + 1) % SmoothnessWindowSize
		return
	}
	w.buf[idx] = v
	w.size++
}

// Score is max(0, 100 - 10*mean). An empty window scores 100.
func (w *SmoothnessWindow) Score() float64 {
	if w.size == 0 {
		return maxScore
	}
	var sum float64
	for i := 0; i < w.size; i++ {
		sum += w.buf[(w.head+i)%SmoothnessWindowSize]
	}
	score := maxScore - sum/float64(w.size)*scorePenalty
	return math.Min(maxScore, math.Max(0, score))
}

// Values returns the window oldest first.
func (w *SmoothnessWindow) Values() []float64 {
	out := make([]float64, w.size)
	for i := range out {
		out[i] = w.buf[(w.head+i)%SmoothnessWindowSize]
	}
	return out
}

// Len is the number of buffered values.
func (w *SmoothnessWindow) Len() int { return w.size }

func (w *SmoothnessWindow) Reset() { *w = SmoothnessWindow{} }
