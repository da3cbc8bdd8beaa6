package indicator

// window is a fixed-capacity FIFO of the most recent values.
type window struct {
	buf   []float64
	start int
	n     int
}

func newWindow(size int) *window {
	return &window{buf: make([]float64, size)}
}

// push appends v, evicting the oldest value once full.
// It returns the evicted value and whether one was evicted.
func (w *window) push(v float64) (float64, bool) {
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = v
		w.n++
		return 0, false
	}
	old := w.buf[w.start]
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
	return old, true
}

func (w *window) full() bool { return w.n == len(w.buf) }
func (w *window) len() int   { return w.n }

// at returns the i-th stored value, oldest first.
func (w *window) at(i int) float64 {
	return w.buf[(w.start+i)%len(w.buf)]
}

func (w *window) max() float64 {
	m := w.at(0)
	for i := 1; i < w.n; i++ {
		if v := w.at(i); v > m {
			m = v
		}
	}
	return m
}

func (w *window) min() float64 {
	m := w.at(0)
	for i := 1; i < w.n; i++ {
		if v := w.at(i); v < m {
			m = v
		}
	}
	return m
}
