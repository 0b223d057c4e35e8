package signals

// ringBuffer is a fixed-capacity circular buffer of float64 values.
// Once full, each push overwrites the oldest value. Per-asset signal state
// lives in these buffers so history retention stays bounded.
type ringBuffer struct {
	values []float64
	head   int
	count  int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{values: make([]float64, capacity)}
}

// Push appends a value, evicting the oldest when full
func (b *ringBuffer) Push(v float64) {
	b.values[b.head] = v
	b.head = (b.head + 1) % len(b.values)
	if b.count < len(b.values) {
		b.count++
	}
}

// Len returns the number of stored values
func (b *ringBuffer) Len() int {
	return b.count
}

// Full reports whether the buffer holds capacity values
func (b *ringBuffer) Full() bool {
	return b.count == len(b.values)
}

// Last returns the most recent value; ok is false when empty
func (b *ringBuffer) Last() (float64, bool) {
	if b.count == 0 {
		return 0, false
	}
	idx := (b.head - 1 + len(b.values)) % len(b.values)
	return b.values[idx], true
}

// Ago returns the value n positions before the most recent one.
// Ago(0) equals Last().
func (b *ringBuffer) Ago(n int) (float64, bool) {
	if n < 0 || n >= b.count {
		return 0, false
	}
	idx := (b.head - 1 - n + len(b.values)) % len(b.values)
	return b.values[idx], true
}

// Tail returns the most recent n values in chronological order.
// Returns nil when fewer than n values are stored.
func (b *ringBuffer) Tail(n int) []float64 {
	if n <= 0 || n > b.count {
		return nil
	}
	out := make([]float64, n)
	start := (b.head - n + len(b.values)) % len(b.values)
	for i := 0; i < n; i++ {
		out[i] = b.values[(start+i)%len(b.values)]
	}
	return out
}

// MeanLast returns the arithmetic mean of the most recent n values.
// ok is false when fewer than n values are stored.
func (b *ringBuffer) MeanLast(n int) (float64, bool) {
	if n <= 0 || n > b.count {
		return 0, false
	}
	sum := 0.0
	start := (b.head - n + len(b.values)) % len(b.values)
	for i := 0; i < n; i++ {
		sum += b.values[(start+i)%len(b.values)]
	}
	return sum / float64(n), true
}
