package audio

import "sync"

// Tap records the most recent raw samples into a fixed ring so the
// level analyzer can take a snapshot once per frame without touching
// the capture callback's timing.
type Tap struct {
	mu   sync.Mutex
	buf  []float64
	next int
	full bool
}

// NewTap creates a tap holding the last size samples.
func NewTap(size int) *Tap {
	return &Tap{buf: make([]float64, size)}
}

// Push appends raw samples, overwriting the oldest.
func (t *Tap) Push(samples []float64) {
	t.mu.Lock()
	for _, s := range samples {
		t.buf[t.next] = s
		t.next++
		if t.next >= len(t.buf) {
			t.next = 0
			t.full = true
		}
	}
	t.mu.Unlock()
}

// PushPCM16 appends little-endian PCM16 bytes as normalized samples.
func (t *Tap) PushPCM16(pcm []byte) {
	t.mu.Lock()
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(pcm[i]) | int16(pcm[i+1])<<8
		t.buf[t.next] = float64(s) / 32768.0
		t.next++
		if t.next >= len(t.buf) {
			t.next = 0
			t.full = true
		}
	}
	t.mu.Unlock()
}

// Snapshot fills dst with the newest len(dst) samples, oldest first.
// Slots with no sample yet are left at zero.
func (t *Tap) Snapshot(dst []float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.next
	if t.full {
		n = len(t.buf)
	}
	want := len(dst)
	if want > n {
		for i := range dst[:want-n] {
			dst[i] = 0
		}
		dst = dst[want-n:]
		want = n
	}

	// Walk backwards from the write cursor.
	idx := t.next - want
	if idx < 0 {
		idx += len(t.buf)
	}
	for i := 0; i < want; i++ {
		dst[i] = t.buf[idx]
		idx++
		if idx >= len(t.buf) {
			idx = 0
		}
	}
}
