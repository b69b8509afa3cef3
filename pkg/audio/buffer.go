package audio

import (
	"sync"
	"time"
)

const DefaultBufferThreshold = 2500 * time.Millisecond

// StreamBuffer accumulates canonical PCM for one (session, speaker) pair and
// decides when enough audio has arrived to justify a transcription call.
// Owned exclusively by its session; never shared across sessions.
type StreamBuffer struct {
	mu        sync.Mutex
	chunks    []byte
	threshold time.Duration
}

func NewStreamBuffer(threshold time.Duration) *StreamBuffer {
	if threshold <= 0 {
		threshold = DefaultBufferThreshold
	}
	return &StreamBuffer{threshold: threshold}
}

// Add appends a normalized PCM chunk and reports whether the configured
// duration threshold has been crossed.
func (b *StreamBuffer) Add(pcm []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, pcm...)
	return b.bufferedLocked() >= b.threshold
}

// Take drains the buffer and resets it to empty, so a slow or failing
// transcription call never blocks new audio from accumulating.
func (b *StreamBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	pcm := b.chunks
	b.chunks = nil
	return pcm
}

// Buffered reports the currently accumulated duration.
func (b *StreamBuffer) Buffered() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bufferedLocked()
}

func (b *StreamBuffer) bufferedLocked() time.Duration {
	return time.Duration(Duration(b.chunks) * float64(time.Second))
}
