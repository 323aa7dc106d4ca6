package sesame

import "time"

// audioFrameCapacity bounds the inbound audio queue. When the consumer
// falls behind, the oldest frame is dropped to admit the newest.
const audioFrameCapacity = 1000

// frameBuffer is a bounded FIFO of PCM frames. The session read loop is
// the only producer and owns close; push never blocks it.
type frameBuffer struct {
	ch chan []byte
}

func newFrameBuffer(capacity int) *frameBuffer {
	return &frameBuffer{ch: make(chan []byte, capacity)}
}

// push enqueues frame, evicting the oldest queued frame when full.
func (b *frameBuffer) push(frame []byte) {
	select {
	case b.ch <- frame:
		return
	default:
	}
	select {
	case <-b.ch:
	default:
	}
	b.ch <- frame
}

// pop dequeues the next frame, waiting up to timeout. A timeout <= 0
// waits without bound. Returns false on expiry, or once the buffer is
// closed and drained.
func (b *frameBuffer) pop(timeout time.Duration) ([]byte, bool) {
	if timeout <= 0 {
		frame, ok := <-b.ch
		return frame, ok
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame, ok := <-b.ch:
		return frame, ok
	case <-timer.C:
		return nil, false
	}
}

// close releases blocked consumers once queued frames drain.
func (b *frameBuffer) close() {
	close(b.ch)
}
