package rdp

import (
	"sync"

	"github.com/gravitational/rustconn/types"
)

// PixelBuffer is the ARGB32 framebuffer shared by exactly two parties: the
// worker's writer side and the GUI's reader side (spec §4.2, §5 "shared by
// exactly two parties"). The GUI side must never block on it: TryLock mirrors
// that contract directly instead of hiding it behind a channel.
type PixelBuffer struct {
	mu    sync.Mutex
	frame types.PixelFrame
}

// NewPixelBuffer builds an empty buffer sized w x h.
func NewPixelBuffer(w, h int) *PixelBuffer {
	return &PixelBuffer{frame: types.PixelFrame{Width: w, Height: h, Pixels: make([]byte, w*h*4)}}
}

// Write is called only by the worker goroutine, which exclusively owns the
// writer side (spec §4.2: "Ownership: exclusively owned by the worker while
// it mutates").
func (p *PixelBuffer) Write(frame types.PixelFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = frame
}

// TryRead attempts to copy the current frame for painting without blocking.
// If the worker currently holds the lock, ok is false and the GUI should
// skip this repaint tick and queue another one (spec §4.2: "if try_lock on
// the pixel buffer fails, the poll tick is skipped — never blocked").
func (p *PixelBuffer) TryRead() (frame types.PixelFrame, ok bool) {
	if !p.mu.TryLock() {
		return types.PixelFrame{}, false
	}
	defer p.mu.Unlock()
	return *p.frame.Clone(), true
}
