package videox

import (
	"github.com/bmharper/ringbuffer"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"gocv.io/x/gocv"
)

// CachedFrame is one decoded frame plus its working labels.
type CachedFrame struct {
	Index   int
	Image   gocv.Mat
	Rects   []boxes.Rect
	Classes []string
}

// FrameCache remembers the last N decoded frames so that the labeler can
// step backwards through recent history. Frames are added in strictly
// increasing Index order. A frame that falls off the ring has its Mat
// closed, so callers must not hold onto evicted images.
type FrameCache struct {
	ring ringbuffer.RingP[*CachedFrame]
	size int
}

func NewFrameCache(size int) *FrameCache {
	return &FrameCache{
		ring: ringbuffer.NewRingP[*CachedFrame](size),
		size: size,
	}
}

// Add takes ownership of f.Image.
func (c *FrameCache) Add(f *CachedFrame) {
	if c.ring.Len() == c.size {
		oldest := c.ring.Peek(0)
		oldest.Image.Close()
	}
	c.ring.Add(f)
}

func (c *FrameCache) Len() int {
	return c.ring.Len()
}

// Newest returns the most recently added frame, or nil when empty.
func (c *FrameCache) Newest() *CachedFrame {
	if c.ring.Len() == 0 {
		return nil
	}
	return c.ring.Peek(c.ring.Len() - 1)
}

// OldestIndex is the lowest frame index still in the cache, or -1 when empty.
func (c *FrameCache) OldestIndex() int {
	if c.ring.Len() == 0 {
		return -1
	}
	return c.ring.Peek(0).Index
}

// Get returns the cached frame with the given index, or nil if it has
// fallen off the ring (or was never added).
func (c *FrameCache) Get(index int) *CachedFrame {
	n := c.ring.Len()
	if n == 0 {
		return nil
	}
	newest := c.ring.Peek(n - 1).Index
	pos := n - 1 - (newest - index)
	if pos < 0 || pos >= n {
		return nil
	}
	return c.ring.Peek(pos)
}

// Close releases every cached Mat.
func (c *FrameCache) Close() {
	for i := 0; i < c.ring.Len(); i++ {
		c.ring.Peek(i).Image.Close()
	}
	c.ring = ringbuffer.NewRingP[*CachedFrame](c.size)
}
