// Package drag turns pointer gestures over the tree view into move intents
// and auto-scroll signals. It never touches the view directly: node geometry
// comes in as plain boxes and scrolling goes out through a callback.
package drag

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/matcluster/internal/tree"
)

// Tree is the part of the editor the controller drives.
type Tree interface {
	RootID() string
	Has(id string) bool
	Move(sourceID, targetID string, pos tree.Position) bool
}

// ScrollFunc applies one frame of scrolling, in pixels.
type ScrollFunc func(delta float64)

// Box is the vertical extent of a rendered node.
type Box struct {
	Top    float64
	Height float64
}

// Classify maps a pointer position over box to a drop position: the top
// quarter places before, the bottom quarter after, the middle inside.
func Classify(pointerY float64, box Box) tree.Position {
	y := pointerY - box.Top
	switch {
	case y < box.Height*0.25:
		return tree.PositionBefore
	case y > box.Height*0.75:
		return tree.PositionAfter
	default:
		return tree.PositionInside
	}
}

// State is a snapshot of the controller.
type State struct {
	DraggedID string        `json:"dragged_id,omitempty"`
	TargetID  string        `json:"target_id,omitempty"`
	Position  tree.Position `json:"position,omitempty"`
	Velocity  float64       `json:"velocity"`
}

// Controller tracks one drag gesture at a time.
type Controller struct {
	tree   Tree
	cfg    ScrollConfig
	scroll ScrollFunc

	mu      sync.Mutex
	dragged string
	target  string
	pos     tree.Position

	velocity atomic.Uint64
	running  atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a controller. scroll may be nil when the view does not scroll.
func New(t Tree, cfg ScrollConfig, scroll ScrollFunc) *Controller {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultScrollConfig().FrameInterval
	}
	return &Controller{
		tree:   t,
		cfg:    cfg,
		scroll: scroll,
		closed: make(chan struct{}),
	}
}

// Start begins dragging id. The root and unknown nodes cannot be dragged.
func (c *Controller) Start(id string) bool {
	if id == "" || id == c.tree.RootID() || !c.tree.Has(id) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dragged = id
	c.target = ""
	c.pos = tree.PositionNone
	return true
}

// Over records id as the drop candidate with the position derived from the
// pointer. Hovering the dragged node itself changes nothing.
func (c *Controller) Over(id string, pointerY float64, box Box) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dragged == "" || id == c.dragged || id == "" {
		return false
	}
	c.target = id
	c.pos = Classify(pointerY, box)
	return true
}

// Pointer updates the auto-scroll velocity from the pointer position relative
// to the viewport and starts the frame loop when scrolling is needed.
func (c *Controller) Pointer(pointerY float64, vp Viewport) float64 {
	c.mu.Lock()
	active := c.dragged != ""
	c.mu.Unlock()

	v := 0.0
	if active {
		v = ScrollVelocity(pointerY, vp, c.cfg)
	}
	c.setVelocity(v)
	if v != 0 && c.running.CompareAndSwap(false, true) {
		go c.loop()
	}
	return v
}

// End finishes the gesture. A resolved target triggers a move; the state is
// cleared whether or not the move was accepted.
func (c *Controller) End() bool {
	c.mu.Lock()
	source, target, pos := c.dragged, c.target, c.pos
	c.reset()
	c.mu.Unlock()

	if source == "" || target == "" || pos == tree.PositionNone {
		return false
	}
	return c.tree.Move(source, target, pos)
}

// Cancel abandons the gesture without moving anything.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.reset()
	c.mu.Unlock()
}

func (c *Controller) reset() {
	c.dragged = ""
	c.target = ""
	c.pos = tree.PositionNone
	c.setVelocity(0)
}

// State returns the current drag state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		DraggedID: c.dragged,
		TargetID:  c.target,
		Position:  c.pos,
		Velocity:  c.Velocity(),
	}
}

// Active reports whether a drag is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragged != ""
}

// Scrolling reports whether the frame loop is running.
func (c *Controller) Scrolling() bool {
	return c.running.Load()
}

// Velocity returns the latest auto-scroll velocity.
func (c *Controller) Velocity() float64 {
	return math.Float64frombits(c.velocity.Load())
}

func (c *Controller) setVelocity(v float64) {
	c.velocity.Store(math.Float64bits(v))
}

// Close stops the frame loop for good.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *Controller) loop() {
	for {
		c.frames()
		c.running.Store(false)
		// A velocity set between the last frame and the store above would
		// otherwise be lost.
		if c.Velocity() == 0 || c.isClosed() || !c.running.CompareAndSwap(false, true) {
			return
		}
	}
}

func (c *Controller) frames() {
	ticker := time.NewTicker(c.cfg.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			v := c.Velocity()
			if v == 0 {
				return
			}
			if c.scroll != nil {
				c.scroll(v)
			}
		}
	}
}

func (c *Controller) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
