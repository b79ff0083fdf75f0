package drag

import (
	"math"
	"time"
)

// Viewport is the visible window in the same coordinate space as the pointer.
type Viewport struct {
	Top    float64
	Height float64
}

// ScrollConfig tunes auto-scroll. Zone is the height of the activation band
// at each viewport edge; speeds are in pixels per frame.
type ScrollConfig struct {
	Zone          float64
	MinSpeed      float64
	MaxSpeed      float64
	FrameInterval time.Duration
}

// DefaultScrollConfig returns the settings used by the dashboard.
func DefaultScrollConfig() ScrollConfig {
	return ScrollConfig{
		Zone:          80,
		MinSpeed:      4,
		MaxSpeed:      24,
		FrameInterval: 16 * time.Millisecond,
	}
}

// ScrollVelocity maps a pointer position to a scroll speed. Negative values
// scroll up. Inside an activation zone the speed grows with penetration
// depth, never below MinSpeed and never above MaxSpeed; pointers beyond the
// viewport edge scroll at MaxSpeed.
func ScrollVelocity(pointerY float64, vp Viewport, cfg ScrollConfig) float64 {
	if cfg.Zone <= 0 || vp.Height <= 0 || cfg.MaxSpeed <= 0 {
		return 0
	}
	zone := math.Min(cfg.Zone, vp.Height/2)
	topEdge := vp.Top + zone
	bottomEdge := vp.Top + vp.Height - zone

	switch {
	case pointerY < topEdge:
		return -speed((topEdge-pointerY)/zone, cfg)
	case pointerY > bottomEdge:
		return speed((pointerY-bottomEdge)/zone, cfg)
	}
	return 0
}

func speed(depth float64, cfg ScrollConfig) float64 {
	v := depth * cfg.MaxSpeed
	if v < cfg.MinSpeed {
		v = cfg.MinSpeed
	}
	return math.Min(v, cfg.MaxSpeed)
}
