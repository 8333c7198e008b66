// Package indicator drives the floating capture indicator. The controller
// decides visibility; the Surface is whatever window system actually draws
// it, and may be torn down and recreated underneath the controller.
package indicator

import (
	"log/slog"
	"sync"

	"github.com/cadence-app/cadence/internal/types"
)

// Surface is a drawable indicator. Implementations live at the application
// edge; all errors are advisory, the controller never retries.
type Surface interface {
	Show() error
	Hide() error
	Frame(f types.AmplitudeFrame) error
}

// Controller owns indicator visibility. Safe for concurrent use: frames
// arrive from the amplitude streamer while visibility flips on the capture
// loop.
type Controller struct {
	mu      sync.Mutex
	surface Surface
	enabled bool
	visible bool
}

// NewController creates a controller. surface may be nil until the window
// layer is up; calls before then are dropped.
func NewController(surface Surface, enabled bool) *Controller {
	return &Controller{surface: surface, enabled: enabled}
}

// SetSurface swaps the drawing surface, e.g. after the indicator window was
// recreated. The current visibility is re-applied to the new surface.
func (c *Controller) SetSurface(surface Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = surface
	if surface == nil {
		return
	}
	c.apply(surface, c.visible && c.enabled)
}

// SetEnabled turns the indicator on or off globally. Disabling while
// visible hides it immediately.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if c.surface != nil {
		c.apply(c.surface, c.visible && c.enabled)
	}
}

// Show makes the indicator visible, if enabled.
func (c *Controller) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = true
	if c.surface != nil && c.enabled {
		c.apply(c.surface, true)
	}
}

// Hide removes the indicator.
func (c *Controller) Hide() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = false
	if c.surface != nil {
		c.apply(c.surface, false)
	}
}

// Deliver forwards an amplitude frame. Frames while hidden or disabled are
// dropped; they carry no state worth keeping.
func (c *Controller) Deliver(f types.AmplitudeFrame) {
	c.mu.Lock()
	surface := c.surface
	live := c.visible && c.enabled
	c.mu.Unlock()

	if surface == nil || !live {
		return
	}
	if err := surface.Frame(f); err != nil {
		slog.Debug("indicator frame dropped", "error", err)
	}
}

func (c *Controller) apply(surface Surface, show bool) {
	var err error
	if show {
		err = surface.Show()
	} else {
		err = surface.Hide()
	}
	if err != nil {
		slog.Debug("indicator surface unavailable", "error", err)
	}
}
