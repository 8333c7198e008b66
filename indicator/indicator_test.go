package indicator

import (
	"errors"
	"testing"

	"github.com/cadence-app/cadence/internal/types"
)

type fakeSurface struct {
	shows  int
	hides  int
	frames []types.AmplitudeFrame
	err    error
}

func (f *fakeSurface) Show() error { f.shows++; return f.err }
func (f *fakeSurface) Hide() error { f.hides++; return f.err }
func (f *fakeSurface) Frame(fr types.AmplitudeFrame) error {
	f.frames = append(f.frames, fr)
	return f.err
}

func TestController_ShowHide(t *testing.T) {
	surface := &fakeSurface{}
	c := NewController(surface, true)

	c.Show()
	if surface.shows != 1 {
		t.Fatalf("shows = %d, want 1", surface.shows)
	}

	c.Hide()
	if surface.hides != 1 {
		t.Fatalf("hides = %d, want 1", surface.hides)
	}
}

func TestController_DisabledNeverShows(t *testing.T) {
	surface := &fakeSurface{}
	c := NewController(surface, false)

	c.Show()
	if surface.shows != 0 {
		t.Errorf("shows = %d for disabled indicator, want 0", surface.shows)
	}

	c.Deliver(types.AmplitudeFrame{Bars: []int{1, 2, 3}})
	if len(surface.frames) != 0 {
		t.Errorf("frames delivered to disabled indicator")
	}
}

func TestController_DisableWhileVisibleHides(t *testing.T) {
	surface := &fakeSurface{}
	c := NewController(surface, true)

	c.Show()
	c.SetEnabled(false)
	if surface.hides != 1 {
		t.Errorf("hides = %d after disable, want 1", surface.hides)
	}

	// Re-enabling restores the logical visibility.
	c.SetEnabled(true)
	if surface.shows != 2 {
		t.Errorf("shows = %d after re-enable, want 2", surface.shows)
	}
}

func TestController_FramesOnlyWhileVisible(t *testing.T) {
	surface := &fakeSurface{}
	c := NewController(surface, true)

	c.Deliver(types.AmplitudeFrame{Seq: 1})
	c.Show()
	c.Deliver(types.AmplitudeFrame{Seq: 2})
	c.Hide()
	c.Deliver(types.AmplitudeFrame{Seq: 3})

	if len(surface.frames) != 1 || surface.frames[0].Seq != 2 {
		t.Errorf("frames = %+v, want only seq 2", surface.frames)
	}
}

func TestController_SurfaceRecreation(t *testing.T) {
	c := NewController(nil, true)

	// No surface yet: everything is a harmless no-op.
	c.Show()
	c.Deliver(types.AmplitudeFrame{Seq: 1})

	// The recreated surface picks up the current visibility.
	surface := &fakeSurface{}
	c.SetSurface(surface)
	if surface.shows != 1 {
		t.Errorf("shows = %d after reattach while visible, want 1", surface.shows)
	}

	c.SetSurface(nil)
	c.Hide()

	replacement := &fakeSurface{}
	c.SetSurface(replacement)
	if replacement.hides != 1 {
		t.Errorf("hides = %d after reattach while hidden, want 1", replacement.hides)
	}
}

func TestController_SurfaceErrorsAreAdvisory(t *testing.T) {
	surface := &fakeSurface{err: errors.New("window destroyed")}
	c := NewController(surface, true)

	// None of these may panic or change controller behavior.
	c.Show()
	c.Deliver(types.AmplitudeFrame{Seq: 1})
	c.Hide()

	if surface.shows != 1 || surface.hides != 1 || len(surface.frames) != 1 {
		t.Errorf("calls = show %d hide %d frames %d, want 1/1/1",
			surface.shows, surface.hides, len(surface.frames))
	}
}
