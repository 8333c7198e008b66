package app

import (
	"fmt"

	"github.com/cadence-app/cadence/internal/types"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// windowSurface draws the indicator on a frameless always-on-top Wails
// window. Bar heights travel as events; the frontend renders them.
type windowSurface struct {
	app    *application.App
	window application.Window
}

func (w *windowSurface) Show() error {
	if w.window == nil {
		return fmt.Errorf("indicator window gone")
	}
	w.window.Show()
	return nil
}

func (w *windowSurface) Hide() error {
	if w.window == nil {
		return fmt.Errorf("indicator window gone")
	}
	w.window.Hide()
	return nil
}

func (w *windowSurface) Frame(f types.AmplitudeFrame) error {
	if w.app == nil {
		return fmt.Errorf("app not running")
	}
	w.app.Event.Emit(EventAmplitudeFrame, f)
	return nil
}
