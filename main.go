package main

import (
	"embed"
	"log/slog"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"github.com/cadence-app/cadence/config"
	"github.com/cadence-app/cadence/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.Info("starting cadence", "version", version, "commit", commit, "date", date)
	service := app.New(version)

	wailsApp := application.New(application.Options{
		Name:        "Cadence",
		Description: "Voice control for your music",
		Services: []application.Service{
			application.NewService(service),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// Don't quit when all windows are closed (we have a system tray)
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	// Create main window
	mainWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "Cadence",
		Width:  420,
		Height: 640,
		URL:    "/",
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
		DevToolsEnabled: true,
	})

	// Intercept window close: hide instead of destroy so tray can reopen
	mainWindow.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel()
		mainWindow.Hide()
	})

	// The floating capture indicator: frameless, always on top, click-through.
	// It starts hidden; visibility follows the session lifecycle.
	indicatorWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:              "indicator",
		Width:             260,
		Height:            72,
		URL:               "/#/indicator",
		Frameless:         true,
		AlwaysOnTop:       true,
		DisableResize:     true,
		Hidden:            true,
		IgnoreMouseEvents: true,
		BackgroundType:    application.BackgroundTypeTransparent,
	})

	// Initialize service with app and window references
	service.Init(wailsApp, mainWindow)
	service.SetIndicatorWindow(indicatorWindow)

	// Recreating the indicator window must never disturb a running session.
	indicatorWindow.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel()
		indicatorWindow.Hide()
	})

	setupTray(wailsApp, service, mainWindow)

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
}

func setupTray(wailsApp *application.App, service *app.Service, mainWindow application.Window) {
	systemTray := wailsApp.SystemTray.New()
	trayMenu := wailsApp.NewMenu()

	trayMenu.Add("Show Cadence").OnClick(func(ctx *application.Context) {
		mainWindow.Show()
		mainWindow.Focus()
	})

	trayMenu.Add("Start listening").OnClick(func(ctx *application.Context) {
		service.RequestStart()
	})
	trayMenu.Add("Stop listening").OnClick(func(ctx *application.Context) {
		service.RequestStop()
	})

	settings := service.GetSettings()

	backendMenu := trayMenu.AddSubmenu("Transcription")
	backendMenu.AddRadio("Live streaming", settings.Backend == config.BackendLive).
		OnClick(func(ctx *application.Context) {
			if err := service.SetBackend(string(config.BackendLive)); err != nil {
				slog.Error("set backend", "error", err)
			}
		})
	backendMenu.AddRadio("Record then transcribe", settings.Backend == config.BackendBuffered).
		OnClick(func(ctx *application.Context) {
			if err := service.SetBackend(string(config.BackendBuffered)); err != nil {
				slog.Error("set backend", "error", err)
			}
		})

	trayMenu.AddCheckbox("Show capture indicator", settings.IndicatorEnabled).
		OnClick(func(ctx *application.Context) {
			if err := service.SetIndicatorEnabled(!service.GetSettings().IndicatorEnabled); err != nil {
				slog.Error("toggle indicator", "error", err)
			}
		})

	trayMenu.AddSeparator()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			service.Shutdown()
			wailsApp.Quit()
		})

	systemTray.SetMenu(trayMenu)
}
