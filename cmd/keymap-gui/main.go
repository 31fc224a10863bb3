// Command keymap-gui shows the active keyboard layout and its character
// map, refreshing when the layout changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"nativekeymap/cmd/keymap-gui/internal/theme"
	"nativekeymap/cmd/keymap-gui/internal/ui"
	"nativekeymap/internal/config"
	"nativekeymap/internal/keycode"
	"nativekeymap/internal/keymap"
	"nativekeymap/internal/localed"
	"nativekeymap/internal/logging"
	"nativekeymap/internal/notify"
)

var configPath = flag.String("config", "", "config file path")

func main() {
	flag.Parse()

	go func() {
		w := new(app.Window)
		w.Option(app.Title("Keymap"))
		w.Option(app.Size(unit.Dp(900), unit.Dp(680)))

		if err := run(w); err != nil {
			fmt.Fprintln(os.Stderr, "keymap-gui:", err)
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
}

func run(w *app.Window) error {
	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	loader := config.NewLoader(path, nil)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer loader.Close()
	lc, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	lc.Component = "keymap-gui"
	log, err := logging.New(lc)
	if err != nil {
		return err
	}
	defer log.Close()
	logging.SetDefault(log)

	table, err := keycode.LoadFile(cfg.Keymap.Table)
	if err != nil {
		return err
	}

	// The engine is owned by the worker thread; the window loop only
	// reads the viewer state.
	worker := notify.NewWorker()
	defer worker.Close()

	eng := keymap.New(keymap.Options{
		Display: cfg.Display.Name,
		Logger:  log.WithComponent("keymap").Logger,
		Table:   table,
	})
	worker.Call(func() { err = eng.Setup() })
	if err != nil {
		worker.Call(eng.Teardown)
		return err
	}
	defer worker.Call(eng.Teardown)

	t := theme.NewTheme(material.NewTheme())
	viewer := ui.NewViewer(t, table)

	n := notify.New(eng, notify.Options{
		Dispatcher: worker,
		Interval:   cfg.WatchInterval(),
		Logger:     log.WithComponent("notify").Logger,
	})
	n.OnChange(func(c notify.Change) {
		var installed []string
		worker.Call(func() { installed, _ = eng.InstalledLanguages() })
		viewer.Update(ui.State{
			Identity:  c.Identity,
			Installed: installed,
			Snapshot:  c.Snapshot,
		})
		w.Invalidate()
	})
	viewer.OnRefresh = n.Trigger

	loader.OnChange(func(c *config.Config) { n.SetInterval(c.WatchInterval()) })
	if path != "" {
		if err := loader.Watch(); err != nil {
			log.Warn("config reload disabled", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := n.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, notify.ErrClosed) {
			log.Error("keymap watch stopped", "error", err)
			viewer.Update(ui.State{Err: err})
			w.Invalidate()
		}
	}()
	if cfg.Watch.Localed {
		go func() {
			err := n.WatchLocaled(ctx)
			if err != nil && !errors.Is(err, localed.ErrNotAvailable) && !errors.Is(err, context.Canceled) {
				log.Warn("localed trigger unavailable", "error", err)
			}
		}()
	}

	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			cancel()
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			viewer.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}
