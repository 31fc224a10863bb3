package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.design/x/mainthread"

	"nativekeymap/internal/config"
	"nativekeymap/internal/keymap"
	"nativekeymap/internal/localed"
	"nativekeymap/internal/logging"
	"nativekeymap/internal/notify"
	"nativekeymap/internal/store"
)

// cmdWatch reports layout changes until interrupted. The engine lives on
// the main thread and every query is dispatched there.
func cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", 0, "polling interval (default from config)")
	fs.Parse(args)

	var err error
	mainthread.Init(func() {
		err = runWatch(*interval)
	})
	return err
}

func runWatch(interval time.Duration) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	var eng *keymap.Engine
	mainthread.Call(func() { eng, err = openEngine(cfg, log) })
	if err != nil {
		return err
	}
	defer mainthread.Call(eng.Teardown)

	if interval <= 0 {
		interval = cfg.WatchInterval()
	}
	n := notify.New(eng, notify.Options{
		Dispatcher: notify.MainThread{},
		Interval:   interval,
		Logger:     log.WithComponent("notify").Logger,
	})

	var db *store.Store
	if cfg.Watch.Record {
		db, err = openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n.OnChange(func(c notify.Change) {
		fmt.Println(renderChange(c))
		if db == nil {
			return
		}
		var installed []string
		mainthread.Call(func() { installed, _ = eng.InstalledLanguages() })
		if err := recordInto(ctx, db, cfg.Storage.Keep, c.Identity, installed, c.Snapshot); err != nil {
			log.Warn("record snapshot failed", "error", err)
		}
	})

	watchConfig(ctx, n, log)
	if cfg.Watch.Localed {
		go func() {
			err := n.WatchLocaled(ctx)
			switch {
			case err == nil, errors.Is(err, localed.ErrNotAvailable):
			default:
				log.Warn("localed trigger unavailable", "error", err)
			}
		}()
	}

	err = n.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchConfig hot-reloads the polling interval when the config file
// changes. Without a config file there is nothing to watch.
func watchConfig(ctx context.Context, n *notify.Notifier, log *logging.Logger) {
	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return
	}

	loader := config.NewLoader(path, log.WithComponent("config").Logger)
	if _, err := loader.Load(); err != nil {
		log.Warn("config reload disabled", "error", err)
		return
	}
	loader.OnChange(func(c *config.Config) {
		n.SetInterval(c.WatchInterval())
	})
	if err := loader.Watch(); err != nil {
		log.Warn("config reload disabled", "error", err)
		return
	}
	go func() {
		<-ctx.Done()
		loader.Close()
	}()
}
