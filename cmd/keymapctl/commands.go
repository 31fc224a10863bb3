package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"nativekeymap/internal/config"
	"nativekeymap/internal/export"
	"nativekeymap/internal/keycode"
	"nativekeymap/internal/keymap"
	"nativekeymap/internal/store"
)

func asValidationErrors(err error, target *config.ValidationErrors) bool {
	return errors.As(err, target)
}

func cmdLayout() error {
	return withEngine(func(_ *config.Config, eng *keymap.Engine) error {
		name, ok, err := eng.LayoutName()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("the platform did not report a layout name")
		}
		fmt.Println(name)
		return nil
	})
}

func cmdLanguage() error {
	return withEngine(func(_ *config.Config, eng *keymap.Engine) error {
		lang, err := eng.LayoutLanguage()
		if err != nil {
			return err
		}
		fmt.Println(lang)
		return nil
	})
}

func cmdLanguages() error {
	return withEngine(func(_ *config.Config, eng *keymap.Engine) error {
		langs, err := eng.InstalledLanguages()
		if err != nil {
			return err
		}
		for _, l := range langs {
			fmt.Println(l)
		}
		return nil
	})
}

func cmdKeymap(args []string) error {
	fs := flag.NewFlagSet("keymap", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print the keymap as JSON")
	fs.Parse(args)

	return withEngine(func(_ *config.Config, eng *keymap.Engine) error {
		snap, err := eng.Keymap()
		if err != nil {
			return err
		}
		if *asJSON {
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		id, err := eng.Identity()
		if err != nil {
			return err
		}
		fmt.Println(renderIdentity(id))
		fmt.Println(renderKeymap(snap))
		return nil
	})
}

func cmdCodes() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := keycode.LoadFile(cfg.Keymap.Table)
	if err != nil {
		return err
	}
	fmt.Println(renderCodes(table))
	return nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	record := fs.Bool("record", false, "also store the snapshot in the history database")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return errors.New("usage: keymapctl export [-record] <file>")
	}
	path := fs.Arg(0)

	return withEngine(func(cfg *config.Config, eng *keymap.Engine) error {
		id, err := eng.Identity()
		if err != nil {
			return err
		}
		installed, err := eng.InstalledLanguages()
		if err != nil {
			return err
		}
		snap, err := eng.Keymap()
		if err != nil {
			return err
		}

		doc := export.New(id, installed, snap, time.Now())
		if err := export.WriteFile(path, doc, cfg.Export.Indent, cfg.Export.Validate); err != nil {
			return err
		}
		fmt.Printf("Wrote %d keys to %s (digest %s)\n", snap.Len(), path, doc.Digest[:16])

		if *record {
			return recordSnapshot(context.Background(), cfg, id, installed, snap)
		}
		return nil
	})
}

func cmdValidate(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: keymapctl validate <file>")
	}
	doc, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}
	layout := "(none)"
	if doc.Layout != nil {
		layout = *doc.Layout
	}
	fmt.Printf("%s: valid, %d keys, platform %s, layout %s\n", args[0], doc.Keymap.Len(), doc.Platform, layout)
	return nil
}

func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of snapshots to list")
	show := fs.Int64("show", 0, "print the keymap of the snapshot with this id")
	latest := fs.Bool("latest", false, "print the keymap of the newest snapshot")
	fs.Parse(args)

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	if _, err := os.Stat(cfg.Storage.Path); os.IsNotExist(err) {
		fmt.Println("No history recorded yet.")
		return nil
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if *show > 0 || *latest {
		var rec *store.Record
		if *latest {
			rec, err = db.Latest(ctx)
		} else {
			rec, err = db.Get(ctx, *show)
		}
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("no such snapshot")
		}
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot #%d taken %s\n", rec.ID, rec.TakenAt.Local().Format(time.DateTime))
		fmt.Println(renderIdentity(keymap.Identity{
			Name: rec.Layout, HasName: rec.HasLayout, Language: rec.Language, Platform: rec.Platform,
		}))
		fmt.Println(renderKeymap(rec.Snapshot))
		return nil
	}

	list, err := db.List(ctx, *limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No history recorded yet.")
		return nil
	}
	total, err := db.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Println(renderHistory(list))
	fmt.Printf("%d of %d snapshots\n", len(list), total)
	return nil
}

func cmdInit() error {
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, created, err := config.LoadOrCreate(path, nil)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if created {
		fmt.Printf("Created %s\n", path)
	} else {
		fmt.Printf("%s already exists\n", path)
	}
	return nil
}

// openStore opens the history database, creating its directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return store.Open(cfg.Storage.Path, time.Duration(cfg.Storage.BusyTimeoutMs)*time.Millisecond)
}

// recordSnapshot stores a snapshot and applies the retention limit.
func recordSnapshot(ctx context.Context, cfg *config.Config, id keymap.Identity, installed []string, snap keymap.Snapshot) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return recordInto(ctx, db, cfg.Storage.Keep, id, installed, snap)
}

func recordInto(ctx context.Context, db *store.Store, keep int, id keymap.Identity, installed []string, snap keymap.Snapshot) error {
	rec := &store.Record{
		Platform:  id.Platform,
		Layout:    id.Name,
		HasLayout: id.HasName,
		Language:  id.Language,
		Installed: installed,
		Snapshot:  snap,
	}
	rowID, inserted, err := db.Record(ctx, rec)
	if err != nil {
		return err
	}
	if inserted {
		fmt.Printf("Recorded snapshot #%d (%s)\n", rowID, shortDigest(rec.Digest))
	}
	_, err = db.Prune(ctx, keep)
	return err
}

func shortDigest(d [32]byte) string {
	return hex.EncodeToString(d[:8])
}
