// keymapctl queries the active keyboard layout and its keymap.
package main

import (
	"flag"
	"fmt"
	"os"

	"nativekeymap/internal/config"
	"nativekeymap/internal/keycode"
	"nativekeymap/internal/keymap"
	"nativekeymap/internal/logging"
)

var (
	configPath = flag.String("config", "", "path to config file")
	display    = flag.String("display", "", "X11 display to connect to (default: $DISPLAY)")
	logLevel   = flag.String("log-level", "", "log level: debug, info, warn, error")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]

	var err error
	switch cmd {
	case "layout":
		err = cmdLayout()
	case "language":
		err = cmdLanguage()
	case "languages":
		err = cmdLanguages()
	case "keymap":
		err = cmdKeymap(args)
	case "codes":
		err = cmdCodes()
	case "export":
		err = cmdExport(args)
	case "validate":
		err = cmdValidate(args)
	case "watch":
		err = cmdWatch(args)
	case "history":
		err = cmdHistory(args)
	case "init":
		err = cmdInit()
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `keymapctl - inspect the active keyboard layout

Usage: keymapctl [options] <command> [args]

Commands:
  layout              Print the active layout name
  language            Print the locale tag of the active layout
  languages           List the languages of all installed layouts
  keymap [-json]      Print what every key produces under each modifier
  codes               List the physical key table
  export [-record] <file>
                      Write the keymap and layout identity as a JSON document
  validate <file>     Check an exported document against the schema
  watch [-interval d] Report layout changes until interrupted
  history [-n N] [-show ID] [-latest]
                      List recorded snapshots
  init                Write a default config file
  help                Show this help message

Options:
  -config <path>      Path to config file
  -display <name>     X11 display (default: $DISPLAY)
  -log-level <level>  Override the configured log level`)
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig() (*config.Config, error) {
	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if *display != "" {
		cfg.Display.Name = *display
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		var verrs config.ValidationErrors
		if !asValidationErrors(err, &verrs) || verrs.HasErrors() {
			return nil, err
		}
	}
	return cfg, nil
}

// setup loads the config and installs the configured default logger.
func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	lc, err := cfg.LoggerConfig()
	if err != nil {
		return nil, nil, err
	}
	lc.Component = "keymapctl"
	log, err := logging.New(lc)
	if err != nil {
		return nil, nil, err
	}
	logging.SetDefault(log)
	return cfg, log, nil
}

// openEngine creates an engine for cfg and sets it up. The caller must
// call Teardown.
func openEngine(cfg *config.Config, log *logging.Logger) (*keymap.Engine, error) {
	table, err := keycode.LoadFile(cfg.Keymap.Table)
	if err != nil {
		return nil, err
	}
	eng := keymap.New(keymap.Options{
		Display: cfg.Display.Name,
		Logger:  log.WithComponent("keymap").Logger,
		Table:   table,
	})
	if err := eng.Setup(); err != nil {
		eng.Teardown()
		return nil, err
	}
	return eng, nil
}

// withEngine runs fn against a freshly set up engine.
func withEngine(fn func(cfg *config.Config, eng *keymap.Engine) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	eng, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer eng.Teardown()
	return fn(cfg, eng)
}
