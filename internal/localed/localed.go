// Package localed reads the system keyboard configuration from
// systemd-localed over the D-Bus system bus and reports when it changes.
//
// localed only knows the configured layouts, not the one active in a
// session, so callers use it as a fallback when the display server does not
// publish its own list.
package localed

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/godbus/dbus/v5"
)

// D-Bus names of the locale1 service.
const (
	Service             = "org.freedesktop.locale1"
	Path                = "/org/freedesktop/locale1"
	Interface           = "org.freedesktop.locale1"
	PropertiesInterface = "org.freedesktop.DBus.Properties"
)

// ErrNotAvailable is returned on platforms without systemd-localed.
var ErrNotAvailable = errors.New("localed: not available on this platform")

// Settings is the locale1 property set.
type Settings struct {
	Locale               []string
	VConsoleKeymap       string
	VConsoleKeymapToggle string
	X11Layout            string
	X11Model             string
	X11Variant           string
	X11Options           string
}

// Layouts splits the comma separated X11Layout list.
func (s Settings) Layouts() []string {
	var out []string
	for _, l := range strings.Split(s.X11Layout, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// decode fills Settings from a GetAll reply or a PropertiesChanged body.
// Unknown or mistyped properties are skipped.
func decode(props map[string]dbus.Variant, into *Settings) {
	str := func(name string, dst *string) {
		if v, ok := props[name]; ok {
			if s, ok := v.Value().(string); ok {
				*dst = s
			}
		}
	}
	str("VConsoleKeymap", &into.VConsoleKeymap)
	str("VConsoleKeymapToggle", &into.VConsoleKeymapToggle)
	str("X11Layout", &into.X11Layout)
	str("X11Model", &into.X11Model)
	str("X11Variant", &into.X11Variant)
	str("X11Options", &into.X11Options)
	if v, ok := props["Locale"]; ok {
		if l, ok := v.Value().([]string); ok {
			into.Locale = l
		}
	}
}

// Client is a private connection to the system bus.
type Client struct {
	conn *dbus.Conn
}

// Connect opens a private system bus connection.
func Connect() (*Client, error) {
	if runtime.GOOS != "linux" {
		return nil, ErrNotAvailable
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("localed: connect system bus: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Settings fetches all locale1 properties.
func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var props map[string]dbus.Variant
	obj := c.conn.Object(Service, Path)
	err := obj.CallWithContext(ctx, PropertiesInterface+".GetAll", 0, Interface).Store(&props)
	if err != nil {
		return Settings{}, fmt.Errorf("localed: get properties: %w", err)
	}
	var s Settings
	decode(props, &s)
	return s, nil
}

// Subscribe calls fn with fresh settings each time locale1 reports a
// property change. It blocks until ctx is done.
func (c *Client) Subscribe(ctx context.Context, fn func(Settings)) error {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(Path),
		dbus.WithMatchInterface(PropertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, Interface),
	}
	if err := c.conn.AddMatchSignalContext(ctx, opts...); err != nil {
		return fmt.Errorf("localed: add match: %w", err)
	}
	defer c.conn.RemoveMatchSignal(opts...)

	signals := make(chan *dbus.Signal, 8)
	c.conn.Signal(signals)
	defer c.conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return errors.New("localed: bus connection closed")
			}
			if !isPropertiesChanged(sig) {
				continue
			}
			// Changed values may arrive as invalidated names only, so
			// re-read the whole set.
			s, err := c.Settings(ctx)
			if err != nil {
				return err
			}
			fn(s)
		}
	}
}

func isPropertiesChanged(sig *dbus.Signal) bool {
	if sig == nil || sig.Path != Path || sig.Name != PropertiesInterface+".PropertiesChanged" {
		return false
	}
	if len(sig.Body) == 0 {
		return false
	}
	iface, _ := sig.Body[0].(string)
	return iface == Interface
}

// Read connects, fetches the settings and disconnects.
func Read() (Settings, error) {
	return ReadContext(context.Background())
}

// ReadContext is Read bounded by ctx.
func ReadContext(ctx context.Context) (Settings, error) {
	c, err := Connect()
	if err != nil {
		return Settings{}, err
	}
	defer c.Close()
	return c.Settings(ctx)
}
