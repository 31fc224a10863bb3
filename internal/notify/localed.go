package notify

import (
	"context"
	"fmt"

	"nativekeymap/internal/localed"
)

// WatchLocaled triggers a check whenever systemd-localed reports changed
// keyboard settings. It blocks until ctx is done and returns
// localed.ErrNotAvailable off Linux.
func (n *Notifier) WatchLocaled(ctx context.Context) error {
	c, err := localed.Connect()
	if err != nil {
		return err
	}
	defer c.Close()

	n.log.Debug("watching localed for layout changes")
	err = c.Subscribe(ctx, func(s localed.Settings) {
		n.log.Debug("localed settings changed", "x11_layout", s.X11Layout, "x11_variant", s.X11Variant)
		n.Trigger()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("notify: localed: %w", err)
	}
	return nil
}
