// Package lifecycle turns host signals into foreground/background transitions.
package lifecycle

import (
	"context"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
)

type Event string

const (
	Active     Event = "active"
	Inactive   Event = "inactive"
	Background Event = "background"
)

// Leaving reports whether the host is moving away from the foreground,
// the moment pending edits have to be written.
func (e Event) Leaving() bool {
	return e == Inactive || e == Background
}

// Notify emits an event for every watched signal until ctx is done; the channel
// is closed then.
func Notify(ctx context.Context) <-chan Event {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, watchedSignals()...)

	events := make(chan Event, 4)
	go func() {
		defer close(events)
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				ev, ok := eventFor(sig)
				if !ok {
					continue
				}
				log.Debugf("lifecycle: signal [%s] -> %s", sig, ev)
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events
}
