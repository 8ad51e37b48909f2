package main

import (
	"context"
	"fmt"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/autosave"
	"github.com/BaptisteLac/Zeus-sub000/internal/clock"
	"github.com/BaptisteLac/Zeus-sub000/internal/config"
	"github.com/BaptisteLac/Zeus-sub000/internal/durable"
	"github.com/BaptisteLac/Zeus-sub000/internal/faststore"
	"github.com/BaptisteLac/Zeus-sub000/internal/lifecycle"
	"github.com/BaptisteLac/Zeus-sub000/internal/program"
	"github.com/BaptisteLac/Zeus-sub000/internal/resttimer"
	"github.com/BaptisteLac/Zeus-sub000/internal/syncclient"
	"github.com/BaptisteLac/Zeus-sub000/internal/telemetry/metrics"
	"github.com/BaptisteLac/Zeus-sub000/internal/tracker"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const closeTimeout = 10 * time.Second

// app owns everything a client command needs: the local stores, the sync client,
// the auto-save pipeline and the tracker driving it.
type app struct {
	stores     []faststore.Store
	client     *syncclient.Client
	durable    *durable.Store
	controller *autosave.Controller
	tracker    *tracker.Tracker
	rest       *resttimer.Timer
	loaded     *durable.LoadResult
	clock      clock.Clock

	stopLifecycle context.CancelFunc
}

func openApp(ctx context.Context, cfg *config.Config, opener faststore.Opener) (_ *app, err error) {
	a := &app{clock: clock.Real{}}
	defer func() {
		if err != nil {
			a.closeStores()
		}
	}()

	open := func(namespace string) (faststore.Store, error) {
		s, err := opener(namespace)
		if err != nil {
			return nil, err
		}
		a.stores = append(a.stores, s)
		return s, nil
	}

	stateStore, err := open(faststore.NamespaceState)
	if err != nil {
		return nil, err
	}
	sessionStore, err := open(faststore.NamespaceSession)
	if err != nil {
		return nil, err
	}
	timerStore, err := open(faststore.NamespaceTimer)
	if err != nil {
		return nil, err
	}

	a.client = syncclient.NewClient(cfg.ServerURL, stateStore, syncclient.NewTracedHTTPClient(syncclient.DefaultTimeout))
	a.durable = durable.NewStore(stateStore, a.client)

	a.loaded, err = a.durable.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if a.loaded.RemoteErr != nil {
		log.Warnf("remote unavailable, working offline: %s", a.loaded.RemoteErr)
	}

	if cfg.ProgramPath != "" {
		catalog, err := program.LoadCatalog(cfg.ProgramPath)
		if err != nil {
			return nil, fmt.Errorf("load program %s: %w", cfg.ProgramPath, err)
		}
		a.loaded.State.Catalog = catalog
	}

	a.controller = autosave.NewController(autosave.Params{
		FastStore:      sessionStore,
		Durable:        a.durable,
		Clock:          a.clock,
		Metrics:        metrics.NewManager("iron", "client", prometheus.NewRegistry()),
		DebounceDelay:  cfg.DebounceDelay(),
		SnapshotMaxAge: cfg.SnapshotMaxAge(),
	})
	a.rest = resttimer.New(timerStore)
	a.tracker = tracker.New(a.loaded.State, a.controller, a.rest, a.clock)

	lifecycleCtx, cancel := context.WithCancel(context.Background())
	a.stopLifecycle = cancel
	go a.controller.WatchLifecycle(lifecycleCtx, lifecycle.Notify(lifecycleCtx))

	log.Debugf("state loaded from %s", a.loaded.Source)
	return a, nil
}

// close flushes pending edits, waits for in-flight durable saves and closes the stores.
func (a *app) close() error {
	if a.stopLifecycle != nil {
		a.stopLifecycle()
	}

	var err error
	if a.controller != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		err = multierr.Append(err, a.controller.Close(ctx))
	}
	return multierr.Append(err, a.closeStores())
}

func (a *app) closeStores() error {
	var err error
	for _, s := range a.stores {
		err = multierr.Append(err, s.Close())
	}
	a.stores = nil
	return err
}
