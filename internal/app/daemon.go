package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/frartenzo/webeep-sync/internal/control"
	websync "github.com/frartenzo/webeep-sync/internal/sync"
)

// ErrAlreadyRunning means another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("app: another instance is already running")

const minAutosyncInterval = time.Minute

// Daemon is the long-running mode: it serves the control API, runs an
// initial sync pass, and keeps autosyncing on the configured interval.
type Daemon struct {
	app  *App
	cps  *control.Server
	lock *flock.Flock
}

func NewDaemon(app *App) *Daemon {
	settings := app.Store.Get()
	api := control.NewAPI(app.Client, app.Engine, app.Store, app.Bus)
	cps := control.NewServer(&control.Config{
		Addr:      settings.ControlAddr,
		AuthToken: settings.ControlToken,
	}, api)

	return &Daemon{
		app:  app,
		cps:  cps,
		lock: flock.New(filepath.Join(app.DataDir, "daemon.lock")),
	}
}

func (d *Daemon) Start(ctx context.Context) error {
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("instance lock: %w", err)
	}
	if !locked {
		return ErrAlreadyRunning
	}
	defer d.lock.Unlock()

	slog.Info("daemon start")

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := d.cps.Start(egCtx); err != nil {
			return fmt.Errorf("start control api: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		d.autosync(egCtx)
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return d.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("daemon failure", "error", err)
		return err
	}

	slog.Info("daemon stopped")
	return nil
}

func (d *Daemon) Stop(ctx context.Context) error {
	d.app.Engine.Stop()
	if err := d.cps.Stop(ctx); err != nil {
		return fmt.Errorf("stop control api: %w", err)
	}
	return nil
}

// autosync runs a pass on startup and then on every interval tick while
// autosync is enabled. The interval is re-read each round so settings
// changes apply without a restart.
func (d *Daemon) autosync(ctx context.Context) {
	if d.app.Client.LoggedIn() {
		d.runPass(ctx)
	} else {
		slog.Info("not logged in, skipping initial sync")
	}

	timer := time.NewTimer(d.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if d.app.Store.Get().AutosyncEnabled && d.app.Client.LoggedIn() {
			d.runPass(ctx)
		}
		timer.Reset(d.interval())
	}
}

func (d *Daemon) runPass(ctx context.Context) {
	_, err := d.app.Engine.Sync(ctx)
	if err != nil && !errors.Is(err, websync.ErrSyncInProgress) && ctx.Err() == nil {
		slog.Warn("sync pass failed", "error", err)
	}
}

func (d *Daemon) interval() time.Duration {
	interval := d.app.Store.Get().AutosyncInterval.Std()
	if interval < minAutosyncInterval {
		interval = minAutosyncInterval
	}
	return interval
}
