package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/blueprint/internal/a2a"
	"github.com/dusk-indust/blueprint/internal/autosave"
	"github.com/dusk-indust/blueprint/internal/config"
	"github.com/dusk-indust/blueprint/internal/engine"
	"github.com/dusk-indust/blueprint/internal/gateway"
	"github.com/dusk-indust/blueprint/internal/store"
)

// app bundles the store, gateway and engine built from the configuration.
type app struct {
	cfg   *config.Config
	store store.Store
	a2a   *gateway.A2AGateway
	eng   *engine.Engine

	events chan struct{}
}

// openApp builds the engine for cmd and loads every project.
func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		DSN:         cfg.Store.DSN,
		RedisAddr:   cfg.Store.RedisAddr,
		RedisDB:     cfg.Store.RedisDB,
		RedisPrefix: cfg.Store.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	a := &app{cfg: cfg, store: st}

	var gw gateway.Gateway
	if len(cfg.Gateway.Agents) > 0 {
		opts := []gateway.Option{
			gateway.WithRateLimit(cfg.Gateway.RatePerSecond, cfg.Gateway.Burst),
			gateway.WithProgress(func(ev gateway.ProgressEvent) {
				if a.eng != nil {
					a.eng.ReportProgress(ev)
				}
			}),
		}
		if cfg.Gateway.Executor != "" {
			opts = append(opts, gateway.WithExecutor(cfg.Gateway.Executor))
		}
		a.a2a = gateway.NewA2AGateway(a2a.NewHTTPClient(), cfg.Gateway.Agents, opts...)
		gw = a.a2a
	}

	a.eng = engine.New(st, gw, engine.WithGatewayTimeout(cfg.Gateway.Timeout))
	if cfg.Verbose {
		a.events = make(chan struct{})
		go printEvents(os.Stderr, a.eng.Events(), a.events)
	}

	if _, err := a.eng.LoadProjects(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the engine and the store.
func (a *app) Close() error {
	a.eng.Close()
	if a.events != nil {
		<-a.events
	}
	return a.store.Close()
}

// selectProject selects id or returns ErrProjectNotFound.
func (a *app) selectProject(id string) error {
	if !a.eng.SelectProject(id) {
		return fmt.Errorf("%w: %s", engine.ErrProjectNotFound, id)
	}
	return nil
}

// probe logs which configured agents answer.
func (a *app) probe(ctx context.Context) {
	if a.a2a == nil {
		log.Printf("WARNING: no agents configured; approvals will mark downstream stages stale")
		return
	}
	up := a.a2a.Probe(ctx)
	log.Printf("gateway: %d of %d agents reachable", len(up), len(a.a2a.Agents()))
}

// startBackground starts autosave and, for the file store, reloads projects
// when the store directory changes. The returned function stops both and
// flushes pending edits.
func (a *app) startBackground(ctx context.Context) (func(context.Context) error, error) {
	var sched *autosave.Scheduler
	if a.cfg.Autosave.Schedule != "" {
		s, err := autosave.New(a.eng, a.cfg.Autosave.Schedule)
		if err != nil {
			return nil, err
		}
		s.Start()
		sched = s
	}

	if fs, ok := a.store.(*store.FileStore); ok {
		changes, err := fs.Watch(ctx)
		if err != nil {
			log.Printf("WARNING: store watch disabled: %v", err)
		} else {
			go func() {
				for range changes {
					if _, err := a.eng.LoadProjects(ctx); err != nil {
						log.Printf("WARNING: reload after external change: %v", err)
					}
				}
			}()
		}
	}

	return func(stopCtx context.Context) error {
		if sched != nil {
			return sched.Stop(stopCtx)
		}
		return a.eng.SaveDirty(stopCtx)
	}, nil
}

func printEvents(w io.Writer, events <-chan engine.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		line := fmt.Sprintf("[%s] %s", ev.Kind, ev.ProjectID)
		switch ev.Kind {
		case engine.EventDeleted, engine.EventDiscarded, engine.EventError, engine.EventLoaded:
		default:
			line += " " + ev.Stage.String()
		}
		if ev.Message != "" {
			line += ": " + ev.Message
		}
		fmt.Fprintln(w, line)
	}
}

// saveIfDirty persists the selected project when a command changed it.
func (a *app) saveIfDirty(ctx context.Context) error {
	if !a.eng.IsDirty(a.eng.SelectedID()) {
		return nil
	}
	return a.eng.Save(ctx)
}

// reportStatus prints the engine's latest status line.
func (a *app) reportStatus(w io.Writer) {
	st := a.eng.Status()
	if st.Message == "" {
		return
	}
	prefix := ""
	switch st.Level {
	case engine.LevelWarning:
		prefix = "warning: "
	case engine.LevelError:
		prefix = "error: "
	}
	fmt.Fprintln(w, prefix+st.Message)
}
