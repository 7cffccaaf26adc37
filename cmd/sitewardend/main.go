package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/SoarinFerret/SiteWarden/internal/budget"
	"github.com/SoarinFerret/SiteWarden/internal/clock"
	"github.com/SoarinFerret/SiteWarden/internal/config"
	"github.com/SoarinFerret/SiteWarden/internal/enforce"
	"github.com/SoarinFerret/SiteWarden/internal/gate"
	"github.com/SoarinFerret/SiteWarden/internal/ipc"
	"github.com/SoarinFerret/SiteWarden/internal/notify"
	"github.com/SoarinFerret/SiteWarden/internal/schedule"
	"github.com/SoarinFerret/SiteWarden/internal/site"
	"github.com/SoarinFerret/SiteWarden/internal/store"
	"github.com/SoarinFerret/SiteWarden/internal/tabs"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	argPath := "/etc/sitewarden/config.toml"
	if len(os.Args) > 1 {
		argPath = os.Args[1]
	}
	cfg, err := config.LoadConfigFromFile(argPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", argPath).Msg("failed to load config")
	}
	log.Info().Str("path", argPath).Msg("config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.NewFileStore(cfg.StatePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StatePath).Msg("failed to open state store")
	}

	clk := clock.Real()

	var notifier notify.Notifier = notify.Nop{}
	if *cfg.Notify.Enabled {
		desktop, err := notify.NewDesktop()
		if err != nil {
			log.Warn().Err(err).Msg("desktop notifications unavailable")
		} else {
			defer desktop.Close()
			notifier = desktop
		}
	}

	eval, err := schedule.NewEvaluator(ctx, st, clk)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schedule evaluator")
	}

	registry := site.NewRegistry(st)

	budgetMgr := budget.NewManager(st, clk, notifier, budget.Options{
		DefaultQuotaMinutes: cfg.Budget.DailyLimit.Duration().Minutes(),
		ResetMinute:         int(cfg.Budget.ResetTime),
		WarnThresholds:      cfg.Budget.WarnThresholds,
		DrainInterval:       cfg.Budget.DrainInterval.Duration(),
		SiteQuota: func(ctx context.Context, siteID string) (*float64, error) {
			s, err := registry.Get(ctx, siteID)
			if err != nil {
				if errors.Is(err, site.ErrSiteNotFound) {
					// Unknown to the registry means no override.
					return nil, nil
				}
				return nil, err
			}
			return s.DailyLimitMinutes, nil
		},
	})

	enforcer, err := enforce.NewDBus()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to enforcement layer")
	}
	defer enforcer.Close()

	g := gate.New(enforcer, eval, budgetMgr, notifier, clk, cfg.Schedule.TickInterval.Duration())

	// Push the current rule set so enforcement starts from a known
	// state.
	if sites, err := registry.Enabled(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to load blocked sites")
	} else if err := enforcer.SyncSites(ctx, sites); err != nil {
		log.Warn().Err(err).Msg("initial rule sync failed")
	}

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := g.Run(ctx); err != nil {
			log.Error().Err(err).Msg("gate coordinator error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := budgetMgr.Run(ctx); err != nil {
			log.Error().Err(err).Msg("budget drain loop error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("watching tab lifecycle signals")
		if err := tabs.Watch(ctx, g); err != nil {
			log.Error().Err(err).Msg("tab watcher error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("exporting control interface")
		if err := serveControl(ctx, eval, budgetMgr, registry, g, enforcer); err != nil {
			log.Error().Err(err).Msg("control interface error")
		}
	}()

	wg.Wait()
	log.Info().Msg("shutdown complete")
}

func serveControl(ctx context.Context, eval *schedule.Evaluator, budgetMgr *budget.Manager, registry *site.Registry, g *gate.Gate, enforcer *enforce.DBus) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	reply, err := conn.RequestName(ipc.ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ipc.ServiceName)
	}

	mgr := &ipc.Manager{
		Eval:   eval,
		Budget: budgetMgr,
		Sites:  registry,
		Gate:   g,
		SyncSites: func(ctx context.Context) error {
			sites, err := registry.Enabled(ctx)
			if err != nil {
				return err
			}
			return enforcer.SyncSites(ctx, sites)
		},
	}
	if err := conn.Export(mgr, dbus.ObjectPath(ipc.ObjectPath), ipc.InterfaceName); err != nil {
		return fmt.Errorf("failed to export interface: %w", err)
	}

	<-ctx.Done()
	return nil
}
