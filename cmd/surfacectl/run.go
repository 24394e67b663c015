package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/surfacekit/internal/config"
	"github.com/danmuck/surfacekit/internal/hostruntime"
	"github.com/danmuck/surfacekit/internal/inspector"
	"github.com/danmuck/surfacekit/internal/layout"
	"github.com/danmuck/surfacekit/internal/logging"
	"github.com/danmuck/surfacekit/internal/mounting"
	"github.com/danmuck/surfacekit/internal/presenter"
	"github.com/danmuck/surfacekit/internal/scheduler"
	"github.com/danmuck/surfacekit/internal/surface"
)

func runHost(cfgPath string) error {
	logging.ConfigureRuntime()

	cfg, err := loadHostConfig(cfgPath)
	if err != nil {
		return err
	}

	loop := mounting.NewLoop()
	defer loop.Stop()
	manager := mounting.NewManager(loop, cfg.PoolCapacity)
	notifier := hostruntime.NewNotifier()

	pres := presenter.New(manager, notifier, presenter.Options{
		ScaleFactor: cfg.ScaleFactor,
		Images:      scheduler.LoggingImages{},
	})
	defer pres.Close()

	notifier.NotifyReady(hostruntime.NewInstance())

	surfaces := make([]*surface.Surface, 0, len(cfg.Surfaces))
	for _, sc := range cfg.Surfaces {
		s, err := newSurface(sc)
		if err != nil {
			return err
		}
		if err := pres.RegisterSurface(s); err != nil {
			return fmt.Errorf("register surface %d: %w", sc.ID, err)
		}
		surfaces = append(surfaces, s)
	}

	insp := inspector.New(cfg.InspectorAddr, pres, manager, cfg.CorsOrigins)
	errCh := make(chan error, 1)
	go func() {
		errCh <- insp.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				log.Info().Msgf("surfacectl reload requested")
				notifier.Reload()
				continue
			}
			log.Info().Msgf("surfacectl shutting down signal=%v", sig)
			return shutdown(insp, pres, surfaces)
		case err := <-errCh:
			return err
		}
	}
}

func newSurface(sc config.SurfaceConfig) (*surface.Surface, error) {
	s, err := surface.New(surface.ID(sc.ID), sc.Module, surface.Props{})
	if err != nil {
		return nil, err
	}
	s.SetSizeConstraints(
		layout.Size{Width: sc.MinWidth, Height: sc.MinHeight},
		layout.Size{Width: sc.MaxWidth, Height: sc.MaxHeight},
	)
	return s, nil
}

func shutdown(insp *inspector.Server, pres *presenter.Presenter, surfaces []*surface.Surface) error {
	for _, s := range surfaces {
		if err := pres.UnregisterSurface(s); err != nil {
			log.Warn().Msgf("surfacectl unregister id=%s err=%v", s.ID(), err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return insp.Shutdown(ctx)
}
