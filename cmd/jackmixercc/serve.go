package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xlab/closer"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
	"go.uber.org/zap"

	"github.com/james-see/jackmixercc/pkg/api"
	"github.com/james-see/jackmixercc/pkg/config"
	"github.com/james-see/jackmixercc/pkg/link"
	"github.com/james-see/jackmixercc/pkg/logging"
	"github.com/james-see/jackmixercc/pkg/midiport"
	"github.com/james-see/jackmixercc/pkg/mirror"
	"github.com/james-see/jackmixercc/pkg/mixer"
	"github.com/james-see/jackmixercc/pkg/server"
	"github.com/james-see/jackmixercc/pkg/session"
	"github.com/james-see/jackmixercc/pkg/tui"
)

const shutdownTimeout = 2 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	log := logging.New(logging.Options{Debug: s.Log.Debug, File: s.Log.File, Quiet: showTUI})
	if !s.Log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	channels, err := config.LoadChannels(s.Mixer.Config)
	if err != nil {
		return err
	}
	for _, w := range config.DuplicateControls(channels) {
		log.Warn("duplicate control binding, first one wins", zap.String("binding", w))
	}
	log.Info("channel map loaded", zap.String("path", s.Mixer.Config), zap.Int("channels", len(channels)))

	opts := []mixer.Option{mixer.WithStep(s.Mixer.Step), mixer.WithLogger(log.Named("mixer"))}
	var sink *mirror.Sink
	if len(s.PipeWire) > 0 {
		ids, err := mirror.Resolve(context.Background(), mirror.PWCLI, s.PipeWire)
		if err != nil {
			return fmt.Errorf("%w: %w", config.ErrConfigLoad, err)
		}
		mirror.Attach(channels, ids)
		for name, id := range ids {
			log.Info("pipewire node resolved", zap.String("channel", name), zap.String("id", id))
		}
		sink = mirror.NewSink(mirror.PWCLI, log.Named("pipewire"))
		opts = append(opts, mixer.WithMirror(sink))
	}
	engine := mixer.NewEngine(channels, opts...)

	var store *session.Store
	if s.Session.Enabled {
		store = session.NewStore(s.Session.Durable, s.Session.Scratch, log.Named("session"))
	}
	tracker := link.NewTracker(func() {
		if store != nil {
			_, _ = store.Load(engine)
		}
	}, log.Named("link"))

	l, err := net.Listen("tcp", s.Listen.Addr())
	if err != nil {
		return fmt.Errorf("control server: %w", err)
	}
	srv := server.New(engine, server.WithReadTimeout(s.Listen.ReadTimeout), server.WithLogger(log.Named("server")))

	var httpAPI *api.Server
	if s.HTTP.Addr != "" {
		httpAPI = api.New(s.HTTP.Addr, engine, tracker, log.Named("http"))
	}

	pump := midiport.NewPump(engine, s.MIDI.Period, log.Named("midi"))
	watcher := midiport.NewWatcher(midiport.System{}, engine, pump, tracker,
		midiport.WatcherConfig{In: s.MIDI.In, Out: s.MIDI.Out}, log.Named("midi"))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() { pump.Run(ctx) })
	spawn(func() { watcher.Run(ctx, s.MIDI.Scan) })
	if store != nil {
		spawn(func() { store.Run(ctx, engine, s.Session.Interval) })
	}
	spawn(func() {
		if err := srv.Serve(ctx, l); err != nil {
			log.Error("control server stopped", zap.Error(err))
		}
	})
	if httpAPI != nil {
		spawn(func() {
			if err := httpAPI.Start(); err != nil {
				log.Error("http api stopped", zap.Error(err))
			}
		})
	}

	closer.Bind(func() {
		log.Info("shutting down")
		_ = srv.Close()
		engine.Close()
		if httpAPI != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := httpAPI.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				log.Warn("http api shutdown", zap.Error(err))
			}
			done()
		}
		cancel()
		wg.Wait()
		if store != nil {
			if err := store.Shutdown(engine); err != nil {
				log.Error("session could not be saved", zap.Error(err))
			}
		}
		if sink != nil {
			sink.Close()
		}
		_ = log.Sync()
	})

	log.Info("jackmixercc running",
		zap.String("listen", s.Listen.Addr()),
		zap.Bool("session", s.Session.Enabled),
		zap.String("midi_in", s.MIDI.In),
		zap.String("midi_out", s.MIDI.Out))

	if showTUI {
		if err := tui.Run(ctx, engine, tracker, "jackmixercc"); err != nil {
			log.Error("terminal monitor failed", zap.Error(err))
		}
		closer.Close()
		return nil
	}
	closer.Hold()
	return nil
}
