package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"doorwatch/internal/actuator"
	"doorwatch/internal/config"
	"doorwatch/internal/database"
	"doorwatch/internal/detector"
	"doorwatch/internal/monitoring"
	"doorwatch/internal/motion"
	"doorwatch/internal/pipeline"
)

// Events buffered for the journal writer
const journalQueueSize = 256

func main() {
	cfg, err := config.Parse("doorwatch", os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	log.SetPrefix("[doorwatch] ")
	log.SetFlags(log.Ltime)
	monitoring.SetVerbose(cfg.Verbose)

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("exited")
}

func run(cfg *config.Config) error {
	log.Printf("starting (%s)", cfg.Summary())

	source, err := newSource(cfg)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	bridge, err := newBridge(cfg)
	if err != nil {
		return fmt.Errorf("failed to create actuator: %w", err)
	}
	dispatcher := actuator.NewDispatcher(bridge, actuator.DispatcherConfig{
		QueueSize:   cfg.Actuator.QueueSize,
		CallTimeout: cfg.Actuator.CallTimeout,
	})
	defer dispatcher.Close()

	bus := pipeline.NewEventBus()
	defer bus.Close()
	bus.Subscribe(pipeline.EventHandlerFunc(func(ev *pipeline.Event) {
		log.Printf("event %s (frame %d)", ev.Kind, ev.FrameSeq)
	}))
	bus.Subscribe(dispatcher)
	if cfg.Door.Enabled {
		var alarms detector.AlarmLog
		alarms.Subscribe(bus)
	}

	if cfg.JournalPath != "" {
		journal, err := database.Open(cfg.JournalPath, source.Describe())
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		// Inserts run off the tick loop; a full queue drops events from the journal only
		events, unsubscribe := bus.SubscribeChannel(journalQueueSize)
		journalDone := make(chan struct{})
		go func() {
			defer close(journalDone)
			journal.Consume(events)
		}()
		defer func() {
			unsubscribe()
			<-journalDone
			journal.Close()
		}()
		log.Printf("journaling events to %s", cfg.JournalPath)
	}

	monitor := pipeline.NewStreamMonitor(source, pipeline.ReconnectConfig{
		RetryDelay:    cfg.RetryDelay,
		MaxRetryDelay: cfg.MaxRetryDelay,
	})
	p := pipeline.NewDetectionPipeline(monitor, bus, detectorFactory(cfg), pipeline.Options{
		StatsInterval: cfg.StatsInterval,
		ProgressEvery: 1000,
	})

	// Create channel used by both the signal handler and pipeline goroutines
	// to notify the main goroutine when to stop.
	errc := make(chan error, 2)

	// Setup interrupt handler. This optional step configures the process so
	// that SIGINT and SIGTERM signals cause the pipeline to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = p.Run(ctx)
		errc <- fmt.Errorf("pipeline stopped")
	}()

	// Wait for signal or pipeline exit.
	log.Printf("exiting (%v)", <-errc)

	// Send cancellation signal to the goroutines.
	cancel()
	wg.Wait()

	s := p.Stats()
	log.Printf("processed %d frames, %d dropped, %d reconnects, %d events",
		s.Ticks, s.FramesDropped, s.Reconnects, s.Events)
	if runErr != nil {
		return fmt.Errorf("pipeline failed: %w", runErr)
	}
	return nil
}

// detectorFactory builds the enabled detectors once the frame size is known
func detectorFactory(cfg *config.Config) pipeline.DetectorFactory {
	return func(width, height int) ([]pipeline.Detector, error) {
		scaled := cfg.Scale(width, height)
		log.Printf("frame size %dx%d, thresholds scaled to the %dx%d reference",
			width, height, config.ReferenceWidth, config.ReferenceHeight)

		var detectors []pipeline.Detector
		if cfg.Direction.Enabled {
			d, err := motion.NewDirectionDetector(scaled.Direction, pipeline.NewBinding(cfg.Direction.Reverse))
			if err != nil {
				return nil, err
			}
			detectors = append(detectors, d)
		}
		if cfg.Door.Enabled {
			d, err := detector.NewDoorDetector(scaled.Door, image.Rect(0, 0, width, height))
			if err != nil {
				return nil, err
			}
			detectors = append(detectors, d)
		}
		return detectors, nil
	}
}
