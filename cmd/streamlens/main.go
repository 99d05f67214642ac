package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/streamlens/streamlens/internal/api"
	"github.com/streamlens/streamlens/internal/classify"
	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/logging"
	"github.com/streamlens/streamlens/internal/metrics"
	"github.com/streamlens/streamlens/internal/pipeline"
	"github.com/streamlens/streamlens/internal/session"
	"github.com/streamlens/streamlens/internal/source/cdp"
	"github.com/streamlens/streamlens/internal/storage"
	"github.com/streamlens/streamlens/internal/store"
	"github.com/streamlens/streamlens/internal/validate"
)

const shutdownGrace = 5 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "streamlens",
		Short:         "Sniffs streaming media out of a live browser session",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd)
		},
	}
	config.RegisterFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) error {
	cfg, err := config.NewLoader().Load(cmd.Flags())
	if err != nil {
		return err
	}

	log := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	log.Info().Str("devtools", cfg.DevToolsURL).Str("listen", cfg.ListenAddr).Msg("starting")

	db, err := storage.Open(cfg.DatabasePath, log)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := session.NewRegistry(cfg.RecordCapacity, cfg.HARCapacity, log)
	reg.SetAdvancedDefault(cfg.AdvancedCapture)

	hub := api.NewHub(log)
	collector := metrics.NewCollector()

	prober := validate.NewProber(cfg.ProbeTimeout, log)
	queue := validate.NewQueue(reg, prober, validate.Options{
		Pause:   cfg.ProbePause,
		Persist: db,
		Notify:  hub,
		Metrics: collector,
	}, log)

	classifier := classify.New(reg, queue, db, hub, log)
	sink := pipeline.New(reg, classifier, collector, log)
	source := cdp.New(cfg.DevToolsURL, sink, log)

	dispatcher := api.NewDispatcher(reg, classifier, queue, db, source, log)
	server := api.NewServer(cfg.ListenAddr, dispatcher, hub, collector, log)

	restoreSessions(db, reg, queue, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go queue.Run(ctx)
	go func() {
		if runErr := source.Run(ctx); runErr != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("browser source: %w", runErr)
		}
	}()
	go func() {
		if srvErr := server.ListenAndServe(); srvErr != nil {
			errCh <- fmt.Errorf("api server: %w", srvErr)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-errCh:
		log.Error().Err(err).Msg("fatal component error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if shutErr := server.Shutdown(shutdownCtx); shutErr != nil {
		log.Warn().Err(shutErr).Msg("api shutdown incomplete")
	}
	return err
}

// restoreSessions reloads the durable record sets and re-queues anything that
// was still pending validation when the previous process exited.
func restoreSessions(db *storage.DB, reg *session.Registry, queue *validate.Queue, log zerolog.Logger) {
	saved, err := db.Load()
	if err != nil {
		log.Warn().Err(err).Msg("restoring persisted sessions failed")
		return
	}
	for id, records := range saved {
		sess := reg.GetOrCreate(id)
		for _, rec := range records {
			sess.Records.Insert(rec)
			if rec.Validation.Status == store.StatusPending {
				if gen, ok := sess.Records.MarkPending(rec.URL); ok {
					queue.Enqueue(id, rec.URL, gen)
				}
			}
		}
		log.Info().Str("session", id).Int("records", sess.Records.Len()).Msg("session restored")
	}
}
