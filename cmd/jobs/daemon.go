// cmd/jobs/daemon.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/ordercast/ordercast/internal/service"
	"github.com/ordercast/ordercast/internal/storage"
)

type daemonStatus struct {
	State          string                    `json:"state"`
	NextRun        time.Time                 `json:"next_run"`
	LastRun        *time.Time                `json:"last_run,omitempty"`
	LastEvaluation *service.EvaluationReport `json:"last_evaluation,omitempty"`
	LastLearning   *service.LearningReport   `json:"last_learning,omitempty"`
	LastArchive    *storage.ArchiveReport    `json:"last_archive,omitempty"`
	LastError      string                    `json:"last_error,omitempty"`
}

// runDaemon runs the evaluate-learn-archive cycle once a day at the
// configured hour and serves a small status endpoint alongside.
func runDaemon(c *cli.Context) error {
	env, err := newJobEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	var (
		mu     sync.Mutex
		status = daemonStatus{State: "idle"}
	)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")
	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}).Methods("GET")

	srv := &http.Server{Addr: ":" + env.cfg.Jobs.StatusPort, Handler: r}
	go func() {
		log.Info().Str("port", env.cfg.Jobs.StatusPort).Msg("daemon status server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("status server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("run-now") {
		runCycle(ctx, env, &mu, &status)
	}

	for {
		next := nextRunAt(time.Now(), env.cfg.Jobs.RunHour)
		mu.Lock()
		status.NextRun = next
		mu.Unlock()
		log.Info().Time("next_run", next).Msg("daemon waiting for next cycle")

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			log.Info().Msg("daemon exiting")
			return nil
		case <-time.After(time.Until(next)):
		}

		runCycle(ctx, env, &mu, &status)
	}
}

func runCycle(ctx context.Context, env *jobEnv, mu *sync.Mutex, status *daemonStatus) {
	mu.Lock()
	status.State = "running"
	mu.Unlock()

	started := time.Now()

	evalReport, err := env.learning.EvaluateForecasts(ctx, time.Time{})

	var learnReport *service.LearningReport
	if err == nil {
		learnReport, err = env.learning.LearnParameters(ctx, time.Time{})
	}

	var archiveReport *storage.ArchiveReport
	if err == nil && env.cfg.Archive.Endpoint != "" {
		archiveReport, err = runArchiveStep(ctx, env)
	}

	mu.Lock()
	status.State = "idle"
	status.LastRun = &started
	if evalReport != nil {
		status.LastEvaluation = evalReport
	}
	if learnReport != nil {
		status.LastLearning = learnReport
	}
	if archiveReport != nil {
		status.LastArchive = archiveReport
	}
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.LastError = ""
	}
	mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("daemon cycle failed")
		return
	}
	log.Info().Dur("took", time.Since(started)).Msg("daemon cycle finished")
}

func runArchiveStep(ctx context.Context, env *jobEnv) (*storage.ArchiveReport, error) {
	archiver, err := env.newArchiver()
	if err != nil {
		return nil, err
	}

	return archiver.Run(ctx, time.Time{}, false)
}

// nextRunAt returns the next occurrence of the given hour, strictly
// after now.
func nextRunAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
