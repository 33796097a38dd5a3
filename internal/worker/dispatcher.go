// Package worker runs generation jobs out of band.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/domain/generation"
)

// Dispatcher starts one goroutine per scheduled job. There is no queue and no
// concurrency limit; a job runs until its pipeline returns.
type Dispatcher struct {
	runner *Runner
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(runner *Runner, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		runner: runner,
		log:    log.With().Str("component", "job-dispatcher").Logger(),
	}
}

// Schedule starts the job immediately in the background.
func (d *Dispatcher) Schedule(task generation.Task) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runner.Run(context.Background(), task)
	}()
}

// Shutdown waits for in-flight jobs until ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.log.Info().Msg("waiting for in-flight jobs")

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info().Msg("all jobs finished")
		return nil
	case <-ctx.Done():
		d.log.Warn().Msg("job shutdown grace period elapsed")
		return ctx.Err()
	}
}

// Ensure interface compliance.
var _ generation.Scheduler = (*Dispatcher)(nil)
