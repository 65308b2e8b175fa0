// Package jobs holds background maintenance loops that run for the
// lifetime of the process.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/duochat/duochat-server/internal/repository"
)

// CleanupJob reaps stale pairing rows on a fixed interval. Expiry is
// otherwise detected lazily on the consume path, so this only bounds
// how long an unconsumed code lingers in the table.
type CleanupJob struct {
	pairingCodeRepo repository.PairingCodeRepository
	interval        time.Duration
	done            chan struct{}
}

func NewCleanupJob(pairingCodeRepo repository.PairingCodeRepository, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		pairingCodeRepo: pairingCodeRepo,
		interval:        interval,
		done:            make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "pairing codes", j.pairingCodeRepo.DeleteExpired)
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
