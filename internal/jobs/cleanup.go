package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gfd-sse/off2on-bridge-go/internal/repository"
)

// CleanupJob clears expired pending OTPs. Lookups already exclude expired
// codes, so this is hygiene rather than correctness.
type CleanupJob struct {
	mappings repository.MappingRepository
	interval time.Duration
	done     chan struct{}
}

func NewCleanupJob(mappings repository.MappingRepository, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		mappings: mappings,
		interval: interval,
		done:     make(chan struct{}),
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

	count, err := j.mappings.ClearExpiredOTPs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to clear expired otps")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("cleared expired otps")
	}
}
