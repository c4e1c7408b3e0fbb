package jobs

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gfd-sse/off2on-bridge-go/internal/stream"
)

// KeepaliveJob probes every live stream on a fixed period. A failed probe
// tears the stream down exactly like a delivery failure, so dead observers
// are detected between events.
type KeepaliveJob struct {
	registry *stream.Registry
	interval time.Duration
	done     chan struct{}
}

func NewKeepaliveJob(registry *stream.Registry, interval time.Duration) *KeepaliveJob {
	return &KeepaliveJob{
		registry: registry,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *KeepaliveJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("keepalive job started")
}

func (j *KeepaliveJob) Stop() {
	close(j.done)
	log.Info().Msg("keepalive job stopped")
}

func (j *KeepaliveJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.probeAll()
		}
	}
}

// probeAll is best effort per identity: one stream's failure does not
// prevent probing the others.
func (j *KeepaliveJob) probeAll() {
	ids := j.registry.SourceIDs()
	if len(ids) == 0 {
		return
	}

	log.Debug().Int("count", len(ids)).Msg("sending keepalive probes")

	for _, id := range ids {
		j.registry.Probe(id)
	}
}
