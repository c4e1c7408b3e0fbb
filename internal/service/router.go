package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gfd-sse/off2on-bridge-go/internal/metrics"
	"github.com/gfd-sse/off2on-bridge-go/internal/model"
	redisclient "github.com/gfd-sse/off2on-bridge-go/internal/redis"
	"github.com/gfd-sse/off2on-bridge-go/internal/repository"
	"github.com/gfd-sse/off2on-bridge-go/internal/stream"
)

// EventRouter consumes domain events from the broker channels and fans each
// one out to the live stream matching its sourceId, if one exists on this
// process. A bad message never stops the subscriber loop.
type EventRouter struct {
	registry *stream.Registry
	mappings repository.MappingRepository
	rdb      *redisclient.Client
	grace    time.Duration
}

func NewEventRouter(registry *stream.Registry, mappings repository.MappingRepository, rdb *redisclient.Client, grace time.Duration) *EventRouter {
	return &EventRouter{
		registry: registry,
		mappings: mappings,
		rdb:      rdb,
		grace:    grace,
	}
}

// Run subscribes to all event channels and dispatches until ctx is done.
func (r *EventRouter) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, redisclient.EventChannels()...)
	defer pubsub.Close()

	log.Info().Strs("channels", redisclient.EventChannels()).Msg("event router subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.Handle(ctx, []byte(msg.Payload), msg.Channel)
		}
	}
}

// Handle processes one raw broker message. Deserialization failures are
// logged and swallowed.
func (r *EventRouter) Handle(ctx context.Context, payload []byte, channel string) {
	var event model.DomainEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		metrics.MalformedMessages.Inc()
		log.Error().Err(err).Str("channel", channel).Msg("failed to unmarshal event, dropping")
		return
	}

	if event.EventType == model.EventDisconnectRequested {
		r.handleDisconnect(ctx, &event)
		return
	}

	sourceID := strings.TrimSpace(event.SourceID)
	if sourceID == "" {
		log.Warn().
			Str("channel", channel).
			Str("eventType", string(event.EventType)).
			Msg("event without sourceId, cannot route")
		return
	}

	if !r.registry.Has(sourceID) {
		// Expected steady state when the paired observer is attached to a
		// different process.
		metrics.EventsDropped.Inc()
		log.Debug().
			Str("sourceId", sourceID).
			Str("eventType", string(event.EventType)).
			Msg("no live stream for sourceId, event not forwarded")
		return
	}

	r.registry.Deliver(sourceID, &event)
	log.Info().
		Str("sourceId", sourceID).
		Str("channel", channel).
		Str("eventType", string(event.EventType)).
		Msg("forwarded event")
}

// handleDisconnect closes the stream for the event's source and marks the
// mapping inactive. The event itself is delivered first as a courtesy notice,
// with a short grace period to let the write flush.
func (r *EventRouter) handleDisconnect(ctx context.Context, event *model.DomainEvent) {
	sourceID := strings.TrimSpace(event.SourceID)
	if sourceID == "" {
		log.Warn().Msg("disconnect event without sourceId, cannot process")
		return
	}

	log.Info().Str("sourceId", sourceID).Msg("processing disconnect request event")

	if r.registry.Has(sourceID) {
		r.registry.Deliver(sourceID, event)
		time.Sleep(r.grace)
	}

	r.registry.Close(sourceID)

	mapping, err := r.mappings.FindBySourceID(ctx, sourceID)
	if err != nil {
		log.Error().Err(err).Str("sourceId", sourceID).Msg("failed to look up mapping for disconnect")
		return
	}
	if mapping == nil {
		return
	}

	if err := r.mappings.SetActive(ctx, mapping.ID, false); err != nil {
		log.Error().Err(err).Str("sourceId", sourceID).Msg("failed to deactivate mapping")
		return
	}

	log.Info().Str("sourceId", sourceID).Msg("mapping deactivated on disconnect request")
}
