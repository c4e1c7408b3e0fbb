package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gfd-sse/off2on-bridge-go/internal/model"
	redisclient "github.com/gfd-sse/off2on-bridge-go/internal/redis"
)

// EventPublisher writes domain events to broker channels.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event *model.DomainEvent) error
}

type redisPublisher struct {
	rdb *redisclient.Client
}

func NewEventPublisher(rdb *redisclient.Client) EventPublisher {
	return &redisPublisher{rdb: rdb}
}

func (p *redisPublisher) Publish(ctx context.Context, channel string, event *model.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	log.Info().
		Str("channel", channel).
		Str("eventType", string(event.EventType)).
		Str("sourceId", event.SourceID).
		Msg("published event")
	return nil
}
