package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/gfd-sse/off2on-bridge-go/internal/model"
	redisclient "github.com/gfd-sse/off2on-bridge-go/internal/redis"
	"github.com/gfd-sse/off2on-bridge-go/internal/stream"
)

func newTestRouter(registry *stream.Registry, repo *mockMappingRepo) *EventRouter {
	// Handle does not touch the broker connection; Run is exercised against a
	// real instance only.
	return NewEventRouter(registry, repo, nil, 5*time.Millisecond)
}

func mustMarshal(t *testing.T, event *model.DomainEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	assert.NoError(t, err)
	return data
}

func TestEventRouter_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("forwards event to the live stream for its sourceId", func(t *testing.T) {
		registry := stream.NewRegistry(time.Minute)
		repo := new(mockMappingRepo)
		router := newTestRouter(registry, repo)

		s := registry.Open("src-1")

		event := model.NewDomainEvent(model.EventCartItemAdded, "src-1")
		router.Handle(ctx, mustMarshal(t, event), redisclient.CartEventsChannel)

		frame := <-s.Frames()
		assert.Equal(t, string(model.EventCartItemAdded), frame.Event)
		assert.Equal(t, event.EventID, frame.ID)
	})

	t.Run("drops malformed payloads without affecting later events", func(t *testing.T) {
		registry := stream.NewRegistry(time.Minute)
		repo := new(mockMappingRepo)
		router := newTestRouter(registry, repo)

		s := registry.Open("src-1")

		router.Handle(ctx, []byte("{not json"), redisclient.CartEventsChannel)

		event := model.NewDomainEvent(model.EventProductViewed, "src-1")
		router.Handle(ctx, mustMarshal(t, event), redisclient.ProductEventsChannel)

		frame := <-s.Frames()
		assert.Equal(t, string(model.EventProductViewed), frame.Event)
		assert.True(t, registry.Has("src-1"))
	})

	t.Run("drops events without a sourceId", func(t *testing.T) {
		registry := stream.NewRegistry(time.Minute)
		repo := new(mockMappingRepo)
		router := newTestRouter(registry, repo)

		s := registry.Open("src-1")

		event := model.NewDomainEvent(model.EventCartUpdated, "  ")
		router.Handle(ctx, mustMarshal(t, event), redisclient.CartEventsChannel)

		select {
		case frame := <-s.Frames():
			t.Fatalf("unexpected frame delivered: %+v", frame)
		default:
		}
	})

	t.Run("drops events when no stream is attached locally", func(t *testing.T) {
		registry := stream.NewRegistry(time.Minute)
		repo := new(mockMappingRepo)
		router := newTestRouter(registry, repo)

		event := model.NewDomainEvent(model.EventCheckoutCompleted, "src-elsewhere")
		router.Handle(ctx, mustMarshal(t, event), redisclient.CheckoutEventsChannel)

		assert.False(t, registry.Has("src-elsewhere"))
	})
}

func TestEventRouter_DisconnectRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers notice then closes stream and deactivates mapping", func(t *testing.T) {
		registry := stream.NewRegistry(time.Minute)
		repo := new(mockMappingRepo)
		router := newTestRouter(registry, repo)

		s := registry.Open("src-1")
		repo.On("FindBySourceID", ctx, "src-1").Return(&model.DeviceMapping{
			ID:       "map-1",
			SourceID: "src-1",
			Active:   true,
		}, nil)
		repo.On("SetActive", ctx, "map-1", false).Return(nil)

		event := model.NewDomainEvent(model.EventDisconnectRequested, "src-1")
		router.Handle(ctx, mustMarshal(t, event), redisclient.CartEventsChannel)

		// Courtesy notice arrives before the stream is torn down.
		frame := <-s.Frames()
		assert.Equal(t, string(model.EventDisconnectRequested), frame.Event)

		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatal("stream was not closed")
		}
		assert.False(t, registry.Has("src-1"))
		repo.AssertExpectations(t)
	})

	t.Run("deactivates mapping even without a live stream", func(t *testing.T) {
		registry := stream.NewRegistry(time.Minute)
		repo := new(mockMappingRepo)
		router := newTestRouter(registry, repo)

		repo.On("FindBySourceID", ctx, "src-1").Return(&model.DeviceMapping{
			ID:       "map-1",
			SourceID: "src-1",
			Active:   true,
		}, nil)
		repo.On("SetActive", ctx, "map-1", false).Return(nil)

		event := model.NewDomainEvent(model.EventDisconnectRequested, "src-1")
		router.Handle(ctx, mustMarshal(t, event), redisclient.CartEventsChannel)

		repo.AssertExpectations(t)
	})

	t.Run("disconnect without sourceId is ignored", func(t *testing.T) {
		registry := stream.NewRegistry(time.Minute)
		repo := new(mockMappingRepo)
		router := newTestRouter(registry, repo)

		event := model.NewDomainEvent(model.EventDisconnectRequested, "")
		router.Handle(ctx, mustMarshal(t, event), redisclient.CartEventsChannel)

		repo.AssertNotCalled(t, "FindBySourceID", mock.Anything, mock.Anything)
	})

	t.Run("unknown source still closes any stream but writes nothing", func(t *testing.T) {
		registry := stream.NewRegistry(time.Minute)
		repo := new(mockMappingRepo)
		router := newTestRouter(registry, repo)

		repo.On("FindBySourceID", ctx, "src-ghost").Return(nil, nil)

		event := model.NewDomainEvent(model.EventDisconnectRequested, "src-ghost")
		router.Handle(ctx, mustMarshal(t, event), redisclient.CartEventsChannel)

		repo.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})
}
