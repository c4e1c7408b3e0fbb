package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gfd-sse/off2on-bridge-go/internal/config"
	"github.com/gfd-sse/off2on-bridge-go/internal/metrics"
	"github.com/gfd-sse/off2on-bridge-go/internal/model"
)

// Keepalive frame sentinels. The name and payload are reserved so observers
// can tell probes apart from domain events.
const (
	HeartbeatEvent = "heartbeat"
	HeartbeatData  = "ping"
)

// Frame is a single SSE frame ready to be written to the wire.
type Frame struct {
	ID    string
	Event string
	Data  []byte
}

type closeReason string

const (
	reasonCompleted closeReason = "completed"
	reasonTimeout   closeReason = "timeout"
	reasonError     closeReason = "error"
	reasonReplaced  closeReason = "replaced"
)

// Stream is a live one-way event channel to a connected observer, keyed by
// the source device id. It is owned exclusively by the Registry; once Done is
// closed the stream never reopens.
type Stream struct {
	SourceID string

	frames chan Frame
	done   chan struct{}
	timer  *time.Timer
	once   sync.Once
}

// Frames is the channel the HTTP handler drains to write SSE frames.
func (s *Stream) Frames() <-chan Frame {
	return s.frames
}

// Done is closed when the stream reaches its terminal state.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) close() {
	s.once.Do(func() {
		if s.timer != nil {
			s.timer.Stop()
		}
		close(s.done)
	})
}

// push writes a frame without ever blocking the caller. A full buffer or a
// closed stream counts as a write failure.
func (s *Stream) push(f Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.frames <- f:
		return true
	default:
		return false
	}
}

// Registry is the process-local map from source device id to live stream.
// At most one stream exists per id; opening a new one displaces the old.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*Stream
	timeout time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		streams: make(map[string]*Stream),
		timeout: timeout,
	}
}

// Open registers a new stream for sourceID, closing any existing stream for
// the same id first. Removal of the old entry and insertion of the new one
// happen in one critical section so concurrent opens cannot both win.
func (r *Registry) Open(sourceID string) *Stream {
	r.mu.Lock()

	var displaced *Stream
	if old, ok := r.streams[sourceID]; ok {
		displaced = old
		delete(r.streams, sourceID)
	}

	s := &Stream{
		SourceID: sourceID,
		frames:   make(chan Frame, config.StreamBufferSize),
		done:     make(chan struct{}),
	}
	s.timer = time.AfterFunc(r.timeout, func() {
		r.remove(sourceID, s, reasonTimeout)
	})
	r.streams[sourceID] = s
	metrics.LiveStreams.Set(float64(len(r.streams)))

	r.mu.Unlock()

	if displaced != nil {
		displaced.close()
		log.Info().Str("sourceId", sourceID).Msg("displaced existing stream")
	}

	log.Info().Str("sourceId", sourceID).Dur("timeout", r.timeout).Msg("stream opened")
	return s
}

// Deliver serializes the event and writes it to the stream for sourceID.
// No stream registered is a logged no-op. A write failure closes the stream;
// the client must reconnect.
func (r *Registry) Deliver(sourceID string, event *model.DomainEvent) {
	r.mu.Lock()
	s, ok := r.streams[sourceID]
	r.mu.Unlock()

	if !ok {
		log.Debug().Str("sourceId", sourceID).Msg("no stream registered, event not delivered")
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("sourceId", sourceID).Msg("failed to serialize event")
		return
	}

	frame := Frame{ID: event.EventID, Event: string(event.EventType), Data: data}
	if !s.push(frame) {
		metrics.StreamWriteFailures.Inc()
		log.Warn().
			Str("sourceId", sourceID).
			Str("eventType", string(event.EventType)).
			Msg("stream write failed, closing stream")
		r.remove(sourceID, s, reasonError)
		return
	}

	metrics.EventsDelivered.Inc()
	log.Info().
		Str("sourceId", sourceID).
		Str("eventType", string(event.EventType)).
		Msg("event delivered")
}

// Probe sends a keepalive frame. Failure behaves like a delivery failure.
func (r *Registry) Probe(sourceID string) {
	r.mu.Lock()
	s, ok := r.streams[sourceID]
	r.mu.Unlock()

	if !ok {
		return
	}

	frame := Frame{Event: HeartbeatEvent, Data: []byte(HeartbeatData)}
	if !s.push(frame) {
		metrics.StreamWriteFailures.Inc()
		log.Warn().Str("sourceId", sourceID).Msg("keepalive probe failed, closing stream")
		r.remove(sourceID, s, reasonError)
	}
}

// Close removes and finalizes the stream for sourceID if present. Idempotent.
func (r *Registry) Close(sourceID string) {
	r.mu.Lock()
	s, ok := r.streams[sourceID]
	r.mu.Unlock()

	if ok {
		r.remove(sourceID, s, reasonCompleted)
	}
}

// Release finalizes a specific stream handle, used by the HTTP handler when
// the observer goes away. It only removes the registry entry when the handle
// is still current, so a displaced stream cannot tear down its replacement.
func (r *Registry) Release(s *Stream) {
	r.remove(s.SourceID, s, reasonCompleted)
}

func (r *Registry) Has(sourceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.streams[sourceID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// SourceIDs snapshots the ids with live streams, for the keepalive scheduler.
func (r *Registry) SourceIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.streams))
	for id := range r.streams {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll tears down every live stream, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	streams := r.streams
	r.streams = make(map[string]*Stream)
	metrics.LiveStreams.Set(0)
	r.mu.Unlock()

	for _, s := range streams {
		s.close()
	}

	if len(streams) > 0 {
		log.Info().Int("count", len(streams)).Msg("closed all streams")
	}
}

// remove is the single transition from Open to Closed. All terminal triggers
// (completion, timeout, write error, displacement) converge here.
func (r *Registry) remove(sourceID string, s *Stream, reason closeReason) {
	r.mu.Lock()
	if current, ok := r.streams[sourceID]; ok && current == s {
		delete(r.streams, sourceID)
		metrics.LiveStreams.Set(float64(len(r.streams)))
	}
	r.mu.Unlock()

	s.close()
	log.Info().
		Str("sourceId", sourceID).
		Str("reason", string(reason)).
		Msg("stream closed")
}
