package api

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventBus replicates live events across service instances. A user
// connected to another instance still sees updates because every
// instance replays foreign events into its local hub.
type EventBus interface {
	Publish(userId string, data []byte) error
	Subscribe(handler func(userId string, data []byte)) error
	Close()
}

// envelope wraps a bus message with its origin so an instance can
// skip events it already delivered locally.
type envelope struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// Fanout is the live-delivery service: local hub fan-out plus the
// optional cross-instance bridge. It is constructed once and injected
// into the chat service; delivery is fire-and-forget and never fails
// the operation that triggered it.
type Fanout struct {
	hub        *Hub
	bus        EventBus
	instanceId string
	log        *zap.Logger
}

func NewFanout(hub *Hub, bus EventBus, log *zap.Logger) *Fanout {
	return &Fanout{
		hub:        hub,
		bus:        bus,
		instanceId: uuid.NewString(),
		log:        log,
	}
}

// Start launches the hub loop and, when a bus is configured, begins
// replaying foreign-origin events into it.
func (f *Fanout) Start() error {
	go f.hub.Run()

	if f.bus == nil {
		return nil
	}
	return f.bus.Subscribe(func(userId string, data []byte) {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			f.log.Warn("discarding malformed bus event", zap.Error(err))
			return
		}
		if env.Origin == f.instanceId {
			return
		}
		f.hub.Send([]string{userId}, env.Event, env.Data)
	})
}

func (f *Fanout) Shutdown() {
	if f.bus != nil {
		f.bus.Close()
	}
	f.hub.Shutdown()
}

// Notify pushes the event to every active connection of the addressed
// users, locally and across instances. Errors are logged, never
// returned: durability of the underlying write is the correctness
// bar, not live delivery.
func (f *Fanout) Notify(userIds []string, event OutgoingEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		f.log.Error("could not encode outgoing event", zap.Error(err))
		return
	}

	f.hub.Send(userIds, event.Type, payload)

	if f.bus == nil {
		return
	}
	data, err := json.Marshal(envelope{Origin: f.instanceId, Event: event.Type, Data: payload})
	if err != nil {
		f.log.Error("could not encode bus envelope", zap.Error(err))
		return
	}
	for _, userId := range userIds {
		if err := f.bus.Publish(userId, data); err != nil {
			f.log.Warn("bus publish failed", zap.String("userId", userId), zap.Error(err))
		}
	}
}
