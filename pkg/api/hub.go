package api

import (
	"go.uber.org/zap"

	"patrolchat/pkg/metrics"
)

// A delivery addresses an encoded event to a set of user rooms.
type delivery struct {
	userIds []string
	event   string
	payload []byte
}

// Hub maintains the set of active clients keyed by user id and routes
// events to every connection of the addressed users. A user may hold
// several connections at once (tabs, devices); all of them receive
// each event. Delivery is at-most-once: a connection that cannot keep
// up is dropped.
type Hub struct {
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	deliveries chan delivery
	quit       chan struct{}

	log *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliveries: make(chan delivery, 256),
		quit:       make(chan struct{}),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.id]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.id] = set
			}
			set[client] = struct{}{}
			metrics.ConnectionsActive.Inc()

		case client := <-h.unregister:
			h.drop(client)

		case d := <-h.deliveries:
			for _, userId := range d.userIds {
				h.sendToUser(userId, d.event, d.payload)
			}

		case <-h.quit:
			for _, set := range h.clients {
				for client := range set {
					client.closeSend()
					metrics.ConnectionsActive.Dec()
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			return
		}
	}
}

// Shutdown stops the run loop and closes every client send channel.
func (h *Hub) Shutdown() {
	close(h.quit)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Send enqueues an event for the given user rooms. It never blocks
// the caller: when the hub is saturated the event is dropped and
// counted, since the durable store remains the source of truth.
func (h *Hub) Send(userIds []string, event string, payload []byte) {
	select {
	case h.deliveries <- delivery{userIds: userIds, event: event, payload: payload}:
	default:
		metrics.FanoutDroppedTotal.Inc()
		h.log.Warn("hub saturated, dropping live event", zap.String("event", event))
	}
}

func (h *Hub) sendToUser(userId string, event string, payload []byte) {
	set, ok := h.clients[userId]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
			metrics.FanoutDeliveredTotal.WithLabelValues(event).Inc()
		default:
			// Slow consumer: disconnect rather than stall the hub.
			h.drop(client)
			metrics.FanoutDroppedTotal.Inc()
		}
	}
}

func (h *Hub) drop(client *Client) {
	set, ok := h.clients[client.id]
	if !ok {
		return
	}
	if _, exists := set[client]; !exists {
		return
	}
	delete(set, client)
	client.closeSend()
	metrics.ConnectionsActive.Dec()
	if len(set) == 0 {
		delete(h.clients, client.id)
	}
}
