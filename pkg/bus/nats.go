// Package bus bridges live chat events across service instances over
// NATS. Each user id maps to a subject; every instance subscribes to
// the full event space and replays foreign events into its local hub.
package bus

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const subjectPrefix = "chat.events."

type NATS struct {
	conn *nats.Conn
	sub  *nats.Subscription
	log  *zap.Logger
}

// Connect establishes the NATS connection with endless reconnects;
// the bridge is a latency optimization and must outlive broker blips.
func Connect(url string, log *zap.Logger) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error("nats error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	return &NATS{conn: conn, log: log}, nil
}

func (b *NATS) Publish(userId string, data []byte) error {
	return b.conn.Publish(subjectPrefix+userId, data)
}

func (b *NATS) Subscribe(handler func(userId string, data []byte)) error {
	sub, err := b.conn.Subscribe(subjectPrefix+"*", func(msg *nats.Msg) {
		userId := strings.TrimPrefix(msg.Subject, subjectPrefix)
		handler(userId, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribing to chat events: %w", err)
	}

	b.sub = sub
	return nil
}

func (b *NATS) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if err := b.conn.Drain(); err != nil {
		b.log.Warn("draining nats connection", zap.Error(err))
	}
}
