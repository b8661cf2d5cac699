package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// queueGroup lets multiple gateway instances share one subscription so each
// request is handled exactly once.
const queueGroup = "rosey-db-gateway"

// NATSBus is the production transport.
type NATSBus struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// ConnectNATS dials the server and installs reconnect logging. Reconnects are
// unbounded; the gateway prefers riding out a broker restart over crashing.
func ConnectNATS(url, name string, logger *slog.Logger) (*NATSBus, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("bus disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("bus reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return &NATSBus{nc: nc, logger: logger}, nil
}

func (b *NATSBus) Subscribe(pattern string, h Handler) (Subscription, error) {
	// Callbacks on a subscription are delivered one at a time, so the handler
	// runs on its own goroutine: one slow statement must not hold every other
	// tenant's requests behind it.
	sub, err := b.nc.QueueSubscribe(pattern, queueGroup, func(msg *nats.Msg) {
		go func(m *nats.Msg) {
			reply := h(m.Subject, m.Data)
			if err := m.Respond(reply); err != nil {
				b.logger.Error("reply publish failed",
					slog.String("subject", m.Subject),
					slog.String("error", err.Error()))
			}
		}(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", pattern, err)
	}
	return sub, nil
}

func (b *NATSBus) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := b.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, ErrNoResponder
		}
		return nil, err
	}
	return msg.Data, nil
}

func (b *NATSBus) Close() {
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
	}
}
