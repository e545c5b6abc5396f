// Package events announces settled marketplace actions so cached views can
// refresh without waiting for the next poll.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubjectPrefix is prepended to the action name of every settled event.
const SubjectPrefix = "market.settled"

// SettledEvent reports a state change the ledger accepted.
type SettledEvent struct {
	FlowID    string    `json:"flowId"`
	Action    string    `json:"action"`
	AgentID   uint64    `json:"agentId,omitempty"`
	Account   string    `json:"account"`
	TxHash    string    `json:"txHash"`
	Block     uint64    `json:"block"`
	SettledAt time.Time `json:"settledAt"`
}

// Subject returns the subject the event is published on.
func (e SettledEvent) Subject() string {
	return SubjectPrefix + "." + strings.ToLower(e.Action)
}

// Publisher delivers settled events.
type Publisher interface {
	PublishSettled(ctx context.Context, e SettledEvent) error
}

// Nop discards events.
type Nop struct{}

func (Nop) PublishSettled(context.Context, SettledEvent) error { return nil }

type natsPublisher interface {
	Publish(subj string, data []byte) error
}

// NATSPublisher publishes events as JSON on NATS.
type NATSPublisher struct {
	nc     natsPublisher
	logger zerolog.Logger
}

// NewNATSPublisher wraps an open connection.
func NewNATSPublisher(nc *nats.Conn, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{nc: nc, logger: logger.With().Str("component", "events").Logger()}
}

func (p *NATSPublisher) PublishSettled(ctx context.Context, e SettledEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.nc.Publish(e.Subject(), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Subject(), err)
	}
	p.logger.Debug().Str("subject", e.Subject()).Str("tx", e.TxHash).Msg("settled event published")
	return nil
}

// Connect dials NATS with reconnect settings suited to a long-running server.
func Connect(url, name string, logger zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Subscribe calls handle for every settled event until ctx is cancelled.
func Subscribe(ctx context.Context, nc *nats.Conn, logger zerolog.Logger, handle func(SettledEvent)) error {
	sub, err := nc.Subscribe(SubjectPrefix+".>", func(msg *nats.Msg) {
		e, err := Decode(msg)
		if err != nil {
			logger.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed settled event")
			return
		}
		handle(e)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to settled events: %w", err)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return nil
}

// Decode parses a settled event message.
func Decode(msg *nats.Msg) (SettledEvent, error) {
	var e SettledEvent
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		return SettledEvent{}, fmt.Errorf("decode settled event: %w", err)
	}
	return e, nil
}
