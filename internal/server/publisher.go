package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
)

const publishTimeout = 5 * time.Second

// Event is the message published for every accepted phone-home request.
type Event struct {
	Type    string    `json:"type"`
	Channel string    `json:"channel,omitempty"`
	Count   int       `json:"count"`
	At      time.Time `json:"at"`
}

// Publisher forwards accepted requests to a JetStream subject so downstream
// consumers can react to fleet activity without polling the census database.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewPublisher connects to the configured broker. A disabled config yields a
// nil publisher, which every method tolerates.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	slog.Info("Event publisher connected",
		logfields.Endpoint(cfg.URL),
		logfields.Subject(cfg.Subject))
	return &Publisher{conn: conn, js: js, subject: cfg.Subject}, nil
}

// Publish sends one event, bounded by its own timeout so a slow broker
// cannot stall the request path.
func (p *Publisher) Publish(event Event) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close drains the broker connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
