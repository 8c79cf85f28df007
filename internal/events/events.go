// Package events publishes notifications about writes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"aerodb/internal/rowset"
)

// ClientCreated is the subject suffix for new clients.
const ClientCreated = "client.created"

// Publisher announces created rows.
type Publisher interface {
	PublishClientCreated(ctx context.Context, client *rowset.Row) error
	Close() error
}

// Noop discards events.
type Noop struct{}

func (Noop) PublishClientCreated(context.Context, *rowset.Row) error { return nil }
func (Noop) Close() error                                            { return nil }

// Envelope is the message body.
type Envelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       *rowset.Row `json:"data"`
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATS publishes events as JSON on <prefix>.<event>.
type NATS struct {
	nc     conn
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// Connect dials url and returns a publisher for subjects under prefix.
func Connect(url, prefix, name string, logger *slog.Logger) (*NATS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return newNATS(nc, prefix, logger), nil
}

func newNATS(nc conn, prefix string, logger *slog.Logger) *NATS {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATS{nc: nc, prefix: strings.Trim(prefix, "."), logger: logger, now: time.Now}
}

// Subject returns the full subject for event.
func (p *NATS) Subject(event string) string {
	if p.prefix == "" {
		return event
	}
	return p.prefix + "." + event
}

func (p *NATS) PublishClientCreated(ctx context.Context, client *rowset.Row) error {
	body, err := json.Marshal(Envelope{Type: ClientCreated, OccurredAt: p.now().UTC(), Data: client})
	if err != nil {
		return fmt.Errorf("encode %s: %w", ClientCreated, err)
	}
	subject := p.Subject(ClientCreated)
	if err := p.nc.Publish(subject, body); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	p.logger.DebugContext(ctx, "event published", slog.String("subject", subject), slog.Int("bytes", len(body)))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATS) Close() error {
	return p.nc.Drain()
}
