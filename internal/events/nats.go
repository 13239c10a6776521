package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/models"
	"github.com/Onebillie/parsetastic/internal/resilience"
)

// publisher is the part of *nats.Conn the publisher uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes every event to <prefix>.<event type minus its "document." prefix>.
type NATSPublisher struct {
	conn      publisher
	close     func()
	connected func() bool
	prefix    string
	executor  *resilience.Executor
}

// ConnectNATS dials the server and returns a publisher on subjects under prefix.
func ConnectNATS(url, prefix string, exec *resilience.Executor) (*NATSPublisher, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("parsetastic"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			zap.L().Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			zap.L().Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, eris.Wrap(err, "connect nats")
	}
	p := newNATSPublisher(conn, prefix, exec)
	p.close = conn.Close
	p.connected = conn.IsConnected
	return p, nil
}

func newNATSPublisher(conn publisher, prefix string, exec *resilience.Executor) *NATSPublisher {
	if prefix == "" {
		prefix = "documents"
	}
	return &NATSPublisher{conn: conn, prefix: prefix, executor: exec}
}

func (p *NATSPublisher) Name() string { return "nats" }

// Close closes the underlying connection, if this publisher owns one.
func (p *NATSPublisher) Close() {
	if p != nil && p.close != nil {
		p.close()
	}
}

// Ping reports whether the connection is currently up.
func (p *NATSPublisher) Ping(context.Context) error {
	if p.connected != nil && !p.connected() {
		return eris.New("nats: not connected")
	}
	return nil
}

// Subject maps an event type to its NATS subject.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + strings.TrimPrefix(eventType, "document.")
}

func (p *NATSPublisher) Send(ctx context.Context, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "nats: marshal event")
	}
	subject := p.Subject(ev.Type)
	return p.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		if err := p.conn.Publish(subject, data); err != nil {
			return eris.Wrapf(err, "nats publish %s", subject)
		}
		return nil
	}, recordNATSFailure)
}

func recordNATSFailure(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
