package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/usecase"
)

type conn interface {
	Publish(subject string, data []byte) error
}

// Envelope wraps every published payload.
type Envelope struct {
	Subject    string      `json:"subject"`
	RequestID  string      `json:"requestId,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// Publisher sends domain events as JSON to core NATS subjects under a common prefix.
type Publisher struct {
	conn   conn
	prefix string
	logger *zap.Logger
}

// Connect dials cfg.URL with unlimited reconnects.
func Connect(cfg config.NATSConfig, appName string, log *zap.Logger) (*nats.Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(appName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	log.Info("connected to nats", zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}

func NewPublisher(nc *nats.Conn, prefix string, log *zap.Logger) *Publisher {
	return newPublisher(nc, prefix, log)
}

func newPublisher(c conn, prefix string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		conn:   c,
		prefix: strings.Trim(prefix, "."),
		logger: log,
	}
}

func (p *Publisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	full := p.Subject(subject)
	body, err := json.Marshal(Envelope{
		Subject:    subject,
		RequestID:  logger.RequestID(ctx),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	if err := p.conn.Publish(full, body); err != nil {
		return fmt.Errorf("publish %s: %w", full, err)
	}
	logger.WithRequestID(ctx, p.logger).Debug("event published", zap.String("subject", full))
	return nil
}

// Subject returns the fully qualified subject for a domain event.
func (p *Publisher) Subject(subject string) string {
	if p.prefix == "" {
		return subject
	}
	return p.prefix + "." + subject
}

var _ usecase.EventPublisher = (*Publisher)(nil)
