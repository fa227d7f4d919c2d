package amqpnotify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	core "github.com/open-rails/billingkit/core"
)

// Publisher implements core.Notifier over a RabbitMQ topic exchange. Routing
// keys are billing.entitlement.granted and billing.entitlement.revoked so
// consumers can bind to either side or both.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *logrus.Logger
}

func New(url, exchange string, logger *logrus.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, exchange: exchange, log: logger}, nil
}

func (p *Publisher) EntitlementChanged(ctx context.Context, change core.ChangeEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	body, err := json.Marshal(change)
	if err != nil {
		return err
	}
	key := "billing.entitlement." + change.Action
	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: change.EventID,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err == nil {
		p.log.WithFields(logrus.Fields{"key": key, "event_id": change.EventID}).Info("published entitlement change")
	}
	return err
}

func (p *Publisher) Close() error { return p.conn.Close() }
