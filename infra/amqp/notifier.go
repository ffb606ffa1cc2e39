// Package amqp delivers crew assignments through a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kilianp07/ambudispatch/core/monitoring"
	"github.com/kilianp07/ambudispatch/core/notify"
	"github.com/kilianp07/ambudispatch/infra/logger"
)

const (
	// DefaultExchange is the topic exchange carrying assignments and acks.
	DefaultExchange = "dispatch"
	// DefaultAckQueue collects every crew ack.
	DefaultAckQueue = "dispatch.acks"

	assignmentKeyPrefix = "unit."
	ackKeyPattern       = "ack.*"
)

// Config holds the broker settings.
type Config struct {
	URL              string `json:"url"`
	Exchange         string `json:"exchange"`
	AckQueue         string `json:"ack_queue"`
	ConfirmTimeoutMS int    `json:"confirm_timeout_ms"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.AckQueue == "" {
		c.AckQueue = DefaultAckQueue
	}
	if c.ConfirmTimeoutMS == 0 {
		c.ConfirmTimeoutMS = 5000
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("amqp.url is required")
	}
	if c.ConfirmTimeoutMS < 0 {
		return fmt.Errorf("amqp.confirm_timeout_ms must be positive")
	}
	return nil
}

// RoutingKey is the key an assignment for unitID is published with.
func RoutingKey(unitID string) string { return assignmentKeyPrefix + unitID }

// channel is the subset of *amqp.Channel used by the notifier.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Notifier implements notify.Notifier over AMQP with publisher confirms.
type Notifier struct {
	cfg    Config
	conn   io.Closer
	pub    channel
	sub    channel
	acks   *notify.AckTracker
	logger logger.Logger

	pubMu    sync.Mutex
	confirms chan amqp.Confirmation

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the broker, declares the topology and starts consuming acks.
func Dial(cfg Config) (*Notifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: open publish channel: %w", err)
	}
	sub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: open consume channel: %w", err)
	}
	n, err := newNotifier(cfg, conn, pub, sub)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return n, nil
}

func newNotifier(cfg Config, conn io.Closer, pub, sub channel) (*Notifier, error) {
	cfg.SetDefaults()
	if err := declareTopology(pub, cfg); err != nil {
		return nil, fmt.Errorf("amqp: declare topology: %w", err)
	}
	if err := pub.Confirm(false); err != nil {
		return nil, fmt.Errorf("amqp: enable confirms: %w", err)
	}
	n := &Notifier{
		cfg:      cfg,
		conn:     conn,
		pub:      pub,
		sub:      sub,
		acks:     notify.NewAckTracker(),
		logger:   logger.New("amqp_notifier"),
		confirms: pub.NotifyPublish(make(chan amqp.Confirmation, 1)),
		done:     make(chan struct{}),
	}
	deliveries, err := sub.Consume(cfg.AckQueue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("amqp: consume %s: %w", cfg.AckQueue, err)
	}
	go n.consume(deliveries)
	return n, nil
}

func declareTopology(ch channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(cfg.AckQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.AckQueue, err)
	}
	if err := ch.QueueBind(cfg.AckQueue, ackKeyPattern, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", cfg.AckQueue, cfg.Exchange, err)
	}
	return nil
}

func (n *Notifier) consume(deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-n.done:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			var ack notify.Ack
			if err := json.Unmarshal(d.Body, &ack); err != nil {
				n.logger.Errorf("failed to decode ack %s: %v", d.RoutingKey, err)
				_ = d.Nack(false, false)
				continue
			}
			if n.acks.Deliver(ack.CommandID) {
				n.logger.Infof("received ack %s", ack.CommandID)
			}
			_ = d.Ack(false)
		}
	}
}

// SendAssignment publishes the assignment with routing key unit.<id> and
// waits for the broker confirm.
func (n *Notifier) SendAssignment(a notify.Assignment) (string, error) {
	if a.CommandID == "" {
		a.CommandID = uuid.NewString()
	}
	if a.Timestamp == 0 {
		a.Timestamp = time.Now().UnixMilli()
	}
	body, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	n.acks.Register(a.CommandID)
	if err := n.publish(RoutingKey(a.UnitID), a.CommandID, body); err != nil {
		n.acks.Forget(a.CommandID)
		monitoring.CaptureException(err, map[string]string{"unit_id": a.UnitID, "module": "amqp"})
		return "", fmt.Errorf("publish assignment for %s: %w", a.UnitID, err)
	}
	n.logger.Infof("sent assignment %s to %s", a.CommandID, RoutingKey(a.UnitID))
	return a.CommandID, nil
}

func (n *Notifier) publish(key, messageID string, body []byte) error {
	n.pubMu.Lock()
	defer n.pubMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(n.cfg.ConfirmTimeoutMS)*time.Millisecond)
	defer cancel()
	err := n.pub.PublishWithContext(ctx, n.cfg.Exchange, key, true, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return err
	}
	select {
	case c, ok := <-n.confirms:
		if !ok {
			return errors.New("amqp: confirm stream closed")
		}
		if !c.Ack {
			return errors.New("amqp: publish not acknowledged")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForAck blocks until the crew acks commandID or timeout elapses.
func (n *Notifier) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	return n.acks.Wait(commandID, timeout)
}

// Close stops the ack consumer and closes the channels and connection.
func (n *Notifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = errors.Join(n.sub.Close(), n.pub.Close())
		if n.conn != nil {
			err = errors.Join(err, n.conn.Close())
		}
	})
	return err
}
