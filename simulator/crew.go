// Package simulator plays ambulance crews on the MQTT transport. Crews
// receive assignments and answer with acknowledgements according to an
// AckStrategy, which is enough to exercise the dispatch relay without
// hardware in the loop.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/ambudispatch/core/notify"
	"github.com/kilianp07/ambudispatch/infra/logger"
)

// AckStrategy decides whether and when a crew acknowledges an assignment.
type AckStrategy interface {
	// Delay returns how long to wait before acking, or false to drop it.
	Delay() (time.Duration, bool)
}

// AutoAck acknowledges every assignment after a fixed delay.
type AutoAck struct {
	After time.Duration
}

func (a AutoAck) Delay() (time.Duration, bool) { return a.After, true }

// RandomAck drops acknowledgements with probability DropRate and delays the
// others by After plus up to Jitter.
type RandomAck struct {
	After    time.Duration
	Jitter   time.Duration
	DropRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAck returns a RandomAck seeded with seed.
func NewRandomAck(after, jitter time.Duration, dropRate float64, seed uint64) *RandomAck {
	return &RandomAck{
		After:    after,
		Jitter:   jitter,
		DropRate: dropRate,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (r *RandomAck) Delay() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DropRate > 0 && r.rng.Float64() < r.DropRate {
		return 0, false
	}
	d := r.After
	if r.Jitter > 0 {
		d += time.Duration(r.rng.Int64N(int64(r.Jitter)))
	}
	return d, true
}

// Publisher is the part of paho.Client a crew needs to answer.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Crew answers assignments published under Prefix.
type Crew struct {
	Prefix   string
	Strategy AckStrategy
	log      logger.Logger

	mu   sync.Mutex
	seen int
	wg   sync.WaitGroup
}

// NewCrew returns a crew simulator listening under prefix.
func NewCrew(prefix string, s AckStrategy) *Crew {
	if s == nil {
		s = AutoAck{}
	}
	return &Crew{Prefix: strings.TrimSuffix(prefix, "/"), Strategy: s, log: logger.New("crew-sim")}
}

// Handled returns the number of assignments received.
func (c *Crew) Handled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen
}

// Run subscribes to every unit dispatch topic and blocks until ctx ends.
func (c *Crew) Run(ctx context.Context, cli paho.Client) error {
	topic := c.Prefix + "/+/dispatch"
	token := cli.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
		c.Handle(ctx, cli, m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.log.Infof("crews listening on %s", topic)
	<-ctx.Done()
	cli.Unsubscribe(topic)
	c.wg.Wait()
	return nil
}

// Handle processes one assignment message. The ack is sent asynchronously.
func (c *Crew) Handle(ctx context.Context, pub Publisher, topic string, payload []byte) {
	var a notify.Assignment
	if err := json.Unmarshal(payload, &a); err != nil {
		c.log.Warnf("bad assignment on %s: %v", topic, err)
		return
	}
	c.mu.Lock()
	c.seen++
	c.mu.Unlock()

	unitID := a.UnitID
	if unitID == "" {
		unitID = unitFromTopic(c.Prefix, topic)
	}
	delay, ok := c.Strategy.Delay()
	if !ok {
		c.log.Debugf("dropping ack for %s (%s)", unitID, a.CommandID)
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
		c.ack(pub, unitID, a.CommandID)
	}()
}

// Wait blocks until pending acks are sent.
func (c *Crew) Wait() { c.wg.Wait() }

func (c *Crew) ack(pub Publisher, unitID, commandID string) {
	payload, err := json.Marshal(notify.Ack{CommandID: commandID, UnitID: unitID})
	if err != nil {
		c.log.Errorf("marshal ack: %v", err)
		return
	}
	token := pub.Publish(c.Prefix+"/"+unitID+"/ack", 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		c.log.Warnf("ack publish timeout for %s", unitID)
		return
	}
	if err := token.Error(); err != nil {
		c.log.Errorf("publish ack for %s: %v", unitID, err)
	}
}

func unitFromTopic(prefix, topic string) string {
	rest := strings.TrimPrefix(topic, prefix+"/")
	return strings.TrimSuffix(rest, "/dispatch")
}
