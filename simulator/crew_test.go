package simulator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/notify"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, payload.([]byte)})
	return doneToken{}
}

func (f *fakePublisher) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func assignment(t *testing.T, unit, cmd string) []byte {
	t.Helper()
	b, err := json.Marshal(notify.Assignment{CommandID: cmd, UnitID: unit, DispatchID: "d1"})
	require.NoError(t, err)
	return b
}

func TestCrew_AutoAck(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCrew("ambulance/", AutoAck{})
	c.Handle(context.Background(), pub, "ambulance/B/dispatch", assignment(t, "B", "cmd-1"))
	c.Wait()

	msgs := pub.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ambulance/B/ack", msgs[0].topic)
	var ack notify.Ack
	require.NoError(t, json.Unmarshal(msgs[0].payload, &ack))
	assert.Equal(t, notify.Ack{CommandID: "cmd-1", UnitID: "B"}, ack)
	assert.Equal(t, 1, c.Handled())
}

func TestCrew_UnitFromTopic(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCrew("ambulance", nil)
	c.Handle(context.Background(), pub, "ambulance/C/dispatch", assignment(t, "", "cmd-2"))
	c.Wait()
	require.Len(t, pub.sent(), 1)
	assert.Equal(t, "ambulance/C/ack", pub.sent()[0].topic)
}

func TestCrew_DropAndBadPayload(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCrew("ambulance", NewRandomAck(0, 0, 1, 7))
	c.Handle(context.Background(), pub, "ambulance/A/dispatch", assignment(t, "A", "cmd-3"))
	c.Handle(context.Background(), pub, "ambulance/A/dispatch", []byte("{"))
	c.Wait()
	assert.Empty(t, pub.sent())
	assert.Equal(t, 1, c.Handled())
}

func TestCrew_CanceledBeforeDelay(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCrew("ambulance", AutoAck{After: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	c.Handle(ctx, pub, "ambulance/A/dispatch", assignment(t, "A", "cmd-4"))
	cancel()
	c.Wait()
	assert.Empty(t, pub.sent())
}

func TestRandomAck(t *testing.T) {
	r := NewRandomAck(10*time.Millisecond, 5*time.Millisecond, 0, 1)
	for range 20 {
		d, ok := r.Delay()
		require.True(t, ok)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 15*time.Millisecond)
	}

	a := NewRandomAck(0, 0, 0.5, 42)
	b := NewRandomAck(0, 0, 0.5, 42)
	for range 20 {
		_, okA := a.Delay()
		_, okB := b.Delay()
		assert.Equal(t, okA, okB, "same seed, same decisions")
	}
}
