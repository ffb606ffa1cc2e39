package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/config"
	coremon "github.com/kilianp07/ambudispatch/core/monitoring"
)

type captureTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *captureTransport) Configure(sentry.ClientOptions) {}
func (c *captureTransport) Flush(time.Duration) bool       { return true }
func (c *captureTransport) SendEvent(ev *sentry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

const testDSN = "https://public@sentry.example.com/1"

func TestNewSentryMonitor_EmptyDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestNewSentryMonitor_InvalidDSN(t *testing.T) {
	_, err := NewSentryMonitor(config.SentryConfig{DSN: "::not a dsn"})
	assert.Error(t, err)
}

func TestSentryMonitor_TagsAndScrubbing(t *testing.T) {
	tr := &captureTransport{}
	m, err := newSentryMonitor(config.SentryConfig{DSN: testDSN, Environment: "test"}, tr)
	require.NoError(t, err)

	m.CaptureException(errors.New("all route queries failed"), map[string]string{
		"component":   "dispatch",
		"dispatch_id": "d-1",
		"caller_id":   "+33600000000",
	})
	m.CaptureException(nil, nil)
	m.Flush(time.Second)

	require.Len(t, tr.events, 1)
	ev := tr.events[0]
	assert.Equal(t, "d-1", ev.Tags["dispatch_id"])
	assert.Equal(t, "ambudispatch", ev.Tags["service"])
	assert.Equal(t, scrubbed, ev.Tags["caller_id"])
	assert.Equal(t, []string{"{{ default }}", "dispatch"}, ev.Fingerprint)
	assert.Equal(t, "test", ev.Environment)
}

func TestSentryMonitor_KeepCallerID(t *testing.T) {
	tr := &captureTransport{}
	m, err := newSentryMonitor(config.SentryConfig{DSN: testDSN, KeepCallerID: true}, tr)
	require.NoError(t, err)
	m.CaptureException(errors.New("boom"), map[string]string{"caller_id": "X"})
	require.Len(t, tr.events, 1)
	assert.Equal(t, "X", tr.events[0].Tags["caller_id"])
}

func TestSentryMonitor_RecoverRepanics(t *testing.T) {
	tr := &captureTransport{}
	m, err := newSentryMonitor(config.SentryConfig{DSN: testDSN}, tr)
	require.NoError(t, err)
	assert.PanicsWithValue(t, "oracle exploded", func() {
		defer m.Recover()
		panic("oracle exploded")
	})
	assert.Len(t, tr.events, 1)
}
