package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/ambudispatch/config"
	coremon "github.com/kilianp07/ambudispatch/core/monitoring"
)

const scrubbed = "[scrubbed]"

// NewSentryMonitor returns a Monitor reporting to Sentry through its own hub.
// An empty DSN yields the no-op monitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	return newSentryMonitor(cfg, nil)
}

func newSentryMonitor(cfg config.SentryConfig, transport sentry.Transport) (*sentryMonitor, error) {
	opts := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		TracesSampleRate: cfg.TracesSampleRate,
		Transport:        transport,
		Tags:             map[string]string{"service": "ambudispatch"},
	}
	if !cfg.KeepCallerID {
		opts.BeforeSend = scrubCallerID
	}
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// scrubCallerID drops the caller identifier, which is usually a phone
// number, from tags and extra data.
func scrubCallerID(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if _, ok := ev.Tags["caller_id"]; ok {
		ev.Tags["caller_id"] = scrubbed
	}
	if _, ok := ev.Extra["caller_id"]; ok {
		ev.Extra["caller_id"] = scrubbed
	}
	return ev
}

type sentryMonitor struct {
	hub *sentry.Hub
}

// CaptureException reports err. Events are grouped per component so a
// failing route provider does not merge with recorder failures.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if c := tags["component"]; c != "" {
			scope.SetFingerprint([]string{"{{ default }}", c})
		}
		s.hub.CaptureException(err)
	})
}

// RecoverValue reports a recovered panic value; the facade re-panics.
func (s *sentryMonitor) RecoverValue(r any) {
	s.hub.Recover(r)
	s.hub.Flush(2 * time.Second)
}

func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.RecoverValue(r)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
