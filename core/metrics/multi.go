package metrics

import "errors"

// MultiSink fans dispatch metrics out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatch forwards the metric to every sink and joins their errors.
func (m *MultiSink) RecordDispatch(d DispatchMetric) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordDispatch(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordOracleCalls forwards oracle calls to sinks that support them.
func (m *MultiSink) RecordOracleCalls(calls []OracleCall) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(OracleCallRecorder); ok {
			if err := r.RecordOracleCalls(calls); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordRelease forwards release events to sinks that support them.
func (m *MultiSink) RecordRelease(ev ReleaseEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ReleaseRecorder); ok {
			if err := r.RecordRelease(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink implementing io.Closer.
func (m *MultiSink) Close() error { return closeAll(m.Sinks) }
