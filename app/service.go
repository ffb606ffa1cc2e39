// Package app wires the configured components into the dispatch service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apidispatch "github.com/kilianp07/ambudispatch/api/dispatch"
	apifleet "github.com/kilianp07/ambudispatch/api/fleet"
	apihospitals "github.com/kilianp07/ambudispatch/api/hospitals"
	"github.com/kilianp07/ambudispatch/config"
	"github.com/kilianp07/ambudispatch/core/dispatch"
	"github.com/kilianp07/ambudispatch/core/dispatch/logging"
	"github.com/kilianp07/ambudispatch/core/fleet"
	"github.com/kilianp07/ambudispatch/core/hospital"
	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
	coremon "github.com/kilianp07/ambudispatch/core/monitoring"
	"github.com/kilianp07/ambudispatch/core/notify"
	"github.com/kilianp07/ambudispatch/core/routing"
	"github.com/kilianp07/ambudispatch/infra/fleetsource"
	"github.com/kilianp07/ambudispatch/infra/logger"
	"github.com/kilianp07/ambudispatch/infra/metrics"
	"github.com/kilianp07/ambudispatch/infra/monitoring"
	infrarouting "github.com/kilianp07/ambudispatch/infra/routing"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

// Service owns the fleet registry, the coordinator and their collaborators.
type Service struct {
	Fleet       *fleet.Registry
	Coordinator *dispatch.Coordinator
	Store       logging.LogStore
	Hospitals   *hospital.Directory

	cfg      *config.Config
	sink     coremetrics.MetricsSink
	notifier notify.Notifier
	bus      *eventbus.Bus
	log      logger.Logger
	relays   sync.WaitGroup
}

// Options override components built from the configuration. Nil fields
// are built from cfg.
type Options struct {
	Source   fleet.Source
	Oracle   routing.Oracle
	Notifier notify.Notifier
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	return NewWithOptions(ctx, cfg, Options{})
}

// NewWithOptions is New with some components supplied by the caller.
func NewWithOptions(ctx context.Context, cfg *config.Config, opts Options) (*Service, error) {
	logger.SetLevel(cfg.LogLevel)
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	src := opts.Source
	if src == nil {
		if src, err = fleetsource.Open(cfg.Fleet); err != nil {
			return nil, fmt.Errorf("fleet source: %w", err)
		}
	}
	reg, err := fleet.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	logg.Infof("fleet loaded: %d units", reg.Len())

	hospitals, err := loadHospitals(ctx, cfg.Hospitals, logg)
	if err != nil {
		return nil, err
	}

	oracle := opts.Oracle
	if oracle == nil {
		if oracle, err = infrarouting.New(cfg.Routing); err != nil {
			return nil, fmt.Errorf("route oracle: %w", err)
		}
	}
	coord, err := dispatch.NewCoordinator(reg, oracle, cfg.Dispatch, logger.New("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	store, err := logging.Open(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("decision store: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	notifier := opts.Notifier
	if notifier == nil {
		if notifier, err = newNotifier(cfg.Notify); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("notifier: %w", err)
		}
	}

	bus := eventbus.New()
	coord.SetRecorder(store)
	coord.SetMetrics(sink)
	coord.SetEventBus(bus)

	return &Service{
		Fleet:       reg,
		Coordinator: coord,
		Store:       store,
		Hospitals:   hospitals,
		cfg:         cfg,
		sink:        sink,
		notifier:    notifier,
		bus:         bus,
		log:         logg,
	}, nil
}

func loadHospitals(ctx context.Context, cfg fleetsource.HospitalConfig, log logger.Logger) (*hospital.Directory, error) {
	if !cfg.Enabled() {
		return hospital.NewDirectory(nil), nil
	}
	src, err := fleetsource.OpenHospitals(cfg)
	if err != nil {
		return nil, fmt.Errorf("hospital source: %w", err)
	}
	dir, skipped, err := hospital.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	for _, msg := range skipped {
		log.Warnf("hospital skipped: %s", msg)
	}
	log.Infof("hospital directory loaded: %d hospitals", dir.Len())
	return dir, nil
}

// Bus returns the event bus the coordinator publishes on.
func (s *Service) Bus() eventbus.EventBus { return s.bus }

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/dispatch", apidispatch.NewDispatchHandler(s.Coordinator, logger.New("api")))
	mux.Handle("/api/dispatch/logs", apidispatch.NewLogHandler(s.Store, s.cfg.HTTP.LogsToken))
	fh := apifleet.NewHandler(s.Fleet, s.bus, logger.New("api"))
	mux.Handle("/api/fleet", fh)
	mux.Handle("/api/fleet/", fh)
	mux.Handle("/api/hospitals/", apihospitals.NewHandler(s.Hospitals, s.cfg.HTTP.UploadToken, logger.New("api")))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start launches the background workers: the assignment relay and the
// metrics event collector.
func (s *Service) Start(ctx context.Context) {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	r := newRelay(s.bus, s.notifier, s.cfg.Notify.AckTimeout(), logger.New("notifier"))
	s.relays.Add(1)
	go func() {
		defer s.relays.Done()
		r.run(ctx)
	}()
}

// Run starts the workers, the metrics endpoint and the API server, and
// blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.Start(ctx)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		if err := prometheus.Register(fleet.NewCollector(s.Fleet)); err != nil {
			s.log.Warnf("fleet collector: %v", err)
		}
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
				coremon.CaptureException(err, map[string]string{"component": "prom_server"})
			}
		}()
	}

	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Duration(s.cfg.HTTP.ReadTimeoutMS) * time.Millisecond,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("serving API on %s", s.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.HTTP.ShutdownTimeoutMS)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	s.relays.Wait()
	errs := []error{s.notifier.Close(), s.Store.Close()}
	if c, ok := s.sink.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
