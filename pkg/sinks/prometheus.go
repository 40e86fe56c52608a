package sinks

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/telemetry"
)

func init() {
	RegisterConfig("prometheus_exporter", func() Config { return &PrometheusExporterConfig{} })
}

// PrometheusExporterConfig configures the prometheus_exporter sink, which
// serves the latest value of every metric event on a scrape endpoint.
type PrometheusExporterConfig struct {
	// Address to listen on, e.g. ":9598".
	Address string `yaml:"address"`

	// Namespace prefixes exported metric names.
	Namespace string `yaml:"namespace,omitempty"`
}

func (c *PrometheusExporterConfig) ComponentName() string { return "prometheus_exporter" }

func (c *PrometheusExporterConfig) Input() config.Input { return config.InputMetric() }

func (c *PrometheusExporterConfig) Build(ctx *Context) (Sink, error) {
	if c.Address == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "prometheus_exporter requires an address")
	}
	return &prometheusSink{
		address:   c.Address,
		namespace: c.Namespace,
		registry:  prometheus.NewRegistry(),
		gauges:    make(map[string]*prometheus.GaugeVec),
		logger:    ctx.Logger,
		events:    telemetry.NewComponentEvents(ctx.Logger, ctx.Key.ID()),
	}, nil
}

type prometheusSink struct {
	address   string
	namespace string
	registry  *prometheus.Registry
	gauges    map[string]*prometheus.GaugeVec
	logger    *zap.Logger
	events    *telemetry.ComponentEvents
}

func (s *prometheusSink) Run(ctx context.Context, in <-chan event.Batch) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: s.address, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("prometheus exporter listening", zap.String("address", s.address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-serveErr:
			return errors.Wrapf(err, errors.CodeDeliveryFailed, "serving %s", s.address)
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			for _, e := range batch.Events() {
				s.record(e)
			}
			batch.Finalize(acks.StatusDelivered)
			s.events.EventsSent(batch.Len())
		}
	}
}

func (s *prometheusSink) record(e event.Event) {
	m, ok := e.(*event.Metric)
	if !ok {
		s.events.EventDiscarded("not_a_metric", nil)
		return
	}

	labelNames := make([]string, 0, len(m.Tags))
	for k := range m.Tags {
		labelNames = append(labelNames, sanitizeLabel(k))
	}
	sort.Strings(labelNames)

	name := sanitizeLabel(m.Name)
	if s.namespace != "" {
		name = s.namespace + "_" + name
	}
	// A metric name is bound to the first label set it arrives with;
	// mismatched later label sets are dropped rather than panicking the
	// collector.
	vec, exists := s.gauges[name]
	if !exists {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name}, labelNames)
		if err := s.registry.Register(vec); err != nil {
			s.events.EventDiscarded("register_failed", err)
			return
		}
		s.gauges[name] = vec
	}

	labels := make(prometheus.Labels, len(m.Tags))
	for k, v := range m.Tags {
		labels[sanitizeLabel(k)] = v
	}
	gauge, err := vec.GetMetricWith(labels)
	if err != nil {
		s.events.EventDiscarded("label_mismatch", err)
		return
	}
	gauge.Set(m.Value)
}

func sanitizeLabel(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
