package run

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"holdtalk/internal/asr"
	"holdtalk/internal/phase"
	"holdtalk/internal/pipeline"

	evbus "github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mirrors pipeline events into Prometheus collectors. Each daemon
// gets its own registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	phase        *prometheus.GaugeVec
	transcripts  prometheus.Counter
	audioSeconds prometheus.Histogram
	inferSeconds prometheus.Histogram
	failures     *prometheus.CounterVec
	modelStatus  *prometheus.GaugeVec
	modelLoads   *prometheus.CounterVec
	keyFeeders   prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "holdtalk",
				Subsystem: "pipeline",
				Name:      "transitions_total",
				Help:      "Accepted phase transitions by target phase",
			},
			[]string{"to"},
		),
		phase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "holdtalk",
				Subsystem: "pipeline",
				Name:      "phase",
				Help:      "1 for the current phase, 0 otherwise",
			},
			[]string{"phase"},
		),
		transcripts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "holdtalk",
			Subsystem: "pipeline",
			Name:      "transcripts_total",
			Help:      "Utterances transcribed",
		}),
		audioSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "holdtalk",
			Subsystem: "pipeline",
			Name:      "audio_seconds",
			Help:      "Length of transcribed recordings",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		}),
		inferSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "holdtalk",
			Subsystem: "asr",
			Name:      "inference_seconds",
			Help:      "Time spent in speech recognition",
			Buckets:   prometheus.DefBuckets,
		}),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "holdtalk",
				Subsystem: "pipeline",
				Name:      "failures_total",
				Help:      "Failures that put the pipeline in the error phase",
			},
			[]string{"kind", "op"},
		),
		modelStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "holdtalk",
				Subsystem: "asr",
				Name:      "model_status",
				Help:      "1 for the current model status, 0 otherwise",
			},
			[]string{"status"},
		),
		modelLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "holdtalk",
				Subsystem: "asr",
				Name:      "model_loads_total",
				Help:      "Settled model loads by result",
			},
			[]string{"result"},
		),
		keyFeeders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "holdtalk",
			Subsystem: "hotkey",
			Name:      "feeders",
			Help:      "Connected key-stream feeders",
		}),
	}
	m.registry.MustRegister(m.transitions, m.phase, m.transcripts, m.audioSeconds,
		m.inferSeconds, m.failures, m.modelStatus, m.modelLoads, m.keyFeeders)
	m.setPhase(phase.KindIdle)
	m.setModelStatus(asr.NotLoaded())
	return m
}

// Attach subscribes to the pipeline topics. Handlers run on the orchestrator
// goroutine and only touch collectors.
func (m *Metrics) Attach(bus evbus.Bus) error {
	return errors.Join(
		bus.Subscribe(pipeline.TopicPhase, m.onPhase),
		bus.Subscribe(pipeline.TopicModel, m.onModel),
		bus.Subscribe(pipeline.TopicTranscript, m.onTranscript),
		bus.Subscribe(pipeline.TopicFailure, m.onFailure),
	)
}

func (m *Metrics) onPhase(_, to phase.Phase) {
	m.transitions.WithLabelValues(to.Kind.String()).Inc()
	m.setPhase(to.Kind)
}

func (m *Metrics) setPhase(cur phase.Kind) {
	for _, k := range phase.Kinds {
		v := 0.0
		if k == cur {
			v = 1
		}
		m.phase.WithLabelValues(k.String()).Set(v)
	}
}

func (m *Metrics) setModelStatus(s asr.ModelStatus) {
	for _, k := range []asr.StatusKind{asr.StatusNotLoaded, asr.StatusDownloading, asr.StatusLoading, asr.StatusLoaded, asr.StatusError} {
		v := 0.0
		if k == s.Kind {
			v = 1
		}
		m.modelStatus.WithLabelValues(k.String()).Set(v)
	}
}

func (m *Metrics) onModel(s asr.ModelStatus) {
	m.setModelStatus(s)
	switch s.Kind {
	case asr.StatusLoaded:
		m.modelLoads.WithLabelValues("loaded").Inc()
	case asr.StatusError:
		m.modelLoads.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) onTranscript(t pipeline.Transcript) {
	m.transcripts.Inc()
	m.audioSeconds.Observe(t.Audio.Seconds())
	m.inferSeconds.Observe(t.Inferred.Seconds())
}

func (m *Metrics) onFailure(f *pipeline.Failure) {
	m.failures.WithLabelValues(string(f.Kind), f.Op).Inc()
}

func (m *Metrics) feederConnected()    { m.keyFeeders.Inc() }
func (m *Metrics) feederDisconnected() { m.keyFeeders.Dec() }

// Router serves /metrics, /status and /healthz.
func (m *Metrics) Router(status func() any) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status())
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func (s *Server) serveMetrics(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Metrics.Addr,
		Handler:           s.metrics.Router(func() any { return s.status() }),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	s.logger.Infof("metrics listening on http://%s/metrics", s.cfg.Metrics.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warnf("metrics server: %v", err)
	}
	return nil
}
