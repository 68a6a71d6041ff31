// Package monitoring serves prometheus metrics and pprof handlers.
package monitoring

import (
	"context"
	"fmt"
	"net/http/pprof"

	"github.com/chaosgomoku/solive/pkg/config"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/chaosgomoku/solive/pkg/network/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Monitoring struct {
	conf   config.Monitoring
	server *httpx.Server
	log    *logger.Logger
}

// New makes the monitoring server for the metrics.
func New(conf config.Monitoring, m *Metrics, log *logger.Logger) (*Monitoring, error) {
	log = log.Module("monitoring")
	h := httpx.NewServeMux(conf.URLPrefix)
	if conf.ProfilingEnabled {
		h.HandleFunc("/debug/pprof/", pprof.Index)
		h.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		h.HandleFunc("/debug/pprof/profile", pprof.Profile)
		h.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		h.HandleFunc("/debug/pprof/trace", pprof.Trace)
		for _, p := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			h.Handle("/debug/pprof/"+p, pprof.Handler(p))
		}
	}
	if conf.MetricEnabled {
		h.Handle("/metrics", m.Handler())
	}
	serv, err := httpx.NewServer(fmt.Sprintf(":%d", conf.Port), h, httpx.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if conf.ProfilingEnabled {
		log.Info().Msgf("profiling at %v%v/debug/pprof", serv.Address(), conf.URLPrefix)
	}
	if conf.MetricEnabled {
		log.Info().Msgf("metrics at %v%v/metrics", serv.Address(), conf.URLPrefix)
	}
	return &Monitoring{conf: conf, server: serv, log: log}, nil
}

func (m *Monitoring) Run() {
	m.log.Info().Msgf("monitoring at %v", m.server)
	m.server.Run()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	m.log.Info().Msg("monitoring shutdown")
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}

// Metrics are the server gauges and counters in their own registry.
type Metrics struct {
	reg *prometheus.Registry

	Connections  prometheus.Gauge
	MeetingRooms prometheus.Gauge
	LiveRooms    prometheus.Gauge
	LiveViewers  prometheus.Gauge
	GameRooms    prometheus.Gauge
	EngineErrors *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "solive", Name: name, Help: help})
	}
	m := &Metrics{
		reg:          prometheus.NewRegistry(),
		Connections:  gauge("connections", "Open signaling connections."),
		MeetingRooms: gauge("meeting_rooms", "Open meeting rooms."),
		LiveRooms:    gauge("live_rooms", "Open live rooms."),
		LiveViewers:  gauge("live_viewers", "Viewers in all live rooms."),
		GameRooms:    gauge("game_rooms", "Open game rooms."),
		EngineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solive",
			Name:      "engine_errors_total",
			Help:      "Failed media engine calls.",
		}, []string{"op"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Connections, m.MeetingRooms, m.LiveRooms, m.LiveViewers, m.GameRooms, m.EngineErrors,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() httpx.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
