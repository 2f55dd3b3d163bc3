package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/dyncouple/internal/coordinator"
	"github.com/san-kum/dyncouple/internal/dynamo"
)

// Collector exports round reports as Prometheus metrics.
type Collector struct {
	rounds         prometheus.Counter
	simTime        prometheus.Gauge
	checkpoints    prometheus.Counter
	records        prometheus.Counter
	steps          *prometheus.CounterVec
	stepErrors     *prometheus.CounterVec
	exchangeErrors *prometheus.CounterVec
	regimeErrors   *prometheus.CounterVec
	lag            *prometheus.GaugeVec
	engineTime     *prometheus.GaugeVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		rounds: f.NewCounter(prometheus.CounterOpts{
			Name: "dyncouple_rounds_total",
			Help: "Completed coordinator rounds",
		}),
		simTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "dyncouple_sim_time_seconds",
			Help: "Coordinator simulation time",
		}),
		checkpoints: f.NewCounter(prometheus.CounterOpts{
			Name: "dyncouple_checkpoints_total",
			Help: "Checkpoints written",
		}),
		records: f.NewCounter(prometheus.CounterOpts{
			Name: "dyncouple_output_records_total",
			Help: "Output records appended",
		}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dyncouple_engine_steps_total",
			Help: "Successful engine steps",
		}, []string{"engine"}),
		stepErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dyncouple_engine_step_errors_total",
			Help: "Failed engine steps",
		}, []string{"engine"}),
		exchangeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dyncouple_exchange_errors_total",
			Help: "Failed exchange rules by destination engine",
		}, []string{"engine"}),
		regimeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dyncouple_regime_errors_total",
			Help: "Rejected regime parameter writes",
		}, []string{"engine"}),
		lag: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dyncouple_engine_lag_seconds",
			Help: "Engine lag behind the last round target",
		}, []string{"engine"}),
		engineTime: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dyncouple_engine_time_seconds",
			Help: "Engine local simulation time",
		}, []string{"engine"}),
	}
}

func (c *Collector) OnRound(r coordinator.RoundReport) {
	c.rounds.Inc()
	c.simTime.Set(r.Time)
	c.checkpoints.Add(float64(len(r.Checkpoints)))
	if r.Output {
		c.records.Inc()
	}

	for _, e := range r.Engines {
		c.steps.WithLabelValues(e.ID).Add(float64(e.Steps))
		c.lag.WithLabelValues(e.ID).Set(e.Lag)
		c.engineTime.WithLabelValues(e.ID).Set(e.Time)
	}

	for _, err := range r.Errors {
		var de *dynamo.Error
		if !errors.As(err, &de) || de.Engine == "" {
			continue
		}
		switch de.Kind {
		case dynamo.KindStep:
			c.stepErrors.WithLabelValues(de.Engine).Inc()
		case dynamo.KindExchange:
			c.exchangeErrors.WithLabelValues(de.Engine).Inc()
		case dynamo.KindRegime:
			c.regimeErrors.WithLabelValues(de.Engine).Inc()
		}
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
