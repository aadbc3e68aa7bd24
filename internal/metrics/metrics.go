// Package metrics collects and exposes Prometheus metrics of the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the transport and services report to.
type Recorder interface {
	ObserveRPC(method, code string, d time.Duration)
	RecordSignIn(outcome string)
	RecordAssetBytes(n int)
}

// Sign-in outcomes.
const (
	SignInOK          = "ok"
	SignInRejected    = "rejected"
	SignInRateLimited = "rate_limited"
	SignInError       = "error"
)

// Collector is the Prometheus Recorder.
type Collector struct {
	rpcTotal    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	signIns     *prometheus.CounterVec
	assetBytes  prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		rpcTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilekeeper_rpc_total",
			Help: "Handled gRPC calls by method and status code.",
		}, []string{"method", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profilekeeper_rpc_duration_seconds",
			Help:    "gRPC handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilekeeper_sign_in_total",
			Help: "Sign-in attempts by outcome.",
		}, []string{"outcome"}),
		assetBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilekeeper_asset_bytes_total",
			Help: "Bytes of stored assets.",
		}),
	}
	reg.MustRegister(c.rpcTotal, c.rpcDuration, c.signIns, c.assetBytes)
	return c
}

func (c *Collector) ObserveRPC(method, code string, d time.Duration) {
	c.rpcTotal.WithLabelValues(method, code).Inc()
	c.rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (c *Collector) RecordSignIn(outcome string) { c.signIns.WithLabelValues(outcome).Inc() }

func (c *Collector) RecordAssetBytes(n int) { c.assetBytes.Add(float64(n)) }

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveRPC(string, string, time.Duration) {}
func (Nop) RecordSignIn(string)                      {}
func (Nop) RecordAssetBytes(int)                     {}

// Handler serves gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
