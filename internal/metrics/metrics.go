// Package metrics exposes Prometheus counters for the device flow.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "device_auth"

type Metrics struct {
	registry *prometheus.Registry

	deviceAuthorizations *prometheus.CounterVec
	logins               *prometheus.CounterVec
	polls                *prometheus.CounterVec
	tokensIssued         *prometheus.CounterVec
	validations          *prometheus.CounterVec
}

// New creates counters on a private registry together with Go runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		deviceAuthorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_authorizations_total",
			Help:      "Device authorization requests by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login and consent submissions by outcome.",
		}, []string{"outcome"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_polls_total",
			Help:      "Token endpoint polls by returned status.",
		}, []string{"status"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Token pairs minted by grant.",
		}, []string{"grant"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_validations_total",
			Help:      "Token validations by token type and result.",
		}, []string{"token_type", "result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.deviceAuthorizations,
		m.logins,
		m.polls,
		m.tokensIssued,
		m.validations,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) DeviceAuthorization(result string) {
	if m == nil {
		return
	}
	m.deviceAuthorizations.WithLabelValues(result).Inc()
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Poll(status string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(status).Inc()
}

func (m *Metrics) TokensIssued(grant string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(grant).Inc()
}

func (m *Metrics) Validation(tokenType, result string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(tokenType, result).Inc()
}
