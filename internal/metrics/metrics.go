package metrics

import (
  "github.com/prometheus/client_golang/prometheus"
  "github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds every collector the API exports on /metrics.
type Metrics struct {
  Registry            *prometheus.Registry
  HTTPRequests        *prometheus.CounterVec
  HTTPDuration        *prometheus.HistogramVec
  ModerationVerdicts  *prometheus.CounterVec
  RateLimited         *prometheus.CounterVec
  ProviderErrors      *prometheus.CounterVec
}

func New() *Metrics {
  reg := prometheus.NewRegistry()
  m := &Metrics{
    Registry: reg,
    HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
      Namespace: "tutor",
      Name:      "http_requests_total",
      Help:      "HTTP requests by route, method and status.",
    }, []string{"route", "method", "status"}),
    HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
      Namespace: "tutor",
      Name:      "http_request_duration_seconds",
      Help:      "HTTP request latency by route.",
      Buckets:   prometheus.DefBuckets,
    }, []string{"route", "method"}),
    ModerationVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
      Namespace: "tutor",
      Name:      "moderation_verdicts_total",
      Help:      "Moderation outcomes: allowed, flagged or error (failed open).",
    }, []string{"source", "verdict"}),
    RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
      Namespace: "tutor",
      Name:      "rate_limited_total",
      Help:      "Requests rejected by a rate-limit policy.",
    }, []string{"policy"}),
    ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
      Namespace: "tutor",
      Name:      "llm_provider_errors_total",
      Help:      "Errors returned by the LLM provider, by mapped HTTP status.",
    }, []string{"operation", "status"}),
  }
  reg.MustRegister(
    collectors.NewGoCollector(),
    collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
    m.HTTPRequests,
    m.HTTPDuration,
    m.ModerationVerdicts,
    m.RateLimited,
    m.ProviderErrors,
  )
  return m
}
