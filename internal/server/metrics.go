package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asoforge/asoforge/modules/ruleset/services"
)

// newMetricsHandler exposes resolution cache health on /metrics. The
// counters are read straight off the cache; nothing is sampled.
func newMetricsHandler(resolver *services.Resolver) http.Handler {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "asoforge_ruleset_cache_entries",
		Help: "Current number of cached merged rulesets.",
	}, func() float64 {
		return float64(resolver.CacheStats().Size)
	}))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "asoforge_ruleset_cache_capacity",
		Help: "Configured resolution cache capacity.",
	}, func() float64 {
		return float64(resolver.CacheStats().MaxSize)
	}))
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "asoforge_ruleset_cache_hits_total",
		Help: "Resolution cache hits.",
	}, func() float64 {
		return float64(resolver.CacheStats().Hits)
	}))
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "asoforge_ruleset_cache_misses_total",
		Help: "Resolution cache misses.",
	}, func() float64 {
		return float64(resolver.CacheStats().Misses)
	}))
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "asoforge_ruleset_cache_evictions_total",
		Help: "Resolution cache capacity evictions.",
	}, func() float64 {
		return float64(resolver.CacheStats().Evictions)
	}))

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
