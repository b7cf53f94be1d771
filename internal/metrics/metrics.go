package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RetellRequests counts outbound provider API calls by operation and
// outcome (success, error, unavailable).
var RetellRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "retell_requests_total",
	Help: "Outbound Retell API calls by operation and outcome.",
}, []string{"operation", "outcome"})

// WebhookEvents counts identity-provider webhook deliveries by result.
var WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "identity_webhook_events_total",
	Help: "Identity provider webhook deliveries by result.",
}, []string{"result"})

// Handler exposes the default prometheus registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
