package classifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classifyCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_classifier_requests",
	Help: "Number of classifier API requests, by HTTP status code",
}, []string{"status"})

var classifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "warden_classifier_duration_sec",
	Help: "Duration of classifier API requests",
})
