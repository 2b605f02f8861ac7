package detectors

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var hiveAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "railguard_hive_api_requests",
	Help: "Number of Hive AI classification API requests, by media kind and HTTP status code",
}, []string{"kind", "status"})

var hiveAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "railguard_hive_api_duration_seconds",
	Help: "Total duration of Hive AI classification API requests",
})

var hfAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "railguard_hf_api_requests",
	Help: "Number of HuggingFace inference API requests, by HTTP status code",
}, []string{"status"})

var hfAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "railguard_hf_api_duration_seconds",
	Help: "Total duration of HuggingFace inference API requests",
})
