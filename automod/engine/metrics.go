package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var itemProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "railguard_item_process_duration_seconds",
	Help: "Total duration of one moderation pass over a content item",
})

var itemProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "railguard_items_processed",
	Help: "Number of content items processed, by source",
}, []string{"source"})

var itemErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "railguard_item_errors",
	Help: "Number of degraded processing steps, by stage",
}, []string{"stage"})

var cacheHitCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "railguard_result_cache_hits",
	Help: "Number of image classifications served from the result cache",
})

var cacheMissCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "railguard_result_cache_misses",
	Help: "Number of image classifications that required a detector call",
})

var overrideCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "railguard_human_overrides",
	Help: "Number of human override actions recorded, by new status",
}, []string{"status"})
