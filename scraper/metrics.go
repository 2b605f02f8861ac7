package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var itemsScrapedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "railguard_items_scraped",
	Help: "Number of content items produced by the scraper, by kind",
}, []string{"kind"})

var fetchErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "railguard_scrape_fetch_errors",
	Help: "Number of failed listing fetches, by kind",
}, []string{"kind"})

var imageDownloadCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "railguard_scrape_image_downloads",
	Help: "Number of images downloaded to local content-addressed storage",
})
