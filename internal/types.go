package internal

import (
	"sjsage522/retailcrawler/services/cache"
	"sjsage522/retailcrawler/services/metrics"
	"sjsage522/retailcrawler/services/publisher"
)

// Dependencies holds all service dependencies. Metrics may be nil.
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Metrics   *metrics.Metrics
}
