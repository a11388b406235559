package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sjsage522/retailcrawler/config"
	"sjsage522/retailcrawler/helpers"
	"sjsage522/retailcrawler/internal"
	"sjsage522/retailcrawler/internal/crawler"
	"sjsage522/retailcrawler/internal/orchestrator"
	"sjsage522/retailcrawler/logger"
	"sjsage522/retailcrawler/pkg/errors"
	"sjsage522/retailcrawler/services/proxy"
)

// FetcherFactory builds the fetcher used by one crawl
type FetcherFactory func(settings config.RetailerSettings) (orchestrator.Fetcher, error)

// Option configures a Worker
type Option func(*Worker)

// WithFetcherFactory replaces the default HTTP fetcher
func WithFetcherFactory(f FetcherFactory) Option {
	return func(w *Worker) { w.newFetcher = f }
}

// WithRetailers replaces the built-in retailer tables
func WithRetailers(retailers []*crawler.Retailer) Option {
	return func(w *Worker) { w.retailers = retailers }
}

// CycleStats summarizes one crawl cycle
type CycleStats struct {
	Crawls    int
	Published map[crawler.Kind]int
	Errors    int
}

func (s *CycleStats) add(o CycleStats) {
	s.Crawls += o.Crawls
	s.Errors += o.Errors
	for k, n := range o.Published {
		s.Published[k] += n
	}
}

// job is one start URL of an enabled retailer
type job struct {
	retailer *crawler.Retailer
	settings config.RetailerSettings
	startURL string
}

// Worker handles the crawling and publishing process
type Worker struct {
	cfg        *config.Config
	deps       internal.Dependencies
	retailers  []*crawler.Retailer
	newFetcher FetcherFactory
	log        *logger.Logger
}

// NewWorker creates a new worker. Every enabled retailer in the retailer
// file must name a known retailer.
func NewWorker(cfg *config.Config, deps internal.Dependencies, opts ...Option) (*Worker, error) {
	w := &Worker{
		cfg:       cfg,
		deps:      deps,
		retailers: crawler.Retailers(),
		log:       logger.ForWorker(),
	}
	w.newFetcher = w.httpFetcher
	for _, opt := range opts {
		opt(w)
	}
	if _, err := w.jobs(); err != nil {
		return nil, err
	}
	return w, nil
}

// Start runs a cycle every crawl interval until ctx is cancelled
func (w *Worker) Start(ctx context.Context) error {
	for {
		start := time.Now()
		stats := w.RunCycle(ctx)
		if !w.cfg.IsProduction() {
			w.log.Info().
				Dur("elapsed", time.Since(start)).
				Int("crawls", stats.Crawls).
				Int("errors", stats.Errors).
				Interface("published", stats.Published).
				Msg("Crawl cycle finished")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.cfg.CrawlInterval):
		}
	}
}

// RunCycle crawls every start URL in parallel and then trims the streams
func (w *Worker) RunCycle(ctx context.Context) CycleStats {
	total := CycleStats{Published: make(map[crawler.Kind]int)}
	jobs, err := w.jobs()
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to resolve retailers")
		total.Errors++
		return total
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			stats := w.crawlAndPublish(ctx, j)
			mu.Lock()
			total.add(stats)
			mu.Unlock()
		}(j)
	}
	wg.Wait()

	// Trim all streams after crawling
	if err := w.deps.Publisher.TrimStreams(ctx); err != nil {
		w.log.Error().Err(err).Msg("Stream trimming failed")
	}
	return total
}

func (w *Worker) jobs() ([]job, error) {
	if w.cfg.Retailers == nil {
		return nil, nil
	}
	var jobs []job
	for _, s := range w.cfg.Retailers.Enabled() {
		r := w.retailer(s.ID)
		if r == nil {
			return nil, errors.NewConfiguration("unknown retailer "+s.ID, nil)
		}
		for _, u := range s.StartURLs {
			jobs = append(jobs, job{retailer: r, settings: s, startURL: u})
		}
	}
	return jobs, nil
}

func (w *Worker) retailer(id string) *crawler.Retailer {
	for _, r := range w.retailers {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// httpFetcher builds a fetcher with its own proxy manager
func (w *Worker) httpFetcher(settings config.RetailerSettings) (orchestrator.Fetcher, error) {
	manager, err := proxy.FromConfig(settings.Proxy)
	if err != nil {
		return nil, err
	}
	opts := []helpers.FetcherOption{
		helpers.WithProxy(manager, settings.Proxy.RotatePerRequest),
		helpers.WithTimeout(w.cfg.FetchTimeout),
	}
	if w.deps.Cache != nil {
		opts = append(opts, helpers.WithCache(w.deps.Cache, w.cfg.RateLimitBlockTime))
	}
	if w.deps.Metrics != nil {
		opts = append(opts, helpers.WithObserver(w.deps.Metrics))
	}
	return helpers.NewFetcher(opts...), nil
}

// newOrchestrator builds the per-crawl orchestrator of j
func (w *Worker) newOrchestrator(j job, fetcher orchestrator.Fetcher) *orchestrator.Orchestrator {
	var extractorOpts []crawler.Option
	opts := []orchestrator.Option{
		orchestrator.WithMaxPages(w.cfg.MaxPagesFor(j.retailer.ID)),
		orchestrator.WithRequestDelay(w.cfg.RequestDelayFor(j.retailer.ID)),
		orchestrator.WithFetchOptions(helpers.FetchOptions{
			Retailer:    j.retailer.ID,
			Headers:     j.settings.Headers,
			RotateProxy: j.settings.Proxy.RotatePerRequest,
		}),
	}
	if w.deps.Metrics != nil {
		extractorOpts = append(extractorOpts, crawler.WithObserver(w.deps.Metrics))
		opts = append(opts, orchestrator.WithObserver(w.deps.Metrics))
	}
	registry := crawler.NewRegistry(crawler.BuildExtractors([]*crawler.Retailer{j.retailer}, extractorOpts...)...)
	return orchestrator.New(registry, fetcher, opts...)
}

// crawlAndPublish walks the start URL, then follows up to the configured
// number of discovered products and their reviews
func (w *Worker) crawlAndPublish(ctx context.Context, j job) CycleStats {
	log := w.log.WithStr("retailer", j.retailer.ID).WithStr("start_url", j.startURL)
	stats := CycleStats{Crawls: 1, Published: make(map[crawler.Kind]int)}

	fetcher, err := w.newFetcher(j.settings)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build fetcher")
		stats.Errors++
		return stats
	}
	orch := w.newOrchestrator(j, fetcher)

	var products []string
	sampled := false
	consume := func(startURL string, maxPages int) {
		for rec, err := range orch.CrawlWithPagination(ctx, startURL, maxPages) {
			if err != nil {
				log.Error().Err(err).Str("url", startURL).Msg("Crawl failed")
				stats.Errors++
				continue
			}
			if l, ok := rec.(crawler.ListingURLRecord); ok && len(products) < w.cfg.FollowProductLimit {
				products = append(products, l.URL)
			}
			if err := w.publish(ctx, rec, &sampled); err != nil {
				log.Error().Err(err).Msg("Publish failed")
				stats.Errors++
				continue
			}
			stats.Published[rec.Kind()]++
		}
	}

	consume(j.startURL, 0)
	for _, p := range products {
		if ctx.Err() != nil {
			break
		}
		consume(p, 1)
		if reviewURL, ok := j.retailer.ReviewURLFor(p); ok {
			consume(reviewURL, 0)
		}
	}
	return stats
}

// publish sends rec to its kind's stream
func (w *Worker) publish(ctx context.Context, rec crawler.Record, sampled *bool) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := w.deps.Publisher.Publish(ctx, string(rec.Kind()), data); err != nil {
		return err
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.ObservePublished(string(rec.Kind()), 1)
	}

	// Log only the first record of each crawl outside production
	if !*sampled && !w.cfg.IsProduction() {
		*sampled = true
		w.log.Debug().RawJSON("record", data).Str("kind", string(rec.Kind())).Msg("Sample record")
	}
	return nil
}
