// Package orchestrator walks a retailer's paginated pages from one start URL,
// running the registered extractors on each page and deduplicating what they
// emit.
//
// An Orchestrator is single-writer: concurrent crawls must each own one.
package orchestrator

import (
	"context"
	"iter"
	"time"

	"golang.org/x/time/rate"

	"sjsage522/retailcrawler/helpers"
	"sjsage522/retailcrawler/internal/crawler"
	"sjsage522/retailcrawler/logger"
)

// DefaultMaxPages bounds a crawl when neither the call nor the options set one
const DefaultMaxPages = 10

// Fetcher retrieves a page body
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts helpers.FetchOptions) (*helpers.Response, error)
}

// Observer is notified when a crawl finishes
type Observer interface {
	ObserveCrawl(retailer string, pages int, elapsed time.Duration)
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithMaxPages sets the page bound used when a call passes maxPages <= 0
func WithMaxPages(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxPages = n
		}
	}
}

// WithRequestDelay spaces fetches at least d apart
func WithRequestDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithFetchOptions sets the options passed on every fetch
func WithFetchOptions(opts helpers.FetchOptions) Option {
	return func(o *Orchestrator) { o.fetchOpts = opts }
}

// WithObserver reports finished crawls to obs
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// Orchestrator owns the visited-URL set and listing dedup keys of one run
type Orchestrator struct {
	registry  *crawler.Registry
	fetcher   Fetcher
	maxPages  int
	limiter   *rate.Limiter
	fetchOpts helpers.FetchOptions
	observer  Observer

	visited map[string]struct{}
	seen    map[string]struct{}
	pages   int
}

// New creates an Orchestrator
func New(registry *crawler.Registry, fetcher Fetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		fetcher:  fetcher,
		maxPages: DefaultMaxPages,
		visited:  make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MarkCrawled records rawURL as visited
func (o *Orchestrator) MarkCrawled(rawURL string) {
	o.visited[helpers.CanonicalURL(rawURL)] = struct{}{}
}

// IsCrawled reports whether rawURL, after canonicalization, was visited
func (o *Orchestrator) IsCrawled(rawURL string) bool {
	_, ok := o.visited[helpers.CanonicalURL(rawURL)]
	return ok
}

// CrawledURLCount returns the number of distinct canonical URLs visited
func (o *Orchestrator) CrawledURLCount() int {
	return len(o.visited)
}

// PagesFetched returns the number of fetches issued by this instance
func (o *Orchestrator) PagesFetched() int {
	return o.pages
}

// Reset clears the visited set, listing dedup keys and page count
func (o *Orchestrator) Reset() {
	o.visited = make(map[string]struct{})
	o.seen = make(map[string]struct{})
	o.pages = 0
}

// CrawlWithPagination fetches start and follows at most one pagination token
// per page until no token is emitted, the token was already visited, or
// maxPages pages were fetched. maxPages <= 0 uses the configured bound.
//
// Records are yielded with a nil error. A fetch failure is yielded once as
// (nil, err) and ends the chain. Blocked pages yield nothing and, having no
// token, end it too.
func (o *Orchestrator) CrawlWithPagination(ctx context.Context, start string, maxPages int) iter.Seq2[crawler.Record, error] {
	return func(yield func(crawler.Record, error) bool) {
		limit := maxPages
		if limit <= 0 {
			limit = o.maxPages
		}

		retailer, _ := o.registry.RetailerFor(start)
		log := logger.ForOrchestrator(retailer)
		begin := time.Now()
		pages := 0
		defer func() {
			if o.observer != nil {
				o.observer.ObserveCrawl(retailer, pages, time.Since(begin))
			}
			log.Info().
				Str("start", start).
				Int("pages", pages).
				Int("visited", len(o.visited)).
				Dur("elapsed", time.Since(begin)).
				Msg("Crawl finished")
		}()

		opts := o.fetchOpts
		if opts.Retailer == "" {
			opts.Retailer = retailer
		}

		current := helpers.CanonicalURL(start)
		for current != "" {
			if pages >= limit {
				log.Debug().Str("url", current).Int("max_pages", limit).Msg("Page bound reached")
				return
			}
			if o.IsCrawled(current) {
				log.Debug().Str("url", current).Msg("Already visited")
				return
			}

			if o.limiter != nil {
				if err := o.limiter.Wait(ctx); err != nil {
					yield(nil, err)
					return
				}
			}

			o.MarkCrawled(current)
			pages++
			o.pages++

			resp, err := o.fetcher.Fetch(ctx, current, opts)
			if err != nil {
				log.Warn().Err(err).Str("url", current).Msg("Fetch failed, stopping pagination")
				yield(nil, err)
				return
			}

			next, ok := o.extractPage(log, resp.Body, current, yield)
			if !ok {
				return
			}
			current = next
		}
	}
}

// extractPage runs each matching extractor over body and forwards records.
// It returns the first unvisited pagination URL, and false once the consumer
// stopped.
func (o *Orchestrator) extractPage(log *logger.Logger, body, pageURL string, yield func(crawler.Record, error) bool) (string, bool) {
	next := ""
	matched := false
	for _, kind := range crawler.Kinds {
		e, ok := o.registry.For(kind, pageURL)
		if !ok {
			continue
		}
		matched = true
		for rec := range e.Extract(body, pageURL) {
			switch r := rec.(type) {
			case crawler.PaginationToken:
				if next == "" && !o.IsCrawled(r.URL) {
					next = helpers.CanonicalURL(r.URL)
				}
				continue
			case crawler.ListingURLRecord:
				key := r.DedupKey()
				if _, dup := o.seen[key]; dup {
					continue
				}
				o.seen[key] = struct{}{}
			}
			if !yield(rec, nil) {
				return "", false
			}
		}
	}
	if !matched {
		log.Debug().Str("url", pageURL).Msg("No extractor handles URL")
	}
	return next, true
}
