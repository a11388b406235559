package crawler

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/retailcrawler/internal/selector"
	"sjsage522/retailcrawler/logger"
)

// Observer receives extraction outcomes, typically for metrics
type Observer interface {
	ObserveBlocked(retailer, kind, reason string)
	ObserveRecords(retailer, kind string, n int)
}

// Option configures extractors built by BuildExtractors
type Option func(*base)

// WithObserver reports blocked pages and record counts to o
func WithObserver(o Observer) Option {
	return func(b *base) { b.observer = o }
}

// WithClock overrides the extracted_at timestamp source
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithResolver shares a selector resolver between extractors
func WithResolver(r *selector.Resolver) Option {
	return func(b *base) { b.resolver = r }
}

// base holds what every extractor kind shares
type base struct {
	retailer *Retailer
	kind     Kind
	resolver *selector.Resolver
	observer Observer
	now      func() time.Time
	log      *logger.Logger
}

func newBase(r *Retailer, kind Kind, opts []Option) base {
	b := base{
		retailer: r,
		kind:     kind,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = logger.ForExtractor(b.Name()).WithStr("retailer", r.ID)
	if b.resolver == nil {
		b.resolver = selector.NewResolver(b.log)
	}
	return b
}

func (b *base) Name() string       { return fmt.Sprintf("%s-%s", b.retailer.ID, b.kind) }
func (b *base) RetailerID() string { return b.retailer.ID }
func (b *base) Kind() Kind         { return b.kind }

func (b *base) meta(source, pageURL string) Metadata {
	return newMetadata(source, pageURL, b.retailer.ID, b.now())
}

// pageFunc extracts records from a parsed, unblocked page. It returns false
// when the consumer stopped.
type pageFunc func(doc *goquery.Document, pageURL string, emit func(Record) bool) bool

// run wraps a page function with the blocked gate, parsing, panic
// containment and the extraction summary log.
func (b *base) run(html, pageURL string, page pageFunc) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		if reason, blocked := DetectBlocked(html); blocked {
			b.log.Warn().
				Str("url", pageURL).
				Str("reason", reason).
				Msg("Blocked page detected")
			if b.observer != nil {
				b.observer.ObserveBlocked(b.retailer.ID, string(b.kind), reason)
			}
			return
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			b.log.Debug().Err(err).Str("url", pageURL).Msg("Failed to parse page")
			return
		}

		counts := make(map[Kind]int)
		emit := func(rec Record) bool {
			counts[rec.Kind()]++
			return yield(rec)
		}

		stopped := false
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					b.log.Error().
						Str("url", pageURL).
						Str("panic", fmt.Sprint(rec)).
						Msg("Extraction aborted")
				}
			}()
			stopped = !page(doc, pageURL, emit)
		}()

		total := 0
		for k, n := range counts {
			if k != KindPagination {
				total += n
			}
		}
		if b.observer != nil && total > 0 {
			b.observer.ObserveRecords(b.retailer.ID, string(b.kind), total)
		}
		b.log.Info().
			Str("url", pageURL).
			Int("records", total).
			Int("pagination", counts[KindPagination]).
			Bool("stopped_early", stopped).
			Msg("Extraction complete")
	}
}

func (b *base) first(root *goquery.Selection, chain selector.Chain, accept selector.Predicate) string {
	v, _ := b.resolver.First(root, chain, accept)
	return v
}

// BuildExtractors creates listing, details and review extractors for each
// retailer, in order.
func BuildExtractors(retailers []*Retailer, opts ...Option) []Extractor {
	out := make([]Extractor, 0, len(retailers)*3)
	for _, r := range retailers {
		out = append(out,
			NewListingExtractor(r, opts...),
			NewDetailsExtractor(r, opts...),
			NewReviewExtractor(r, opts...),
		)
	}
	return out
}

// Registry holds extractors in registration order
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: append([]Extractor(nil), extractors...)}
}

// Register appends e
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Extractors returns a copy of the registered extractors
func (r *Registry) Extractors() []Extractor {
	return append([]Extractor(nil), r.extractors...)
}

// For returns the first extractor of kind that can handle rawURL
func (r *Registry) For(kind Kind, rawURL string) (Extractor, bool) {
	for _, e := range r.extractors {
		if e.Kind() == kind && e.CanHandle(rawURL) {
			return e, true
		}
	}
	return nil, false
}

// RetailerFor returns the retailer id of the first extractor of any kind
// that handles rawURL
func (r *Registry) RetailerFor(rawURL string) (string, bool) {
	for _, kind := range Kinds {
		if e, ok := r.For(kind, rawURL); ok {
			return e.RetailerID(), true
		}
	}
	return "", false
}
