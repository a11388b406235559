package crawler

import (
	"iter"
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/retailcrawler/helpers"
)

var pageNumberPattern = regexp.MustCompile(`(?i)(?:^|[/?&_-])(?:page|pg|p)[=/-]?(\d+)`)

// ListingExtractor emits product links found on listing and search pages,
// followed by at most one pagination token.
type ListingExtractor struct {
	base
	rules ListingRules
}

// NewListingExtractor creates the listing extractor for r
func NewListingExtractor(r *Retailer, opts ...Option) *ListingExtractor {
	return &ListingExtractor{
		base:  newBase(r, KindListing, opts),
		rules: r.Listing.withDefaults(),
	}
}

func (e *ListingExtractor) CanHandle(rawURL string) bool {
	return e.retailer.IsListingURL(rawURL)
}

func (e *ListingExtractor) Extract(html, pageURL string) iter.Seq[Record] {
	return e.run(html, pageURL, e.page)
}

func (e *ListingExtractor) page(doc *goquery.Document, pageURL string, emit func(Record) bool) bool {
	r := e.retailer
	category := r.Category(pageURL)

	productLink := func(href string) bool {
		abs := r.resolve(pageURL, href)
		return abs != "" && r.IsProductLink(helpers.CanonicalURL(abs))
	}

	seen := make(map[string]struct{})
	for _, href := range e.resolver.All(doc.Selection, e.rules.ProductLinks, productLink) {
		link := helpers.CanonicalURL(r.resolve(pageURL, href))
		rec := ListingURLRecord{
			URL:        link,
			RetailerID: r.ID,
			Category:   category,
			NaturalKey: r.NaturalKey(link),
			Metadata:   e.meta(SourceDOM, pageURL),
		}
		key := rec.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if !emit(rec) {
			return false
		}
	}

	next, ok := e.resolver.First(doc.Selection, e.rules.NextPage, nil)
	if !ok {
		return true
	}
	abs := r.resolve(pageURL, next)
	if abs == "" {
		return true
	}
	nextURL := helpers.CanonicalURL(abs)
	if nextURL == helpers.CanonicalURL(pageURL) || !r.MatchesHost(nextURL) {
		return true
	}
	return emit(PaginationToken{
		URL:            nextURL,
		RetailerID:     r.ID,
		PageNumber:     pageNumber(nextURL, e.rules.PageParam),
		Category:       category,
		DiscoveredFrom: pageURL,
		Metadata:       e.meta(SourceDOM, pageURL),
	})
}

// pageNumber reads the page index from param, or from a page-like path or
// query segment when param is unset. Zero means unknown.
func pageNumber(rawURL, param string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	if param != "" {
		if n, err := strconv.Atoi(u.Query().Get(param)); err == nil && n > 0 {
			return n
		}
		return 0
	}
	target := u.Path
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	if m := pageNumberPattern.FindStringSubmatch(target); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}
