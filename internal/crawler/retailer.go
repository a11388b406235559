package crawler

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"sjsage522/retailcrawler/helpers"
	"sjsage522/retailcrawler/internal/normalize"
	"sjsage522/retailcrawler/internal/selector"
)

// KeyExtractorFunc parses a retailer's natural product key from a product URL
type KeyExtractorFunc func(link string) (string, bool)

// ListingRules configure listing-page extraction
type ListingRules struct {
	// ProductLinks yields href values of product tiles
	ProductLinks selector.Chain
	// NextPage yields the href of the next listing page
	NextPage selector.Chain
	// ProductURL accepts links that point at product pages
	ProductURL *regexp.Regexp
	// PageParam is the query parameter holding the page number
	PageParam string
}

// DetailsRules configure product-page DOM extraction
type DetailsRules struct {
	ExternalID    selector.Chain
	Title         selector.Chain
	Brand         selector.Chain
	Price         selector.Chain
	OriginalPrice selector.Chain
	Description   selector.Chain
	Images        selector.Chain
	Ingredients   selector.Chain
	Barcode       selector.Chain
	Weight        selector.Chain
	Quantity      selector.Chain
	Stock         selector.Chain
	OutOfStock    selector.Chain
	Breadcrumb    selector.Chain
	Rating        selector.Chain
	ReviewCount   selector.Chain
	// Remove lists elements stripped before reading text fields
	Remove []string
}

// ReviewRules configure review-page DOM extraction
type ReviewRules struct {
	Container selector.Chain
	Rating    selector.Chain
	Author    selector.Chain
	Title     selector.Chain
	Body      selector.Chain
	Date      selector.Chain
	Verified  selector.Chain
	Helpful   selector.Chain
	NextPage  selector.Chain
	PageParam string
}

// CategoryRule maps URL terms to a category. Pattern is matched against the
// lower-cased path followed by the search query terms.
type CategoryRule struct {
	Pattern  *regexp.Regexp
	Category string
}

// Retailer is the per-site configuration shared by the three extractor kinds
type Retailer struct {
	ID       string
	Name     string
	Hosts    []string
	BaseURL  string
	Currency string

	// Path shapes. Review beats details, and details beats listing.
	ListingPath *regexp.Regexp
	DetailsPath *regexp.Regexp
	ReviewPath  *regexp.Regexp

	KeyExtractor KeyExtractorFunc
	// ReviewURL maps a product URL to its first review page
	ReviewURL func(productURL string) string

	Listing    ListingRules
	Details    DetailsRules
	Reviews    ReviewRules
	Categories []CategoryRule
	StockWords normalize.StockWords
}

// MatchesHost reports whether rawURL is on one of the retailer's hosts
func (r *Retailer) MatchesHost(rawURL string) bool {
	host := helpers.HostOf(rawURL)
	if host == "" {
		return false
	}
	return slices.ContainsFunc(r.Hosts, func(h string) bool {
		h = strings.TrimPrefix(strings.ToLower(h), "www.")
		return host == h || strings.HasSuffix(host, "."+h)
	})
}

func pathOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	p := u.EscapedPath()
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

func matchPath(re *regexp.Regexp, rawURL string) bool {
	return re != nil && re.MatchString(pathOf(rawURL))
}

// IsReviewURL reports whether rawURL is a review page
func (r *Retailer) IsReviewURL(rawURL string) bool {
	return r.MatchesHost(rawURL) && matchPath(r.ReviewPath, rawURL)
}

// IsDetailsURL reports whether rawURL is a product page
func (r *Retailer) IsDetailsURL(rawURL string) bool {
	return r.MatchesHost(rawURL) && matchPath(r.DetailsPath, rawURL) && !matchPath(r.ReviewPath, rawURL)
}

// IsListingURL reports whether rawURL is a listing or search page
func (r *Retailer) IsListingURL(rawURL string) bool {
	return r.MatchesHost(rawURL) &&
		matchPath(r.ListingPath, rawURL) &&
		!matchPath(r.DetailsPath, rawURL) &&
		!matchPath(r.ReviewPath, rawURL)
}

// IsProductLink reports whether a listing link points at a product page
func (r *Retailer) IsProductLink(link string) bool {
	if !r.MatchesHost(link) {
		return false
	}
	if r.Listing.ProductURL != nil {
		return r.Listing.ProductURL.MatchString(pathOf(link))
	}
	return matchPath(r.DetailsPath, link)
}

// NaturalKey returns the retailer's product key for link, if any
func (r *Retailer) NaturalKey(link string) string {
	if r.KeyExtractor == nil {
		return ""
	}
	key, ok := r.KeyExtractor(link)
	if !ok {
		return ""
	}
	return key
}

// Category classifies a URL with the retailer's rules, then the shared ones
func (r *Retailer) Category(rawURL string) string {
	subject := categorySubject(rawURL)
	if subject == "" {
		return ""
	}
	for _, rules := range [][]CategoryRule{r.Categories, DefaultCategories} {
		for _, rule := range rules {
			if rule.Pattern != nil && rule.Pattern.MatchString(subject) {
				return rule.Category
			}
		}
	}
	return ""
}

func categorySubject(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	parts := []string{strings.ToLower(u.Path)}
	q := u.Query()
	for _, key := range []string{"q", "query", "search", "searchTerm", "k", "keyword", "text"} {
		if v := q.Get(key); v != "" {
			parts = append(parts, strings.ToLower(v))
		}
	}
	return strings.Join(parts, " ")
}

// ReviewURLFor returns the review page of a product URL, if the retailer
// has one
func (r *Retailer) ReviewURLFor(productURL string) (string, bool) {
	if r.ReviewURL == nil {
		return "", false
	}
	u := helpers.CanonicalURL(r.ReviewURL(productURL))
	if !r.IsReviewURL(u) {
		return "", false
	}
	return u, true
}

func (r *Retailer) stockWords() normalize.StockWords {
	if len(r.StockWords.InStock) == 0 && len(r.StockWords.OutOfStock) == 0 {
		return normalize.DefaultStockWords
	}
	return r.StockWords
}

func (r *Retailer) resolve(pageURL, ref string) string {
	base := pageURL
	if base == "" {
		base = r.BaseURL
	}
	return helpers.ResolveURL(base, ref)
}
