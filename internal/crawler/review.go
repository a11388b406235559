package crawler

import (
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"sjsage522/retailcrawler/helpers"
	"sjsage522/retailcrawler/internal/normalize"
	"sjsage522/retailcrawler/internal/selector"
	"sjsage522/retailcrawler/internal/structured"
)

// ReviewExtractor emits customer reviews from review pages, followed by at
// most one pagination token for the next review page.
type ReviewExtractor struct {
	base
	rules ReviewRules
}

// NewReviewExtractor creates the review extractor for r
func NewReviewExtractor(r *Retailer, opts ...Option) *ReviewExtractor {
	return &ReviewExtractor{
		base:  newBase(r, KindReview, opts),
		rules: r.Reviews.withDefaults(),
	}
}

func (e *ReviewExtractor) CanHandle(rawURL string) bool {
	return e.retailer.IsReviewURL(rawURL)
}

func (e *ReviewExtractor) Extract(html, pageURL string) iter.Seq[Record] {
	return e.run(html, pageURL, e.page)
}

func (e *ReviewExtractor) page(doc *goquery.Document, pageURL string, emit func(Record) bool) bool {
	productURL := helpers.CanonicalURL(pageURL)

	found := 0
	for _, rv := range structured.Reviews(structured.Parse(doc.Selection, e.log)) {
		body := helpers.CleanText(rv.Body)
		if !rv.Usable() || body == "" {
			continue
		}
		found++
		rec := ReviewRecord{
			ExternalID: rv.ID,
			ProductURL: productURL,
			RetailerID: e.retailer.ID,
			Rating:     rv.Rating,
			Author:     helpers.CleanText(rv.Author),
			Title:      helpers.CleanText(rv.Title),
			Body:       body,
			ReviewDate: rv.Date,
			Metadata:   e.meta(SourceStructured, pageURL),
		}
		if rec.ExternalID == "" {
			rec.ExternalID = e.reviewID(productURL, rec)
		}
		if !emit(rec) {
			return false
		}
	}

	if found == 0 {
		containers := e.resolver.Nodes(doc.Selection, e.rules.Container)
		for i := range containers.Length() {
			rec, ok := e.fromContainer(containers.Eq(i), pageURL, productURL)
			if !ok {
				continue
			}
			if !emit(rec) {
				return false
			}
		}
	}

	return e.nextPage(doc.Selection, pageURL, emit)
}

func (e *ReviewExtractor) fromContainer(node *goquery.Selection, pageURL, productURL string) (ReviewRecord, bool) {
	rules := e.rules

	rating, ok := normalize.ParseRating(e.first(node, rules.Rating, selector.Numeric))
	if !ok {
		return ReviewRecord{}, false
	}
	body := helpers.CleanText(e.first(node, rules.Body, nil))
	if body == "" {
		return ReviewRecord{}, false
	}

	rec := ReviewRecord{
		ProductURL: productURL,
		RetailerID: e.retailer.ID,
		Rating:     rating,
		Author:     helpers.CleanText(e.first(node, rules.Author, nil)),
		Title:      helpers.CleanText(e.first(node, rules.Title, nil)),
		Body:       body,
		Metadata:   e.meta(SourceDOM, pageURL),
	}
	rec.ExternalID = node.AttrOr("data-review-id", node.AttrOr("id", ""))
	if d, ok := normalize.ParseDate(e.first(node, rules.Date, nil)); ok {
		rec.ReviewDate = &d
	}
	if e.resolver.Exists(node, rules.Verified) {
		rec.VerifiedPurchase = true
	}
	if n, ok := normalize.ParseCount(e.first(node, rules.Helpful, nil)); ok {
		rec.HelpfulCount = n
	}
	if rec.ExternalID == "" {
		rec.ExternalID = e.reviewID(productURL, rec)
	}
	return rec, true
}

// reviewID derives a stable id from the review's content for retailers that
// expose none
func (e *ReviewExtractor) reviewID(productURL string, rec ReviewRecord) string {
	date := ""
	if rec.ReviewDate != nil {
		date = rec.ReviewDate.Format("2006-01-02")
	}
	name := strings.Join([]string{e.retailer.ID, productURL, rec.Author, date, rec.Body}, "|")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (e *ReviewExtractor) nextPage(root *goquery.Selection, pageURL string, emit func(Record) bool) bool {
	next, ok := e.resolver.First(root, e.rules.NextPage, nil)
	if !ok {
		return true
	}
	abs := e.retailer.resolve(pageURL, next)
	if abs == "" {
		return true
	}
	nextURL := helpers.CanonicalURL(abs)
	if nextURL == helpers.CanonicalURL(pageURL) || !e.retailer.IsReviewURL(nextURL) {
		return true
	}
	return emit(PaginationToken{
		URL:            nextURL,
		RetailerID:     e.retailer.ID,
		PageNumber:     pageNumber(nextURL, e.rules.PageParam),
		DiscoveredFrom: pageURL,
		Metadata:       e.meta(SourceDOM, pageURL),
	})
}
