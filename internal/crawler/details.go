package crawler

import (
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/retailcrawler/helpers"
	"sjsage522/retailcrawler/internal/normalize"
	"sjsage522/retailcrawler/internal/selector"
	"sjsage522/retailcrawler/internal/structured"
)

// DetailsExtractor emits one product record per product page
type DetailsExtractor struct {
	base
	rules DetailsRules
}

// NewDetailsExtractor creates the details extractor for r
func NewDetailsExtractor(r *Retailer, opts ...Option) *DetailsExtractor {
	return &DetailsExtractor{
		base:  newBase(r, KindDetails, opts),
		rules: r.Details.withDefaults(),
	}
}

func (e *DetailsExtractor) CanHandle(rawURL string) bool {
	return e.retailer.IsDetailsURL(rawURL)
}

func (e *DetailsExtractor) Extract(html, pageURL string) iter.Seq[Record] {
	return e.run(html, pageURL, e.page)
}

func (e *DetailsExtractor) page(doc *goquery.Document, pageURL string, emit func(Record) bool) bool {
	objs := structured.Parse(doc.Selection, e.log)

	// Structured data is read before Remove strips script tags
	if len(e.rules.Remove) > 0 {
		doc.Find(strings.Join(e.rules.Remove, ", ")).Remove()
	}

	for _, p := range structured.Products(objs) {
		if p.Usable() {
			return emit(e.fromStructured(doc.Selection, pageURL, p))
		}
	}

	rec, ok := e.fromDOM(doc.Selection, pageURL)
	if !ok {
		e.log.Debug().Str("url", pageURL).Msg("No product found")
		return true
	}
	return emit(rec)
}

func (e *DetailsExtractor) fromStructured(root *goquery.Selection, pageURL string, p structured.Product) ProductDetailsRecord {
	r := e.retailer
	rec := ProductDetailsRecord{
		ExternalID:              p.SKU,
		URL:                     helpers.CanonicalURL(pageURL),
		RetailerID:              r.ID,
		Title:                   helpers.CleanText(p.Name),
		Brand:                   helpers.CleanText(p.Brand),
		Description:             helpers.CleanText(p.Description),
		PriceMinorUnits:         p.PriceMinorUnits,
		OriginalPriceMinorUnits: p.OriginalPriceMinorUnits,
		Currency:                p.Currency,
		InStock:                 true,
		WeightGrams:             p.WeightGrams,
		Images:                  e.images(pageURL, p.Images),
		Barcode:                 p.Barcode,
		Category:                p.Category,
		Rating:                  p.Rating,
		ReviewCount:             p.ReviewCount,
		Metadata:                e.meta(SourceStructured, pageURL),
	}
	if p.StockKnown {
		rec.InStock = p.InStock
	}
	if rec.OriginalPriceMinorUnits <= rec.PriceMinorUnits {
		rec.OriginalPriceMinorUnits = 0
	}
	if rec.ExternalID == "" {
		rec.ExternalID = r.NaturalKey(pageURL)
	}
	if rec.Currency == "" {
		rec.Currency = r.Currency
	}
	if q, ok := normalize.ParseQuantity(rec.Title); ok {
		rec.Quantity = q
	}
	if rec.Category == "" {
		rec.Category = e.category(root, pageURL)
	}

	// Ingredients never appear in product structured data
	rec.Ingredients = helpers.CleanText(e.first(root, e.rules.Ingredients, nil))
	return rec
}

func (e *DetailsExtractor) fromDOM(root *goquery.Selection, pageURL string) (ProductDetailsRecord, bool) {
	r := e.retailer
	rules := e.rules

	title := helpers.CleanText(e.first(root, rules.Title, nil))
	if title == "" {
		return ProductDetailsRecord{}, false
	}

	rec := ProductDetailsRecord{
		URL:         helpers.CanonicalURL(pageURL),
		RetailerID:  r.ID,
		Title:       title,
		Brand:       helpers.CleanText(e.first(root, rules.Brand, nil)),
		Description: helpers.CleanText(e.first(root, rules.Description, nil)),
		Ingredients: helpers.CleanText(e.first(root, rules.Ingredients, nil)),
		Currency:    r.Currency,
		Metadata:    e.meta(SourceDOM, pageURL),
	}

	rec.ExternalID = r.NaturalKey(pageURL)
	if rec.ExternalID == "" {
		rec.ExternalID = e.first(root, rules.ExternalID, nil)
	}

	priceText := e.first(root, rules.Price, selector.PriceLike)
	if price, ok := normalize.ParsePrice(priceText); ok {
		rec.PriceMinorUnits = price
		if cur, ok := normalize.CurrencyFromSymbol(priceText); ok {
			rec.Currency = cur
		}
	}
	if was, ok := normalize.ParsePrice(e.first(root, rules.OriginalPrice, selector.PriceLike)); ok && was > rec.PriceMinorUnits {
		rec.OriginalPriceMinorUnits = was
	}

	rec.InStock = e.inStock(root, rec.PriceMinorUnits > 0)

	if w, ok := normalize.ParseWeight(e.first(root, rules.Weight, selector.Numeric)); ok {
		rec.WeightGrams = w
	} else if w, ok := normalize.ParseWeight(title); ok {
		rec.WeightGrams = w
	}
	if q, ok := normalize.ParseQuantity(e.first(root, rules.Quantity, selector.Numeric)); ok {
		rec.Quantity = q
	} else if q, ok := normalize.ParseQuantity(title); ok {
		rec.Quantity = q
	}
	if code, ok := normalize.NormalizeBarcode(e.first(root, rules.Barcode, selector.Numeric)); ok {
		rec.Barcode = code
	}

	rec.Images = e.images(pageURL, e.resolver.All(root, rules.Images, nil))
	rec.Category = e.category(root, pageURL)

	if rating, ok := normalize.ParseRating(e.first(root, rules.Rating, selector.Numeric)); ok {
		rec.Rating = rating
	}
	if n, ok := normalize.ParseCount(e.first(root, rules.ReviewCount, selector.Numeric)); ok {
		rec.ReviewCount = n
	}
	return rec, true
}

// inStock applies an explicit out-of-stock marker, then stock wording, then
// falls back to whether a price was found
func (e *DetailsExtractor) inStock(root *goquery.Selection, priced bool) bool {
	if len(e.rules.OutOfStock) > 0 && e.resolver.Exists(root, e.rules.OutOfStock) {
		return false
	}
	if in, known := e.retailer.stockWords().Classify(e.first(root, e.rules.Stock, nil)); known {
		return in
	}
	return priced
}

func (e *DetailsExtractor) category(root *goquery.Selection, pageURL string) string {
	if crumb := helpers.CleanText(e.first(root, e.rules.Breadcrumb, nil)); crumb != "" {
		if c := e.retailer.Category("/" + strings.ToLower(strings.ReplaceAll(crumb, " ", "-"))); c != "" {
			return c
		}
	}
	return e.retailer.Category(pageURL)
}

// images resolves refs against pageURL and drops duplicates, keeping order
func (e *DetailsExtractor) images(pageURL string, refs []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		abs := e.retailer.resolve(pageURL, ref)
		if abs == "" {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}
