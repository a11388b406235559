package structured

import (
	"strings"
	"time"

	"sjsage522/retailcrawler/internal/normalize"
)

// Product is a schema.org Product with normalized fields
type Product struct {
	Name        string
	Description string
	Brand       string
	SKU         string
	Barcode     string
	Category    string
	URL         string
	Images      []string

	PriceMinorUnits         int64
	HasPrice                bool
	OriginalPriceMinorUnits int64
	Currency                string
	InStock                 bool
	StockKnown              bool

	WeightGrams int

	Rating      float64
	ReviewCount int
}

// Usable reports whether the product has a name and a parseable price
func (p Product) Usable() bool {
	return p.Name != "" && p.HasPrice
}

// Review is a schema.org Review with normalized fields
type Review struct {
	ID     string
	Author string
	Title  string
	Body   string
	Rating float64
	Date   *time.Time
}

// Usable reports whether the review has a rating and a body
func (r Review) Usable() bool {
	return r.Rating > 0 && strings.TrimSpace(r.Body) != ""
}

// Products returns every Product node in objs
func Products(objs []Object) []Product {
	nodes := OfType(objs, "Product")
	out := make([]Product, 0, len(nodes))
	for _, o := range nodes {
		out = append(out, ProductFrom(o))
	}
	return out
}

// Reviews returns every Review node in objs
func Reviews(objs []Object) []Review {
	nodes := OfType(objs, "Review")
	out := make([]Review, 0, len(nodes))
	for _, o := range nodes {
		out = append(out, ReviewFrom(o))
	}
	return out
}

// ProductFrom normalizes a Product node
func ProductFrom(o Object) Product {
	p := Product{
		Name:        o.String("name"),
		Description: o.String("description"),
		Brand:       o.String("brand"),
		SKU:         o.String("sku"),
		Category:    o.String("category"),
		URL:         o.String("url"),
		Images:      o.Strings("image"),
	}

	for _, key := range []string{"gtin13", "gtin", "gtin14", "gtin12", "gtin8", "ean"} {
		if code, ok := normalize.NormalizeBarcode(o.String(key)); ok {
			p.Barcode = code
			break
		}
	}

	for _, offer := range o.Objects("offers") {
		if applyOffer(&p, offer) {
			break
		}
	}

	if w, ok := o.Object("weight"); ok {
		if v, ok := w.Float("value"); ok {
			p.WeightGrams, _ = normalize.WeightFromUnitCode(v, w.String("unitCode"))
		}
	} else if s := o.String("weight"); s != "" {
		p.WeightGrams, _ = normalize.ParseWeight(s)
	}
	if p.WeightGrams == 0 {
		p.WeightGrams, _ = normalize.ParseWeight(p.Name)
	}

	if agg, ok := o.Object("aggregateRating"); ok {
		p.Rating, _ = ratingOf(agg)
		if n, ok := agg.Float("reviewCount"); ok {
			p.ReviewCount = int(n)
		} else if n, ok := agg.Float("ratingCount"); ok {
			p.ReviewCount = int(n)
		}
	}
	return p
}

// applyOffer fills price and stock from an Offer or AggregateOffer. It
// returns false when the offer carries no readable price.
func applyOffer(p *Product, offer Object) bool {
	price, ok := priceOf(offer, "price")
	if !ok {
		price, ok = priceOf(offer, "lowPrice")
	}
	if !ok {
		if spec, found := offer.Object("priceSpecification"); found {
			price, ok = priceOf(spec, "price")
			if p.Currency == "" {
				p.Currency = strings.ToUpper(spec.String("priceCurrency"))
			}
		}
	}
	if !ok {
		return false
	}

	p.PriceMinorUnits = price
	p.HasPrice = true
	if c := strings.ToUpper(offer.String("priceCurrency")); c != "" {
		p.Currency = c
	}
	if high, ok := priceOf(offer, "highPrice"); ok && high > price {
		p.OriginalPriceMinorUnits = high
	}
	if avail := offer.String("availability"); avail != "" {
		p.InStock, p.StockKnown = normalize.ParseAvailability(avail)
	}
	return true
}

// priceOf reads a price property. JSON numbers are major units; strings go
// through ParsePrice.
func priceOf(o Object, key string) (int64, bool) {
	switch t := o[key].(type) {
	case float64:
		return normalize.MinorUnits(t)
	case string:
		return normalize.ParsePrice(t)
	}
	return 0, false
}

func ratingOf(o Object) (float64, bool) {
	v, ok := o.Float("ratingValue")
	if !ok {
		return normalize.ParseRating(o.String("ratingValue"))
	}
	best, ok := o.Float("bestRating")
	if !ok {
		best = 5
	}
	return normalize.RatingOnScale(v, best)
}

// ReviewFrom normalizes a Review node
func ReviewFrom(o Object) Review {
	r := Review{
		ID:     o.String("@id"),
		Author: o.String("author"),
		Title:  o.String("name"),
		Body:   o.String("reviewBody"),
	}
	if r.Body == "" {
		r.Body = o.String("description")
	}
	if rating, ok := o.Object("reviewRating"); ok {
		r.Rating, _ = ratingOf(rating)
	}
	if d, ok := normalize.ParseDate(o.String("datePublished")); ok {
		r.Date = &d
	}
	return r
}
