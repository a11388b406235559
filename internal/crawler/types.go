package crawler

import (
	"iter"
	"maps"
	"time"
)

// Kind identifies a record or extractor type
type Kind string

const (
	KindListing    Kind = "listing"
	KindDetails    Kind = "details"
	KindReview     Kind = "review"
	KindPagination Kind = "pagination"
)

// Kinds lists extractor kinds in dispatch order
var Kinds = []Kind{KindListing, KindDetails, KindReview}

// Metadata keys
const (
	MetaSource      = "source"
	MetaSourceURL   = "source_url"
	MetaRetailer    = "retailer"
	MetaExtractedAt = "extracted_at"
)

// Metadata sources
const (
	SourceStructured = "structured-data"
	SourceDOM        = "dom"
)

// Metadata is provenance attached to every record. Keys are only ever added.
type Metadata map[string]string

func newMetadata(source, pageURL, retailer string, at time.Time) Metadata {
	return Metadata{
		MetaSource:      source,
		MetaSourceURL:   pageURL,
		MetaRetailer:    retailer,
		MetaExtractedAt: at.UTC().Format(time.RFC3339),
	}
}

// With returns a copy of m with key set, leaving existing keys untouched
func (m Metadata) With(key, value string) Metadata {
	out := maps.Clone(m)
	if out == nil {
		out = Metadata{}
	}
	if _, exists := out[key]; !exists {
		out[key] = value
	}
	return out
}

// Record is anything an extractor emits
type Record interface {
	Kind() Kind
	Meta() Metadata
}

// ListingURLRecord is a product link found on a listing page
type ListingURLRecord struct {
	URL        string   `json:"url"`
	RetailerID string   `json:"retailer_id"`
	Category   string   `json:"category,omitempty"`
	NaturalKey string   `json:"natural_key,omitempty"`
	Metadata   Metadata `json:"metadata"`
}

func (r ListingURLRecord) Kind() Kind     { return KindListing }
func (r ListingURLRecord) Meta() Metadata { return maps.Clone(r.Metadata) }

// DedupKey identifies the product across pages: retailer and natural key
// when one was parsed, otherwise the canonical URL.
func (r ListingURLRecord) DedupKey() string {
	if r.NaturalKey != "" {
		return r.RetailerID + ":" + r.NaturalKey
	}
	return r.URL
}

// PaginationToken points at the next listing page. Only the orchestrator
// consumes it.
type PaginationToken struct {
	URL            string   `json:"url"`
	RetailerID     string   `json:"retailer_id"`
	PageNumber     int      `json:"page_number,omitempty"`
	Category       string   `json:"category,omitempty"`
	DiscoveredFrom string   `json:"discovered_from"`
	Metadata       Metadata `json:"metadata"`
}

func (t PaginationToken) Kind() Kind     { return KindPagination }
func (t PaginationToken) Meta() Metadata { return maps.Clone(t.Metadata) }

// ProductDetailsRecord is a normalized product page. Absent numeric fields
// are zero; prices are in minor units.
type ProductDetailsRecord struct {
	ExternalID              string   `json:"external_id"`
	URL                     string   `json:"url"`
	RetailerID              string   `json:"retailer_id"`
	Title                   string   `json:"title"`
	Brand                   string   `json:"brand,omitempty"`
	Description             string   `json:"description,omitempty"`
	PriceMinorUnits         int64    `json:"price_minor_units"`
	OriginalPriceMinorUnits int64    `json:"original_price_minor_units,omitempty"`
	Currency                string   `json:"currency"`
	InStock                 bool     `json:"in_stock"`
	WeightGrams             int      `json:"weight_grams,omitempty"`
	Quantity                int      `json:"quantity,omitempty"`
	Images                  []string `json:"images,omitempty"`
	Ingredients             string   `json:"ingredients,omitempty"`
	Category                string   `json:"category,omitempty"`
	Barcode                 string   `json:"barcode,omitempty"`
	Rating                  float64  `json:"rating,omitempty"`
	ReviewCount             int      `json:"review_count,omitempty"`
	Metadata                Metadata `json:"metadata"`
}

func (r ProductDetailsRecord) Kind() Kind     { return KindDetails }
func (r ProductDetailsRecord) Meta() Metadata { return maps.Clone(r.Metadata) }

// ReviewRecord is one customer review. Rating is on a 0-5 scale and Body is
// never empty.
type ReviewRecord struct {
	ExternalID       string     `json:"external_id"`
	ProductURL       string     `json:"product_url"`
	RetailerID       string     `json:"retailer_id"`
	Rating           float64    `json:"rating"`
	Author           string     `json:"author,omitempty"`
	Title            string     `json:"title,omitempty"`
	Body             string     `json:"body"`
	VerifiedPurchase bool       `json:"verified_purchase"`
	ReviewDate       *time.Time `json:"review_date,omitempty"`
	HelpfulCount     int        `json:"helpful_count"`
	Metadata         Metadata   `json:"metadata"`
}

func (r ReviewRecord) Kind() Kind     { return KindReview }
func (r ReviewRecord) Meta() Metadata { return maps.Clone(r.Metadata) }

// Extractor turns one page into records. CanHandle is a pure predicate on
// the URL. Extract never panics on malformed input; a blocked page or one
// with nothing recognizable yields nothing. Records precede any pagination
// token and the consumer may stop early.
type Extractor interface {
	Name() string
	RetailerID() string
	Kind() Kind
	CanHandle(rawURL string) bool
	Extract(html, pageURL string) iter.Seq[Record]
}
