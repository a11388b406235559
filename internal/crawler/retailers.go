package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"sjsage522/retailcrawler/helpers"
	"sjsage522/retailcrawler/internal/normalize"
	"sjsage522/retailcrawler/internal/selector"
)

// regexKey returns a KeyExtractorFunc reading the first group of re from
// the link path
func regexKey(re *regexp.Regexp) KeyExtractorFunc {
	return func(link string) (string, bool) {
		m := re.FindStringSubmatch(pathOf(link))
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// segmentKey returns a KeyExtractorFunc reading path segment index, which
// counts from the end when negative
func segmentKey(index int, accept *regexp.Regexp) KeyExtractorFunc {
	return func(link string) (string, bool) {
		u, err := url.Parse(link)
		if err != nil {
			return "", false
		}
		part, ok := helpers.GetSplitPart(strings.TrimSuffix(u.Path, "/"), "/", index)
		if !ok || (accept != nil && !accept.MatchString(part)) {
			return "", false
		}
		return part, true
	}
}

// suffixReview appends suffix to the product path, keeping the query
func suffixReview(suffix string) func(string) string {
	return func(productURL string) string {
		u, err := url.Parse(productURL)
		if err != nil {
			return ""
		}
		u.Path = strings.TrimSuffix(u.Path, "/") + suffix
		return u.String()
	}
}

// amazonReviewURL maps /…/dp/ASIN to /product-reviews/ASIN
func amazonReviewURL(productURL string) string {
	asin, ok := regexKey(amazonASIN)(productURL)
	if !ok {
		return ""
	}
	return "https://www.amazon.co.uk/product-reviews/" + asin
}

var amazonASIN = regexp.MustCompile(`/(?:dp|product-reviews|gp/product)/([A-Z0-9]{10})`)

// Retailers returns the built-in retailer tables. Each call returns fresh
// values the caller may modify.
func Retailers() []*Retailer {
	return []*Retailer{
		petsAtHome(),
		zooplus(),
		amazonUK(),
		tesco(),
		viovet(),
		jollyes(),
	}
}

// RetailerByID returns the built-in retailer with id
func RetailerByID(id string) (*Retailer, bool) {
	for _, r := range Retailers() {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

func petsAtHome() *Retailer {
	return &Retailer{
		ID:          "petsathome",
		Name:        "Pets at Home",
		Hosts:       []string{"petsathome.com"},
		BaseURL:     "https://www.petsathome.com",
		Currency:    "GBP",
		ListingPath: regexp.MustCompile(`^/(?:product/listing/|search)`),
		DetailsPath: regexp.MustCompile(`^/product/[a-z0-9-]+/\d{5,}[A-Z]?(?:/|\?|$)`),
		ReviewPath:  regexp.MustCompile(`^/product/[a-z0-9-]+/\d{5,}[A-Z]?/reviews`),
		KeyExtractor: regexKey(
			regexp.MustCompile(`^/product/[a-z0-9-]+/(\d{5,}[A-Z]?)`),
		),
		ReviewURL: suffixReview("/reviews"),
		Listing: ListingRules{
			ProductLinks: selector.Chain{
				selector.Attr(`[data-testid="product-tile"] a`, "href"),
				selector.Attr(`a.product-tile__link`, "href"),
			},
			NextPage: selector.Chain{
				selector.Attr(`a[data-testid="pagination-next"]`, "href"),
			},
			PageParam: "page",
		},
		Details: DetailsRules{
			Title: selector.Texts(`h1[data-testid="product-title"]`, `h1.product-title`),
			Price: selector.Chain{
				selector.Text(`[data-testid="product-price"]`),
				selector.Text(`.product-price__current`),
			},
			OriginalPrice: selector.Texts(`[data-testid="product-was-price"]`),
			Description:   selector.Texts(`[data-testid="product-description"]`),
			Ingredients:   selector.Texts(`[data-testid="composition"]`, `#composition`),
			Weight:        selector.Texts(`[data-testid="variant-selected"]`),
			OutOfStock:    selector.Texts(`[data-testid="out-of-stock"]`),
		},
		Reviews: ReviewRules{
			Container: selector.Texts(`[data-testid="review"]`),
			Rating:    selector.Chain{selector.Attr(`[data-testid="review-rating"]`, "aria-label")},
			Body:      selector.Texts(`[data-testid="review-text"]`),
			PageParam: "page",
		},
		Categories: []CategoryRule{
			{Pattern: regexp.MustCompile(`/listing/small-animal/`), Category: "small-animal"},
		},
	}
}

func zooplus() *Retailer {
	return &Retailer{
		ID:           "zooplus",
		Name:         "zooplus",
		Hosts:        []string{"zooplus.co.uk"},
		BaseURL:      "https://www.zooplus.co.uk",
		Currency:     "GBP",
		ListingPath:  regexp.MustCompile(`^/(?:shop/|search)`),
		DetailsPath:  regexp.MustCompile(`^/shop/[a-z_]+/[^?]+/\d{4,}(?:\?|$)`),
		ReviewPath:   regexp.MustCompile(`^/shop/[a-z_]+/[^?]+/\d{4,}/reviews`),
		KeyExtractor: segmentKey(-1, regexp.MustCompile(`^\d{4,}$`)),
		ReviewURL:    suffixReview("/reviews"),
		Listing: ListingRules{
			ProductLinks: selector.Chain{
				selector.Attr(`[data-zta="product-link"]`, "href"),
				selector.Attr(`a.ProductListItem_productLink`, "href"),
			},
			NextPage: selector.Chain{
				selector.Attr(`a[data-zta="paginationNext"]`, "href"),
			},
			PageParam: "p",
		},
		Details: DetailsRules{
			Title:         selector.Texts(`h1[data-zta="productTitle"]`),
			Price:         selector.Texts(`[data-zta="productPriceAmount"]`, `.z-price__amount`),
			OriginalPrice: selector.Texts(`[data-zta="productStandardPriceAmount"]`),
			Ingredients:   selector.Texts(`#ingredients`, `[data-zta="composition"]`),
			Quantity:      selector.Texts(`[data-zta="variantSelected"]`),
		},
		Reviews: ReviewRules{
			Container: selector.Texts(`[data-zta="review"]`),
			Rating:    selector.Chain{selector.Attr(`[data-zta="reviewRating"]`, "data-rating")},
			Title:     selector.Texts(`[data-zta="reviewTitle"]`),
			Body:      selector.Texts(`[data-zta="reviewText"]`),
		},
		Categories: []CategoryRule{
			{Pattern: regexp.MustCompile(`/shop/(?:dogs|dog_)`), Category: "dog"},
			{Pattern: regexp.MustCompile(`/shop/(?:cats|cat_)`), Category: "cat"},
			{Pattern: regexp.MustCompile(`/shop/small_pets`), Category: "small-animal"},
		},
	}
}

func amazonUK() *Retailer {
	return &Retailer{
		ID:           "amazon_uk",
		Name:         "Amazon UK",
		Hosts:        []string{"amazon.co.uk"},
		BaseURL:      "https://www.amazon.co.uk",
		Currency:     "GBP",
		ListingPath:  regexp.MustCompile(`^/(?:s(?:\?|/|$)|b(?:\?|/))`),
		DetailsPath:  regexp.MustCompile(`/dp/[A-Z0-9]{10}`),
		ReviewPath:   regexp.MustCompile(`^/product-reviews/[A-Z0-9]{10}`),
		KeyExtractor: regexKey(amazonASIN),
		ReviewURL:    amazonReviewURL,
		Listing: ListingRules{
			ProductLinks: selector.Chain{
				selector.Attr(`div[data-component-type="s-search-result"] h2 a`, "href"),
				selector.Attr(`div[data-asin] a.a-link-normal.s-no-outline`, "href"),
			},
			NextPage:   selector.Chain{selector.Attr(`a.s-pagination-next`, "href")},
			ProductURL: regexp.MustCompile(`/dp/[A-Z0-9]{10}`),
			PageParam:  "page",
		},
		Details: DetailsRules{
			Title: selector.Texts(`#productTitle`),
			Brand: selector.Texts(`#bylineInfo`),
			Price: selector.Texts(
				`#corePrice_feature_div .a-offscreen`,
				`#corePriceDisplay_desktop_feature_div .a-offscreen`,
				`.a-price .a-offscreen`,
			),
			OriginalPrice: selector.Texts(`.basisPrice .a-offscreen`, `span.a-price.a-text-price .a-offscreen`),
			Description:   selector.Texts(`#feature-bullets`, `#productDescription`),
			Images: selector.Chain{
				selector.Attr(`#landingImage`, "data-old-hires"),
				selector.Attr(`#landingImage`, "src"),
				selector.Attr(`#imgTagWrapperId img`, "src"),
			},
			Ingredients: selector.Texts(`#important-information .content`),
			Stock:       selector.Texts(`#availability`),
			Breadcrumb:  selector.Texts(`#wayfinding-breadcrumbs_feature_div li:last-child a`),
			Rating:      selector.Chain{selector.Attr(`#acrPopover`, "title")},
			ReviewCount: selector.Texts(`#acrCustomerReviewText`),
		},
		Reviews: ReviewRules{
			Container: selector.Texts(`div[data-hook="review"]`),
			Rating: selector.Texts(
				`i[data-hook="review-star-rating"] span`,
				`i[data-hook="cmps-review-star-rating"] span`,
			),
			Author:    selector.Texts(`span.a-profile-name`),
			Title:     selector.Texts(`a[data-hook="review-title"] span:last-child`, `[data-hook="review-title"]`),
			Body:      selector.Texts(`span[data-hook="review-body"]`),
			Date:      selector.Texts(`span[data-hook="review-date"]`),
			Verified:  selector.Texts(`span[data-hook="avp-badge"]`),
			Helpful:   selector.Texts(`span[data-hook="helpful-vote-statement"]`),
			NextPage:  selector.Chain{selector.Attr(`li.a-last a`, "href")},
			PageParam: "pageNumber",
		},
		StockWords: normalize.StockWords{
			InStock:    []string{"in stock", "only", "left in stock", "usually dispatched"},
			OutOfStock: []string{"currently unavailable", "out of stock", "temporarily out of stock"},
		},
	}
}

func tesco() *Retailer {
	return &Retailer{
		ID:           "tesco",
		Name:         "Tesco",
		Hosts:        []string{"tesco.com"},
		BaseURL:      "https://www.tesco.com",
		Currency:     "GBP",
		ListingPath:  regexp.MustCompile(`^/groceries/en-GB/(?:shop|search)`),
		DetailsPath:  regexp.MustCompile(`^/groceries/en-GB/products/\d+(?:\?|$)`),
		ReviewPath:   regexp.MustCompile(`^/groceries/en-GB/products/\d+/reviews`),
		KeyExtractor: segmentKey(-1, regexp.MustCompile(`^\d+$`)),
		ReviewURL:    suffixReview("/reviews"),
		Listing: ListingRules{
			ProductLinks: selector.Chain{
				selector.Attr(`[data-auto="product-tile"] a[href*="/products/"]`, "href"),
				selector.Attr(`a[href*="/groceries/en-GB/products/"]`, "href"),
			},
			NextPage:  selector.Chain{selector.Attr(`a[data-auto="pagination-next"]`, "href")},
			PageParam: "page",
		},
		Details: DetailsRules{
			Title:       selector.Texts(`h1[data-auto="pdp-product-title"]`, `h1.product-details-tile__title`),
			Price:       selector.Texts(`[data-auto="pdp-price-value"]`, `.price-per-sellable-unit .value`),
			Description: selector.Texts(`[data-auto="product-description"]`),
			Ingredients: selector.Texts(`#ingredients`, `.product-info-block--ingredients`),
			Quantity:    selector.Texts(`[data-auto="pack-size"]`),
			Weight:      selector.Texts(`[data-auto="net-contents"]`),
			OutOfStock:  selector.Texts(`[data-auto="product-unavailable"]`),
		},
		Reviews: ReviewRules{
			Container: selector.Texts(`[data-auto="review"]`, `.review`),
			Body:      selector.Texts(`[data-auto="review-text"]`),
			PageParam: "page",
		},
		Categories: []CategoryRule{
			{Pattern: regexp.MustCompile(`/pets/dog`), Category: "dog"},
			{Pattern: regexp.MustCompile(`/pets/cat`), Category: "cat"},
		},
	}
}

func viovet() *Retailer {
	return &Retailer{
		ID:           "viovet",
		Name:         "VioVet",
		Hosts:        []string{"viovet.co.uk"},
		BaseURL:      "https://www.viovet.co.uk",
		Currency:     "GBP",
		ListingPath:  regexp.MustCompile(`^/(?:[A-Za-z0-9_]+/c\d+/?|search)`),
		DetailsPath:  regexp.MustCompile(`^/[A-Za-z0-9_-]+/p\d+/?(?:\?|$)`),
		ReviewPath:   regexp.MustCompile(`^/[A-Za-z0-9_-]+/p\d+/reviews`),
		KeyExtractor: regexKey(regexp.MustCompile(`/p(\d+)(?:/|\?|$)`)),
		ReviewURL:    suffixReview("/reviews"),
		Listing: ListingRules{
			ProductLinks: selector.Chain{
				selector.Attr(`li.product-list-item a.product-link`, "href"),
				selector.Attr(`a[itemprop="url"]`, "href"),
			},
			PageParam: "page",
		},
		Details: DetailsRules{
			Price:         selector.Texts(`.price`, `[itemprop="price"]`),
			OriginalPrice: selector.Texts(`.rrp-price`),
			Stock:         selector.Texts(`.stock_status`, `.stock-status`),
		},
		Reviews: ReviewRules{
			Container: selector.Texts(`.review-item`, `[itemprop="review"]`),
			Body:      selector.Texts(`.review-content`, `[itemprop="reviewBody"]`),
			Verified:  selector.Texts(`.verified-buyer`),
		},
		Categories: []CategoryRule{
			{Pattern: regexp.MustCompile(`(?:^|/)(?:horse|equine)`), Category: "horse"},
		},
	}
}

func jollyes() *Retailer {
	return &Retailer{
		ID:          "jollyes",
		Name:        "Jollyes",
		Hosts:       []string{"jollyes.co.uk"},
		BaseURL:     "https://www.jollyes.co.uk",
		Currency:    "GBP",
		ListingPath: regexp.MustCompile(`^/(?:dog|cat|small-animal|bird|fish|reptile|search)(?:[/?]|$)`),
		DetailsPath: regexp.MustCompile(`^/[a-z0-9-]+\.html(?:\?|$)`),
		ReviewPath:  regexp.MustCompile(`^/[a-z0-9-]+\.html/reviews`),
		ReviewURL:   suffixReview("/reviews"),
		Listing: ListingRules{
			ProductLinks: selector.Chain{
				selector.Attr(`a.product-item-link`, "href"),
			},
			NextPage:  selector.Chain{selector.Attr(`a.action.next`, "href")},
			PageParam: "p",
		},
		Details: DetailsRules{
			Title:       selector.Texts(`h1.page-title span`, `h1.page-title`),
			Price:       selector.Chain{selector.Attr(`[data-price-type="finalPrice"]`, "data-price-amount")},
			ExternalID:  selector.Texts(`.product.attribute.sku .value`),
			Description: selector.Texts(`.product.attribute.description .value`),
			Stock:       selector.Texts(`.stock span`),
		},
	}
}
