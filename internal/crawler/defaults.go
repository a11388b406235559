package crawler

import (
	"regexp"

	"sjsage522/retailcrawler/internal/selector"
)

// Shared fallbacks applied to any chain a retailer leaves empty
var (
	DefaultNextPage = selector.Chain{
		selector.Attr(`link[rel="next"]`, "href"),
		selector.Attr(`a[rel="next"]`, "href"),
		selector.Attr(`a[aria-label="Next page"]`, "href"),
		selector.Attr(`a[aria-label="Next"]`, "href"),
		selector.Attr(`li.pagination-next a`, "href"),
		selector.Attr(`a.next`, "href"),
	}

	DefaultProductLinks = selector.Chain{
		selector.Attr(`[itemtype$="/Product"] a[itemprop="url"]`, "href"),
		selector.Attr(`a.product-link`, "href"),
		selector.Attr(`a[href]`, "href"),
	}

	DefaultDetails = DetailsRules{
		ExternalID: selector.Chain{
			selector.Attr(`[itemprop="sku"]`, "content"),
			selector.Text(`[itemprop="sku"]`),
			selector.Attr(`[data-product-id]`, "data-product-id"),
		},
		Title: selector.Chain{
			selector.Text(`h1[itemprop="name"]`),
			selector.Text(`h1`),
			selector.Attr(`meta[property="og:title"]`, "content"),
		},
		Brand: selector.Chain{
			selector.Attr(`[itemprop="brand"] [itemprop="name"]`, "content"),
			selector.Text(`[itemprop="brand"]`),
			selector.Attr(`meta[property="product:brand"]`, "content"),
		},
		Price: selector.Chain{
			selector.Attr(`[itemprop="price"]`, "content"),
			selector.Text(`[itemprop="price"]`),
			selector.Attr(`meta[property="product:price:amount"]`, "content"),
			selector.Text(`.price`),
		},
		OriginalPrice: selector.Chain{
			selector.Text(`.was-price`),
			selector.Text(`.price-was`),
			selector.Text(`s.price`),
		},
		Description: selector.Chain{
			selector.Text(`[itemprop="description"]`),
			selector.Attr(`meta[name="description"]`, "content"),
			selector.Attr(`meta[property="og:description"]`, "content"),
		},
		Images: selector.Chain{
			selector.Attr(`[itemprop="image"]`, "src"),
			selector.Attr(`[itemprop="image"]`, "content"),
			selector.Attr(`meta[property="og:image"]`, "content"),
		},
		Ingredients: selector.Chain{
			selector.Text(`#ingredients`),
			selector.Text(`.ingredients`),
		},
		Barcode: selector.Chain{
			selector.Attr(`[itemprop="gtin13"]`, "content"),
			selector.Text(`[itemprop="gtin13"]`),
			selector.Attr(`[itemprop="gtin"]`, "content"),
		},
		Stock: selector.Chain{
			selector.Attr(`[itemprop="availability"]`, "href"),
			selector.Attr(`[itemprop="availability"]`, "content"),
			selector.Text(`.stock-status`),
		},
		Breadcrumb: selector.Chain{
			selector.Text(`nav.breadcrumb li:last-child`),
			selector.Text(`[itemtype$="/BreadcrumbList"] [itemprop="itemListElement"]:last-child [itemprop="name"]`),
		},
		Rating: selector.Chain{
			selector.Attr(`[itemprop="ratingValue"]`, "content"),
			selector.Text(`[itemprop="ratingValue"]`),
		},
		ReviewCount: selector.Chain{
			selector.Attr(`[itemprop="reviewCount"]`, "content"),
			selector.Text(`[itemprop="reviewCount"]`),
		},
		Remove: []string{"script", "style", "noscript"},
	}

	DefaultReviews = ReviewRules{
		Container: selector.Texts(`[itemprop="review"]`, `.review`),
		Rating: selector.Chain{
			selector.Attr(`[itemprop="ratingValue"]`, "content"),
			selector.Text(`[itemprop="ratingValue"]`),
			selector.Attr(`[data-rating]`, "data-rating"),
			selector.Text(`.rating`),
		},
		Author: selector.Chain{
			selector.Attr(`[itemprop="author"] [itemprop="name"]`, "content"),
			selector.Text(`[itemprop="author"]`),
			selector.Text(`.review-author`),
		},
		Title: selector.Texts(`[itemprop="name"]`, `.review-title`),
		Body:  selector.Texts(`[itemprop="reviewBody"]`, `.review-body`, `.review-text`),
		Date: selector.Chain{
			selector.Attr(`[itemprop="datePublished"]`, "content"),
			selector.Attr(`time`, "datetime"),
			selector.Text(`.review-date`),
		},
		Verified: selector.Texts(`.verified`, `.verified-purchase`),
		Helpful:  selector.Texts(`.helpful-count`, `.review-helpful`),
	}

	// DefaultCategories is tried after a retailer's own table
	DefaultCategories = []CategoryRule{
		{Pattern: regexp.MustCompile(`\b(cat|cats|kitten|kittens|feline)\b`), Category: "cat"},
		{Pattern: regexp.MustCompile(`\b(dog|dogs|puppy|puppies|canine)\b`), Category: "dog"},
		{Pattern: regexp.MustCompile(`\b(fish|aquarium|aquatic|pond)\b`), Category: "fish"},
		{Pattern: regexp.MustCompile(`\b(bird|birds|parrot|budgie|wild-bird)\b`), Category: "bird"},
		{Pattern: regexp.MustCompile(`\b(rabbit|guinea-pig|hamster|small-animal|small-pet)s?\b`), Category: "small-animal"},
		{Pattern: regexp.MustCompile(`\b(reptile|snake|lizard|tortoise)s?\b`), Category: "reptile"},
	}
)

func orChain(c, fallback selector.Chain) selector.Chain {
	if len(c) > 0 {
		return c
	}
	return fallback
}

// withDefaults fills empty chains from the shared defaults
func (d DetailsRules) withDefaults() DetailsRules {
	def := DefaultDetails
	d.ExternalID = orChain(d.ExternalID, def.ExternalID)
	d.Title = orChain(d.Title, def.Title)
	d.Brand = orChain(d.Brand, def.Brand)
	d.Price = orChain(d.Price, def.Price)
	d.OriginalPrice = orChain(d.OriginalPrice, def.OriginalPrice)
	d.Description = orChain(d.Description, def.Description)
	d.Images = orChain(d.Images, def.Images)
	d.Ingredients = orChain(d.Ingredients, def.Ingredients)
	d.Barcode = orChain(d.Barcode, def.Barcode)
	d.Weight = orChain(d.Weight, d.Title)
	d.Quantity = orChain(d.Quantity, d.Title)
	d.Stock = orChain(d.Stock, def.Stock)
	d.Breadcrumb = orChain(d.Breadcrumb, def.Breadcrumb)
	d.Rating = orChain(d.Rating, def.Rating)
	d.ReviewCount = orChain(d.ReviewCount, def.ReviewCount)
	if len(d.Remove) == 0 {
		d.Remove = def.Remove
	}
	return d
}

func (r ReviewRules) withDefaults() ReviewRules {
	def := DefaultReviews
	r.Container = orChain(r.Container, def.Container)
	r.Rating = orChain(r.Rating, def.Rating)
	r.Author = orChain(r.Author, def.Author)
	r.Title = orChain(r.Title, def.Title)
	r.Body = orChain(r.Body, def.Body)
	r.Date = orChain(r.Date, def.Date)
	r.Verified = orChain(r.Verified, def.Verified)
	r.Helpful = orChain(r.Helpful, def.Helpful)
	r.NextPage = orChain(r.NextPage, DefaultNextPage)
	return r
}

func (l ListingRules) withDefaults() ListingRules {
	l.ProductLinks = orChain(l.ProductLinks, DefaultProductLinks)
	l.NextPage = orChain(l.NextPage, DefaultNextPage)
	return l
}
