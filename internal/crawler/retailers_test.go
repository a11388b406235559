package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetailers_URLPartition(t *testing.T) {
	cases := []struct {
		retailer string
		url      string
		kind     Kind
		key      string
	}{
		{"petsathome", "https://www.petsathome.com/product/listing/dog/dog-food/dry-dog-food", KindListing, ""},
		{"petsathome", "https://www.petsathome.com/product/wainwrights-adult-dry-dog-food/7135562P", KindDetails, "7135562P"},
		{"petsathome", "https://www.petsathome.com/product/wainwrights-adult-dry-dog-food/7135562P/reviews", KindReview, "7135562P"},
		{"zooplus", "https://www.zooplus.co.uk/shop/dogs/dry_dog_food", KindListing, ""},
		{"zooplus", "https://www.zooplus.co.uk/shop/dogs/dry_dog_food/royal_canin/size/123456", KindDetails, "123456"},
		{"amazon_uk", "https://www.amazon.co.uk/s?k=dog+food", KindListing, ""},
		{"amazon_uk", "https://www.amazon.co.uk/Harringtons-Complete-Dry-Dog-Food/dp/B00FZPLQ4G/ref=sr_1_1", KindDetails, "B00FZPLQ4G"},
		{"amazon_uk", "https://www.amazon.co.uk/product-reviews/B00FZPLQ4G?pageNumber=2", KindReview, "B00FZPLQ4G"},
		{"tesco", "https://www.tesco.com/groceries/en-GB/shop/pets/dog-food-and-treats/all", KindListing, ""},
		{"tesco", "https://www.tesco.com/groceries/en-GB/products/254656543", KindDetails, "254656543"},
		{"viovet", "https://www.viovet.co.uk/Dog_Food/c299/", KindListing, ""},
		{"viovet", "https://www.viovet.co.uk/Royal_Canin_Mini_Adult/p4612/", KindDetails, "4612"},
		{"jollyes", "https://www.jollyes.co.uk/dog/food", KindListing, ""},
		{"jollyes", "https://www.jollyes.co.uk/pro-plan-small-adult-chicken-3kg.html", KindDetails, ""},
	}

	reg := NewRegistry(BuildExtractors(Retailers())...)
	for _, c := range cases {
		matched := 0
		for _, kind := range Kinds {
			e, ok := reg.For(kind, c.url)
			if !ok {
				continue
			}
			matched++
			assert.Equal(t, c.kind, e.Kind(), c.url)
			assert.Equal(t, c.retailer, e.RetailerID(), c.url)
		}
		assert.Equal(t, 1, matched, "%s should match exactly one kind", c.url)

		r, ok := RetailerByID(c.retailer)
		require.True(t, ok)
		assert.Equal(t, c.key, r.NaturalKey(c.url), c.url)
	}
}

func TestRetailers_AmazonListing(t *testing.T) {
	r, _ := RetailerByID("amazon_uk")
	e := NewListingExtractor(r)
	html := `<html><head><title>Amazon.co.uk : dog food</title></head><body>
<div data-component-type="s-search-result"><h2><a href="/Kibble/dp/B000000001/ref=sr_1_1?keywords=dog+food">Kibble</a></h2></div>
<div data-component-type="s-search-result"><h2><a href="/gp/slredirect/picassoRedirect.html">Sponsored</a></h2></div>
<div data-component-type="s-search-result"><h2><a href="/Kibble-Value/dp/B000000001">Kibble value</a></h2></div>
<a class="s-pagination-next" href="/s?k=dog+food&amp;page=2">Next</a>
</body></html>`

	recs := collect(e.Extract(html, "https://www.amazon.co.uk/s?k=dog+food"))
	require.Len(t, recs, 2)

	l := recs[0].(ListingURLRecord)
	assert.Equal(t, "B000000001", l.NaturalKey)
	assert.Equal(t, "dog", l.Category, "category comes from the search terms")

	token := recs[1].(PaginationToken)
	assert.Equal(t, 2, token.PageNumber)
}

func TestRetailers_AmazonReviews(t *testing.T) {
	r, _ := RetailerByID("amazon_uk")
	e := NewReviewExtractor(r)
	html := `<html><head><title>Amazon.co.uk:Customer reviews</title></head><body>
<div data-hook="review" id="R2ABC">
  <span class="a-profile-name">Jo</span>
  <i data-hook="review-star-rating"><span class="a-icon-alt">5.0 out of 5 stars</span></i>
  <a data-hook="review-title"><span>5.0 out of 5 stars</span><span>Dog loves it</span></a>
  <span data-hook="review-date">Reviewed in the United Kingdom on 3 March 2024</span>
  <span data-hook="avp-badge">Verified Purchase</span>
  <span data-hook="review-body"><span>My dog loves it.</span></span>
  <span data-hook="helpful-vote-statement">One person found this helpful</span>
</div>
<ul class="a-pagination"><li class="a-last"><a href="/product-reviews/B00FZPLQ4G?pageNumber=2">Next page</a></li></ul>
</body></html>`

	recs := collect(e.Extract(html, "https://www.amazon.co.uk/product-reviews/B00FZPLQ4G"))
	require.Len(t, recs, 2)

	rv := recs[0].(ReviewRecord)
	assert.Equal(t, "R2ABC", rv.ExternalID)
	assert.Equal(t, 5.0, rv.Rating)
	assert.Equal(t, "Jo", rv.Author)
	assert.Equal(t, "Dog loves it", rv.Title)
	assert.Equal(t, "My dog loves it.", rv.Body)
	assert.True(t, rv.VerifiedPurchase)
	assert.Equal(t, 1, rv.HelpfulCount)
	require.NotNil(t, rv.ReviewDate)
	assert.Equal(t, "2024-03-03", rv.ReviewDate.Format("2006-01-02"))

	token := recs[1].(PaginationToken)
	assert.Equal(t, 2, token.PageNumber)
}

func TestRetailers_ReviewURLFor(t *testing.T) {
	cases := []struct {
		retailer string
		product  string
		want     string
	}{
		{"petsathome", "https://www.petsathome.com/product/wainwrights-adult-dry-dog-food/7135562P", "https://www.petsathome.com/product/wainwrights-adult-dry-dog-food/7135562P/reviews"},
		{"zooplus", "https://www.zooplus.co.uk/shop/dogs/dry_dog_food/royal_canin/size/123456", "https://www.zooplus.co.uk/shop/dogs/dry_dog_food/royal_canin/size/123456/reviews"},
		{"amazon_uk", "https://www.amazon.co.uk/Harringtons-Complete-Dry-Dog-Food/dp/B00FZPLQ4G/ref=sr_1_1", "https://www.amazon.co.uk/product-reviews/B00FZPLQ4G"},
		{"tesco", "https://www.tesco.com/groceries/en-GB/products/254656543", "https://www.tesco.com/groceries/en-GB/products/254656543/reviews"},
		{"viovet", "https://www.viovet.co.uk/Royal_Canin_Mini_Adult/p4612/", "https://www.viovet.co.uk/Royal_Canin_Mini_Adult/p4612/reviews"},
		{"jollyes", "https://www.jollyes.co.uk/pro-plan-small-adult-chicken-3kg.html", "https://www.jollyes.co.uk/pro-plan-small-adult-chicken-3kg.html/reviews"},
	}
	for _, c := range cases {
		r, ok := RetailerByID(c.retailer)
		require.True(t, ok)
		got, ok := r.ReviewURLFor(c.product)
		require.True(t, ok, c.product)
		assert.Equal(t, c.want, got)
	}

	r, _ := RetailerByID("amazon_uk")
	_, ok := r.ReviewURLFor("https://www.amazon.co.uk/s?k=dog+food")
	assert.False(t, ok, "a listing has no review page")

	_, ok = testRetailer().ReviewURLFor("https://shop.example/p/kibble/123")
	assert.False(t, ok, "retailers without a mapping have none")
}

func TestDetectBlocked(t *testing.T) {
	cases := []struct {
		html   string
		reason string
	}{
		{`<html><head><title>Robot Check</title></head></html>`, "title:robot"},
		{`<title>Sorry! Something went wrong</title>`, "title:sorry"},
		{`<html><body>Please solve this CAPTCHA</body></html>`, "body:captcha"},
		{`<html><body><h1>Access Denied</h1></body></html>`, "body:access denied"},
		{`<p>Your request was blocked.</p>`, "body:blocked"},
	}
	for _, c := range cases {
		reason, blocked := DetectBlocked(c.html)
		assert.True(t, blocked, c.html)
		assert.Equal(t, c.reason, reason, c.html)
	}

	_, blocked := DetectBlocked(`<html><head><title>Dog Food</title></head><body><h1>Kibble</h1></body></html>`)
	assert.False(t, blocked)

	_, blocked = DetectBlocked(`<html><body><p>We are sorry to see you go</p></body></html>`)
	assert.False(t, blocked, "sorry only counts inside the title")
}
