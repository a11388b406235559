package structured

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseHTML(t *testing.T, html string) []Object {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return Parse(doc.Selection, nil)
}

func TestParseFlatProduct(t *testing.T) {
	objs := parseHTML(t, `<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"Adult Dog Food 2kg",
 "brand":{"@type":"Brand","name":"Acme"},"sku":"123","gtin13":"5012345678900",
 "image":["https://cdn.example.com/1.jpg",{"@type":"ImageObject","url":"https://cdn.example.com/2.jpg"}],
 "offers":{"@type":"Offer","price":"12.99","priceCurrency":"gbp","availability":"https://schema.org/InStock"},
 "aggregateRating":{"@type":"AggregateRating","ratingValue":"4.6","reviewCount":"87"}}
</script></head><body></body></html>`)

	products := Products(objs)
	require.Len(t, products, 1)
	p := products[0]
	assert.True(t, p.Usable())
	assert.Equal(t, "Adult Dog Food 2kg", p.Name)
	assert.Equal(t, "Acme", p.Brand)
	assert.Equal(t, "5012345678900", p.Barcode)
	assert.Equal(t, int64(1299), p.PriceMinorUnits)
	assert.Equal(t, "GBP", p.Currency)
	assert.True(t, p.StockKnown)
	assert.True(t, p.InStock)
	assert.Equal(t, 2000, p.WeightGrams, "weight falls back to the name")
	assert.Equal(t, []string{"https://cdn.example.com/1.jpg", "https://cdn.example.com/2.jpg"}, p.Images)
	assert.InDelta(t, 4.6, p.Rating, 0.001)
	assert.Equal(t, 87, p.ReviewCount)
}

func TestParseGraphAndArrays(t *testing.T) {
	objs := parseHTML(t, `<html><head>
<script type="application/ld+json">[{"@type":"BreadcrumbList"},{"@type":"WebSite","name":"Shop"}]</script>
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"Organization","name":"Shop"},
  {"@type":["Product","IndividualProduct"],"name":"Cat Litter","weight":{"@type":"QuantitativeValue","value":10,"unitCode":"LTR"},
   "offers":[{"@type":"Offer","priceCurrency":"GBP"},{"@type":"AggregateOffer","lowPrice":5.5,"highPrice":7,"priceCurrency":"GBP","availability":"OutOfStock"}],
   "review":[
     {"@type":"Review","author":{"@type":"Person","name":"Sam"},"reviewBody":"Works well","reviewRating":{"ratingValue":8,"bestRating":10},"datePublished":"2024-03-03"},
     {"@type":"Review","author":"Kim","reviewBody":"","reviewRating":{"ratingValue":5}}
   ]}
]}
</script></head></html>`)

	products := Products(objs)
	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "Cat Litter", p.Name)
	assert.Equal(t, int64(550), p.PriceMinorUnits)
	assert.Equal(t, int64(700), p.OriginalPriceMinorUnits)
	assert.True(t, p.StockKnown)
	assert.False(t, p.InStock)
	assert.Equal(t, 10000, p.WeightGrams)

	reviews := Reviews(objs)
	require.Len(t, reviews, 2)
	assert.True(t, reviews[0].Usable())
	assert.Equal(t, "Sam", reviews[0].Author)
	assert.InDelta(t, 4.0, reviews[0].Rating, 0.001)
	require.NotNil(t, reviews[0].Date)
	assert.True(t, reviews[0].Date.Equal(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)))
	assert.False(t, reviews[1].Usable(), "a review without a body is not usable")
}

func TestMalformedBlockIsSkipped(t *testing.T) {
	objs := parseHTML(t, `<html><head>
<script type="application/ld+json">{"@type":"Product", "name": </script>
<script type="application/ld+json"><!-- {"@type":"Product","name":"Good","offers":{"price":1}} --></script>
<script type="application/json">{"@type":"Product","name":"Ignored"}</script>
</head></html>`)

	products := Products(objs)
	require.Len(t, products, 1)
	assert.Equal(t, "Good", products[0].Name)
	assert.Equal(t, int64(100), products[0].PriceMinorUnits)
}

func TestProductWithoutPriceIsNotUsable(t *testing.T) {
	objs := parseHTML(t, `<script type="application/ld+json">{"@type":"Product","name":"No price","offers":{"@type":"Offer","price":"POA"}}</script>`)
	products := Products(objs)
	require.Len(t, products, 1)
	assert.False(t, products[0].Usable())
}

func TestObjectAccessors(t *testing.T) {
	o := Object{
		"@type":  "http://schema.org/Offer",
		"n":      float64(3),
		"s":      " 2,5 ",
		"nested": map[string]any{"@value": "7"},
		"list":   []any{"", "second"},
	}
	assert.True(t, o.IsType("offer"))
	f, ok := o.Float("n")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
	f, ok = o.Float("s")
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)
	f, ok = o.Float("nested")
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)
	assert.Equal(t, "second", o.String("list"))
	assert.Equal(t, "3", o.String("n"))
	_, ok = o.Object("missing")
	assert.False(t, ok)
}

func TestHugePriceIsNotUsable(t *testing.T) {
	objs := parseHTML(t, `<script type="application/ld+json">{"@type":"Product","name":"X","offers":{"price":1e30}}</script>`)
	products := Products(objs)
	require.Len(t, products, 1)
	assert.False(t, products[0].Usable())
	assert.Zero(t, products[0].PriceMinorUnits)
}
