package selector

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/retailcrawler/logger"
)

const page = `<html><body>
<h1 class="title">  Adult   Dog Food </h1>
<div class="price"></div>
<span class="price-now">£12.99</span>
<span class="price-was">was £15.00</span>
<ul class="gallery">
  <li><img src="/a.jpg"></li>
  <li><img src=""></li>
  <li><img src="/b.jpg"></li>
</ul>
<meta itemprop="sku" content=" SKU-1 ">
</body></html>`

func doc(t *testing.T) *goquery.Selection {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return d.Selection
}

func TestFirstTriesCandidatesInOrder(t *testing.T) {
	r := NewResolver(nil)
	root := doc(t)

	v, ok := r.First(root, Texts(".missing", "h1.title"), nil)
	assert.True(t, ok)
	assert.Equal(t, "Adult Dog Food", v)

	// The empty .price div is skipped by the predicate
	v, ok = r.First(root, Texts(".price", ".price-now"), PriceLike)
	assert.True(t, ok)
	assert.Equal(t, "£12.99", v)

	v, ok = r.First(root, Chain{Attr("meta[itemprop=sku]", "content")}, nil)
	assert.True(t, ok)
	assert.Equal(t, "SKU-1", v)

	_, ok = r.First(root, Texts(".nothing", ".else"), nil)
	assert.False(t, ok)
}

func TestInvalidSelectorIsAMiss(t *testing.T) {
	var buf bytes.Buffer
	r := NewResolver(logger.New(&buf, zerolog.DebugLevel))
	root := doc(t)

	v, ok := r.First(root, Texts("div[[[", "", "h1.title"), nil)
	assert.True(t, ok, "a broken candidate must not stop the chain")
	assert.Equal(t, "Adult Dog Food", v)

	out := buf.String()
	assert.Contains(t, out, "Selector miss")
	assert.Contains(t, out, "div[[[")
	assert.Contains(t, out, `"level":"debug"`)
}

func TestNodesAndAll(t *testing.T) {
	r := NewResolver(nil)
	root := doc(t)

	nodes := r.Nodes(root, Texts("table tr", "ul.gallery li"))
	assert.Equal(t, 3, nodes.Length())

	empty := r.Nodes(root, Texts("table tr"))
	require.NotNil(t, empty)
	assert.Equal(t, 0, empty.Length())
	assert.False(t, r.Exists(root, Texts("table tr")))

	images := r.All(root, Chain{Attr(".carousel img", "src"), Attr("ul.gallery img", "src")}, nil)
	assert.Equal(t, []string{"/a.jpg", "/b.jpg"}, images, "order is preserved and blanks dropped")
}

func TestPredicates(t *testing.T) {
	assert.True(t, NonEmpty(" x "))
	assert.False(t, NonEmpty("   "))
	assert.True(t, Numeric("4.5 stars"))
	assert.False(t, Numeric("five"))
	assert.True(t, PriceLike("£3"))
	assert.False(t, PriceLike("call us"))
	assert.True(t, And(NonEmpty, Numeric)("12"))
	assert.False(t, And(NonEmpty, Numeric)("abc"))
}

func TestCompiledSelectorsAreCached(t *testing.T) {
	r := NewResolver(nil)
	root := doc(t)
	r.First(root, Texts("h1.title"), nil)
	r.First(root, Texts("h1.title", "div[["), nil)

	r.mu.RLock()
	defer r.mu.RUnlock()
	assert.Len(t, r.compiled, 1, "each expression is compiled once")
}
