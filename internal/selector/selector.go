// Package selector resolves ordered CSS selector chains against a document.
//
// A chain is a list of candidate queries tried in configured order. Every
// candidate is isolated: a selector that fails to compile, panics during
// matching, or matches nothing is logged at debug level as a miss and the
// next candidate is tried.
package selector

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"sjsage522/retailcrawler/internal/normalize"
	"sjsage522/retailcrawler/logger"
)

// Query reads Attr from elements matching Expr, or their text when Attr is
// empty.
type Query struct {
	Expr string `yaml:"expr"`
	Attr string `yaml:"attr,omitempty"`
}

// Chain is an ordered list of candidate queries
type Chain []Query

// Text builds a query reading element text
func Text(expr string) Query {
	return Query{Expr: expr}
}

// Attr builds a query reading an attribute
func Attr(expr, attr string) Query {
	return Query{Expr: expr, Attr: attr}
}

// Texts builds a chain of text queries
func Texts(exprs ...string) Chain {
	c := make(Chain, len(exprs))
	for i, e := range exprs {
		c[i] = Text(e)
	}
	return c
}

// Predicate accepts or rejects a resolved value
type Predicate func(string) bool

// NonEmpty accepts any non-blank value
func NonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

// Numeric accepts values containing at least one digit
func Numeric(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// PriceLike accepts values ParsePrice can read
func PriceLike(s string) bool {
	_, ok := normalize.ParsePrice(s)
	return ok
}

// And accepts values every predicate accepts
func And(preds ...Predicate) Predicate {
	return func(s string) bool {
		for _, p := range preds {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

// Resolver evaluates chains, caching compiled selectors. It is safe for
// concurrent use.
type Resolver struct {
	mu       sync.RWMutex
	compiled map[string]compiled
	log      *logger.Logger
}

type compiled struct {
	sel cascadia.Selector
	err error
}

// NewResolver creates a resolver logging misses to log
func NewResolver(log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		compiled: make(map[string]compiled),
		log:      log,
	}
}

func (r *Resolver) compile(expr string) (cascadia.Selector, error) {
	r.mu.RLock()
	c, ok := r.compiled[expr]
	r.mu.RUnlock()
	if ok {
		return c.sel, c.err
	}

	sel, err := cascadia.Compile(expr)
	r.mu.Lock()
	r.compiled[expr] = compiled{sel: sel, err: err}
	r.mu.Unlock()
	return sel, err
}

// find evaluates one candidate. Compile errors and panics become errors.
func (r *Resolver) find(root *goquery.Selection, expr string) (sel *goquery.Selection, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			sel, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()

	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("empty selector")
	}
	m, err := r.compile(expr)
	if err != nil {
		return nil, err
	}
	return root.FindMatcher(m), nil
}

func (r *Resolver) miss(q Query, reason string) {
	r.log.Debug().
		Str("selector", q.Expr).
		Str("attr", q.Attr).
		Str("reason", reason).
		Msg("Selector miss")
}

// Value reads q's attribute or collapsed text from the first node of s
func Value(s *goquery.Selection, q Query) string {
	if q.Attr != "" {
		v, _ := s.Attr(q.Attr)
		return strings.TrimSpace(v)
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

// First returns the first value accepted by accept, trying each candidate
// in order and each matched node in document order. A nil accept means
// NonEmpty.
func (r *Resolver) First(root *goquery.Selection, chain Chain, accept Predicate) (string, bool) {
	if accept == nil {
		accept = NonEmpty
	}
	for _, q := range chain {
		sel, err := r.find(root, q.Expr)
		if err != nil {
			r.miss(q, err.Error())
			continue
		}
		if sel.Length() == 0 {
			r.miss(q, "no match")
			continue
		}

		var (
			found string
			ok    bool
		)
		sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v := Value(s, q); accept(v) {
				found, ok = v, true
				return false
			}
			return true
		})
		if ok {
			return found, true
		}
		r.miss(q, "no accepted value")
	}
	return "", false
}

// Nodes returns the selection of the first candidate matching anything. The
// result is empty, never nil, when every candidate misses.
func (r *Resolver) Nodes(root *goquery.Selection, chain Chain) *goquery.Selection {
	for _, q := range chain {
		sel, err := r.find(root, q.Expr)
		if err != nil {
			r.miss(q, err.Error())
			continue
		}
		if sel.Length() > 0 {
			return sel
		}
		r.miss(q, "no match")
	}
	return root.FilterFunction(func(int, *goquery.Selection) bool { return false })
}

// All returns every accepted value from the first candidate that produced
// at least one, in document order.
func (r *Resolver) All(root *goquery.Selection, chain Chain, accept Predicate) []string {
	if accept == nil {
		accept = NonEmpty
	}
	for _, q := range chain {
		sel, err := r.find(root, q.Expr)
		if err != nil {
			r.miss(q, err.Error())
			continue
		}

		var values []string
		sel.Each(func(_ int, s *goquery.Selection) {
			if v := Value(s, q); accept(v) {
				values = append(values, v)
			}
		})
		if len(values) > 0 {
			return values
		}
		r.miss(q, "no match")
	}
	return nil
}

// Exists reports whether any candidate matches a node
func (r *Resolver) Exists(root *goquery.Selection, chain Chain) bool {
	return r.Nodes(root, chain).Length() > 0
}
