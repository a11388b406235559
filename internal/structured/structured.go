// Package structured reads schema.org JSON-LD blocks embedded in a page.
package structured

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/retailcrawler/logger"
)

// Object is one decoded JSON-LD node
type Object map[string]any

// Parse decodes every application/ld+json script in doc and returns all
// typed nodes, including those nested in @graph, arrays and properties. A
// malformed block is logged at debug level and skipped.
func Parse(doc *goquery.Selection, log *logger.Logger) []Object {
	if log == nil {
		log = logger.Nop()
	}

	var out []Object
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		// some sites wrap the payload in HTML comments or CDATA
		raw = strings.TrimSuffix(strings.TrimPrefix(raw, "<!--"), "-->")
		raw = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(raw), "//<![CDATA["), "//]]>")

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			log.Debug().Int("block", i).Err(err).Msg("Skipping malformed JSON-LD block")
			return
		}
		out = collect(v, out)
	})
	return out
}

func collect(v any, out []Object) []Object {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = collect(item, out)
		}
	case map[string]any:
		o := Object(t)
		if len(o.Types()) > 0 {
			out = append(out, o)
		}
		for _, k := range slices.Sorted(maps.Keys(t)) {
			if k == "@context" {
				continue
			}
			out = collect(t[k], out)
		}
	}
	return out
}

// OfType returns the nodes whose @type includes typ, in discovery order
func OfType(objs []Object, typ string) []Object {
	var out []Object
	for _, o := range objs {
		if o.IsType(typ) {
			out = append(out, o)
		}
	}
	return out
}

// Types returns the node's @type values
func (o Object) Types() []string {
	switch t := o["@type"].(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IsType reports whether @type includes typ, ignoring case and any
// schema.org prefix.
func (o Object) IsType(typ string) bool {
	for _, t := range o.Types() {
		t = strings.TrimPrefix(strings.TrimPrefix(t, "http://schema.org/"), "https://schema.org/")
		if strings.EqualFold(t, typ) {
			return true
		}
	}
	return false
}

// String returns key as text. Numbers are formatted, objects yield their
// name, @value or @id, and arrays yield their first usable element.
func (o Object) String(key string) string {
	return stringOf(o[key])
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, k := range []string{"name", "@value", "url", "@id"} {
			if s := stringOf(t[k]); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range t {
			if s := stringOf(item); s != "" {
				return s
			}
		}
	}
	return ""
}

// Float returns key as a number, accepting numeric strings
func (o Object) Float(key string) (float64, bool) {
	switch t := o[key].(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(t, ",", ".")), 64)
		return f, err == nil
	case map[string]any:
		return Object(t).Float("@value")
	}
	return 0, false
}

// Object returns key as a node, taking the first element of an array
func (o Object) Object(key string) (Object, bool) {
	objs := o.Objects(key)
	if len(objs) == 0 {
		return nil, false
	}
	return objs[0], true
}

// Objects returns key as a list of nodes
func (o Object) Objects(key string) []Object {
	switch t := o[key].(type) {
	case map[string]any:
		return []Object{t}
	case []any:
		var out []Object
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// Strings returns key as a list of text values. ImageObject-style entries
// yield their url or contentUrl.
func (o Object) Strings(key string) []string {
	var out []string
	add := func(v any) {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			m := Object(t)
			for _, k := range []string{"contentUrl", "url", "@id"} {
				if s := m.String(k); s != "" {
					out = append(out, s)
					return
				}
			}
		}
	}
	switch t := o[key].(type) {
	case []any:
		for _, item := range t {
			add(item)
		}
	default:
		add(t)
	}
	return out
}
