package helpers

import (
	"net/url"
	"strings"
)

var trackingParams = map[string]bool{
	"gclid":   true,
	"fbclid":  true,
	"msclkid": true,
	"mc_cid":  true,
	"mc_eid":  true,
	"_ga":     true,
	"ref":     true,
	"ref_":    true,
	"cmpid":   true,
	"icid":    true,
	"srsltid": true,
}

// IsTrackingParam reports whether a query parameter only carries attribution
func IsTrackingParam(name string) bool {
	name = strings.ToLower(name)
	return strings.HasPrefix(name, "utm_") || trackingParams[name]
}

// ResolveURL makes ref absolute against base. Empty, javascript: and
// fragment-only references resolve to "".
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}

// CanonicalURL lower-cases scheme and host, drops the fragment and tracking
// parameters, and sorts the remaining query. Unparseable input is returned
// trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	for name := range q {
		if IsTrackingParam(name) {
			q.Del(name)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// HostOf returns the lower-cased host of raw without a "www." prefix
func HostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
