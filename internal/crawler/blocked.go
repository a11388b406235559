package crawler

import (
	"regexp"
	"strings"
)

var (
	blockedMarkers      = []string{"captcha", "robot check", "access denied", "blocked"}
	blockedTitleMarkers = []string{"sorry", "robot", "blocked", "captcha", "access denied"}

	titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// DetectBlocked reports whether html is an anti-bot or access-denied page
// rather than real content. The reason names the marker that matched.
func DetectBlocked(html string) (reason string, blocked bool) {
	lower := strings.ToLower(html)

	if m := titlePattern.FindStringSubmatch(lower); m != nil {
		for _, marker := range blockedTitleMarkers {
			if strings.Contains(m[1], marker) {
				return "title:" + marker, true
			}
		}
	}

	for _, marker := range blockedMarkers {
		if strings.Contains(lower, marker) {
			return "body:" + marker, true
		}
	}
	return "", false
}
