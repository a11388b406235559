package crawler

import (
	"iter"
	"regexp"
	"sync"
	"time"
)

// mockObserver records extraction outcomes for assertions
type mockObserver struct {
	mu      sync.Mutex
	blocked []string
	records map[string]int
}

func newMockObserver() *mockObserver {
	return &mockObserver{records: make(map[string]int)}
}

func (m *mockObserver) ObserveBlocked(retailer, kind, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked = append(m.blocked, retailer+"/"+kind+"/"+reason)
}

func (m *mockObserver) ObserveRecords(retailer, kind string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[retailer+"/"+kind] += n
}

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

// testRetailer is a small shop with one shape per kind
func testRetailer() *Retailer {
	return &Retailer{
		ID:          "testshop",
		Name:        "Test Shop",
		Hosts:       []string{"shop.example"},
		BaseURL:     "https://shop.example",
		Currency:    "GBP",
		ListingPath: regexp.MustCompile(`^/(?:c/|search)`),
		DetailsPath: regexp.MustCompile(`^/p/[a-z0-9-]+/(\d+)`),
		ReviewPath:  regexp.MustCompile(`^/p/[a-z0-9-]+/\d+/reviews`),
		KeyExtractor: regexKey(
			regexp.MustCompile(`^/p/[a-z0-9-]+/(\d+)`),
		),
		Listing: ListingRules{
			PageParam: "page",
		},
	}
}

func collect(seq iter.Seq[Record]) []Record {
	var out []Record
	for rec := range seq {
		out = append(out, rec)
	}
	return out
}

func take(seq iter.Seq[Record], n int) []Record {
	var out []Record
	for rec := range seq {
		out = append(out, rec)
		if len(out) == n {
			break
		}
	}
	return out
}
