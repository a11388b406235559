package proxy

import (
	"context"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"sjsage522/retailcrawler/logger"
	"sjsage522/retailcrawler/pkg/errors"
)

// List formats accepted by ParseList
const (
	FormatSimple = "simple"
	FormatSpys   = "spys"
)

// Entry is one static proxy
type Entry struct {
	Host    string
	Port    int
	Country string
}

func (e Entry) addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Pool rotates over a list of static proxies
type Pool struct {
	mu      sync.Mutex
	name    string
	scheme  string
	entries []Entry
	next    int
}

// NewPool creates a pool over entries. The scheme defaults to socks5.
func NewPool(name, scheme string, entries []Entry) *Pool {
	if scheme == "" {
		scheme = "socks5"
	}
	return &Pool{
		name:    name,
		scheme:  scheme,
		entries: append([]Entry(nil), entries...),
	}
}

// LoadPoolFile reads a proxy list file in the given format
func LoadPoolFile(name, scheme, path, format string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration("read proxy list "+path, err)
	}
	entries := ParseList(string(data), format)
	if len(entries) == 0 {
		return nil, errors.NewConfiguration("proxy list "+path+" has no usable entries", nil)
	}
	return NewPool(name, scheme, entries), nil
}

// Name returns the pool name
func (p *Pool) Name() string {
	return p.name
}

// Current returns the entry under the cursor
func (p *Pool) Current() (Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) == 0 {
		return Config{}, errors.NewProxy(p.name, "pool is empty", nil)
	}
	e := p.entries[p.next]
	return Config{
		URL:      &url.URL{Scheme: p.scheme, Host: e.addr()},
		Provider: p.name,
	}, nil
}

// Rotate advances to the next entry
func (p *Pool) Rotate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) > 0 {
		p.next = (p.next + 1) % len(p.entries)
	}
}

// Available reports whether any entry is left
func (p *Pool) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries) > 0
}

// Len returns the number of entries still in rotation
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// MarkFailed removes the current entry from rotation
func (p *Pool) MarkFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) == 0 {
		return
	}
	failed := p.entries[p.next]
	p.entries = append(p.entries[:p.next], p.entries[p.next+1:]...)
	if p.next >= len(p.entries) {
		p.next = 0
	}

	logger.ForProxy().Warn().
		Str("provider", p.name).
		Str("proxy", failed.addr()).
		Int("remaining", len(p.entries)).
		Msg("Proxy removed from rotation")
}

// Verify drops every entry that fails a SOCKS5 handshake within timeout.
// Only meaningful for socks5 pools.
func (p *Pool) Verify(ctx context.Context, timeout time.Duration) int {
	p.mu.Lock()
	candidates := append([]Entry(nil), p.entries...)
	p.mu.Unlock()

	var (
		wg      sync.WaitGroup
		working = make([]bool, len(candidates))
		sem     = make(chan struct{}, 10)
	)
	for i := range candidates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			working[i] = probeSOCKS5(ctx, candidates[i].addr(), timeout)
		}(i)
	}
	wg.Wait()

	kept := make([]Entry, 0, len(candidates))
	for i, e := range candidates {
		if working[i] {
			kept = append(kept, e)
		}
	}

	p.mu.Lock()
	p.entries = kept
	p.next = 0
	p.mu.Unlock()

	logger.ForProxy().Info().
		Str("provider", p.name).
		Int("tested", len(candidates)).
		Int("working", len(kept)).
		Msg("Proxy pool verified")
	return len(kept)
}

// probeSOCKS5 sends a no-auth greeting and expects [0x05, 0x00] back
func probeSOCKS5(ctx context.Context, addr string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		logger.ForProxy().Debug().Str("proxy", addr).Err(err).Msg("TCP connection failed")
		return false
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return false
	}
	resp := make([]byte, 2)
	if _, err := conn.Read(resp); err != nil {
		return false
	}
	return resp[0] == 0x05 && resp[1] == 0x00
}

// ParseList parses a proxy list. The simple format has one IP:PORT per line;
// the spys format carries several IP:PORT COUNTRY-FLAGS pairs per line.
func ParseList(text, format string) []Entry {
	var entries []Entry
	seen := make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || len(line) < 7 {
			continue
		}

		var parsed []Entry
		if format == FormatSpys {
			parsed = parseSpysLine(line)
		} else if e, ok := parseSingleProxy(line); ok {
			parsed = []Entry{e}
		}

		for _, e := range parsed {
			if seen[e.addr()] {
				continue
			}
			seen[e.addr()] = true
			entries = append(entries, e)
		}
	}
	return entries
}

var badPorts = map[int]bool{
	22: true, 23: true, 25: true, 53: true, 110: true, 143: true,
	443: true, 993: true, 995: true, 3306: true, 3389: true, 5432: true,
}

func parseHostPort(field string) (Entry, bool) {
	parts := strings.Split(field, ":")
	if len(parts) != 2 {
		return Entry{}, false
	}

	host := strings.TrimSpace(parts[0])
	portStr := strings.TrimSpace(parts[1])
	if idx := strings.IndexAny(portStr, " \t\r"); idx != -1 {
		portStr = portStr[:idx]
	}

	ip := net.ParseIP(host)
	if ip == nil || !isValidPublicIP(ip) {
		return Entry{}, false
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || badPorts[port] || port < 80 || port > 65000 {
		return Entry{}, false
	}
	return Entry{Host: host, Port: port, Country: "Unknown"}, true
}

func parseSingleProxy(line string) (Entry, bool) {
	if idx := strings.IndexAny(line, " \t"); idx != -1 {
		line = line[:idx]
	}
	return parseHostPort(line)
}

func parseSpysLine(line string) []Entry {
	var entries []Entry
	fields := strings.Fields(line)
	for i, field := range fields {
		e, ok := parseHostPort(field)
		if !ok {
			continue
		}
		// "US-H", "RU-H!" and the like
		if i+1 < len(fields) {
			if code, _, _ := strings.Cut(fields[i+1], "-"); len(code) == 2 {
				e.Country = code
			}
		}
		entries = append(entries, e)
	}
	return entries
}

func isValidPublicIP(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	switch {
	case v4[0] == 0,
		v4[0] == 127,
		v4[0] == 10,
		v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31,
		v4[0] == 192 && v4[1] == 168,
		v4[0] == 169 && v4[1] == 254,
		v4[0] >= 224:
		return false
	}
	return v4[3] != 0 && v4[3] != 255
}
