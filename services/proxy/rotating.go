package proxy

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sjsage522/retailcrawler/logger"
	"sjsage522/retailcrawler/pkg/errors"
)

// DefaultSessionTemplate is the username layout most residential gateways accept
const DefaultSessionTemplate = "{username}-session-{session}"

// Failure handling defaults for a gateway
const (
	DefaultMaxFailures = 3
	DefaultCooldown    = 5 * time.Minute
)

// Sticky pins a gateway session. Zero fields mean no limit on that axis; a
// zero Sticky means the session only changes on Rotate.
type Sticky struct {
	Duration time.Duration
	Requests int
}

func (s Sticky) enabled() bool {
	return s.Duration > 0 || s.Requests > 0
}

// Gateway describes a rotating upstream
type Gateway struct {
	Name            string
	Scheme          string
	Host            string
	Port            int
	Username        string
	Password        string
	SessionTemplate string
	Sticky          Sticky
	// MaxFailures consecutive failures take the gateway out of service for
	// Cooldown. Zero values use the defaults.
	MaxFailures int
	Cooldown    time.Duration
}

// Rotating issues per-session credentials against one upstream gateway
type Rotating struct {
	mu        sync.Mutex
	gw        Gateway
	session   string
	issuedAt  time.Time
	uses      int
	available bool
	failures  int
	downUntil time.Time

	now   func() time.Time
	newID func() string
}

// NewRotating creates a rotating provider
func NewRotating(gw Gateway) *Rotating {
	if gw.Scheme == "" {
		gw.Scheme = "http"
	}
	if gw.SessionTemplate == "" {
		gw.SessionTemplate = DefaultSessionTemplate
	}
	if gw.Name == "" {
		gw.Name = gw.Host
	}
	if gw.MaxFailures <= 0 {
		gw.MaxFailures = DefaultMaxFailures
	}
	if gw.Cooldown <= 0 {
		gw.Cooldown = DefaultCooldown
	}
	return &Rotating{
		gw:        gw,
		available: true,
		now:       time.Now,
		newID:     newSessionID,
	}
}

func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// Name returns the gateway name
func (r *Rotating) Name() string {
	return r.gw.Name
}

// Current returns the gateway URL for the active session, renewing it when
// the sticky pin has expired.
func (r *Rotating) Current() (Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isAvailable() {
		return Config{}, errors.NewProxy(r.gw.Name, "provider unavailable", nil)
	}
	if r.session == "" || r.expired() {
		r.renew()
	}
	r.uses++

	return Config{
		URL:       r.buildURL(),
		SessionID: r.session,
		Provider:  r.gw.Name,
	}, nil
}

// Rotate starts a new session unless a sticky pin still holds
func (r *Rotating) Rotate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pinned() {
		logger.ForProxy().Debug().
			Str("provider", r.gw.Name).
			Str("session", r.session).
			Msg("Rotation ignored while session is pinned")
		return
	}
	r.renew()
}

// Available reports provider health. A gateway taken down by failures comes
// back once its cooldown has passed.
func (r *Rotating) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isAvailable()
}

// SetAvailable records provider health reported by the caller. It is not
// lifted by the cooldown.
func (r *Rotating) SetAvailable(ok bool) {
	r.mu.Lock()
	r.available = ok
	r.failures = 0
	r.downUntil = time.Time{}
	r.mu.Unlock()
}

// MarkFailed counts a failed request through the gateway. MaxFailures in a
// row take it down for the cooldown and drop the session.
func (r *Rotating) MarkFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isAvailable() {
		return
	}
	r.failures++
	if r.failures < r.gw.MaxFailures {
		return
	}
	r.available = false
	r.downUntil = r.now().Add(r.gw.Cooldown)
	r.session = ""
	logger.ForProxy().Warn().
		Str("provider", r.gw.Name).
		Int("failures", r.failures).
		Dur("cooldown", r.gw.Cooldown).
		Msg("Gateway taken out of service")
}

// MarkSucceeded resets the failure count
func (r *Rotating) MarkSucceeded() {
	r.mu.Lock()
	r.failures = 0
	r.mu.Unlock()
}

// isAvailable reports health, lifting an expired failure cooldown. The
// caller holds mu.
func (r *Rotating) isAvailable() bool {
	if !r.available && !r.downUntil.IsZero() && !r.now().Before(r.downUntil) {
		r.available = true
		r.failures = 0
		r.downUntil = time.Time{}
	}
	return r.available
}

// SessionID returns the active session, if any
func (r *Rotating) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *Rotating) pinned() bool {
	return r.session != "" && r.gw.Sticky.enabled() && !r.expired()
}

func (r *Rotating) expired() bool {
	s := r.gw.Sticky
	if s.Duration > 0 && r.now().Sub(r.issuedAt) >= s.Duration {
		return true
	}
	if s.Requests > 0 && r.uses >= s.Requests {
		return true
	}
	return false
}

func (r *Rotating) renew() {
	r.session = r.newID()
	r.issuedAt = r.now()
	r.uses = 0
	logger.ForProxy().Debug().
		Str("provider", r.gw.Name).
		Str("session", r.session).
		Msg("Issued proxy session")
}

func (r *Rotating) buildURL() *url.URL {
	user := strings.NewReplacer(
		"{username}", r.gw.Username,
		"{session}", r.session,
	).Replace(r.gw.SessionTemplate)

	u := &url.URL{
		Scheme: r.gw.Scheme,
		Host:   net.JoinHostPort(r.gw.Host, strconv.Itoa(r.gw.Port)),
	}
	if r.gw.Password != "" {
		u.User = url.UserPassword(user, r.gw.Password)
	} else {
		u.User = url.User(user)
	}
	return u
}
