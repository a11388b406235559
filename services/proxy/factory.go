package proxy

import (
	"fmt"
	"strings"
	"time"

	"sjsage522/retailcrawler/pkg/errors"
)

// Provider types accepted in settings
const (
	TypeNone     = "none"
	TypeRotating = "rotating"
	TypePool     = "pool"
)

// Settings is the proxy section of the retailer file
type Settings struct {
	Mode             string             `yaml:"mode"`
	Strategy         Strategy           `yaml:"strategy"`
	RotatePerRequest bool               `yaml:"rotate_per_request"`
	Providers        []ProviderSettings `yaml:"providers"`
}

// ProviderSettings configures one provider
type ProviderSettings struct {
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"`
	Scheme          string   `yaml:"scheme"`
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
	SessionTemplate string   `yaml:"session_template"`
	StickySeconds   int      `yaml:"sticky_seconds"`
	StickyRequests  int      `yaml:"sticky_requests"`
	MaxFailures     int      `yaml:"max_failures"`
	CooldownSeconds int      `yaml:"cooldown_seconds"`
	ListFile        string   `yaml:"list_file"`
	ListFormat      string   `yaml:"list_format"`
	List            []string `yaml:"list"`
}

// Enabled reports whether any proxy is configured
func (s Settings) Enabled() bool {
	return s.Mode != TypeNone && len(s.Providers) > 0
}

// Validate checks the settings without building providers
func (s Settings) Validate() error {
	switch s.Strategy {
	case "", StrategyFailover, StrategyRoundRobin:
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown proxy strategy %q", s.Strategy), nil)
	}
	for i, p := range s.Providers {
		switch strings.ToLower(p.Type) {
		case TypeNone:
		case TypeRotating:
			if p.Host == "" || p.Port <= 0 {
				return errors.NewConfiguration(fmt.Sprintf("proxy provider %d (%s): host and port are required", i, p.Name), nil)
			}
		case TypePool:
			if p.ListFile == "" && len(p.List) == 0 {
				return errors.NewConfiguration(fmt.Sprintf("proxy provider %d (%s): list or list_file is required", i, p.Name), nil)
			}
		default:
			return errors.NewConfiguration(fmt.Sprintf("proxy provider %d (%s): unknown type %q", i, p.Name, p.Type), nil)
		}
	}
	return nil
}

// FromConfig builds a fresh Manager. Call it once per crawl so that session
// and cursor state is never shared.
func FromConfig(s Settings) (*Manager, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if !s.Enabled() {
		return NewManager(StrategyFailover, None{}), nil
	}

	providers := make([]Provider, 0, len(s.Providers))
	for _, ps := range s.Providers {
		p, err := buildProvider(ps)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return NewManager(s.Strategy, providers...), nil
}

func buildProvider(ps ProviderSettings) (Provider, error) {
	switch strings.ToLower(ps.Type) {
	case TypeRotating:
		return NewRotating(Gateway{
			Name:            ps.Name,
			Scheme:          ps.Scheme,
			Host:            ps.Host,
			Port:            ps.Port,
			Username:        ps.Username,
			Password:        ps.Password,
			SessionTemplate: ps.SessionTemplate,
			Sticky: Sticky{
				Duration: time.Duration(ps.StickySeconds) * time.Second,
				Requests: ps.StickyRequests,
			},
			MaxFailures: ps.MaxFailures,
			Cooldown:    time.Duration(ps.CooldownSeconds) * time.Second,
		}), nil
	case TypePool:
		if len(ps.List) > 0 {
			entries := ParseList(strings.Join(ps.List, "\n"), ps.ListFormat)
			if len(entries) == 0 {
				return nil, errors.NewConfiguration("proxy pool "+ps.Name+" has no usable entries", nil)
			}
			return NewPool(ps.Name, ps.Scheme, entries), nil
		}
		return LoadPoolFile(ps.Name, ps.Scheme, ps.ListFile, ps.ListFormat)
	default:
		return None{}, nil
	}
}
