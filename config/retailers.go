package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"sjsage522/retailcrawler/pkg/errors"
	"sjsage522/retailcrawler/services/proxy"
)

// RetailerFile is the YAML retailer settings file
type RetailerFile struct {
	Retailers []RetailerSettings `yaml:"retailers"`
}

// RetailerSettings configures crawling for one built-in retailer
type RetailerSettings struct {
	ID        string   `yaml:"id"`
	Enabled   *bool    `yaml:"enabled"`
	StartURLs []string `yaml:"start_urls"`
	// MaxPages <= 0 falls back to DEFAULT_MAX_PAGES
	MaxPages int `yaml:"max_pages"`
	// RequestDelayMS unset falls back to DEFAULT_REQUEST_DELAY_MS
	RequestDelayMS *int              `yaml:"request_delay_ms"`
	Headers        map[string]string `yaml:"headers"`
	Proxy          proxy.Settings    `yaml:"proxy"`
}

// IsEnabled reports whether the retailer is crawled. Retailers are enabled
// unless set otherwise.
func (r RetailerSettings) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// LoadRetailerFile reads and validates the retailer file at path. ${VAR}
// references are expanded from the environment.
func LoadRetailerFile(path string) (*RetailerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration("read retailer file "+path, err)
	}
	return ParseRetailerFile([]byte(os.ExpandEnv(string(data))))
}

// ParseRetailerFile decodes and validates retailer settings
func ParseRetailerFile(data []byte) (*RetailerFile, error) {
	var f RetailerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.NewConfiguration("parse retailer file", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks ids, start URLs and proxy settings
func (f *RetailerFile) Validate() error {
	seen := make(map[string]bool, len(f.Retailers))
	for i, r := range f.Retailers {
		if r.ID == "" {
			return errors.NewConfiguration(fmt.Sprintf("retailer %d: id is required", i), nil)
		}
		if seen[r.ID] {
			return errors.NewConfiguration(fmt.Sprintf("retailer %s: duplicate id", r.ID), nil)
		}
		seen[r.ID] = true

		if r.IsEnabled() && len(r.StartURLs) == 0 {
			return errors.NewConfiguration(fmt.Sprintf("retailer %s: start_urls is required", r.ID), nil)
		}
		for _, raw := range r.StartURLs {
			u, err := url.Parse(raw)
			if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
				return errors.NewConfiguration(fmt.Sprintf("retailer %s: invalid start url %q", r.ID, raw), err)
			}
		}
		if r.MaxPages < 0 {
			return errors.NewConfiguration(fmt.Sprintf("retailer %s: max_pages must not be negative", r.ID), nil)
		}
		if r.RequestDelayMS != nil && *r.RequestDelayMS < 0 {
			return errors.NewConfiguration(fmt.Sprintf("retailer %s: request_delay_ms must not be negative", r.ID), nil)
		}
		if err := r.Proxy.Validate(); err != nil {
			return errors.NewConfiguration(fmt.Sprintf("retailer %s: proxy", r.ID), err)
		}
	}
	return nil
}

// Get returns the settings for id
func (f *RetailerFile) Get(id string) (RetailerSettings, bool) {
	for _, r := range f.Retailers {
		if r.ID == id {
			return r, true
		}
	}
	return RetailerSettings{}, false
}

// Enabled returns the enabled retailers in file order
func (f *RetailerFile) Enabled() []RetailerSettings {
	var out []RetailerSettings
	for _, r := range f.Retailers {
		if r.IsEnabled() {
			out = append(out, r)
		}
	}
	return out
}
