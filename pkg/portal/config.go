// Package portal scrapes vendor billing portals for invoices, driven by
// per-vendor YAML configuration.
package portal

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoginField describes one input on a portal login form. The value comes
// from an environment variable so credentials never live in the config file.
type LoginField struct {
	Selector string `yaml:"selector"`
	EnvVar   string `yaml:"env_var"`
}

// SearchField describes one input on a portal invoice search form.
// Type selects what gets filled in: "date" or "amount".
type SearchField struct {
	Selector string `yaml:"selector"`
	Type     string `yaml:"type"`
}

// VendorConfig describes how to log into one vendor's billing portal and
// locate an invoice.
type VendorConfig struct {
	LoginURL    string       `yaml:"login_url"`
	LoginFields []LoginField `yaml:"login_fields"`
	LoginButton string       `yaml:"login_button"`

	// Either a direct URL to the invoice listing or a link to click
	// after login.
	InvoicePageURL  string `yaml:"invoice_page_url,omitempty"`
	InvoicePageLink string `yaml:"invoice_page_link,omitempty"`

	SearchForm   []SearchField `yaml:"search_form,omitempty"`
	SearchButton string        `yaml:"search_button,omitempty"`

	// InvoiceLink selects the invoice document on the listing page.
	InvoiceLink string `yaml:"invoice_link"`
}

// Config maps lowercase vendor names to their portal definitions.
type Config struct {
	Vendors map[string]VendorConfig `yaml:"vendors"`
}

// LoadConfig reads portal definitions from a YAML file. A missing path
// yields an empty config so the portal source simply never matches.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{Vendors: map[string]VendorConfig{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Vendors: map[string]VendorConfig{}}, nil
		}
		return nil, fmt.Errorf("failed to read portal config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse portal config: %w", err)
	}

	if cfg.Vendors == nil {
		cfg.Vendors = map[string]VendorConfig{}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Lookup returns the portal definition for a vendor, matching
// case-insensitively.
func (c *Config) Lookup(vendor string) (VendorConfig, bool) {
	vc, ok := c.Vendors[strings.ToLower(vendor)]
	return vc, ok
}

func (c *Config) validate() error {
	for vendor, vc := range c.Vendors {
		if vc.LoginURL == "" {
			return fmt.Errorf("portal config for %q: login_url is required", vendor)
		}
		if vc.LoginButton == "" {
			return fmt.Errorf("portal config for %q: login_button is required", vendor)
		}
		if vc.InvoiceLink == "" {
			return fmt.Errorf("portal config for %q: invoice_link is required", vendor)
		}
		for i, field := range vc.LoginFields {
			if field.Selector == "" || field.EnvVar == "" {
				return fmt.Errorf("portal config for %q: login_fields[%d] needs selector and env_var", vendor, i)
			}
		}
		for i, field := range vc.SearchForm {
			if field.Type != "date" && field.Type != "amount" {
				return fmt.Errorf("portal config for %q: search_form[%d] has unknown type %q", vendor, i, field.Type)
			}
		}
	}
	return nil
}
