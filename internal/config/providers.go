// internal/config/providers.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Variations holds the jitter percentages applied to a provider's values
// before they are stored. Each fraction is in [0, 1].
type Variations struct {
	Price      float64 `yaml:"price"`
	Discount   float64 `yaml:"discount"`
	Rating     float64 `yaml:"rating"`
	TotalPrice float64 `yaml:"total_price"`
	Quantity   bool    `yaml:"quantity"`
	UnitPrice  float64 `yaml:"unit_price"`
}

type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type ProviderConfig struct {
	Name        string     `yaml:"name"`
	ProductsURL string     `yaml:"products_url"`
	OrdersURL   string     `yaml:"orders_url"`
	AuthHeader  string     `yaml:"auth_header"`
	RateLimit   *RateLimit `yaml:"rate_limit"`
	Variations  Variations `yaml:"variations"`
}

type providersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

func DefaultVariations() Variations {
	return Variations{
		Price:      0.05,
		Discount:   0.10,
		Rating:     0.05,
		TotalPrice: 0.03,
		Quantity:   true,
		UnitPrice:  0.02,
	}
}

// DefaultProviders is used when no providers file exists.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:        "fake-store",
			ProductsURL: "https://fake-store-api.mock.beeceptor.com/api/products",
			OrdersURL:   "https://fake-store-api.mock.beeceptor.com/api/orders",
			RateLimit:   &RateLimit{Requests: 10, Window: time.Minute},
			Variations:  DefaultVariations(),
		},
	}
}

// LoadProviders reads the provider list from a YAML file. Environment
// references like ${TOKEN} are expanded before parsing.
func LoadProviders(path string) ([]ProviderConfig, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultProviders(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}
	return ParseProviders(raw)
}

func ParseProviders(raw []byte) ([]ProviderConfig, error) {
	var file providersFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, errors.New("providers file declares no providers")
	}
	return file.Providers, nil
}

func (p ProviderConfig) Validate() error {
	if p.Name == "" {
		return errors.New("provider name is required")
	}
	for _, u := range []string{p.ProductsURL, p.OrdersURL} {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("provider %s: invalid endpoint %q", p.Name, u)
		}
	}
	if p.RateLimit != nil && (p.RateLimit.Requests < 1 || p.RateLimit.Window <= 0) {
		return fmt.Errorf("provider %s: rate limit needs positive requests and window", p.Name)
	}
	v := p.Variations
	for _, pct := range []float64{v.Price, v.Discount, v.Rating, v.TotalPrice, v.UnitPrice} {
		if pct < 0 || pct > 1 {
			return fmt.Errorf("provider %s: variation percentages must be within [0, 1]", p.Name)
		}
	}
	return nil
}
