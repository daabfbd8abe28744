package rates

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/m3rciful/travelwallet/core/logger"
)

// ErrUnknownCountry is returned when no currency is known for a country name.
var ErrUnknownCountry = errors.New("rates: unknown country")

//go:embed countries.yaml
var countriesYAML []byte

// CurrencyLister reports the currencies the rate service supports.
type CurrencyLister interface {
	Currencies(ctx context.Context) (map[string]string, error)
}

type countryEntry struct {
	Currency string   `yaml:"currency"`
	Names    []string `yaml:"names"`
}

type alias struct {
	name     string
	currency string
}

// Detector maps free-text country names to currency codes.
type Detector struct {
	aliases []alias
	exact   map[string]string
	lister  CurrencyLister
}

// NewDetector loads the embedded country table. lister may be nil to skip validation.
func NewDetector(lister CurrencyLister) (*Detector, error) {
	var entries []countryEntry
	if err := yaml.Unmarshal(countriesYAML, &entries); err != nil {
		return nil, fmt.Errorf("parse country table: %w", err)
	}
	d := &Detector{exact: make(map[string]string), lister: lister}
	for _, e := range entries {
		code := strings.ToUpper(strings.TrimSpace(e.Currency))
		for _, n := range e.Names {
			key := normalizeCountry(n)
			if key == "" || code == "" {
				continue
			}
			if _, dup := d.exact[key]; dup {
				continue
			}
			d.exact[key] = code
			d.aliases = append(d.aliases, alias{name: key, currency: code})
		}
	}
	if len(d.aliases) == 0 {
		return nil, errors.New("country table is empty")
	}
	return d, nil
}

// Detect returns the currency code for country. Exact names win over partial ones and
// among partial matches the longest name wins. When a lister is configured the code
// must also be supported by the rate service; if the service is down the table is trusted.
func (d *Detector) Detect(ctx context.Context, country string) (string, error) {
	code := d.lookup(normalizeCountry(country))
	if code == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownCountry, country)
	}
	if d.lister == nil {
		return code, nil
	}
	supported, err := d.lister.Currencies(ctx)
	if err != nil {
		logger.Warn(ctx, logger.ComponentRates, "detect.validate_skipped",
			slog.String("country", country),
			slog.String("currency", code),
			logger.Err(err),
		)
		return code, nil
	}
	if _, ok := supported[code]; !ok {
		return "", fmt.Errorf("%w: %s is not supported", ErrUnknownCountry, code)
	}
	return code, nil
}

func (d *Detector) lookup(key string) string {
	if key == "" {
		return ""
	}
	if code, ok := d.exact[key]; ok {
		return code
	}
	best, bestLen := "", 0
	keyLen := utf8.RuneCountInString(key)
	for _, a := range d.aliases {
		n := utf8.RuneCountInString(a.name)
		if n <= bestLen {
			continue
		}
		// Short inputs only match as a whole alias, not as a fragment of one.
		if containsWord(key, a.name) || (keyLen >= 4 && strings.HasPrefix(a.name, key)) {
			best, bestLen = a.currency, n
		}
	}
	return best
}

// containsWord reports whether sub occurs in s delimited by spaces, hyphens or the string ends.
func containsWord(s, sub string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], sub)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(sub)
		if (start == 0 || isDelim(s[start-1])) && (end == len(s) || isDelim(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isDelim(b byte) bool {
	return b == ' ' || b == '-' || b == ',' || b == '.' || b == '(' || b == ')'
}

func normalizeCountry(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
