// Package countries holds the static table of payment-provider coverage and
// jurisdiction risk, keyed by ISO-3166 alpha-2 code.
package countries

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"crowdfund/internal/compliance"
	dErrors "crowdfund/pkg/domain-errors"
)

//go:embed countries.yaml
var defaultTable []byte

// Support is the coverage record for one country.
type Support struct {
	Code     string                           `json:"code" yaml:"-"`
	Payment  compliance.CountryPaymentSupport `json:"payment" yaml:",inline"`
	RiskTier compliance.CountryRiskTier       `json:"risk_tier" yaml:"risk_tier"`
}

// Table is an immutable country lookup. Safe for concurrent use.
type Table struct {
	byCode map[string]Support
}

type tableFile struct {
	Countries map[string]Support `yaml:"countries"`
}

// Default returns the embedded table.
func Default() (*Table, error) {
	return Parse(defaultTable)
}

// Load reads a table from path, or the embedded default when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read country table %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML table and rejects malformed codes or tiers.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode country table: %w", err)
	}
	t := &Table{byCode: make(map[string]Support, len(f.Countries))}
	for code, s := range f.Countries {
		norm, err := NormalizeCode(code)
		if err != nil {
			return nil, err
		}
		if s.RiskTier == "" {
			s.RiskTier = compliance.CountryTier2
		}
		if !s.RiskTier.IsValid() {
			return nil, fmt.Errorf("country %s: unknown risk tier %q", norm, s.RiskTier)
		}
		if _, dup := t.byCode[norm]; dup {
			return nil, fmt.Errorf("country %s listed twice", norm)
		}
		s.Code = norm
		t.byCode[norm] = s
	}
	return t, nil
}

// Lookup returns the record for code. Unknown codes are not_found, never a
// guessed default.
func (t *Table) Lookup(code string) (Support, error) {
	norm, err := NormalizeCode(code)
	if err != nil {
		return Support{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid country code")
	}
	s, ok := t.byCode[norm]
	if !ok {
		return Support{}, dErrors.New(dErrors.CodeNotFound, "unsupported country: "+norm)
	}
	return s, nil
}

// List returns every record sorted by code.
func (t *Table) List() []Support {
	out := make([]Support, 0, len(t.byCode))
	for _, s := range t.byCode {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// NormalizeCode upper-cases and trims code and checks it is ISO-3166 alpha-2.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 2 || c[0] < 'A' || c[0] > 'Z' || c[1] < 'A' || c[1] > 'Z' {
		return "", fmt.Errorf("country code %q is not ISO-3166 alpha-2", code)
	}
	return c, nil
}
