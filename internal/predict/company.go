package predict

import (
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

const (
	defaultCompliance   = 0.7
	defaultTypicalRatio = 0.92
)

// CompanyProfile describes the home company a tender is scored for.
// Unset compliance and price ratio fall back to the platform defaults.
type CompanyProfile struct {
	Name              string   `json:"name" yaml:"name"`
	Sectors           []string `json:"sectors" yaml:"sectors"`
	ComplianceScore   *float64 `json:"compliance_score,omitempty" yaml:"compliance_score"`
	TypicalPriceRatio *float64 `json:"typical_price_ratio,omitempty" yaml:"typical_price_ratio"`
}

// Compliance returns the compliance readiness score, or 0.7 when unset.
func (c CompanyProfile) Compliance() float64 {
	if c.ComplianceScore == nil {
		return defaultCompliance
	}
	return *c.ComplianceScore
}

// TypicalRatio returns the company's usual bid/estimate ratio, or 0.92 when unset.
func (c CompanyProfile) TypicalRatio() float64 {
	if c.TypicalPriceRatio == nil {
		return defaultTypicalRatio
	}
	return *c.TypicalPriceRatio
}

// Validate checks the externally supplied scores.
func (c CompanyProfile) Validate() error {
	if s := c.Compliance(); math.IsNaN(s) || s < 0 || s > 1 {
		return eris.Errorf("predict: compliance_score %.3f outside [0,1]", s)
	}
	if r := c.TypicalRatio(); math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return eris.Errorf("predict: typical_price_ratio %.3f must be positive", r)
	}
	return nil
}

// ParseCompanyProfile decodes a YAML company profile.
func ParseCompanyProfile(data []byte) (CompanyProfile, error) {
	var c CompanyProfile
	if err := yaml.Unmarshal(data, &c); err != nil {
		return CompanyProfile{}, eris.Wrap(err, "predict: decode company profile")
	}
	if err := c.Validate(); err != nil {
		return CompanyProfile{}, err
	}
	return c, nil
}

// LoadCompanyProfile reads a YAML company profile from path.
func LoadCompanyProfile(path string) (CompanyProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CompanyProfile{}, eris.Wrapf(err, "predict: read company profile %s", path)
	}
	return ParseCompanyProfile(data)
}
