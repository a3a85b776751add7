package metadata

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// FranchiseRule disambiguates titles shared by several productions, such as
// a revival that reuses the original series name. When the query title
// matches NamePattern and the detected year is at least MinYear, the video
// search follows PreferredProviderOrder and TV candidates matching the
// pattern with a first-air year of at least MinYear are tried first.
type FranchiseRule struct {
	Name                   string       `yaml:"name"`
	NamePattern            string       `yaml:"name_pattern"`
	MinYear                int          `yaml:"min_year"`
	PreferredProviderOrder []SearchKind `yaml:"preferred_provider_order"`

	re *regexp.Regexp
}

type franchiseFile struct {
	Rules []FranchiseRule `yaml:"rules"`
}

// DefaultFranchiseRules returns the built-in override table.
func DefaultFranchiseRules() []FranchiseRule {
	rules := []FranchiseRule{
		{
			Name:                   "doctor-who-revival",
			NamePattern:            `(?i)^doctor who\b`,
			MinYear:                2005,
			PreferredProviderOrder: []SearchKind{SearchTV, SearchMovie, SearchFreeText},
		},
	}
	for i := range rules {
		rules[i].re = regexp.MustCompile(rules[i].NamePattern)
	}
	return rules
}

// LoadFranchiseRules reads a YAML rule table. An empty path yields the
// built-in defaults.
func LoadFranchiseRules(path string) ([]FranchiseRule, error) {
	if path == "" {
		return DefaultFranchiseRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read franchise rules: %w", err)
	}
	return ParseFranchiseRules(data)
}

// ParseFranchiseRules decodes and validates a YAML rule table.
func ParseFranchiseRules(data []byte) ([]FranchiseRule, error) {
	var file franchiseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse franchise rules: %w", err)
	}

	for i := range file.Rules {
		r := &file.Rules[i]
		if r.NamePattern == "" {
			return nil, fmt.Errorf("franchise rule %d: %w", i, errors.New("name_pattern is required"))
		}
		re, err := regexp.Compile(r.NamePattern)
		if err != nil {
			return nil, fmt.Errorf("franchise rule %q: invalid pattern: %w", r.Name, err)
		}
		r.re = re
		for _, kind := range r.PreferredProviderOrder {
			switch kind {
			case SearchTV, SearchMovie, SearchFreeText:
			default:
				return nil, fmt.Errorf("franchise rule %q: unknown provider kind %q", r.Name, kind)
			}
		}
	}
	return file.Rules, nil
}

// matchFranchise returns the first rule applying to a title and year.
func matchFranchise(rules []FranchiseRule, title string, year *int) *FranchiseRule {
	if year == nil {
		return nil
	}
	for i := range rules {
		r := &rules[i]
		if r.re != nil && *year >= r.MinYear && r.re.MatchString(title) {
			return r
		}
	}
	return nil
}

// preferFranchise moves candidates that satisfy the rule to the front,
// keeping the provider's order otherwise.
func (r *FranchiseRule) preferFranchise(candidates []Candidate) []Candidate {
	satisfies := func(c Candidate) bool {
		return c.Year != nil && *c.Year >= r.MinYear && r.re.MatchString(c.Title)
	}
	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		return satisfies(out[i]) && !satisfies(out[j])
	})
	return out
}
