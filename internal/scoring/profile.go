// Package scoring combines raw per-dimension quality scores with a
// configurable weight vector into one composite 0-100 score plus a
// per-dimension breakdown.
package scoring

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// weightEpsilon is the tolerance for the weights-sum-to-one invariant.
const weightEpsilon = 0.001

// Weight profile sources, reported in the score output.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceStore   = "store"
)

// Quality dimension metrics.
const (
	MetricCompleteness    = "completeness"
	MetricGrounding       = "grounding"
	MetricKeywordCoverage = "keyword_coverage"
	MetricStructure       = "structure"
	MetricFreshness       = "freshness"
)

// WeightProfile is a named weight vector over quality dimensions.
// Weights must sum to 1.0 within weightEpsilon.
type WeightProfile struct {
	Name    string             `yaml:"name"`
	Source  string             `yaml:"-"`
	Weights map[string]float64 `yaml:"weights"`
}

// DefaultProfile returns the built-in weight vector used when no tunable
// configuration is available.
func DefaultProfile() WeightProfile {
	return WeightProfile{
		Name:   "builtin",
		Source: SourceDefault,
		Weights: map[string]float64{
			MetricCompleteness:    0.30,
			MetricGrounding:       0.25,
			MetricKeywordCoverage: 0.20,
			MetricStructure:       0.15,
			MetricFreshness:       0.10,
		},
	}
}

// Validate checks that the profile is internally consistent.
func Validate(p WeightProfile) error {
	var errs []string
	if len(p.Weights) == 0 {
		errs = append(errs, "profile has no weights")
	}
	var sum float64
	for metric, w := range p.Weights {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Sprintf("%s weight must be in [0,1], got %g", metric, w))
		}
		sum += w
	}
	if len(p.Weights) > 0 && math.Abs(sum-1.0) > weightEpsilon {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %g", sum))
	}
	if len(errs) > 0 {
		return eris.Errorf("scoring: profile validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Normalize returns a copy of the profile with weights rescaled to sum to
// 1.0. Profiles with a non-positive sum cannot be normalized.
func Normalize(p WeightProfile) (WeightProfile, error) {
	var sum float64
	for _, w := range p.Weights {
		if w < 0 {
			return p, eris.Errorf("scoring: negative weight in profile %q", p.Name)
		}
		sum += w
	}
	if sum <= 0 {
		return p, eris.Errorf("scoring: profile %q has zero weight sum", p.Name)
	}
	out := WeightProfile{Name: p.Name, Source: p.Source, Weights: make(map[string]float64, len(p.Weights))}
	for metric, w := range p.Weights {
		out.Weights[metric] = w / sum
	}
	return out, nil
}

// LoadProfile reads a weight profile from a YAML file. Invalid but
// renormalizable profiles are renormalized; degenerate ones are rejected.
func LoadProfile(path string) (WeightProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WeightProfile{}, eris.Wrapf(err, "scoring: read profile %s", path)
	}

	var p WeightProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return WeightProfile{}, eris.Wrapf(err, "scoring: parse profile %s", path)
	}
	p.Source = SourceFile
	if p.Name == "" {
		p.Name = strings.TrimSuffix(path, ".yaml")
	}

	if err := Validate(p); err != nil {
		normalized, normErr := Normalize(p)
		if normErr != nil {
			return WeightProfile{}, err
		}
		return normalized, nil
	}
	return p, nil
}
