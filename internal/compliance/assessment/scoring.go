package assessment

import (
	"fmt"
	"math"

	"attest/internal/compliance/catalog"
)

// ScoringPolicy weighs the automated probe score against evidence coverage.
// AutomatedWeight is in [0,1]; evidence gets the remainder.
type ScoringPolicy struct {
	AutomatedWeight float64
	CategoryWeights map[catalog.Category]float64
}

// DefaultScoringPolicy weighs both halves equally.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{AutomatedWeight: 0.5}
}

// NewScoringPolicy builds a policy from configuration values.
func NewScoringPolicy(automated float64, perCategory map[string]float64) (ScoringPolicy, error) {
	if automated < 0 || automated > 1 {
		return ScoringPolicy{}, fmt.Errorf("automated weight %v out of range [0,1]", automated)
	}
	p := ScoringPolicy{AutomatedWeight: automated}
	if len(perCategory) > 0 {
		p.CategoryWeights = make(map[catalog.Category]float64, len(perCategory))
		for name, w := range perCategory {
			if w < 0 || w > 1 {
				return ScoringPolicy{}, fmt.Errorf("weight for category %q out of range [0,1]", name)
			}
			p.CategoryWeights[catalog.Category(name)] = w
		}
	}
	return p, nil
}

// Weight returns the automated weight for a requirement category.
func (p ScoringPolicy) Weight(c catalog.Category) float64 {
	if w, ok := p.CategoryWeights[c]; ok {
		return w
	}
	return p.AutomatedWeight
}

// Score combines both components and rounds to two decimals.
func (p ScoringPolicy) Score(c catalog.Category, automated, evidence float64) float64 {
	w := p.Weight(c)
	return round2(w*automated + (1-w)*evidence)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
