// Package zscore standardises values against the population they were observed in.
package zscore

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Population is a set of keyed observations drawn from one week.
type Population struct {
	keys   []string
	values []float64
}

// Add records an observation. Keys are expected to be unique.
func (p *Population) Add(key string, v float64) {
	p.keys = append(p.keys, key)
	p.values = append(p.values, v)
}

// Len returns the number of observations.
func (p *Population) Len() int { return len(p.values) }

// MeanStd returns the population mean and standard deviation. A zero or
// undefined deviation reads as 1 so that scores stay finite.
func (p *Population) MeanStd() (mean, std float64) {
	if len(p.values) == 0 {
		return 0, 1
	}
	mean, std = stat.PopMeanStdDev(p.values, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	return mean, std
}

// Scores returns the z-score of every observation keyed by its key.
// When flip is set the sign is reversed, for lower-is-better measures.
func (p *Population) Scores(flip bool) map[string]float64 {
	out := make(map[string]float64, len(p.values))
	if len(p.values) == 0 {
		return out
	}
	mean, std := p.MeanStd()
	for i, k := range p.keys {
		z := (p.values[i] - mean) / std
		if flip {
			z = -z
		}
		out[k] = z
	}
	return out
}

// Of z-scores a map of values in one call.
func Of(values map[string]float64) map[string]float64 {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	// fixed order keeps float summation reproducible across runs
	sort.Strings(keys)
	var p Population
	for _, k := range keys {
		p.Add(k, values[k])
	}
	return p.Scores(false)
}
