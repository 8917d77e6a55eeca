// Package summary collects diagnostic histograms of values computed by a graph.
package summary

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/vecf32"
)

// Histogram summarises a set of float values.
type Histogram struct {
	Name       string
	Min, Max   float64
	Num        float64
	Sum        float64
	SumSquares float64

	BucketLimit []float64
	Bucket      []float64
}

// NewHistogram builds a histogram of xs. NaN and Inf values are rejected.
func NewHistogram(name string, xs []float32) (Histogram, error) {
	if len(xs) == 0 {
		return Histogram{}, errors.Errorf("histogram %q: no values", name)
	}
	var sq float32
	for _, x := range xs {
		if math32.IsNaN(x) || math32.IsInf(x, 0) {
			return Histogram{}, errors.Errorf("histogram %q: non finite value %v", name, x)
		}
		sq += x * x
	}
	max := vecf32.MaxOf(xs)
	return Histogram{
		Name:        name,
		Min:         float64(vecf32.MinOf(xs)),
		Max:         float64(max),
		Num:         float64(len(xs)),
		Sum:         float64(vecf32.Sum(xs)),
		SumSquares:  float64(sq),
		BucketLimit: []float64{float64(max)},
		Bucket:      []float64{float64(len(xs))},
	}, nil
}

// Mean of the summarised values.
func (h Histogram) Mean() float64 {
	if h.Num == 0 {
		return 0
	}
	return h.Sum / h.Num
}

func (h Histogram) String() string {
	return fmt.Sprintf("%s: n=%v min=%v max=%v mean=%v", h.Name, h.Num, h.Min, h.Max, h.Mean())
}

// Merged is a handle over several histograms fed by one vector read out of a
// graph: the i-th tag summarises the i-th element.
type Merged struct {
	name string
	tags []string
	v    G.Value
}

// NewMerged creates a handle called name with one histogram per tag.
func NewMerged(name string, tags []string) *Merged {
	return &Merged{
		name: name,
		tags: append([]string(nil), tags...),
	}
}

// Name of the handle.
func (m *Merged) Name() string { return m.name }

// Tags returns the names of the merged histograms.
func (m *Merged) Tags() []string { return append([]string(nil), m.tags...) }

// Len is the number of merged histograms.
func (m *Merged) Len() int { return len(m.tags) }

// Target is where the graph writes the summarised vector, to be used with G.Read.
func (m *Merged) Target() *G.Value { return &m.v }

// Collect builds the histograms from the vector read during the last run.
func (m *Merged) Collect() ([]Histogram, error) {
	if m.v == nil {
		return nil, errors.Errorf("%s: nothing has been read yet", m.name)
	}
	var xs []float32
	switch data := m.v.Data().(type) {
	case []float32:
		xs = data
	case float32:
		xs = []float32{data}
	default:
		return nil, errors.Errorf("%s: unsupported data %T", m.name, data)
	}
	if len(xs) != len(m.tags) {
		return nil, errors.Errorf("%s: read %d values for %d tags", m.name, len(xs), len(m.tags))
	}

	retVal := make([]Histogram, len(m.tags))
	for i, tag := range m.tags {
		h, err := NewHistogram(tag, xs[i:i+1])
		if err != nil {
			return nil, errors.Wrap(err, m.name)
		}
		retVal[i] = h
	}
	return retVal, nil
}
