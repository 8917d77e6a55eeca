package summary

import (
	"bytes"
	"encoding/csv"
	"image/gif"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestNewHistogram(t *testing.T) {
	assert := assert.New(t)
	h, err := NewHistogram("q/0", []float32{1, -2, 3})
	require.NoError(t, err)
	assert.Equal(-2.0, h.Min)
	assert.Equal(3.0, h.Max)
	assert.Equal(3.0, h.Num)
	assert.Equal(2.0, h.Sum)
	assert.Equal(14.0, h.SumSquares)
	assert.InDelta(2.0/3.0, h.Mean(), 1e-9)

	_, err = NewHistogram("q/0", nil)
	assert.Error(err)
	_, err = NewHistogram("q/0", []float32{float32(math.NaN())})
	assert.Error(err)
}

func TestMergedCollect(t *testing.T) {
	assert := assert.New(t)
	m := NewMerged("avg_q_summary", []string{"q/0", "q/1", "q/2"})
	assert.Equal(3, m.Len())

	_, err := m.Collect()
	assert.Error(err, "collecting before anything is read")

	*m.Target() = tensor.New(tensor.WithShape(3), tensor.WithBacking([]float32{0.5, -1, 2}))
	hs, err := m.Collect()
	require.NoError(t, err)
	require.Len(t, hs, 3)
	for i, h := range hs {
		assert.Equal(m.Tags()[i], h.Name)
		assert.Equal(1.0, h.Num)
		assert.Equal(h.Min, h.Max)
	}
	assert.Equal(-1.0, hs[1].Sum)

	*m.Target() = tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{0.5, -1}))
	_, err = m.Collect()
	assert.Error(err, "size mismatch between read vector and tags")
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	hs := []Histogram{{Name: "q/0", Num: 1, Sum: 1.5}, {Name: "q/1", Num: 1, Sum: -2}}
	require.NoError(t, w.Write(0, hs))
	require.NoError(t, w.Write(10, hs))
	require.NoError(t, w.Flush())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 5)
	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{"10", "q/1", "0", "0", "1", "-2", "0"}, records[4])
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	hs := []Histogram{{Name: "q/0", Num: 1, Sum: 1.5}, {Name: "q/1", Num: 1, Sum: -2}}
	require.NoError(t, RenderPNG(&buf, hs))
	im, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2*pad+2*(barWidth+barGap), im.Bounds().Dx())

	assert.Error(t, RenderPNG(&buf, nil))
}

func TestGIFEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewGIFEncoder(&buf)
	assert.Error(t, enc.Flush(), "no frames")

	hs := []Histogram{{Name: "q/0", Num: 1, Sum: 1.5}, {Name: "q/1", Num: 1, Sum: -2}}
	require.NoError(t, enc.Encode(0, hs))
	require.NoError(t, enc.Encode(1, []Histogram{hs[1], hs[0]}))
	assert.Error(t, enc.Encode(2, hs[:1]), "frames must have the same size")
	assert.Equal(t, 2, enc.Len())
	require.NoError(t, enc.Flush())

	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
	assert.Equal(t, 2*pad+2*(barWidth+barGap), g.Config.Width)
}

func TestTrends(t *testing.T) {
	steps := [][]Histogram{
		{{Name: "q/0", Num: 1, Sum: 1}, {Name: "q/1", Num: 1, Sum: 0}},
		{{Name: "q/0", Num: 1, Sum: 3}, {Name: "q/1", Num: 2, Sum: 1}},
	}
	trends, err := Trends(steps)
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, "q/0", trends[0].Name)
	assert.InDelta(t, 2.0, trends[0].Mean, 1e-9)
	assert.InDelta(t, math.Sqrt2, trends[0].StdDev, 1e-9)
	assert.InDelta(t, 0.5, trends[1].Last, 1e-9)

	_, err = Trends(nil)
	assert.Error(t, err)
	_, err = Trends(append(steps, steps[0][:1]))
	assert.Error(t, err)
	_, err = Trends(append(steps, []Histogram{steps[0][1], steps[0][0]}))
	assert.Error(t, err)
}

func TestPlotHistory(t *testing.T) {
	steps := [][]Histogram{
		{{Name: "q/0", Num: 1, Sum: 1}, {Name: "q/1", Num: 1, Sum: 0}},
		{{Name: "q/0", Num: 1, Sum: 3}, {Name: "q/1", Num: 2, Sum: 1}},
	}
	var buf bytes.Buffer
	require.NoError(t, PlotHistory(&buf, "avg q", steps))
	_, err := png.Decode(&buf)
	assert.NoError(t, err)
}
