package summary

import (
	"io"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Trend is how the mean of one tag moved over a run.
type Trend struct {
	Name   string
	Mean   float64
	StdDev float64
	Last   float64
}

// Trends returns the trend of every tag, in the order of the first step.
// Every step must hold the same tags in the same order.
func Trends(steps [][]Histogram) ([]Trend, error) {
	series, err := seriesOf(steps)
	if err != nil {
		return nil, err
	}
	retVal := make([]Trend, len(series))
	for i, s := range series {
		retVal[i].Name = steps[0][i].Name
		retVal[i].Mean, retVal[i].StdDev = stat.MeanStdDev(s, nil)
		retVal[i].Last = s[len(s)-1]
	}
	return retVal, nil
}

// PlotHistory draws the mean of every tag against the step as a PNG.
func PlotHistory(w io.Writer, title string, steps [][]Histogram) error {
	series, err := seriesOf(steps)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "step"
	p.Y.Label.Text = "mean"
	p.Add(plotter.NewGrid())
	for i, s := range series {
		xys := make(plotter.XYs, len(s))
		for step, y := range s {
			xys[step].X = float64(step)
			xys[step].Y = y
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrap(err, steps[0][i].Name)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(steps[0][i].Name, line)
	}

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = wt.WriteTo(w)
	return errors.WithStack(err)
}

// seriesOf transposes steps into one series of means per tag.
func seriesOf(steps [][]Histogram) ([][]float64, error) {
	if len(steps) == 0 || len(steps[0]) == 0 {
		return nil, errors.New("no steps")
	}
	first := steps[0]
	retVal := make([][]float64, len(first))
	for i := range retVal {
		retVal[i] = make([]float64, len(steps))
	}
	for step, hs := range steps {
		if len(hs) != len(first) {
			return nil, errors.Errorf("step %d has %d histograms, expected %d", step, len(hs), len(first))
		}
		for i, h := range hs {
			if h.Name != first[i].Name {
				return nil, errors.Errorf("step %d: histogram %d is %q, expected %q", step, i, h.Name, first[i].Name)
			}
			retVal[i][step] = h.Mean()
		}
	}
	return retVal, nil
}
