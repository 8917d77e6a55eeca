package deepsense

import (
	"bytes"
	"log"

	"github.com/gorgonia/deepq/param"
	"github.com/gorgonia/deepq/summary"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Greedy returns the index of the highest value. Ties go to the lowest index.
func Greedy(values []float32) int { return vecf32.Argmax(values) }

// Inferencer is a struct that holds an Eval build of a *DeepSense and a VM. By
// using an Inferencer there is no longer a need to create a VM every time an
// inference needs to be done.
type Inferencer struct {
	d     *DeepSense
	s     *param.Store
	m     G.VM
	batch int

	planes *G.Node
	input  *tensor.Dense
	buf    *bytes.Buffer
}

// Infer builds an Eval copy of d on its own graph, able to take up to batch
// series at once, and copies into it the current values of d's variables in s.
func Infer(d *DeepSense, s *param.Store, batch int, toLog bool) (*Inferencer, error) {
	if batch < 1 {
		return nil, errors.Errorf("batch must be positive, got %d", batch)
	}
	weights := d.Weights(s)
	if len(weights) == 0 {
		return nil, errors.Errorf("%s has no variables in the given store", d.name)
	}

	g := G.NewGraph()
	retVal := &Inferencer{
		d:     &DeepSense{name: d.name, conf: d.conf},
		s:     param.NewStore(g),
		batch: batch,
		input: tensor.New(tensor.WithShape(batch, d.conf.InputSize()), tensor.Of(Float)),
		buf:   new(bytes.Buffer),
	}
	retVal.planes = G.NewMatrix(g, Float, G.WithShape(batch, d.conf.InputSize()), G.WithName("Planes"))
	if err := retVal.d.Build(retVal.s, retVal.planes, Eval, param.Create); err != nil {
		return nil, err
	}
	if err := retVal.Sync(weights); err != nil {
		return nil, err
	}

	if toLog {
		logger := log.New(retVal.buf, "", 0)
		retVal.m = G.NewTapeMachine(g,
			G.WithLogger(logger),
			G.WithWatchlist(),
			G.TraceExec(),
			G.WithValueFmt("%+1.1v"),
			G.WithNaNWatch(),
		)
	} else {
		retVal.m = G.NewTapeMachine(g)
	}
	return retVal, nil
}

// Network returns the Eval build the Inferencer runs.
func (m *Inferencer) Network() *DeepSense { return m.d }

// Sync copies weights, as returned by DeepSense.Weights, into the Inferencer.
func (m *Inferencer) Sync(weights map[string]*G.Node) error {
	return errors.Wrap(param.Copy(m.d.Weights(m.s), weights), "syncing inferencer")
}

// Infer takes up to batch series laid out back to back and returns the action
// values and the greedy action of each. Missing rows of the batch are zeroes.
func (m *Inferencer) Infer(obs []float32) (values [][]float32, actions []int, err error) {
	size := m.d.conf.InputSize()
	if len(obs) == 0 || len(obs)%size != 0 || len(obs) > m.batch*size {
		return nil, nil, errors.Errorf("expected up to %d series of %d values, got %d values", m.batch, size, len(obs))
	}
	n := len(obs) / size

	m.buf.Reset()
	m.input.Zero()
	copy(m.input.Data().([]float32), obs)

	m.m.Reset()
	if err = G.Let(m.planes, m.input); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if err = m.m.RunAll(); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if values, actions, err = m.d.Outputs(); err != nil {
		return nil, nil, err
	}
	return values[:n], actions[:n], nil
}

// Summary returns the average value histograms of the last Infer call. The
// average is over the whole batch, zeroed rows included.
func (m *Inferencer) Summary() ([]summary.Histogram, error) { return m.d.AvgQSummary().Collect() }

// ExecLog returns the execution log. If Infer was called with toLog = false, then it will return an empty string
func (m *Inferencer) ExecLog() string { return m.buf.String() }

// Close implements a closer, because well, a gorgonia VM is a resource.
func (m *Inferencer) Close() error { return m.m.Close() }
