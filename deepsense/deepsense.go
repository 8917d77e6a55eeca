// Package deepsense builds the DeepSense Q-network: per window convolutions
// over a multichannel time series, a stack of GRU cells over the windows, and
// a dense head estimating the value of every action.
package deepsense

import (
	"fmt"
	"strings"

	"github.com/gorgonia/deepq/param"
	"github.com/gorgonia/deepq/summary"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"
)

// Float is the dtype of the network's inputs and variables.
var Float = param.Float

// AvgQSummary is the name of the merged average value summary.
const AvgQSummary = "avg_q_summary"

// DeepSense is the network. A DeepSense only holds its name and config until
// Build is called; every Build replaces its outputs.
type DeepSense struct {
	name string
	conf Config

	// outputs of the last build
	mode        Mode
	values      *G.Node
	action      *G.Node
	avgQ        *G.Node
	avgQSummary *summary.Merged
	out         *readouts
	layers      []LayerInfo

	norms   []*batchNorm // of the last Train build
	weights map[*param.Store]map[string]*G.Node
}

type readouts struct {
	values, action G.Value
}

// LayerInfo is the output shape of one stage of a build.
type LayerInfo struct {
	Name  string
	Shape tensor.Shape
}

// New returns a new, unbuilt *DeepSense. name is the scope its variables are
// registered under.
func New(name string, conf Config) (*DeepSense, error) {
	if name == "" || strings.Contains(name, param.Separator) {
		return nil, errors.Errorf("invalid network name %q", name)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &DeepSense{
		name: name,
		conf: conf,
	}, nil
}

func (d *DeepSense) Name() string   { return d.name }
func (d *DeepSense) Config() Config { return d.conf }

// Mode of the last build.
func (d *DeepSense) Mode() Mode { return d.mode }

// Values is the (batch, actions) matrix of estimated action values.
func (d *DeepSense) Values() *G.Node { return d.values }

// Action is the index of the highest value of every batch element. Ties go to
// the lowest index.
func (d *DeepSense) Action() *G.Node { return d.action }

// AvgQ is the batch mean of Values, one entry per action.
func (d *DeepSense) AvgQ() *G.Node { return d.avgQ }

// AvgQSummary merges one histogram of AvgQ per action, tagged q/<action>.
func (d *DeepSense) AvgQSummary() *summary.Merged { return d.avgQSummary }

// Layers returns the output shape of every stage of the last build.
func (d *DeepSense) Layers() []LayerInfo { return append([]LayerInfo(nil), d.layers...) }

// Weights returns the variables of this network in s, keyed by their path
// below the network's name. The map is computed on the first call for a given
// store and cached: variables registered afterwards do not show up in it.
func (d *DeepSense) Weights(s *param.Store) map[string]*G.Node {
	if w, ok := d.weights[s]; ok {
		return w
	}
	if d.weights == nil {
		d.weights = make(map[*param.Store]map[string]*G.Node)
	}
	w := s.Under(d.name)
	if len(w) == 0 {
		klog.Warningf("deepsense %q: no variables registered yet, caching an empty weights map", d.name)
	}
	d.weights[s] = w
	return w
}

// Build adds the network to the graph of s, computing from input.
//
// input must hold batch*InputSize() values, batch being its first dimension;
// the values of a batch element are laid out split by split, step by step,
// channel by channel. bind decides whether the variables are created or
// reused: building twice under one name with Create fails, as does a Reuse
// build of a network that was never created.
//
// On error the outputs of the previous build are left untouched, but the
// graph may hold the nodes added before the failure.
func (d *DeepSense) Build(s *param.Store, input *G.Node, mode Mode, bind param.Binding) error {
	conf := d.conf
	shp := input.Shape()
	if shp.Dims() < 2 {
		return errors.Errorf("%s: input must have a batch dimension, got shape %v", d.name, shp)
	}
	batch := shp[0]
	if batch < 1 || shp.TotalSize() != batch*conf.InputSize() {
		return errors.Errorf("%s: input of shape %v does not hold %d series of %d×%d×%d", d.name, shp, batch, conf.SplitSize, conf.WindowSize, conf.NumChannels)
	}
	if input.Dtype() != Float {
		return errors.Errorf("%s: input dtype %v, expected %v", d.name, input.Dtype(), Float)
	}
	if input.Graph() != s.Graph() {
		return errors.Errorf("%s: input does not belong to the graph of the store", d.name)
	}

	var (
		m      maebe
		norms  []*batchNorm
		layers []LayerInfo
	)
	trace := func(name string, n *G.Node) {
		if n == nil {
			return
		}
		layers = append(layers, LayerInfo{Name: name, Shape: n.Shape().Clone()})
		klog.V(2).Infof("deepsense %q (%v): %s %v", d.name, mode, name, n.Shape())
	}
	root := s.Scope(d.name, bind)
	trace("input", input)

	// gorgonia convolves BCHW: channels first, splits as rows, steps as columns
	x := m.reshape(input, tensor.Shape{batch, conf.SplitSize, conf.WindowSize, conf.NumChannels})
	x = m.transpose(x, 0, 3, 1, 2)

	convs := root.In("conv_layers")
	for i := range conf.FilterSizes {
		layer := convs.In(scoped("conv_layer", i+1))
		x = m.conv(layer.In(scoped("conv", i+1)), x, conf.FilterSizes[i], conf.KernelSizes[i])
		var bn *batchNorm
		x, bn = m.batchnorm(layer.In(scoped("batch_norm", i+1)), x, mode, conf.BatchNormMomentum, conf.BatchNormEpsilon)
		x = m.rectify(x)
		if mode == Train {
			x = m.channelDropout(x, conf.convKeep(i))
		}
		norms = append(norms, bn)
		trace(layer.Path(), x)
	}

	// one feature vector per split: (batch, split, window*filters)
	x = m.transpose(x, 0, 2, 3, 1)
	x = m.reshape(x, tensor.Shape{batch, conf.SplitSize, conf.RecurrentInputSize()})
	trace("flatten", x)

	rnn := root.In("rnn").In("multi_rnn_cell")
	x = m.recurrent(rnn, x, conf.GRUNumCells, conf.GRUCellSize, mode, conf.GRUKeepProb)
	trace(rnn.Path(), x)

	fc := root.In("fully_connected")
	for i, units := range conf.DenseLayerSizes {
		layer := fc.In(scoped("dense_layer", i+1))
		x = m.linear(layer.In(scoped("dense", i+1)), x, units)
		var bn *batchNorm
		x, bn = m.batchnorm(layer.In(scoped("batch_norm", i+1)), x, mode, conf.BatchNormMomentum, conf.BatchNormEpsilon)
		x = m.rectify(x)
		if mode == Train {
			x = m.dropout(x, conf.denseKeep(i))
		}
		norms = append(norms, bn)
		trace(layer.Path(), x)
	}

	head := root.In("q_values")
	values := m.linear(head, x, conf.NumActions)
	trace(head.Path(), values)
	avgQ := m.do(func() (*G.Node, error) { return G.Mean(values, 0) })
	action := m.argmax(values, 1)
	trace("action", action)
	if m.err != nil {
		return errors.Wrapf(m.err, "building %s (%v, %v)", d.name, mode, bind)
	}

	tags := make([]string, conf.NumActions)
	for i := range tags {
		tags[i] = fmt.Sprintf("q/%d", i)
	}
	merged := summary.NewMerged(AvgQSummary, tags)
	G.Read(avgQ, merged.Target())
	out := new(readouts)
	G.Read(values, &out.values)
	G.Read(action, &out.action)

	d.mode = mode
	d.values = values
	d.action = action
	d.avgQ = avgQ
	d.avgQSummary = merged
	d.out = out
	d.layers = layers
	if mode == Train {
		d.norms = norms
	}
	klog.V(1).Infof("deepsense %q: built %v with %v, %d variables in store", d.name, mode, bind, s.Len())
	return nil
}

// UpdateMovingStatistics folds the batch statistics read during the last run
// of the Train build into the moving statistics used by Eval builds.
func (d *DeepSense) UpdateMovingStatistics() error {
	if len(d.norms) == 0 {
		return errors.Errorf("%s has no Train build", d.name)
	}
	for _, bn := range d.norms {
		if err := bn.update(); err != nil {
			return errors.Wrap(err, d.name)
		}
	}
	return nil
}

// Outputs returns the values and greedy actions computed by the last run of
// the last build.
func (d *DeepSense) Outputs() (values [][]float32, actions []int, err error) {
	if d.out == nil || d.out.values == nil || d.out.action == nil {
		return nil, nil, errors.Errorf("%s has not been run", d.name)
	}
	data, ok := d.out.values.Data().([]float32)
	if !ok {
		return nil, nil, errors.Errorf("%s: unexpected values %T", d.name, d.out.values.Data())
	}
	switch a := d.out.action.Data().(type) {
	case []int:
		actions = append(actions, a...)
	case int:
		actions = []int{a}
	default:
		return nil, nil, errors.Errorf("%s: unexpected actions %T", d.name, a)
	}

	n := d.conf.NumActions
	values = make([][]float32, len(data)/n)
	for i := range values {
		values[i] = append([]float32(nil), data[i*n:(i+1)*n]...)
	}
	if len(values) != len(actions) {
		return nil, nil, errors.Errorf("%s: %d rows of values for %d actions", d.name, len(values), len(actions))
	}
	return values, actions, nil
}
