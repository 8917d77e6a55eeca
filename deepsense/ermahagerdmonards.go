package deepsense

import (
	"github.com/gorgonia/deepq/param"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	nnops "gorgonia.org/gorgonia/ops/nn"
	"gorgonia.org/tensor"
)

type maebe struct {
	err error
}

// generic monad... may be useful
func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) variable(sc param.Scope, name string, shape tensor.Shape, init G.InitWFn, trainable bool) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	retVal, m.err = sc.Variable(name, shape, init, trainable)
	return
}

func (m *maebe) scalar(v float64) *G.Node {
	switch Float {
	case G.Float32:
		return G.NewConstant(float32(v))
	}
	return G.NewConstant(v)
}

// conv convolves a BCHW input along its last axis only. The kernel is 1×kernel
// with no padding and unit strides, so the last axis shrinks by kernel-1.
func (m *maebe) conv(sc param.Scope, input *G.Node, filterCount, kernel int) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	featureCount := input.Shape()[1]
	filter := m.variable(sc, "kernel", tensor.Shape{filterCount, featureCount, 1, kernel}, G.GlorotU(1.0), true)
	bias := m.variable(sc, "bias", tensor.Shape{1, filterCount, 1, 1}, G.Zeroes(), true)
	if m.err != nil {
		return nil
	}

	var convolved *G.Node
	if convolved, m.err = nnops.Conv2d(input, filter, tensor.Shape{1, kernel}, []int{0, 0}, []int{1, 1}, []int{1, 1}); m.err != nil {
		m.err = errors.WithStack(m.err)
		return nil
	}
	return m.do(func() (*G.Node, error) { return G.BroadcastAdd(convolved, bias, nil, []byte{0, 2, 3}) })
}

// batchNorm holds the moving statistics of one batch norm layer and the batch
// statistics read out of the last training run.
type batchNorm struct {
	mean, variance           *G.Node
	batchMean, batchVariance G.Value
	momentum                 float64
}

func (bn *batchNorm) update() error {
	if bn.batchMean == nil || bn.batchVariance == nil {
		return errors.Errorf("%v: no batch statistics have been read", bn.mean.Name())
	}
	if err := param.Lerp(bn.mean, bn.batchMean, bn.momentum); err != nil {
		return err
	}
	return param.Lerp(bn.variance, bn.batchVariance, bn.momentum)
}

// batchnorm normalizes input over every axis but axis 1, the channel (or
// unit) axis. In Train the statistics of the batch are used and read out so
// that they can be folded into the moving statistics; in Eval the moving
// statistics are used.
func (m *maebe) batchnorm(sc param.Scope, input *G.Node, mode Mode, momentum, epsilon float64) (*G.Node, *batchNorm) {
	if m.err != nil {
		return nil, nil
	}
	shp := input.Shape()
	stat := make(tensor.Shape, len(shp))
	var along []int
	var pattern []byte
	for i := range shp {
		stat[i] = 1
		if i != 1 {
			along = append(along, i)
			pattern = append(pattern, byte(i))
		}
	}
	stat[1] = shp[1]

	gamma := m.variable(sc, "gamma", stat, G.Ones(), true)
	beta := m.variable(sc, "beta", stat, G.Zeroes(), true)
	bn := &batchNorm{momentum: momentum}
	bn.mean = m.variable(sc, "moving_mean", stat, G.Zeroes(), false)
	bn.variance = m.variable(sc, "moving_variance", stat, G.Ones(), false)
	if m.err != nil {
		return nil, nil
	}

	mean, variance := bn.mean, bn.variance
	var centered *G.Node
	if mode == Train {
		mean = m.reshape(m.do(func() (*G.Node, error) { return G.Mean(input, along...) }), stat)
		centered = m.do(func() (*G.Node, error) { return G.BroadcastSub(input, mean, nil, pattern) })
		squared := m.do(func() (*G.Node, error) { return G.Square(centered) })
		variance = m.reshape(m.do(func() (*G.Node, error) { return G.Mean(squared, along...) }), stat)
		if m.err != nil {
			return nil, nil
		}
		G.Read(mean, &bn.batchMean)
		G.Read(variance, &bn.batchVariance)
	} else {
		centered = m.do(func() (*G.Node, error) { return G.BroadcastSub(input, mean, nil, pattern) })
	}

	eps := m.scalar(epsilon)
	std := m.do(func() (*G.Node, error) { return G.Add(variance, eps) })
	std = m.do(func() (*G.Node, error) { return G.Sqrt(std) })
	normalized := m.do(func() (*G.Node, error) { return G.BroadcastHadamardDiv(centered, std, nil, pattern) })
	scaled := m.do(func() (*G.Node, error) { return G.BroadcastHadamardProd(normalized, gamma, nil, pattern) })
	retVal := m.do(func() (*G.Node, error) { return G.BroadcastAdd(scaled, beta, nil, pattern) })
	return retVal, bn
}

func (m *maebe) linear(sc param.Scope, input *G.Node, units int) *G.Node {
	if m.err != nil {
		return nil
	}
	w := m.variable(sc, "kernel", tensor.Shape{input.Shape()[1], units}, G.GlorotU(1.0), true)
	b := m.variable(sc, "bias", tensor.Shape{1, units}, G.Zeroes(), true)
	xw := m.do(func() (*G.Node, error) { return G.Mul(input, w) })
	return m.do(func() (*G.Node, error) { return G.BroadcastAdd(xw, b, nil, []byte{0}) })
}

// channelDropout drops whole channels. The mask has one entry per (batch,
// channel) pair and is shared by every position along the remaining axes.
func (m *maebe) channelDropout(input *G.Node, keep float64) *G.Node {
	if m.err != nil {
		return nil
	}
	if keep >= 1 {
		return input
	}
	shp := input.Shape()
	noise := make([]int, len(shp))
	var pattern []byte
	for i := range shp {
		if i < 2 {
			noise[i] = shp[i]
			continue
		}
		noise[i] = 1
		pattern = append(pattern, byte(i))
	}
	uniform := G.UniformRandomNode(input.Graph(), Float, 0, 1, noise...)
	mask := m.do(func() (*G.Node, error) { return G.Lt(uniform, m.scalar(keep), true) })
	mask = m.do(func() (*G.Node, error) { return G.Mul(mask, m.scalar(1/keep)) })
	return m.do(func() (*G.Node, error) { return G.BroadcastHadamardProd(input, mask, nil, pattern) })
}

func (m *maebe) dropout(input *G.Node, keep float64) *G.Node {
	if m.err != nil {
		return nil
	}
	if keep >= 1 {
		return input
	}
	return m.do(func() (*G.Node, error) { return G.Dropout(input, 1-keep) })
}

func (m *maebe) rectify(input *G.Node) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = nnops.Rectify(input); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) reshape(input *G.Node, to tensor.Shape) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = G.Reshape(input, to); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) transpose(input *G.Node, axes ...int) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = G.Transpose(input, axes...); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) slice(input *G.Node, slices ...tensor.Slice) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = G.Slice(input, slices...); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}
