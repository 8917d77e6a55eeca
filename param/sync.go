package param

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Copy sets the values of dst to be equal to the values of src. Both maps
// must hold the same keys with the same shapes, as the Weights of two builds
// of the same architecture do.
//
// Values are copied into the existing backing of dst so that any VM already
// compiled over dst keeps seeing them.
func Copy(dst, src map[string]*G.Node) error {
	return each(dst, src, func(path string, d, s []float32) error {
		copy(d, s)
		return nil
	})
}

// Polyak sets the values of dst to a polyak average of themselves and src:
//
//	dst = (1-tau)*dst + tau*src
func Polyak(dst, src map[string]*G.Node, tau float64) error {
	if tau < 0 || tau > 1 {
		return errors.Errorf("polyak: tau %v out of [0, 1]", tau)
	}
	tmp := make([]float32, 0, 64)
	return each(dst, src, func(path string, d, s []float32) error {
		tmp = append(tmp[:0], s...)
		vecf32.Scale(tmp, float32(tau))
		vecf32.Scale(d, float32(1-tau))
		vecf32.Add(d, tmp)
		return nil
	})
}

// Lerp moves the value of n towards v: n = momentum*n + (1-momentum)*v.
// It is how moving statistics are folded in after a training step.
func Lerp(n *G.Node, v G.Value, momentum float64) error {
	d, err := backing(n.Value())
	if err != nil {
		return errors.Wrapf(err, "lerp %v", n.Name())
	}
	s, err := backing(v)
	if err != nil {
		return errors.Wrapf(err, "lerp %v", n.Name())
	}
	if len(d) != len(s) {
		return errors.Errorf("lerp %v: size %d, given %d", n.Name(), len(d), len(s))
	}
	tmp := append([]float32(nil), s...)
	vecf32.Scale(tmp, float32(1-momentum))
	vecf32.Scale(d, float32(momentum))
	vecf32.Add(d, tmp)
	return nil
}

func each(dst, src map[string]*G.Node, fn func(path string, d, s []float32) error) error {
	if len(dst) != len(src) {
		return errors.Errorf("weights differ in size: %d vs %d", len(dst), len(src))
	}
	for _, path := range Keys(dst) {
		dn := dst[path]
		sn, ok := src[path]
		if !ok {
			return errors.Errorf("%q missing from source weights", path)
		}
		if !dn.Shape().Eq(sn.Shape()) {
			return errors.Errorf("%q: shape %v, source shape %v", path, dn.Shape(), sn.Shape())
		}
		d, err := backing(dn.Value())
		if err != nil {
			return errors.Wrapf(err, "%q", path)
		}
		s, err := backing(sn.Value())
		if err != nil {
			return errors.Wrapf(err, "%q source", path)
		}
		if err = fn(path, d, s); err != nil {
			return err
		}
	}
	return nil
}

func backing(v G.Value) ([]float32, error) {
	if v == nil {
		return nil, errors.New("no value bound")
	}
	t, ok := v.(tensor.Tensor)
	if !ok {
		return nil, errors.Errorf("expected a tensor, got %T", v)
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("expected float32 backing, got %T", t.Data())
	}
	return data, nil
}
