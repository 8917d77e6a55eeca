package param

import (
	"encoding/gob"
	"io"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func init() {
	gob.Register(&tensor.Dense{})
	gob.Register(map[string]*tensor.Dense{})
}

// Save writes the values of weights to w.
func Save(w io.Writer, weights map[string]*G.Node) error {
	checkpoint := make(map[string]*tensor.Dense, len(weights))
	for path, n := range weights {
		t, ok := n.Value().(*tensor.Dense)
		if !ok {
			return errors.Errorf("save %q: expected *tensor.Dense, got %T", path, n.Value())
		}
		checkpoint[path] = t
	}
	if err := gob.NewEncoder(w).Encode(checkpoint); err != nil {
		return errors.Wrap(err, "encoding checkpoint")
	}
	return nil
}

// Load reads a checkpoint written by Save and copies it into weights. Every
// key of weights must be present in the checkpoint with the same shape.
func Load(r io.Reader, weights map[string]*G.Node) error {
	var checkpoint map[string]*tensor.Dense
	if err := gob.NewDecoder(r).Decode(&checkpoint); err != nil {
		return errors.Wrap(err, "decoding checkpoint")
	}
	for _, path := range Keys(weights) {
		n := weights[path]
		t, ok := checkpoint[path]
		if !ok {
			return errors.Errorf("load: %q missing from checkpoint", path)
		}
		if !t.Shape().Eq(n.Shape()) {
			return errors.Errorf("load %q: checkpoint shape %v, variable shape %v", path, t.Shape(), n.Shape())
		}
		d, err := backing(n.Value())
		if err != nil {
			return errors.Wrapf(err, "load %q", path)
		}
		s, err := backing(t)
		if err != nil {
			return errors.Wrapf(err, "load %q", path)
		}
		copy(d, s)
	}
	return nil
}
