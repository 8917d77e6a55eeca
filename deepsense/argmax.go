package deepsense

import (
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/chewxy/hm"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// argmaxOp reduces a matrix to the index of the largest value along an axis.
// Ties go to the lowest index. It has no gradient.
type argmaxOp struct {
	along int
}

func (op argmaxOp) Arity() int { return 1 }

// Type: Tensor-2 a → Tensor-1 Int
func (op argmaxOp) Type() hm.Type {
	a := hm.TypeVariable('a')
	return hm.NewFnType(&G.TensorType{Dims: 2, Of: a}, &G.TensorType{Dims: 1, Of: G.Int})
}

func (op argmaxOp) InferShape(ds ...G.DimSizer) (tensor.Shape, error) {
	if len(ds) != 1 {
		return nil, errors.Errorf("argmax expects one input, got %d", len(ds))
	}
	s, ok := ds[0].(tensor.Shape)
	if !ok || s.Dims() != 2 {
		return nil, errors.Errorf("argmax expects a matrix, got %v", ds[0])
	}
	return tensor.Shape{s[1-op.along]}, nil
}

func (op argmaxOp) Do(vs ...G.Value) (G.Value, error) {
	if len(vs) != 1 {
		return nil, errors.Errorf("argmax expects one input, got %d", len(vs))
	}
	t, ok := vs[0].(tensor.Tensor)
	if !ok {
		return nil, errors.Errorf("argmax expects a tensor, got %T", vs[0])
	}
	retVal, err := tensor.Argmax(t, op.along)
	return retVal, errors.WithStack(err)
}

func (op argmaxOp) ReturnsPtr() bool     { return false }
func (op argmaxOp) CallsExtern() bool    { return false }
func (op argmaxOp) OverwritesInput() int { return -1 }

func (op argmaxOp) WriteHash(h hash.Hash) { fmt.Fprintf(h, "argmax%d", op.along) }

func (op argmaxOp) Hashcode() uint32 {
	h := fnv.New32a()
	op.WriteHash(h)
	return h.Sum32()
}

func (op argmaxOp) String() string { return fmt.Sprintf("Argmax(along=%d)", op.along) }

func (m *maebe) argmax(input *G.Node, along int) *G.Node {
	return m.do(func() (*G.Node, error) { return G.ApplyOp(argmaxOp{along: along}, input) })
}
