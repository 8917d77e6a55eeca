package deepsense

import (
	"github.com/gorgonia/deepq/param"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type gruCell struct {
	units int

	gates, gatesBias         *G.Node // reset and update gates, in that order
	candidate, candidateBias *G.Node
}

func (m *maebe) gru(sc param.Scope, inputs, units int) *gruCell {
	gates := sc.In("gates")
	candidate := sc.In("candidate")
	return &gruCell{
		units: units,
		// gate biases start at 1
		gates:         m.variable(gates, "kernel", tensor.Shape{inputs + units, 2 * units}, G.GlorotU(1.0), true),
		gatesBias:     m.variable(gates, "bias", tensor.Shape{1, 2 * units}, G.Ones(), true),
		candidate:     m.variable(candidate, "kernel", tensor.Shape{inputs + units, units}, G.GlorotU(1.0), true),
		candidateBias: m.variable(candidate, "bias", tensor.Shape{1, units}, G.Zeroes(), true),
	}
}

// step computes the next state of the cell:
//
//	r, u = σ([x, h]·Wg + bg)
//	c    = tanh([x, r⊙h]·Wc + bc)
//	h'   = u⊙h + (1-u)⊙c
func (m *maebe) step(c *gruCell, x, h *G.Node) *G.Node {
	xh := m.do(func() (*G.Node, error) { return G.Concat(1, x, h) })
	gates := m.do(func() (*G.Node, error) { return G.Mul(xh, c.gates) })
	gates = m.do(func() (*G.Node, error) { return G.BroadcastAdd(gates, c.gatesBias, nil, []byte{0}) })
	gates = m.do(func() (*G.Node, error) { return G.Sigmoid(gates) })
	r := m.slice(gates, nil, G.S(0, c.units))
	u := m.slice(gates, nil, G.S(c.units, 2*c.units))

	rh := m.do(func() (*G.Node, error) { return G.HadamardProd(r, h) })
	xrh := m.do(func() (*G.Node, error) { return G.Concat(1, x, rh) })
	cand := m.do(func() (*G.Node, error) { return G.Mul(xrh, c.candidate) })
	cand = m.do(func() (*G.Node, error) { return G.BroadcastAdd(cand, c.candidateBias, nil, []byte{0}) })
	cand = m.do(func() (*G.Node, error) { return G.Tanh(cand) })

	kept := m.do(func() (*G.Node, error) { return G.HadamardProd(u, h) })
	oneMinusU := m.do(func() (*G.Node, error) { return G.Sub(m.scalar(1), u) })
	fresh := m.do(func() (*G.Node, error) { return G.HadamardProd(oneMinusU, cand) })
	return m.do(func() (*G.Node, error) { return G.Add(kept, fresh) })
}

// recurrent runs a stack of layers GRU cells over axis 1 of seq, shaped
// (batch, steps, features), starting from a zero state. It returns the output
// of the top cell at the last step.
//
// In Train every cell's output is dropped out before it is handed to the cell
// above; the state carried to the next step is left intact.
func (m *maebe) recurrent(sc param.Scope, seq *G.Node, layers, units int, mode Mode, keep float64) *G.Node {
	if m.err != nil {
		return nil
	}
	batch, steps, inputs := seq.Shape()[0], seq.Shape()[1], seq.Shape()[2]

	cells := make([]*gruCell, layers)
	states := make([]*G.Node, layers)
	for i := range cells {
		cells[i] = m.gru(sc.In(scoped("cell", i)).In("gru_cell"), inputs, units)
		zero := tensor.New(tensor.Of(Float), tensor.WithShape(batch, units))
		states[i] = G.NewConstant(zero, G.WithName(scoped("zero_state", i)))
		inputs = units
	}
	if m.err != nil {
		return nil
	}

	var out *G.Node
	for t := 0; t < steps; t++ {
		x := m.slice(seq, nil, G.S(t))
		for i, c := range cells {
			states[i] = m.step(c, x, states[i])
			x = states[i]
			if mode == Train {
				x = m.dropout(x, keep)
			}
		}
		out = x
	}
	return out
}
