package deepsense

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

// ToDot renders the stages of the last build, with their output shapes, as a
// graphviz digraph.
func (d *DeepSense) ToDot() (string, error) {
	if len(d.layers) == 0 {
		return "", errors.Errorf("%s has not been built", d.name)
	}
	const root = "G"
	g := gographviz.NewGraph()
	if err := g.SetName(root); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.SetDir(true); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.AddAttr(root, "label", strconv.Quote(fmt.Sprintf("%s (%v)", d.name, d.mode))); err != nil {
		return "", errors.WithStack(err)
	}

	for i, l := range d.layers {
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    "box",
			"label":    strconv.Quote(fmt.Sprintf("%s\n%v", l.Name, l.Shape)),
		}
		if err := g.AddNode(root, layerID(i), attrs); err != nil {
			return "", errors.WithStack(err)
		}
		if i == 0 {
			continue
		}
		if err := g.AddEdge(layerID(i-1), layerID(i), true, nil); err != nil {
			return "", errors.WithStack(err)
		}
	}
	return g.String(), nil
}

func layerID(i int) string { return fmt.Sprintf("layer%d", i) }
