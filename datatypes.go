// Package deepq pairs an online and a target DeepSense Q-network, the way a
// deep Q-learning agent uses them.
package deepq

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gorgonia/deepq/summary"
	G "gorgonia.org/gorgonia"
)

// Inferer is anything that can infer action values given a batch of series.
type Inferer interface {
	Infer(obs []float32) (values [][]float32, actions []int, err error)
	Summary() ([]summary.Histogram, error)
	Sync(weights map[string]*G.Node) error
	io.Closer
}

// ExecLogger is anything that can return the execution log.
type ExecLogger interface {
	ExecLog() string
}

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
