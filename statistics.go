package deepq

import (
	"os"

	"github.com/gorgonia/deepq/summary"
	"github.com/pkg/errors"
)

// Statistics records the average action values of every Act call.
type Statistics struct {
	Steps int
	AvgQ  [][]summary.Histogram
}

func makeStatistics() Statistics {
	return Statistics{
		AvgQ: make([][]summary.Histogram, 0, 64),
	}
}

func (s *Statistics) update(hs []summary.Histogram) {
	s.AvgQ = append(s.AvgQ, hs)
	s.Steps++
}

// Reset drops every recorded step.
func (s *Statistics) Reset() {
	s.AvgQ = s.AvgQ[:0]
	s.Steps = 0
}

// Dump writes the recorded steps as CSV to filename.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	w := summary.NewWriter(f)
	for step, hs := range s.AvgQ {
		if err := w.Write(step, hs); err != nil {
			return err
		}
	}
	return w.Flush()
}
