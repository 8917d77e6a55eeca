package deepq

import (
	"github.com/gorgonia/deepq/deepsense"
	"github.com/pkg/errors"
)

// EncodeSeries lays out a channel major series, one slice of
// SplitSize*WindowSize steps per channel, the way the network reads it: split
// by split, step by step, channel by channel.
func EncodeSeries(conf deepsense.Config, channels [][]float32, prealloc []float32) ([]float32, error) {
	if len(channels) != conf.NumChannels {
		return nil, errors.Errorf("expected %d channels, got %d", conf.NumChannels, len(channels))
	}
	steps := conf.SplitSize * conf.WindowSize
	for c, ch := range channels {
		if len(ch) != steps {
			return nil, errors.Errorf("channel %d has %d steps, expected %d", c, len(ch), steps)
		}
	}
	if len(prealloc) != conf.InputSize() {
		prealloc = make([]float32, conf.InputSize())
	}

	for t := 0; t < steps; t++ {
		for c := range channels {
			prealloc[t*conf.NumChannels+c] = channels[c][t]
		}
	}
	return prealloc, nil
}

// EncodeBatch encodes every series of a batch back to back.
func EncodeBatch(conf deepsense.Config, batch [][][]float32) ([]float32, error) {
	size := conf.InputSize()
	retVal := make([]float32, len(batch)*size)
	for i, series := range batch {
		if _, err := EncodeSeries(conf, series, retVal[i*size:(i+1)*size]); err != nil {
			return nil, errors.Wrapf(err, "series %d", i)
		}
	}
	return retVal, nil
}
