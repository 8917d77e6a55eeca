package deepq

import (
	"testing"

	"github.com/gorgonia/deepq/deepsense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSeries(t *testing.T) {
	conf := deepsense.Config{SplitSize: 2, WindowSize: 2, NumChannels: 2}
	channels := [][]float32{
		{0, 1, 2, 3},
		{10, 11, 12, 13},
	}
	encoded, err := EncodeSeries(conf, channels, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 10, 1, 11, 2, 12, 3, 13}, encoded)

	_, err = EncodeSeries(conf, channels[:1], nil)
	assert.Error(t, err)
	_, err = EncodeSeries(conf, [][]float32{{0, 1, 2}, {0, 1, 2}}, nil)
	assert.Error(t, err)

	batch, err := EncodeBatch(conf, [][][]float32{channels, channels})
	require.NoError(t, err)
	assert.Equal(t, append(encoded, encoded...), batch)
}
