package deepsense

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	conf := DefaultConfig()
	if !conf.IsValid() {
		t.Fatalf("Expected Default Config to be correct: %v", conf.Validate())
	}
	assert.Equal(t, 12, conf.FinalWindowSize())
	assert.Equal(t, 768, conf.RecurrentInputSize())
	assert.Equal(t, 600, conf.InputSize())
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{"no splits", func(c *Config) { c.SplitSize = 0 }},
		{"no window", func(c *Config) { c.WindowSize = 0 }},
		{"no channels", func(c *Config) { c.NumChannels = -1 }},
		{"mismatched conv layers", func(c *Config) { c.KernelSizes = []int{5} }},
		{"no conv layers", func(c *Config) { c.FilterSizes, c.KernelSizes = nil, nil }},
		{"zero filters", func(c *Config) { c.FilterSizes[1] = 0 }},
		{"window too small", func(c *Config) { c.KernelSizes = []int{11, 11} }},
		{"zero keep", func(c *Config) { c.ConvKeepProb = 0 }},
		{"keep above one", func(c *Config) { c.GRUKeepProb = 1.5 }},
		{"mismatched dense keeps", func(c *Config) { c.DenseKeepProbs = []float64{0.5, 0.5} }},
		{"bad conv keep override", func(c *Config) { c.ConvKeepProbs = []float64{0.5, 0} }},
		{"no gru units", func(c *Config) { c.GRUCellSize = 0 }},
		{"no gru cells", func(c *Config) { c.GRUNumCells = 0 }},
		{"zero dense units", func(c *Config) { c.DenseLayerSizes = []int{0} }},
		{"no actions", func(c *Config) { c.NumActions = 0 }},
		{"momentum of one", func(c *Config) { c.BatchNormMomentum = 1 }},
		{"no epsilon", func(c *Config) { c.BatchNormEpsilon = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := DefaultConfig()
			tc.modify(&conf)
			err := conf.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
			assert.False(t, conf.IsValid())
		})
	}
}

func TestConfigBoundaries(t *testing.T) {
	conf := DefaultConfig()
	// two kernels of 10 and 11 leave exactly one step
	conf.KernelSizes = []int{10, 11}
	require.NoError(t, conf.Validate())
	assert.Equal(t, 1, conf.FinalWindowSize())
	assert.Equal(t, 64, conf.RecurrentInputSize())

	conf.DenseLayerSizes = nil
	conf.ConvKeepProbs = []float64{1, 1}
	assert.NoError(t, conf.Validate(), "no dense layers and keep probabilities of 1 are fine")
	assert.Equal(t, 1.0, conf.convKeep(1))
	assert.Equal(t, 0.5, conf.denseKeep(0))
}

func TestConfigValidateReportsAll(t *testing.T) {
	conf := DefaultConfig()
	conf.SplitSize = 0
	conf.NumActions = 0
	err := conf.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "split_size")
	assert.Contains(t, err.Error(), "num_actions")
}

const exampleConfig = `{
	"split_size": 10,
	"window_size": 20,
	"num_channels": 3,
	"filter_sizes": [64, 64],
	"kernel_sizes": [5, 5],
	"conv_keep_prob": 0.9,
	"dense_keep_prob": 0.5,
	"gru_cell_size": 32,
	"gru_num_cells": 2,
	"gru_keep_prob": 0.5,
	"dense_layer_sizes": [128],
	"num_actions": 4
}`

func TestLoadConfig(t *testing.T) {
	conf, err := LoadConfig(strings.NewReader(exampleConfig))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), conf)

	_, err = LoadConfig(strings.NewReader(`{"split_size": 10, "lstm_cell_size": 3}`))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = LoadConfig(strings.NewReader(strings.Replace(exampleConfig, `"num_actions": 4`, `"num_actions": 0`, 1)))
	assert.Error(t, err, "loaded configs are validated")
}
