package deepsense

import (
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Config configures the neural network.
//
// The input of the network is a series of SplitSize windows, each
// WindowSize steps long, of NumChannels channels.
type Config struct {
	SplitSize   int `json:"split_size"`   // number of windows
	WindowSize  int `json:"window_size"`  // steps per window
	NumChannels int `json:"num_channels"` // channels per step

	FilterSizes []int `json:"filter_sizes"` // filters of each conv layer
	KernelSizes []int `json:"kernel_sizes"` // kernel width of each conv layer, along the window

	ConvKeepProb   float64   `json:"conv_keep_prob"`
	ConvKeepProbs  []float64 `json:"conv_keep_probs,omitempty"` // per layer override of ConvKeepProb
	DenseKeepProb  float64   `json:"dense_keep_prob"`
	DenseKeepProbs []float64 `json:"dense_keep_probs,omitempty"` // per layer override of DenseKeepProb

	GRUCellSize int     `json:"gru_cell_size"`
	GRUNumCells int     `json:"gru_num_cells"`
	GRUKeepProb float64 `json:"gru_keep_prob"`

	DenseLayerSizes []int `json:"dense_layer_sizes"`
	NumActions      int   `json:"num_actions"`

	BatchNormMomentum float64 `json:"batch_norm_momentum"`
	BatchNormEpsilon  float64 `json:"batch_norm_epsilon"`
}

const (
	defaultMomentum = 0.99
	defaultEpsilon  = 1e-3
)

// DefaultConfig returns a config for 10 windows of 20 steps over 3 channels
// and 4 actions.
func DefaultConfig() Config {
	return Config{
		SplitSize:   10,
		WindowSize:  20,
		NumChannels: 3,

		FilterSizes: []int{64, 64},
		KernelSizes: []int{5, 5},

		ConvKeepProb:  0.9,
		DenseKeepProb: 0.5,

		GRUCellSize: 32,
		GRUNumCells: 2,
		GRUKeepProb: 0.5,

		DenseLayerSizes: []int{128},
		NumActions:      4,

		BatchNormMomentum: defaultMomentum,
		BatchNormEpsilon:  defaultEpsilon,
	}
}

// Validate reports every problem with the config.
func (conf Config) Validate() error {
	var errs manyErr
	add := func(format string, args ...interface{}) {
		errs = append(errs, errors.Errorf(format, args...))
	}

	if conf.SplitSize < 1 {
		add("split_size must be positive, got %d", conf.SplitSize)
	}
	if conf.WindowSize < 1 {
		add("window_size must be positive, got %d", conf.WindowSize)
	}
	if conf.NumChannels < 1 {
		add("num_channels must be positive, got %d", conf.NumChannels)
	}

	if len(conf.FilterSizes) != len(conf.KernelSizes) {
		add("filter_sizes has %d layers but kernel_sizes has %d", len(conf.FilterSizes), len(conf.KernelSizes))
	}
	if len(conf.FilterSizes) == 0 {
		add("at least one conv layer is required")
	}
	for i, f := range conf.FilterSizes {
		if f < 1 {
			add("filter_sizes[%d] must be positive, got %d", i, f)
		}
	}
	window := conf.WindowSize
	for i, k := range conf.KernelSizes {
		if k < 1 {
			add("kernel_sizes[%d] must be positive, got %d", i, k)
			continue
		}
		if window -= k - 1; window < 1 && conf.WindowSize >= 1 {
			add("kernel_sizes[%d] = %d shrinks the window to %d", i, k, window)
			break
		}
	}

	checkKeep(&errs, "conv_keep_prob", conf.ConvKeepProb)
	checkKeep(&errs, "dense_keep_prob", conf.DenseKeepProb)
	checkKeep(&errs, "gru_keep_prob", conf.GRUKeepProb)
	if len(conf.ConvKeepProbs) > 0 && len(conf.ConvKeepProbs) != len(conf.FilterSizes) {
		add("conv_keep_probs has %d entries for %d conv layers", len(conf.ConvKeepProbs), len(conf.FilterSizes))
	}
	for i, p := range conf.ConvKeepProbs {
		checkKeep(&errs, "conv_keep_probs["+strconv.Itoa(i)+"]", p)
	}
	if len(conf.DenseKeepProbs) > 0 && len(conf.DenseKeepProbs) != len(conf.DenseLayerSizes) {
		add("dense_keep_probs has %d entries for %d dense layers", len(conf.DenseKeepProbs), len(conf.DenseLayerSizes))
	}
	for i, p := range conf.DenseKeepProbs {
		checkKeep(&errs, "dense_keep_probs["+strconv.Itoa(i)+"]", p)
	}

	if conf.GRUCellSize < 1 {
		add("gru_cell_size must be positive, got %d", conf.GRUCellSize)
	}
	if conf.GRUNumCells < 1 {
		add("gru_num_cells must be positive, got %d", conf.GRUNumCells)
	}
	for i, d := range conf.DenseLayerSizes {
		if d < 1 {
			add("dense_layer_sizes[%d] must be positive, got %d", i, d)
		}
	}
	if conf.NumActions < 1 {
		add("num_actions must be positive, got %d", conf.NumActions)
	}
	if conf.BatchNormMomentum < 0 || conf.BatchNormMomentum >= 1 {
		add("batch_norm_momentum must be in [0, 1), got %v", conf.BatchNormMomentum)
	}
	if conf.BatchNormEpsilon <= 0 {
		add("batch_norm_epsilon must be positive, got %v", conf.BatchNormEpsilon)
	}

	if len(errs) > 0 {
		return errors.Wrap(errs, "invalid config")
	}
	return nil
}

// IsValid is Validate() == nil.
func (conf Config) IsValid() bool { return conf.Validate() == nil }

// FinalWindowSize is the window size left after every conv layer.
func (conf Config) FinalWindowSize() int {
	window := conf.WindowSize
	for _, k := range conf.KernelSizes {
		window -= k - 1
	}
	return window
}

// RecurrentInputSize is the size of the feature vector fed to the recurrent
// stage for every window.
func (conf Config) RecurrentInputSize() int {
	if len(conf.FilterSizes) == 0 {
		return 0
	}
	return conf.FinalWindowSize() * conf.FilterSizes[len(conf.FilterSizes)-1]
}

// InputSize is the number of values making up one input series.
func (conf Config) InputSize() int { return conf.SplitSize * conf.WindowSize * conf.NumChannels }

func (conf Config) convKeep(i int) float64 {
	if len(conf.ConvKeepProbs) > 0 {
		return conf.ConvKeepProbs[i]
	}
	return conf.ConvKeepProb
}

func (conf Config) denseKeep(i int) float64 {
	if len(conf.DenseKeepProbs) > 0 {
		return conf.DenseKeepProbs[i]
	}
	return conf.DenseKeepProb
}

// LoadConfig reads a JSON config. Missing batch norm constants take their
// defaults. The result is validated.
func LoadConfig(r io.Reader) (Config, error) {
	var conf Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&conf); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}
	if conf.BatchNormMomentum == 0 {
		conf.BatchNormMomentum = defaultMomentum
	}
	if conf.BatchNormEpsilon == 0 {
		conf.BatchNormEpsilon = defaultEpsilon
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// LoadConfigFile is LoadConfig over the named file.
func LoadConfigFile(filename string) (Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Config{}, errors.WithStack(err)
	}
	defer f.Close()
	conf, err := LoadConfig(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", filename)
	}
	return conf, nil
}

func checkKeep(errs *manyErr, field string, p float64) {
	if p <= 0 || p > 1 {
		*errs = append(*errs, errors.Errorf("%s must be in (0, 1], got %v", field, p))
	}
}
