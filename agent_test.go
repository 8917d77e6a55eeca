package deepq

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorgonia/deepq/deepsense"
	"github.com/gorgonia/deepq/param"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func testConfig() deepsense.Config {
	conf := deepsense.DefaultConfig()
	conf.SplitSize = 3
	conf.WindowSize = 6
	conf.NumChannels = 2
	conf.FilterSizes = []int{4, 4}
	conf.KernelSizes = []int{2, 2}
	conf.GRUCellSize = 4
	conf.DenseLayerSizes = []int{5}
	conf.NumActions = 3
	return conf
}

func newAgent(t *testing.T) *Agent {
	a, err := NewAgent(testConfig(), 4)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return a
}

func values(t *testing.T, a *Agent, target bool) map[string][]float32 {
	d, s := a.Online, a.OnlineStore()
	if target {
		d, s = a.Target, a.TargetStore()
	}
	retVal := make(map[string][]float32)
	for k, n := range d.Weights(s) {
		retVal[k] = append([]float32(nil), n.Value().Data().([]float32)...)
	}
	return retVal
}

func TestNewAgent(t *testing.T) {
	assert := assert.New(t)
	a := newAgent(t)
	defer a.Close()

	assert.Equal(deepsense.Train, a.Online.Mode())
	assert.Equal(deepsense.Eval, a.OnlineEval.Mode())
	assert.Equal(deepsense.Eval, a.Target.Mode())
	assert.Equal(a.OnlineStore().Len(), a.TargetStore().Len())
	assert.Equal(param.Keys(a.Online.Weights(a.OnlineStore())), param.Keys(a.Target.Weights(a.TargetStore())))
	assert.Equal(values(t, a, false), values(t, a, true), "the target starts as a copy")

	_, err := NewAgent(testConfig(), 0)
	assert.Error(err)
	conf := testConfig()
	conf.SplitSize = 0
	_, err = NewAgent(conf, 1)
	assert.Error(err)
}

func TestSyncTarget(t *testing.T) {
	assert := assert.New(t)
	a := newAgent(t)
	defer a.Close()

	kernel := a.Online.Weights(a.OnlineStore())["q_values/kernel"].Value().(*tensor.Dense)
	for i := range kernel.Data().([]float32) {
		kernel.Data().([]float32)[i] = 2
	}
	target := a.Target.Weights(a.TargetStore())["q_values/kernel"].Value().(*tensor.Dense)
	for i := range target.Data().([]float32) {
		target.Data().([]float32)[i] = 0
	}

	require.NoError(t, a.SoftSyncTarget(0.25))
	for _, v := range target.Data().([]float32) {
		assert.InDelta(0.5, v, 1e-6)
	}
	assert.Error(a.SoftSyncTarget(2))

	require.NoError(t, a.SyncTarget())
	assert.Equal(values(t, a, false), values(t, a, true))
}

func TestAct(t *testing.T) {
	assert := assert.New(t)
	a := newAgent(t)
	defer a.Close()
	conf := a.Config()

	obs := tensor.Random(deepsense.Float, 2*conf.InputSize()).([]float32)
	actions, err := a.Act(obs)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	require.Len(t, actions, 2)
	for _, act := range actions {
		assert.True(act >= 0 && act < conf.NumActions)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Act(obs)
			assert.NoError(err)
		}()
	}
	wg.Wait()
	assert.Equal(9, a.Steps)
	assert.Len(a.AvgQ[0], conf.NumActions)

	again, err := a.Act(obs)
	require.NoError(t, err)
	assert.Equal(actions, again, "acting is deterministic")

	_, err = a.Act(obs[1:])
	assert.Error(err)

	filename := filepath.Join(t.TempDir(), "avgq.csv")
	require.NoError(t, a.Dump(filename))
	a.Reset()
	assert.Zero(a.Steps)
}

func TestSaveLoad(t *testing.T) {
	assert := assert.New(t)
	a := newAgent(t)
	defer a.Close()
	b := newAgent(t)
	defer b.Close()
	obs := tensor.Random(deepsense.Float, 4*a.Config().InputSize()).([]float32)
	_, err := b.Act(obs)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.Save(&buf))
	require.NoError(t, b.Load(&buf))
	assert.Equal(values(t, a, false), values(t, b, false))
	assert.Equal(values(t, a, false), values(t, b, true))

	want, err := a.Act(obs)
	require.NoError(t, err)
	got, err := b.Act(obs)
	require.NoError(t, err)
	assert.Equal(want, got, "inferencers see the loaded weights")
}

func TestCloseWhileActing(t *testing.T) {
	a := newAgent(t)
	obs := tensor.Random(deepsense.Float, a.Config().InputSize()).([]float32)
	_, err := a.Act(obs)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, err := a.Act(obs); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, a.Close())

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("Act did not return after Close")
	}
	close(errs)
	for err := range errs {
		assert.Equal(t, errClosed, err)
	}

	_, err = a.Act(obs)
	assert.Equal(t, errClosed, err)
	assert.Error(t, a.SwitchToInference())
	assert.NoError(t, a.Close(), "closing twice")
}

func TestManyErr(t *testing.T) {
	err := manyErr{errors.New("a"), errors.New("b")}
	assert.Equal(t, "a\nb", err.Error())
}
