package deepq

import (
	"io"
	"runtime"
	"sync"

	"github.com/gorgonia/deepq/deepsense"
	"github.com/gorgonia/deepq/param"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"k8s.io/klog/v2"
)

var numCPU = runtime.NumCPU()

const (
	onlineName = "online"
	targetName = "target"
)

// An Agent is a pair of DeepSense networks sharing a config: the online
// network, which is trained and acts, and the target network, which trails it.
type Agent struct {
	// Online is the Train build of the online network. OnlineEval is its Eval
	// build; both share the same variables.
	Online     *deepsense.DeepSense
	OnlineEval *deepsense.DeepSense
	Target     *deepsense.DeepSense

	Statistics
	sync.Mutex

	conf  deepsense.Config
	batch int

	onlineStore, targetStore *param.Store
	onlineIn, evalIn         *G.Node
	targetIn                 *G.Node

	inferer  chan Inferer
	inferers []Inferer
	done     chan struct{} // closed by Close
	closed   bool
}

var errClosed = errors.New("agent is closed")

// NewAgent builds the online network, in Train and in Eval, and the target
// network, in Eval, each taking batch series at once. The target starts as a
// copy of the online network.
func NewAgent(conf deepsense.Config, batch int) (*Agent, error) {
	if batch < 1 {
		return nil, errors.Errorf("batch must be positive, got %d", batch)
	}
	retVal := &Agent{
		Statistics: makeStatistics(),
		conf:       conf,
		batch:      batch,
		done:       make(chan struct{}),
	}

	var err error
	if retVal.Online, err = deepsense.New(onlineName, conf); err != nil {
		return nil, err
	}
	if retVal.OnlineEval, err = deepsense.New(onlineName, conf); err != nil {
		return nil, err
	}
	if retVal.Target, err = deepsense.New(targetName, conf); err != nil {
		return nil, err
	}

	retVal.onlineStore = param.NewStore(G.NewGraph())
	retVal.onlineIn = observations(retVal.onlineStore, conf, batch, "train_observations")
	retVal.evalIn = observations(retVal.onlineStore, conf, batch, "observations")
	if err = retVal.Online.Build(retVal.onlineStore, retVal.onlineIn, deepsense.Train, param.Create); err != nil {
		return nil, err
	}
	if err = retVal.OnlineEval.Build(retVal.onlineStore, retVal.evalIn, deepsense.Eval, param.Reuse); err != nil {
		return nil, err
	}

	retVal.targetStore = param.NewStore(G.NewGraph())
	retVal.targetIn = observations(retVal.targetStore, conf, batch, "observations")
	if err = retVal.Target.Build(retVal.targetStore, retVal.targetIn, deepsense.Eval, param.Create); err != nil {
		return nil, err
	}
	if err = retVal.SyncTarget(); err != nil {
		return nil, err
	}
	klog.V(1).Infof("agent: %d online variables, %d target variables", retVal.onlineStore.Len(), retVal.targetStore.Len())
	return retVal, nil
}

func observations(s *param.Store, conf deepsense.Config, batch int, name string) *G.Node {
	return G.NewMatrix(s.Graph(), deepsense.Float, G.WithShape(batch, conf.InputSize()), G.WithName(name))
}

// Config returns the config both networks were built with.
func (a *Agent) Config() deepsense.Config { return a.conf }

// OnlineStore holds the variables of the online network.
func (a *Agent) OnlineStore() *param.Store { return a.onlineStore }

// TargetStore holds the variables of the target network.
func (a *Agent) TargetStore() *param.Store { return a.targetStore }

// Inputs returns the observation nodes of the Train and Eval builds of the
// online network and of the target network.
func (a *Agent) Inputs() (train, eval, target *G.Node) { return a.onlineIn, a.evalIn, a.targetIn }

// SyncTarget copies the online weights into the target network.
func (a *Agent) SyncTarget() error {
	err := param.Copy(a.Target.Weights(a.targetStore), a.Online.Weights(a.onlineStore))
	return errors.Wrap(err, "syncing target")
}

// SoftSyncTarget moves the target weights towards the online weights:
// target = (1-tau)*target + tau*online.
func (a *Agent) SoftSyncTarget(tau float64) error {
	err := param.Polyak(a.Target.Weights(a.targetStore), a.Online.Weights(a.onlineStore), tau)
	return errors.Wrap(err, "soft syncing target")
}

// SwitchToInference creates the inferencers Act uses, one per CPU, from the
// current online weights.
func (a *Agent) SwitchToInference() error {
	_, err := a.checkout()
	return err
}

// checkout returns the pool of inferencers, creating it on first use.
func (a *Agent) checkout() (ch chan Inferer, err error) {
	a.Lock()
	defer a.Unlock()
	if a.closed {
		return nil, errClosed
	}
	if a.inferer != nil {
		return a.inferer, nil
	}
	inferer := make(chan Inferer, numCPU)
	var inferers []Inferer
	for i := 0; i < numCPU; i++ {
		var inf *deepsense.Inferencer
		if inf, err = deepsense.Infer(a.OnlineEval, a.onlineStore, a.batch, false); err != nil {
			for _, built := range inferers {
				built.Close()
			}
			return nil, err
		}
		inferers = append(inferers, inf)
		inferer <- inf
	}
	a.inferer = inferer
	a.inferers = inferers
	return inferer, nil
}

// SyncInference copies the current online weights into every inferencer. It
// must not be called while Act is running.
func (a *Agent) SyncInference() error {
	a.Lock()
	defer a.Unlock()
	weights := a.OnlineEval.Weights(a.onlineStore)
	for _, inf := range a.inferers {
		if err := inf.Sync(weights); err != nil {
			return err
		}
	}
	return nil
}

// Act returns the greedy action of every series in obs, which holds up to
// batch series laid out back to back. It is safe to call Act concurrently,
// and with Close: once the agent is closed Act returns an error.
func (a *Agent) Act(obs []float32) ([]int, error) {
	ch, err := a.checkout()
	if err != nil {
		return nil, err
	}
	var inf Inferer
	select {
	case inf = <-ch:
	case <-a.done:
		return nil, errClosed
	}
	defer func() { ch <- inf }()

	_, actions, err := inf.Infer(obs)
	if err != nil {
		if el, ok := inf.(ExecLogger); ok {
			klog.Error(el.ExecLog())
		}
		return nil, err
	}
	hs, err := inf.Summary()
	if err != nil {
		return nil, err
	}
	a.Lock()
	a.update(hs)
	a.Unlock()
	return actions, nil
}

// Save writes the online weights to w.
func (a *Agent) Save(w io.Writer) error {
	return param.Save(w, a.Online.Weights(a.onlineStore))
}

// Load reads online weights written by Save, then syncs the target network
// and the inferencers.
func (a *Agent) Load(r io.Reader) error {
	if err := param.Load(r, a.Online.Weights(a.onlineStore)); err != nil {
		return err
	}
	if err := a.SyncTarget(); err != nil {
		return err
	}
	return a.SyncInference()
}

// Close waits for the inferencers in use by Act to be handed back, then
// releases them all.
func (a *Agent) Close() error {
	a.Lock()
	if a.closed {
		a.Unlock()
		return nil
	}
	a.closed = true
	close(a.done)
	ch, inferers := a.inferer, a.inferers
	a.inferer = nil
	a.inferers = nil
	a.Unlock()

	var allErrs manyErr
	for range inferers {
		<-ch
	}
	for _, inferer := range inferers {
		if err := inferer.Close(); err != nil {
			allErrs = append(allErrs, err)
		}
	}
	if len(allErrs) > 0 {
		return allErrs
	}
	return nil
}
