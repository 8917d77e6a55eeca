// Command deepsense builds an online/target pair of DeepSense Q-networks, acts
// on random series and writes out what it built and what it saw.
package main

import (
	"flag"
	"math/rand"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gorgonia/deepq"
	"github.com/gorgonia/deepq/deepsense"
	"github.com/gorgonia/deepq/summary"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagConfig     = flag.String("config", "", "JSON config of the network. The default config is used if left empty.")
	flagBatch      = flag.Int("batch", 32, "Number of series the networks take at once.")
	flagSteps      = flag.Int("steps", 10, "Number of batches of random series to act on.")
	flagSeed       = flag.Int64("seed", 1337, "Seed of the random series.")
	flagTau        = flag.Float64("tau", 0, "If positive, soft sync the target network with this rate after every step.")
	flagDot        = flag.String("dot", "", "Write the layers of the online network as graphviz to this file.")
	flagCSV        = flag.String("csv", "", "Write the average action values of every step as CSV to this file.")
	flagPNG        = flag.String("png", "", "Render the average action values of the last step as PNG to this file.")
	flagGIF        = flag.String("gif", "", "Animate the average action values of every step as GIF to this file.")
	flagPlot       = flag.String("plot", "", "Plot the average action values against the step as PNG to this file.")
	flagCheckpoint = flag.String("checkpoint", "", "Load the online weights from this file if it exists, and save them to it in the end.")
	flagPprof      = flag.String("pprof", "", "Serve pprof on this address.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *flagPprof != "" {
		go func() {
			klog.Infof("pprof on http://%s/debug/pprof", *flagPprof)
			klog.Error(http.ListenAndServe(*flagPprof, nil))
		}()
	}

	conf := deepsense.DefaultConfig()
	if *flagConfig != "" {
		conf = must.M1(deepsense.LoadConfigFile(*flagConfig))
	}
	a := must.M1(deepq.NewAgent(conf, *flagBatch))
	defer a.Close()
	size := a.OnlineStore().Size()
	klog.Infof("online network: %d variables, %s parameters (%s)",
		a.OnlineStore().Len(), humanize.Comma(int64(size)), humanize.Bytes(uint64(size*4)))

	if *flagCheckpoint != "" {
		if f, err := os.Open(*flagCheckpoint); err == nil {
			must.M(a.Load(f))
			f.Close()
			klog.Infof("loaded %s", *flagCheckpoint)
		}
	}

	r := rand.New(rand.NewSource(*flagSeed))
	obs := make([]float32, *flagBatch*conf.InputSize())
	bar := progressbar.NewOptions(*flagSteps,
		progressbar.OptionSetDescription("acting"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
	)
	for step := 0; step < *flagSteps; step++ {
		for i := range obs {
			obs[i] = r.Float32()
		}
		actions := must.M1(a.Act(obs))
		klog.V(1).Infof("step %d: actions %v", step, actions)
		if *flagTau > 0 {
			must.M(a.SoftSyncTarget(*flagTau))
		}
		must.M(bar.Add(1))
	}
	must.M(bar.Finish())
	if a.Steps == 0 {
		return
	}

	for _, tr := range must.M1(summary.Trends(a.AvgQ)) {
		klog.Infof("%s: last %.4g, mean %.4g ± %.2g", tr.Name, tr.Last, tr.Mean, tr.StdDev)
	}

	if *flagDot != "" {
		dot := must.M1(a.Online.ToDot())
		must.M(os.WriteFile(*flagDot, []byte(dot), 0644))
	}
	if *flagCSV != "" {
		must.M(a.Dump(*flagCSV))
	}
	if *flagPNG != "" {
		f := must.M1(os.Create(*flagPNG))
		must.M(summary.RenderPNG(f, a.AvgQ[a.Steps-1]))
		must.M(f.Close())
	}
	if *flagGIF != "" {
		f := must.M1(os.Create(*flagGIF))
		enc := summary.NewGIFEncoder(f)
		for step, hs := range a.AvgQ {
			must.M(enc.Encode(step, hs))
		}
		must.M(enc.Flush())
		must.M(f.Close())
	}
	if *flagPlot != "" {
		f := must.M1(os.Create(*flagPlot))
		must.M(summary.PlotHistory(f, deepsense.AvgQSummary, a.AvgQ))
		must.M(f.Close())
	}
	if *flagCheckpoint != "" {
		f := must.M1(os.Create(*flagCheckpoint))
		must.M(a.Save(f))
		must.M(f.Close())
	}
	klog.Flush()
}
