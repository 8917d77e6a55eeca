package deepsense

// Mode selects how batch norm and dropout behave in a build.
type Mode byte

const (
	// Eval normalizes with the moving statistics and applies no dropout.
	Eval Mode = iota
	// Train normalizes with the batch statistics and applies dropout.
	Train
)

func (m Mode) String() string {
	switch m {
	case Eval:
		return "eval"
	case Train:
		return "train"
	}
	return "unknown mode"
}
