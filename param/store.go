// Package param holds the learnable and non-learnable variables of a network.
//
// Variables are registered in a Store under a slash separated path. A Scope
// addresses a region of the Store and carries a Binding that decides whether
// the variables it asks for must be new (Create) or must already exist with
// the same shape (Reuse). This is how two builds of the same network share
// one set of parameters.
package param

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Float is the dtype of every variable in a Store.
var Float = G.Float32

// Separator separates the elements of a variable path.
const Separator = "/"

// Binding decides how a Scope resolves a variable request.
type Binding byte

const (
	// Create requires that every requested variable is new.
	Create Binding = iota
	// Reuse requires that every requested variable already exists with the same shape.
	Reuse
)

func (b Binding) String() string {
	switch b {
	case Create:
		return "create"
	case Reuse:
		return "reuse"
	}
	return "unknown binding"
}

// Variable is a registered graph variable.
type Variable struct {
	Path      string
	Node      *G.Node
	Trainable bool
}

// Store is a container of variables living in one expression graph.
type Store struct {
	g     *G.ExprGraph
	vars  map[string]*Variable
	paths []string // registration order
}

// NewStore creates an empty Store whose variables are created in g.
func NewStore(g *G.ExprGraph) *Store {
	return &Store{
		g:    g,
		vars: make(map[string]*Variable),
	}
}

// Graph returns the expression graph the variables live in.
func (s *Store) Graph() *G.ExprGraph { return s.g }

// Len returns the number of registered variables.
func (s *Store) Len() int { return len(s.paths) }

// Size returns the number of values held by all registered variables.
func (s *Store) Size() int {
	var retVal int
	for _, v := range s.vars {
		retVal += v.Node.Shape().TotalSize()
	}
	return retVal
}

// Lookup returns the variable registered at path.
func (s *Store) Lookup(path string) (*Variable, bool) {
	v, ok := s.vars[path]
	return v, ok
}

// Paths returns the paths of all variables in registration order.
func (s *Store) Paths() []string {
	retVal := make([]string, len(s.paths))
	copy(retVal, s.paths)
	return retVal
}

// Under returns every variable registered below prefix, keyed by its path with
// the prefix (and the following separator) stripped.
func (s *Store) Under(prefix string) map[string]*G.Node {
	p := prefix + Separator
	retVal := make(map[string]*G.Node)
	for _, path := range s.paths {
		if strings.HasPrefix(path, p) {
			retVal[strings.TrimPrefix(path, p)] = s.vars[path].Node
		}
	}
	return retVal
}

// Learnables returns the trainable nodes registered below prefix, in registration order.
func (s *Store) Learnables(prefix string) G.Nodes {
	p := prefix + Separator
	var retVal G.Nodes
	for _, path := range s.paths {
		v := s.vars[path]
		if v.Trainable && strings.HasPrefix(path, p) {
			retVal = append(retVal, v.Node)
		}
	}
	return retVal
}

// Scope returns the top level scope called name.
func (s *Store) Scope(name string, bind Binding) Scope {
	sc := Scope{s: s, bind: bind}
	return sc.In(name)
}

func (s *Store) register(v *Variable) {
	s.vars[v.Path] = v
	s.paths = append(s.paths, v.Path)
}

// Scope addresses a region of a Store. Scopes are values; In returns a new
// Scope and never modifies the receiver.
type Scope struct {
	s    *Store
	path string
	bind Binding
	err  error
}

// In returns the sub scope called name.
func (sc Scope) In(name string) Scope {
	if sc.err != nil {
		return sc
	}
	if err := checkName(name); err != nil {
		sc.err = errors.Wrapf(err, "scope %q", sc.path)
		return sc
	}
	sc.path = join(sc.path, name)
	return sc
}

// Path returns the full path of the scope.
func (sc Scope) Path() string { return sc.path }

// Binding returns the binding the scope resolves variables with.
func (sc Scope) Binding() Binding { return sc.bind }

// Err returns the error of the first bad scope name, if any.
func (sc Scope) Err() error { return sc.err }

// Variable resolves the variable called name in the scope.
//
// With Create, the variable must not exist yet: it is created in the Store's
// graph with the given shape and initializer. With Reuse, the variable must
// exist and have the same shape; the existing node is returned and init is
// ignored.
func (sc Scope) Variable(name string, shape tensor.Shape, init G.InitWFn, trainable bool) (*G.Node, error) {
	if sc.err != nil {
		return nil, sc.err
	}
	if err := checkName(name); err != nil {
		return nil, errors.Wrapf(err, "variable in scope %q", sc.path)
	}
	path := join(sc.path, name)
	v, ok := sc.s.vars[path]
	switch {
	case ok && sc.bind == Create:
		return nil, errors.Errorf("variable %q already exists; build with Reuse to share it", path)
	case !ok && sc.bind == Reuse:
		return nil, errors.Errorf("variable %q does not exist; it must be created before it can be reused", path)
	case ok:
		if !v.Node.Shape().Eq(shape) {
			return nil, errors.Errorf("variable %q has shape %v, requested %v", path, v.Node.Shape(), shape)
		}
		return v.Node, nil
	}

	if len(shape) == 0 || shape.TotalSize() <= 0 {
		return nil, errors.Errorf("variable %q has an empty shape %v", path, shape)
	}
	n := G.NewTensor(sc.s.g, Float, shape.Dims(), G.WithShape(shape.Clone()...), G.WithName(path), G.WithInit(init))
	sc.s.register(&Variable{
		Path:      path,
		Node:      n,
		Trainable: trainable,
	})
	return n, nil
}

func checkName(name string) error {
	if name == "" {
		return errors.New("empty name")
	}
	if strings.Contains(name, Separator) {
		return errors.Errorf("name %q contains the separator %q", name, Separator)
	}
	return nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + Separator + name
}

// Keys returns the keys of a weights map in sorted order.
func Keys(weights map[string]*G.Node) []string {
	retVal := make([]string, 0, len(weights))
	for k := range weights {
		retVal = append(retVal, k)
	}
	slices.Sort(retVal)
	return retVal
}
