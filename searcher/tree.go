package searcher

import (
	"fmt"
	"math"
)

// Node is a region of the parameter space: the whole unit hypercube at the
// root, and one cell of its parent's subdivision below that.
type Node struct {
	// Children is nil until the node is expanded.
	Children []*Node `json:"children,omitempty"`
	Wins     float64 `json:"wins"`
	Visits   float64 `json:"visits"`

	value       float64
	rsqrtVisits float64
}

func (n *Node) recalculate() {
	n.value = n.Wins / n.Visits
	n.rsqrtVisits = 1 / math.Sqrt(n.Visits)
}

func (n *Node) Value() float64 { return n.value }

func (n *Node) IsExpanded() bool { return n.Children != nil }

// TreeConfig holds the tree's shape and UCT settings.
type TreeConfig struct {
	Dimensions             int
	Subdivisions           int
	MaxDepth               int
	ExplorationCoefficient float64
	InitialVisits          float64
	InitialWins            float64
	// A leaf is expanded once it has had more than this many real visits.
	ExpansionThreshold float64
}

func (c TreeConfig) validate() error {
	switch {
	case c.Dimensions < 1:
		return fmt.Errorf("dimensions must be at least 1")
	case c.Subdivisions < 2:
		return fmt.Errorf("subdivisions must be at least 2")
	case c.MaxDepth < 1:
		return fmt.Errorf("max depth must be at least 1")
	case c.ExplorationCoefficient < 0:
		return fmt.Errorf("exploration coefficient must not be negative")
	case c.InitialVisits <= 0:
		return fmt.Errorf("initial visits must be positive")
	case c.InitialWins < 0 || c.InitialWins > c.InitialVisits:
		return fmt.Errorf("initial wins must be between 0 and initial visits")
	case c.ExpansionThreshold < 0:
		return fmt.Errorf("expansion threshold must not be negative")
	}
	if math.Pow(float64(c.Subdivisions), float64(c.Dimensions)) > 1<<16 {
		return fmt.Errorf("too many children per node")
	}
	return nil
}

// Tree is a search tree over nested subdivisions of the parameter unit
// hypercube. Each expanded node has Subdivisions^Dimensions children.
type Tree struct {
	config    TreeConfig
	branching int
	root      *Node
	nodeCount int
}

// NewTree returns a tree with its root already expanded.
func NewTree(config TreeConfig) (*Tree, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	t := &Tree{config: config, branching: 1}
	for i := 0; i < config.Dimensions; i++ {
		t.branching *= config.Subdivisions
	}
	t.root = t.newNode()
	t.nodeCount = 1
	t.expand(t.root)
	return t, nil
}

func (t *Tree) newNode() *Node {
	n := &Node{Wins: t.config.InitialWins, Visits: t.config.InitialVisits}
	n.recalculate()
	return n
}

func (t *Tree) expand(n *Node) {
	n.Children = make([]*Node, t.branching)
	for i := range n.Children {
		n.Children[i] = t.newNode()
	}
	t.nodeCount += t.branching
}

func (t *Tree) Root() *Node { return t.root }

func (t *Tree) Config() TreeConfig { return t.config }

func (t *Tree) NodeCount() int { return t.nodeCount }

func (t *Tree) BranchingFactor() int { return t.branching }

// SetRoot replaces the tree's contents, for example with a root read from
// a status file.
func (t *Tree) SetRoot(root *Node) error {
	if root == nil || !root.IsExpanded() {
		return fmt.Errorf("root node must be expanded")
	}
	count, err := t.check(root, 0)
	if err != nil {
		return err
	}
	t.root = root
	t.nodeCount = count
	return nil
}

func (t *Tree) check(n *Node, depth int) (int, error) {
	if n.Visits <= 0 {
		return 0, fmt.Errorf("node at depth %d has no visits", depth)
	}
	n.recalculate()
	count := 1
	if n.Children == nil {
		return count, nil
	}
	if depth >= t.config.MaxDepth {
		return 0, fmt.Errorf("node at depth %d is expanded", depth)
	}
	if len(n.Children) != t.branching {
		return 0, fmt.Errorf("node at depth %d has %d children, want %d", depth, len(n.Children), t.branching)
	}
	for _, child := range n.Children {
		if child == nil {
			return 0, fmt.Errorf("missing child at depth %d", depth+1)
		}
		c, err := t.check(child, depth+1)
		if err != nil {
			return 0, err
		}
		count += c
	}
	return count, nil
}

// cellPosition gives a child's cell index along each dimension. The first
// dimension varies fastest.
func (t *Tree) cellPosition(child int) []int {
	pos := make([]int, t.config.Dimensions)
	for i := range pos {
		pos[i] = child % t.config.Subdivisions
		child /= t.config.Subdivisions
	}
	return pos
}

// ParametersForPath returns the centre of the cell reached by following
// the given child indices from the root. Each coordinate is in (0, 1).
func (t *Tree) ParametersForPath(path []int) ([]float64, error) {
	w := t.newWalker()
	for _, choice := range path {
		if err := w.descend(choice); err != nil {
			return nil, err
		}
	}
	return w.Parameters(), nil
}

// BestParameters walks from the root choosing the child with the highest
// win rate at each level, and returns the centre of the cell it ends in.
func (t *Tree) BestParameters() []float64 {
	w := t.newWalker()
	for w.node.IsExpanded() {
		best, bestValue := 0, math.Inf(-1)
		for i, child := range w.node.Children {
			if child.value > bestValue {
				best, bestValue = i, child.value
			}
		}
		w.step(best)
	}
	return w.Parameters()
}

// Walker follows a path down the tree, tracking the parameter region the
// current node covers.
type Walker struct {
	tree    *Tree
	node    *Node
	nodes   []*Node
	path    []int
	lower   []float64
	breadth []float64
}

func (t *Tree) newWalker() *Walker {
	w := &Walker{
		tree:    t,
		node:    t.root,
		lower:   make([]float64, t.config.Dimensions),
		breadth: make([]float64, t.config.Dimensions),
	}
	for i := range w.breadth {
		w.breadth[i] = 1
	}
	return w
}

// descend moves to a child given by a caller, checking that it exists.
func (w *Walker) descend(choice int) error {
	if !w.node.IsExpanded() {
		return fmt.Errorf("node at depth %d is not expanded", len(w.path))
	}
	if choice < 0 || choice >= len(w.node.Children) {
		return fmt.Errorf("child %d out of range at depth %d", choice, len(w.path))
	}
	w.step(choice)
	return nil
}

// step moves to a child of an expanded node.
func (w *Walker) step(choice int) {
	for i, p := range w.tree.cellPosition(choice) {
		w.breadth[i] /= float64(w.tree.config.Subdivisions)
		w.lower[i] += w.breadth[i] * float64(p)
	}
	w.node = w.node.Children[choice]
	w.nodes = append(w.nodes, w.node)
	w.path = append(w.path, choice)
}

// Parameters returns the centre of the current region.
func (w *Walker) Parameters() []float64 {
	centre := make([]float64, len(w.lower))
	for i := range centre {
		centre[i] = w.lower[i] + w.breadth[i]/2
	}
	return centre
}

// Path returns the child indices taken from the root.
func (w *Walker) Path() []int { return append([]int(nil), w.path...) }

func (w *Walker) Depth() int { return len(w.path) }

// Simulation is one playout: a path chosen by UCT whose region centre is
// played as a candidate, updated when the game's result comes back.
type Simulation struct {
	*Walker
}

// chooseAction picks the child with the best UCT score. The scan starts at
// a random child so that ties don't always favour low indices.
func (w *Walker) chooseAction(rng *Rand) int {
	children := w.node.Children
	u := newUCT(w.tree.config.ExplorationCoefficient, w.node.Visits)
	start := rng.Intn(len(children))
	best, bestScore := start, math.Inf(-1)
	for k := range children {
		i := (start + k) % len(children)
		if score := u.evaluate(children[i]); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// Simulate chooses the path for a new playout. It walks down to a leaf;
// if that leaf has been visited enough and isn't at the maximum depth, it
// is expanded and the walk takes one more step.
func (t *Tree) Simulate(rng *Rand) *Simulation {
	w := t.newWalker()
	for w.node.IsExpanded() {
		w.step(w.chooseAction(rng))
	}
	if w.Depth() < t.config.MaxDepth &&
		w.node.Visits-t.config.InitialVisits > t.config.ExpansionThreshold {
		t.expand(w.node)
		w.step(w.chooseAction(rng))
	}
	return &Simulation{Walker: w}
}

// SimulationForPath rebuilds a simulation from a saved path.
func (t *Tree) SimulationForPath(path []int) (*Simulation, error) {
	w := t.newWalker()
	for _, choice := range path {
		if err := w.descend(choice); err != nil {
			return nil, err
		}
	}
	return &Simulation{Walker: w}, nil
}

// Update records the playout's result at the root and along its path.
func (s *Simulation) Update(candidateWon bool) {
	for _, n := range append([]*Node{s.tree.root}, s.nodes...) {
		n.Visits++
		if candidateWon {
			n.Wins++
		}
		n.recalculate()
	}
}
