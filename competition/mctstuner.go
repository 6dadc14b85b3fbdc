package competition

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"ringmaster/engine"
	"ringmaster/meta"
	"ringmaster/scheduler"
	"ringmaster/searcher"
)

const mctsTunerStatusVersion = 1

// MCTSTuner tunes engine parameters by Monte Carlo tree search over
// nested subdivisions of the parameter space. Each game is one playout:
// the candidate plays with the parameters at the centre of the chosen
// cell, and the game's result is backed up the tree.
type MCTSTuner struct {
	base
	*tunerSettings
	treeConfig    searcher.TreeConfig
	numberOfGames int
	logTreePeriod int
	seed          uint64

	tree          *searcher.Tree
	rng           *searcher.Rand
	scheduler     *scheduler.Simple
	simulations   map[int]*searcher.Simulation
	candidateWins int
}

func NewMCTSTuner(code string) *MCTSTuner {
	return &MCTSTuner{base: newBase(code)}
}

type mctsGameData struct {
	Number int `json:"number"`
}

func (c *MCTSTuner) Initialise(cf *ControlFile, baseDir string) error {
	if err := c.base.initialise(cf, baseDir); err != nil {
		return err
	}
	settings, err := c.parseTunerSettings(cf, baseDir)
	if err != nil {
		return err
	}
	c.tunerSettings = settings
	c.numberOfGames = settings.config.NumberOfGames
	if cf.LogTreeToHistoryPeriod < 0 {
		return controlFileErrorf("log_tree_to_history_period: must not be negative")
	}
	c.logTreePeriod = cf.LogTreeToHistoryPeriod
	if cf.Seed != nil {
		c.seed = *cf.Seed
	}
	c.treeConfig = searcher.TreeConfig{
		Dimensions:             len(c.params),
		Subdivisions:           cf.Subdivisions,
		MaxDepth:               cf.MaxDepth,
		ExplorationCoefficient: meta.DEFAULT_EXPLORATION_COEFFICIENT,
		InitialVisits:          meta.DEFAULT_INITIAL_VISITS,
		InitialWins:            meta.DEFAULT_INITIAL_WINS,
		ExpansionThreshold:     cf.ExpansionThreshold,
	}
	if cf.ExplorationCoefficient != nil {
		c.treeConfig.ExplorationCoefficient = *cf.ExplorationCoefficient
	}
	if cf.InitialVisits != nil {
		c.treeConfig.InitialVisits = *cf.InitialVisits
	}
	if cf.InitialWins != nil {
		c.treeConfig.InitialWins = *cf.InitialWins
	}
	if _, err := searcher.NewTree(c.treeConfig); err != nil {
		return controlFileErrorf("tree settings: %s", err)
	}
	return nil
}

func (c *MCTSTuner) SetCleanStatus() error {
	tree, err := searcher.NewTree(c.treeConfig)
	if err != nil {
		return err
	}
	c.tree = tree
	c.rng = searcher.NewRand(c.seed)
	c.scheduler = scheduler.NewSimple()
	c.simulations = make(map[int]*searcher.Simulation)
	c.candidateWins = 0
	return nil
}

type mctsTunerStatus struct {
	Version       int                    `json:"version"`
	Tree          *searcher.Node         `json:"tree"`
	Simulations   map[int][]int          `json:"simulations"`
	Scheduler     scheduler.SimpleStatus `json:"scheduler"`
	RNG           []byte                 `json:"rng"`
	CandidateWins int                    `json:"candidate_wins"`
}

func (c *MCTSTuner) Status() (any, error) {
	rng, err := c.rng.MarshalBinary()
	if err != nil {
		return nil, err
	}
	paths := make(map[int][]int, len(c.simulations))
	for n, sim := range c.simulations {
		paths[n] = sim.Path()
	}
	return &mctsTunerStatus{
		Version:       mctsTunerStatusVersion,
		Tree:          c.tree.Root(),
		Simulations:   paths,
		Scheduler:     c.scheduler.Status(),
		RNG:           rng,
		CandidateWins: c.candidateWins,
	}, nil
}

func (c *MCTSTuner) SetStatus(data json.RawMessage) error {
	if err := checkStatusVersion(data, mctsTunerStatusVersion); err != nil {
		return err
	}
	var status mctsTunerStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return fmt.Errorf("invalid tuner status: %w", err)
	}
	if err := c.SetCleanStatus(); err != nil {
		return err
	}
	if err := c.tree.SetRoot(status.Tree); err != nil {
		return fmt.Errorf("invalid tree in status: %w", err)
	}
	if err := c.rng.UnmarshalBinary(status.RNG); err != nil {
		return fmt.Errorf("invalid random state: %w", err)
	}
	s, err := scheduler.SimpleFromStatus(status.Scheduler)
	if err != nil {
		return err
	}
	c.scheduler = s
	for n, path := range status.Simulations {
		sim, err := c.tree.SimulationForPath(path)
		if err != nil {
			return fmt.Errorf("invalid simulation for game %d: %w", n, err)
		}
		c.simulations[n] = sim
	}
	c.scheduler.Rollback()
	c.candidateWins = status.CandidateWins
	return nil
}

func mctsCandidateCode(n int) string {
	return fmt.Sprintf("cand#%d", n)
}

func (c *MCTSTuner) GetGame() (*engine.GameJob, error) {
	if len(c.scheduler.ToReissue()) == 0 &&
		c.numberOfGames != scheduler.NoLimit && c.scheduler.Issued() >= c.numberOfGames {
		return nil, ErrNoGameAvailable
	}
	n := c.scheduler.Issue()
	// A reissued game replays the path it was given before.
	sim, ok := c.simulations[n]
	if !ok {
		sim = c.tree.Simulate(c.rng)
		c.simulations[n] = sim
	}
	values, err := engineValues(c.params, sim.Parameters())
	if err != nil {
		return nil, err
	}
	candidate := makeCandidate(c.template, mctsCandidateCode(n), c.params, values)
	opponent := c.players[c.opponent]
	black, white := candidate, opponent
	if !c.candidateIsBlack(n) {
		black, white = opponent, candidate
	}
	return c.newJob(strconv.Itoa(n), black, white, c.config, mctsGameData{Number: n})
}

func (c *MCTSTuner) ProcessGameResult(response *engine.GameJobResult) error {
	var data mctsGameData
	if err := json.Unmarshal(response.GameData, &data); err != nil {
		return fmt.Errorf("invalid game data for %s: %w", response.GameID, err)
	}
	if err := c.scheduler.Fix(data.Number); err != nil {
		return fmt.Errorf("result for %s: %w", response.GameID, err)
	}
	sim := c.simulations[data.Number]
	delete(c.simulations, data.Number)
	c.recordEngineDescriptions(response)
	won := response.Result.WinningPlayer() == mctsCandidateCode(data.Number)
	if won {
		c.candidateWins++
	}
	if sim != nil {
		sim.Update(won)
	}
	if c.logTreePeriod > 0 && c.scheduler.Fixed()%c.logTreePeriod == 0 {
		c.logTree()
	}
	return nil
}

func (c *MCTSTuner) logTree() {
	values, _ := engineValues(c.params, c.tree.BestParameters())
	c.history.Info().
		Int("games", c.scheduler.Fixed()).
		Int("nodes", c.tree.NodeCount()).
		Str("best", describeValues(c.params, values)).
		Msg("tree")
}

func (c *MCTSTuner) Tree() *searcher.Tree { return c.tree }

// BestParameters returns the engine values at the centre of the best
// cell found so far.
func (c *MCTSTuner) BestParameters() ([]float64, error) {
	return engineValues(c.params, c.tree.BestParameters())
}

func (c *MCTSTuner) WriteScreenReport(w io.Writer) {
	played := c.scheduler.Fixed()
	fmt.Fprintf(w, "%d games played, candidate won %s\n", played, percent(c.candidateWins, played))
	if values, err := c.BestParameters(); err == nil {
		fmt.Fprintf(w, "best parameters: %s\n", describeValues(c.params, values))
	}
	fmt.Fprintf(w, "tree nodes: %d\n", c.tree.NodeCount())
	c.writeRootChildren(w)
}

func (c *MCTSTuner) WriteShortReport(w io.Writer) {
	c.writeDescription(w)
	c.WriteScreenReport(w)
}

func (c *MCTSTuner) WriteFullReport(w io.Writer) {
	c.WriteShortReport(w)
	c.writeEngineDescriptions(w)
}

// writeRootChildren lists the most visited cells at the top level.
func (c *MCTSTuner) writeRootChildren(w io.Writer) {
	children := c.tree.Root().Children
	order := make([]int, len(children))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return children[order[a]].Visits > children[order[b]].Visits
	})
	if len(order) > 10 {
		order = order[:10]
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "cell\tvisits\twins\tvalue\tparameters\t")
	for _, i := range order {
		child := children[i]
		desc := "--"
		if centre, err := c.tree.ParametersForPath([]int{i}); err == nil {
			if values, err := engineValues(c.params, centre); err == nil {
				desc = describeValues(c.params, values)
			}
		}
		fmt.Fprintf(tw, "%d\t%.0f\t%.0f\t%.3f\t%s\t\n", i, child.Visits, child.Wins, child.Value(), desc)
	}
	tw.Flush()
}
